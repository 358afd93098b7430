package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"memoryscramble/internal/app"
	"memoryscramble/internal/bot"
	"memoryscramble/internal/config"
	"memoryscramble/internal/domain"
	"memoryscramble/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// The match handler resolves contested flips by rejecting them: MatchLoop
// is single-threaded per match and must never suspend, so the blocking
// policy is only offered on the RPC surface.
var _ ports.GameSession = (*app.Session)(nil)

// matchLabel is the JSON label matchmaking queries filter on.
type matchLabel struct {
	Open  int    `json:"open"`
	State string `json:"state"`
}

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Session   *app.Session                `json:"-"` // Shared board and score state
	Presences map[string]runtime.Presence `json:"-"` // Map UserId -> Presence for targeted messaging
	Bots      map[string]*bot.Agent       `json:"-"` // Active bot agents
	Tick      int64                       `json:"tick"`

	BotAutoFillDelay     int   `json:"bot_auto_fill_delay"`     // Seconds to wait before auto-filling with bots
	BotMinDelay          int   `json:"bot_min_delay"`           // Min seconds a bot waits between turns
	BotMaxDelay          int   `json:"bot_max_delay"`           // Max seconds a bot waits between turns
	BotWaitUntil         int64 `json:"bot_wait_until"`          // Tick when the next bot turn runs
	LastSinglePlayerTick int64 `json:"last_single_player_tick"` // Tick when a single player started waiting
}

func (ms *MatchState) GetOpenSeatsCount() int {
	open := MaxMatchPlayers - len(ms.Presences) - len(ms.Bots)
	if open < 0 {
		return 0
	}
	return open
}

func (ms *MatchState) GetHumanPlayerCount() int {
	return len(ms.Presences)
}

// flipMessage is the client payload for OpFlip.
type flipMessage struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// errorMessage is sent privately on OpGameError.
type errorMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// playerMessage announces joins and leaves.
type playerMessage struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsBot       bool   `json:"isBot"`
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

type matchHandler struct{}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing match handler.")

	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("MatchInit: Could not load bot identities: %v", err)
	}

	board, err := newMatchBoard()
	if err != nil {
		logger.Error("MatchInit: Failed to build board: %v", err)
		return nil, 0, ""
	}

	minDelay, maxDelay := config.GetBotDelayBounds()
	state := &MatchState{
		Session:          app.NewSession(board, app.ArbitrationReject),
		Presences:        make(map[string]runtime.Presence),
		Bots:             make(map[string]*bot.Agent),
		BotAutoFillDelay: config.GetBotAutoFillDelay(),
		BotMinDelay:      minDelay,
		BotMaxDelay:      maxDelay,
	}

	// Environment variables override the config file for deploy-time tuning.
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if val, ok := env["memory_bot_auto_fill_delay_sec"]; ok {
			if i, err := strconv.Atoi(val); err == nil && i > 0 {
				state.BotAutoFillDelay = i
			}
		}
	}

	label, err := json.Marshal(matchLabel{Open: state.GetOpenSeatsCount(), State: "playing"})
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1 // one tick per second drives bot pacing
	return state, tickRate, string(label)
}

// newMatchBoard builds the match board from the configured board file,
// falling back to a random board from the configured card set.
func newMatchBoard() (*domain.Board, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if file := config.GetBoardFile(); file != "" {
		if board, err := domain.ParseBoardFile(file, rng); err == nil {
			return board, nil
		}
	}
	width, height := config.GetBoardSize()
	return domain.NewBoard(width, height, config.GetCards(), rng)
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	if _, already := matchState.Presences[presence.GetUserId()]; already {
		return state, true, ""
	}
	if matchState.GetOpenSeatsCount() <= 0 && len(matchState.Bots) == 0 {
		return state, false, "Match full"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		// A human joining a full match evicts a bot.
		if matchState.GetOpenSeatsCount() <= 0 {
			evicted := ""
			for botID := range matchState.Bots {
				evicted = botID
				break
			}
			if evicted == "" {
				logger.Warn("MatchJoin: User %s joined but no seat was available.", p.GetUserId())
				continue
			}
			logger.Info("MatchJoin: Replacing bot %s with human %s", evicted, p.GetUserId())
			delete(matchState.Bots, evicted)
			matchState.Session.Release(evicted)
		}

		matchState.Presences[p.GetUserId()] = p
		matchState.Session.EnsurePlayer(p.GetUserId())

		mh.broadcast(dispatcher, logger, OpPlayerJoined, playerMessage{
			UserID:      p.GetUserId(),
			DisplayName: p.GetUsername(),
		}, nil)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastBoard(matchState, dispatcher, logger)

	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())

		// Turn the leaver's half-open selection back face-down so the
		// spaces are playable again.
		events := matchState.Session.Release(p.GetUserId())
		mh.broadcastEvents(matchState, dispatcher, logger, events)

		mh.broadcast(dispatcher, logger, OpPlayerLeft, playerMessage{UserID: p.GetUserId()}, nil)
		logger.Debug("MatchLeave: User %s left.", p.GetUserId())
	}

	if matchState.GetHumanPlayerCount() == 0 {
		logger.Info("MatchLeave: Terminating match with no humans.")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastBoard(matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpLook:
			mh.handleLook(matchState, dispatcher, logger, msg)
		case OpFlip:
			mh.handleFlip(ctx, matchState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	mh.processBots(ctx, matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) handleLook(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	snap := state.Session.Look(senderID)

	presence, ok := state.Presences[senderID]
	if !ok {
		logger.Warn("handleLook: Presence not found for %s", senderID)
		return
	}
	mh.broadcast(dispatcher, logger, OpBoardState, toBoardResponse(app.DefaultGameID, snap), []runtime.Presence{presence})
}

func (mh *matchHandler) handleFlip(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	var req flipMessage
	if err := json.Unmarshal(msg.GetData(), &req); err != nil {
		logger.Warn("handleFlip: Invalid flip payload from %s: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, codeInvalidArgument, "invalid flip payload")
		return
	}

	_, events, err := state.Session.Flip(ctx, senderID, req.X, req.Y)
	if err != nil {
		logger.Debug("handleFlip: User %s flip (%d,%d) failed: %v", senderID, req.X, req.Y, err)
		mh.sendError(state, dispatcher, logger, senderID, grpcCode(err), err.Error())
		return
	}

	mh.broadcastEvents(state, dispatcher, logger, events)
	mh.broadcastBoard(state, dispatcher, logger)
}

func (mh *matchHandler) processBots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	// 1. Auto-fill with one bot opponent when a single human has been
	// waiting alone past the configured delay.
	if state.GetHumanPlayerCount() == 1 && len(state.Bots) == 0 {
		if state.LastSinglePlayerTick == 0 {
			state.LastSinglePlayerTick = state.Tick
			logger.Debug("processBots: Single player detected, starting auto-fill timer.")
		}
		if state.Tick-state.LastSinglePlayerTick >= int64(state.BotAutoFillDelay) {
			identity := bot.GetBotIdentity(len(state.Bots))
			agent := bot.NewAgent(identity.UserID, identity.DisplayName, nil)
			state.Bots[identity.UserID] = agent
			state.Session.EnsurePlayer(identity.UserID)
			state.LastSinglePlayerTick = 0

			logger.Info("processBots: Added bot %s (%s)", identity.DisplayName, identity.UserID)
			mh.broadcast(dispatcher, logger, OpPlayerJoined, playerMessage{
				UserID:      identity.UserID,
				DisplayName: bot.GetBotDisplayName(identity.UserID),
				IsBot:       true,
			}, nil)
			mh.updateLabel(state, dispatcher, logger)
		}
	} else {
		state.LastSinglePlayerTick = 0
	}

	if len(state.Bots) == 0 {
		return
	}

	// 2. Run one bot turn per delay window.
	if state.BotWaitUntil == 0 {
		delay := state.BotMinDelay
		if state.BotMaxDelay > state.BotMinDelay {
			delay += rand.Intn(state.BotMaxDelay - state.BotMinDelay + 1)
		}
		state.BotWaitUntil = state.Tick + int64(delay)
		return
	}
	if state.Tick < state.BotWaitUntil {
		return
	}
	state.BotWaitUntil = 0

	for botID, agent := range state.Bots {
		matched, err := agent.TakeTurn(ctx, state.Session)
		if err != nil {
			// Contested space or a race with a human flip. The bot just
			// waits for its next window.
			logger.Debug("processBots: Bot %s turn failed: %v", botID, err)
			continue
		}
		if matched {
			logger.Debug("processBots: Bot %s matched a pair.", botID)
		}
		mh.broadcastBoard(state, dispatcher, logger)
		break // one bot turn per window keeps the pace human-like
	}
}

// broadcastEvents relays app events to the clients under their opcodes.
func (mh *matchHandler) broadcastEvents(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		var opCode int64
		switch ev.Kind {
		case app.EventCardFlipped:
			opCode = OpCardFlipped
		case app.EventPairMatched:
			opCode = OpPairMatched
		case app.EventPairMissed:
			opCode = OpPairMissed
		case app.EventPlayerReleased:
			opCode = OpPlayerReleased
		default:
			logger.Warn("Unknown event kind: %v", ev.Kind)
			continue
		}

		var recipients []runtime.Presence
		if len(ev.Recipients) > 0 {
			for _, uid := range ev.Recipients {
				if p, ok := state.Presences[uid]; ok {
					recipients = append(recipients, p)
				}
			}
			// If the intended recipients are all disconnected or bots, do
			// not fall back to broadcasting to everyone else.
			if len(recipients) == 0 {
				continue
			}
		}
		mh.broadcast(dispatcher, logger, opCode, ev.Payload, recipients)
	}
}

// broadcastBoard sends each connected player their own view of the board.
// Views are per-player only in what the score table implies; the grid
// itself hides the same face-down cards from everyone.
func (mh *matchHandler) broadcastBoard(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	for userID, presence := range state.Presences {
		snap := state.Session.Look(userID)
		mh.broadcast(dispatcher, logger, OpBoardState, toBoardResponse(app.DefaultGameID, snap), []runtime.Presence{presence})
	}
}

// sendError sends an error payload to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	mh.broadcast(dispatcher, logger, OpGameError, errorMessage{Code: code, Message: message}, []runtime.Presence{presence})
}

func (mh *matchHandler) broadcast(dispatcher runtime.MatchDispatcher, logger runtime.Logger, opCode int64, payload any, recipients []runtime.Presence) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal message for op %d: %v", opCode, err)
		return
	}
	if err := dispatcher.BroadcastMessage(opCode, data, recipients, nil, true); err != nil {
		logger.Error("Failed to broadcast op %d: %v", opCode, err)
	}
}

// grpcCode extracts the status code rpcError would assign.
func grpcCode(err error) int {
	if rerr, ok := rpcError(err).(*runtime.Error); ok {
		return int(rerr.Code)
	}
	return codeInternal
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := json.Marshal(matchLabel{Open: state.GetOpenSeatsCount(), State: "playing"})
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(label)); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
