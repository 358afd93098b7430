package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"memoryscramble/internal/app"
	"memoryscramble/internal/config"
	"memoryscramble/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// rpcAdapter binds the RPC surface to the session registry. Flip and watch
// requests may suspend the calling goroutine; Nakama runs each RPC on its
// own goroutine, so suspension here never stalls other requests.
type rpcAdapter struct {
	registry    *app.Registry
	arbitration app.Arbitration
}

type lookRequest struct {
	GameID string `json:"gameId"`
	// PlayerID overrides the authenticated user, for server-to-server calls
	// made with the runtime HTTP key (which carry no session user).
	PlayerID string `json:"playerId"`
}

type flipRequest struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type renameRequest struct {
	GameID   string            `json:"gameId"`
	PlayerID string            `json:"playerId"`
	Mapping  map[string]string `json:"mapping"`
}

type newGameRequest struct {
	GameID    string   `json:"gameId"`
	BoardFile string   `json:"boardFile"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Cards     []string `json:"cards"`
}

// RegisterRPCs wires every game RPC into the Nakama initializer.
func RegisterRPCs(initializer runtime.Initializer, registry *app.Registry, arbitration app.Arbitration) error {
	a := &rpcAdapter{registry: registry, arbitration: arbitration}

	handlers := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcLook:      a.rpcLook,
		RpcFlip:      a.rpcFlip,
		RpcWatch:     a.rpcWatch,
		RpcRename:    a.rpcRename,
		RpcNewGame:   a.rpcNewGame,
		RpcFindMatch: RpcFindGame,
	}
	for id, fn := range handlers {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return fmt.Errorf("register rpc %s: %w", id, err)
		}
	}
	return nil
}

// callerID resolves the player identity: the authenticated user when there
// is one, otherwise the explicit playerId from the payload.
func callerID(ctx context.Context, payloadPlayer string) (string, error) {
	if userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); ok && userID != "" {
		return userID, nil
	}
	if payloadPlayer != "" {
		return payloadPlayer, nil
	}
	return "", runtime.NewError("no player identity", codeInvalidArgument)
}

func (a *rpcAdapter) rpcLook(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req lookRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid look payload", codeInvalidArgument)
		}
	}
	player, err := callerID(ctx, req.PlayerID)
	if err != nil {
		return "", err
	}

	session, err := a.registry.Get(req.GameID)
	if err != nil {
		return "", rpcError(err)
	}
	session.EnsurePlayer(player)
	return marshalResponse(toBoardResponse(req.GameID, session.Look(player)))
}

func (a *rpcAdapter) rpcFlip(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req flipRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid flip payload", codeInvalidArgument)
	}
	player, err := callerID(ctx, req.PlayerID)
	if err != nil {
		return "", err
	}

	session, err := a.registry.Get(req.GameID)
	if err != nil {
		return "", rpcError(err)
	}

	res, _, err := session.Flip(ctx, player, req.X, req.Y)
	if err != nil {
		logger.Debug("rpcFlip [User:%s]: flip (%d,%d) failed: %v", player, req.X, req.Y, err)
		return "", rpcError(err)
	}
	return marshalResponse(toFlipResponse(req.GameID, res, session.Look(player)))
}

func (a *rpcAdapter) rpcWatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req lookRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid watch payload", codeInvalidArgument)
		}
	}
	player, err := callerID(ctx, req.PlayerID)
	if err != nil {
		return "", err
	}

	session, err := a.registry.Get(req.GameID)
	if err != nil {
		return "", rpcError(err)
	}

	snap, err := session.Watch(ctx, player)
	if err != nil {
		return "", rpcError(err)
	}
	return marshalResponse(toBoardResponse(req.GameID, snap))
}

func (a *rpcAdapter) rpcRename(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req renameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid rename payload", codeInvalidArgument)
	}
	if len(req.Mapping) == 0 {
		return "", runtime.NewError("rename mapping must be non-empty", codeInvalidArgument)
	}
	player, err := callerID(ctx, req.PlayerID)
	if err != nil {
		return "", err
	}

	session, err := a.registry.Get(req.GameID)
	if err != nil {
		return "", rpcError(err)
	}

	snap, _, err := session.Rename(player, req.Mapping)
	if err != nil {
		return "", rpcError(err)
	}
	return marshalResponse(toBoardResponse(req.GameID, snap))
}

func (a *rpcAdapter) rpcNewGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req newGameRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid new_game payload", codeInvalidArgument)
		}
	}
	player, err := callerID(ctx, "")
	if err != nil {
		player = "" // creating a game does not require an identity
	}

	gameID := req.GameID
	if gameID == "" {
		gameID = app.DefaultGameID
	}

	board, err := buildBoard(req.BoardFile, req.Width, req.Height, req.Cards)
	if err != nil {
		return "", rpcError(err)
	}

	session := app.NewSession(board, a.arbitration)
	if player != "" {
		session.EnsurePlayer(player)
	}
	a.registry.Put(gameID, session)
	logger.Info("rpcNewGame: Game %s created (%dx%d).", gameID, board.Width(), board.Height())
	return marshalResponse(toBoardResponse(gameID, session.Look(player)))
}

// buildBoard resolves a board from an explicit file, explicit dimensions
// and cards, or the configured defaults, in that order.
func buildBoard(file string, width, height int, cards []string) (*domain.Board, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if file != "" {
		return domain.ParseBoardFile(file, rng)
	}
	if width == 0 && height == 0 {
		width, height = config.GetBoardSize()
	}
	if len(cards) == 0 {
		cards = config.GetCards()
	}
	return domain.NewBoard(width, height, cards, rng)
}

// RpcFindGame searches for a realtime match with open seats, creating one
// when none exists, and returns the match ID.
func RpcFindGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	limit := 1
	authoritative := true
	labelQuery := fmt.Sprintf("+label.%s:>=1", MatchLabelKeyOpenSeats)
	minSize := 0
	maxSize := MaxMatchPlayers

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, labelQuery)
	if err != nil {
		logger.Error("RpcFindGame [User:%s]: Failed to list matches: %v", userID, err)
		return "", rpcError(err)
	}

	if len(matches) > 0 {
		matchID := matches[0].MatchId
		logger.Info("RpcFindGame [User:%s]: Found existing match %s", userID, matchID)
		return matchID, nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameMemory, nil)
	if err != nil {
		logger.Error("RpcFindGame [User:%s]: Failed to create match: %v", userID, err)
		return "", rpcError(err)
	}

	logger.Info("RpcFindGame [User:%s]: Created new match %s", userID, matchID)
	return matchID, nil
}

func marshalResponse(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(data), nil
}
