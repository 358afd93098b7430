package nakama

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	broadcastCount int
	labelUpdates   int
	lastOpCode     int64
	lastData       []byte
	lastLabel      string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.broadcastCount++
	md.lastOpCode = opCode
	md.lastData = append([]byte(nil), data...)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

// mockPresence is a connected player for handler tests.
type mockPresence struct {
	userID   string
	username string
}

func (mp mockPresence) GetUserId() string                 { return mp.userID }
func (mp mockPresence) GetSessionId() string              { return "session-" + mp.userID }
func (mp mockPresence) GetNodeId() string                 { return "node-1" }
func (mp mockPresence) GetHidden() bool                   { return false }
func (mp mockPresence) GetPersistence() bool              { return false }
func (mp mockPresence) GetUsername() string               { return mp.username }
func (mp mockPresence) GetStatus() string                 { return "" }
func (mp mockPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonJoin }

// mockMatchData is a client message for handler tests.
type mockMatchData struct {
	mockPresence
	opCode int64
	data   []byte
}

func (md mockMatchData) GetOpCode() int64      { return md.opCode }
func (md mockMatchData) GetData() []byte       { return md.data }
func (md mockMatchData) GetReliable() bool     { return true }
func (md mockMatchData) GetReceiveTime() int64 { return 0 }

func newTestMatch(t *testing.T) (*matchHandler, *MatchState, *mockDispatcher) {
	t.Helper()
	handler := &matchHandler{}
	raw, tickRate, label := handler.MatchInit(context.Background(), noopLogger{}, nil, nil, nil)
	if tickRate <= 0 {
		t.Fatalf("MatchInit tick rate = %d, want > 0", tickRate)
	}
	if label == "" {
		t.Fatal("MatchInit returned empty label")
	}
	state, ok := raw.(*MatchState)
	if !ok {
		t.Fatalf("MatchInit state type %T, want *MatchState", raw)
	}
	return handler, state, &mockDispatcher{}
}

func joinPlayer(handler *matchHandler, state *MatchState, dispatcher *mockDispatcher, userID string) *MatchState {
	p := mockPresence{userID: userID, username: userID}
	next := handler.MatchJoin(context.Background(), noopLogger{}, nil, nil, dispatcher, 1, state, []runtime.Presence{p})
	return next.(*MatchState)
}

func TestMatchInitLabelAdvertisesOpenSeats(t *testing.T) {
	_, state, _ := newTestMatch(t)

	if got := state.GetOpenSeatsCount(); got != MaxMatchPlayers {
		t.Fatalf("open seats = %d, want %d", got, MaxMatchPlayers)
	}
	if state.Session == nil {
		t.Fatal("MatchInit did not build a session")
	}
}

func TestMatchJoinSeedsPlayerAndBroadcasts(t *testing.T) {
	handler, state, dispatcher := newTestMatch(t)

	state = joinPlayer(handler, state, dispatcher, "user-1")

	if _, ok := state.Presences["user-1"]; !ok {
		t.Fatal("presence not recorded")
	}
	snap := state.Session.Look("user-1")
	if _, ok := snap.Scores["user-1"]; !ok {
		t.Fatal("joining player not seeded into score table")
	}
	if dispatcher.broadcastCount == 0 {
		t.Fatal("expected join broadcast")
	}
	if dispatcher.labelUpdates == 0 {
		t.Fatal("expected label update after join")
	}

	var label matchLabel
	if err := json.Unmarshal([]byte(dispatcher.lastLabel), &label); err != nil {
		t.Fatalf("label is not valid JSON: %v", err)
	}
	if label.Open != MaxMatchPlayers-1 {
		t.Fatalf("label open = %d, want %d", label.Open, MaxMatchPlayers-1)
	}
}

func TestMatchJoinAttemptRejectsWhenFull(t *testing.T) {
	handler, state, dispatcher := newTestMatch(t)
	for i := 0; i < MaxMatchPlayers; i++ {
		state = joinPlayer(handler, state, dispatcher, "user-"+string(rune('1'+i)))
	}

	_, allowed, reason := handler.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, dispatcher, 1, state, mockPresence{userID: "user-5"}, nil)
	if allowed {
		t.Fatal("expected join attempt to be rejected when match is full")
	}
	if reason == "" {
		t.Fatal("expected a rejection reason")
	}
}

func TestMatchLoopFlipBroadcastsBoard(t *testing.T) {
	handler, state, dispatcher := newTestMatch(t)
	state = joinPlayer(handler, state, dispatcher, "user-1")
	before := dispatcher.broadcastCount

	data, _ := json.Marshal(flipMessage{X: 0, Y: 0})
	msg := mockMatchData{mockPresence: mockPresence{userID: "user-1"}, opCode: OpFlip, data: data}
	next := handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, 2, state, []runtime.MatchData{msg})

	state = next.(*MatchState)
	snap := state.Session.Look("user-1")
	if !snap.Board[0][0].FaceUp {
		t.Fatal("flip message did not turn the card face-up")
	}
	if dispatcher.broadcastCount <= before {
		t.Fatal("expected board broadcast after flip")
	}
}

func TestMatchLoopBadFlipSendsError(t *testing.T) {
	handler, state, dispatcher := newTestMatch(t)
	state = joinPlayer(handler, state, dispatcher, "user-1")

	msg := mockMatchData{mockPresence: mockPresence{userID: "user-1"}, opCode: OpFlip, data: []byte("not json")}
	handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, 2, state, []runtime.MatchData{msg})

	if dispatcher.lastOpCode != OpGameError {
		t.Fatalf("last opcode = %d, want %d", dispatcher.lastOpCode, OpGameError)
	}
	var errMsg errorMessage
	if err := json.Unmarshal(dispatcher.lastData, &errMsg); err != nil {
		t.Fatalf("error payload is not valid JSON: %v", err)
	}
	if errMsg.Code != codeInvalidArgument {
		t.Fatalf("error code = %d, want %d", errMsg.Code, codeInvalidArgument)
	}
}

func TestMatchLeaveReleasesSelectionAndTerminatesEmpty(t *testing.T) {
	handler, state, dispatcher := newTestMatch(t)
	state = joinPlayer(handler, state, dispatcher, "user-1")
	state = joinPlayer(handler, state, dispatcher, "user-2")

	if _, _, err := state.Session.Flip(context.Background(), "user-1", 0, 0); err != nil {
		t.Fatalf("setup flip failed: %v", err)
	}

	next := handler.MatchLeave(context.Background(), noopLogger{}, nil, nil, dispatcher, 3, state, []runtime.Presence{mockPresence{userID: "user-1"}})
	state = next.(*MatchState)

	snap := state.Session.Look("user-2")
	if snap.Board[0][0].FaceUp {
		t.Fatal("leaver's selection was not released")
	}

	next = handler.MatchLeave(context.Background(), noopLogger{}, nil, nil, dispatcher, 4, state, []runtime.Presence{mockPresence{userID: "user-2"}})
	if next != nil {
		t.Fatal("expected match to terminate with no humans left")
	}
}

func TestProcessBotsAutoFillsSoloHuman(t *testing.T) {
	handler, state, dispatcher := newTestMatch(t)
	state = joinPlayer(handler, state, dispatcher, "user-1")
	state.BotAutoFillDelay = 2

	// First loop arms the timer, a later tick past the delay adds the bot.
	handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, 1, state, nil)
	handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, 4, state, nil)

	if len(state.Bots) != 1 {
		t.Fatalf("bot count = %d, want 1", len(state.Bots))
	}
	for botID := range state.Bots {
		snap := state.Session.Look(botID)
		if _, ok := snap.Scores[botID]; !ok {
			t.Fatal("bot not seeded into score table")
		}
	}
	if state.GetOpenSeatsCount() != MaxMatchPlayers-2 {
		t.Fatalf("open seats = %d, want %d", state.GetOpenSeatsCount(), MaxMatchPlayers-2)
	}
}

func TestProcessBotsTimerResetsWithCompany(t *testing.T) {
	handler, state, dispatcher := newTestMatch(t)
	state = joinPlayer(handler, state, dispatcher, "user-1")
	state = joinPlayer(handler, state, dispatcher, "user-2")
	state.BotAutoFillDelay = 2

	handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, 1, state, nil)
	handler.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, 10, state, nil)

	if len(state.Bots) != 0 {
		t.Fatalf("bot count = %d, want 0 with two humans present", len(state.Bots))
	}
	if state.LastSinglePlayerTick != 0 {
		t.Fatal("auto-fill timer should stay unarmed with two humans")
	}
}
