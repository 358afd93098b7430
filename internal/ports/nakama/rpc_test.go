package nakama

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"memoryscramble/internal/app"
	"memoryscramble/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

func newTestAdapter(t *testing.T, arbitration app.Arbitration) (*rpcAdapter, *app.Session) {
	t.Helper()
	board, err := domain.NewBoard(2, 2, []string{"A", "B"}, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("failed to build board: %v", err)
	}
	session := app.NewSession(board, arbitration)
	registry := app.NewRegistry()
	registry.Put(app.DefaultGameID, session)
	return &rpcAdapter{registry: registry, arbitration: arbitration}, session
}

func assertCode(t *testing.T, err error, want int) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	rerr, ok := err.(*runtime.Error)
	if !ok {
		t.Fatalf("error type %T, want *runtime.Error", err)
	}
	if int(rerr.Code) != want {
		t.Fatalf("error code = %d, want %d (%v)", rerr.Code, want, err)
	}
}

func TestRpcLookReturnsCallerView(t *testing.T) {
	adapter, _ := newTestAdapter(t, app.ArbitrationReject)

	out, err := adapter.rpcLook(context.Background(), noopLogger{}, nil, nil, `{"playerId":"alice"}`)
	if err != nil {
		t.Fatalf("rpcLook failed: %v", err)
	}

	var resp boardResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.GameID != "" && resp.GameID != app.DefaultGameID {
		t.Fatalf("gameId = %q", resp.GameID)
	}
	if resp.Board.Width != 2 || resp.Board.Height != 2 {
		t.Fatalf("board size = %dx%d, want 2x2", resp.Board.Width, resp.Board.Height)
	}
	for _, row := range resp.Board.Board {
		for _, view := range row {
			if view.Card != nil {
				t.Fatal("look must not reveal face-down cards")
			}
		}
	}
	if _, ok := resp.Board.Scores["alice"]; !ok {
		t.Fatal("caller not seeded into score table")
	}
}

func TestRpcFlipContestedMapsToFailedPrecondition(t *testing.T) {
	adapter, session := newTestAdapter(t, app.ArbitrationReject)
	if _, _, err := session.Flip(context.Background(), "bob", 0, 0); err != nil {
		t.Fatalf("setup flip failed: %v", err)
	}

	_, err := adapter.rpcFlip(context.Background(), noopLogger{}, nil, nil, `{"playerId":"alice","x":0,"y":0}`)
	assertCode(t, err, codeFailedPrecondition)
}

func TestRpcFlipOutOfBoundsMapsToInvalidArgument(t *testing.T) {
	adapter, _ := newTestAdapter(t, app.ArbitrationReject)

	_, err := adapter.rpcFlip(context.Background(), noopLogger{}, nil, nil, `{"playerId":"alice","x":9,"y":0}`)
	assertCode(t, err, codeInvalidArgument)
}

func TestRpcFlipUnknownGameMapsToNotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t, app.ArbitrationReject)

	_, err := adapter.rpcFlip(context.Background(), noopLogger{}, nil, nil, `{"gameId":"nope","playerId":"alice","x":0,"y":0}`)
	assertCode(t, err, codeNotFound)
}

func TestRpcFlipRequiresIdentity(t *testing.T) {
	adapter, _ := newTestAdapter(t, app.ArbitrationReject)

	_, err := adapter.rpcFlip(context.Background(), noopLogger{}, nil, nil, `{"x":0,"y":0}`)
	assertCode(t, err, codeInvalidArgument)
}

func TestRpcWatchReturnsAfterMutation(t *testing.T) {
	adapter, session := newTestAdapter(t, app.ArbitrationReject)

	type watchResult struct {
		out string
		err error
	}
	done := make(chan watchResult, 1)
	go func() {
		out, err := adapter.rpcWatch(context.Background(), noopLogger{}, nil, nil, `{"playerId":"alice"}`)
		done <- watchResult{out, err}
	}()

	// Give the watcher time to suspend before mutating.
	time.Sleep(50 * time.Millisecond)
	if _, _, err := session.Flip(context.Background(), "bob", 0, 0); err != nil {
		t.Fatalf("mutating flip failed: %v", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("rpcWatch failed: %v", res.err)
		}
		var resp boardResponse
		if err := json.Unmarshal([]byte(res.out), &resp); err != nil {
			t.Fatalf("response is not valid JSON: %v", err)
		}
		if !resp.Board.Board[0][0].FaceUp {
			t.Fatal("watch response missing the mutation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not wake after a mutation")
	}
}

func TestRpcWatchCanceled(t *testing.T) {
	adapter, _ := newTestAdapter(t, app.ArbitrationReject)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := adapter.rpcWatch(ctx, noopLogger{}, nil, nil, `{"playerId":"alice"}`)
	assertCode(t, err, codeCanceled)
}

func TestRpcNewGameReplacesBoard(t *testing.T) {
	adapter, _ := newTestAdapter(t, app.ArbitrationReject)

	out, err := adapter.rpcNewGame(context.Background(), noopLogger{}, nil, nil, `{"gameId":"default","width":3,"height":2,"cards":["X","Y","Z"]}`)
	if err != nil {
		t.Fatalf("rpcNewGame failed: %v", err)
	}

	var resp boardResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Board.Width != 3 || resp.Board.Height != 2 {
		t.Fatalf("board size = %dx%d, want 3x2", resp.Board.Width, resp.Board.Height)
	}

	session, err := adapter.registry.Get(app.DefaultGameID)
	if err != nil {
		t.Fatalf("registry lookup failed: %v", err)
	}
	snap := session.Look("alice")
	if snap.Width != 3 || snap.Height != 2 {
		t.Fatal("registry still holds the old board")
	}
}

func TestRpcNewGameRejectsOddCardCount(t *testing.T) {
	adapter, _ := newTestAdapter(t, app.ArbitrationReject)

	_, err := adapter.rpcNewGame(context.Background(), noopLogger{}, nil, nil, `{"gameId":"default","width":3,"height":3,"cards":["X","Y"]}`)
	assertCode(t, err, codeInvalidArgument)
}

func TestRpcRenameRewritesCards(t *testing.T) {
	adapter, session := newTestAdapter(t, app.ArbitrationReject)

	out, err := adapter.rpcRename(context.Background(), noopLogger{}, nil, nil, `{"playerId":"alice","mapping":{"A":"Z"}}`)
	if err != nil {
		t.Fatalf("rpcRename failed: %v", err)
	}
	var resp boardResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}

	// Reveal a space and confirm no "A" remains on the board.
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			res, _, err := session.Flip(context.Background(), "alice", x, y)
			if err != nil {
				t.Fatalf("flip (%d,%d) failed: %v", x, y, err)
			}
			if res.Card == "A" {
				t.Fatal("rename left an old card identifier behind")
			}
		}
	}
}
