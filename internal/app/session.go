package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"memoryscramble/internal/domain"
)

var (
	// ErrContested reports that another player controls the requested
	// space. Transient: a retry after the holder's turn resolves succeeds.
	ErrContested = errors.New("space is controlled by another player")
	// ErrCardPending reports a flip on a card the player already has in
	// their unresolved selection.
	ErrCardPending = errors.New("card is already in the player's selection")
	ErrEmptyPlayer = errors.New("player id must be non-empty")
)

// Arbitration selects how a flip on a contested space behaves.
type Arbitration string

const (
	// ArbitrationBlock suspends the caller until the space is free again,
	// then re-evaluates the request from scratch.
	ArbitrationBlock Arbitration = "block"
	// ArbitrationReject fails the call immediately with ErrContested.
	ArbitrationReject Arbitration = "reject"
)

// ParseArbitration maps a config string to a policy, defaulting to block.
func ParseArbitration(s string) Arbitration {
	if s == string(ArbitrationReject) {
		return ArbitrationReject
	}
	return ArbitrationBlock
}

// SpaceView is the client-facing state of one space. Card is nil while the
// card is face-down or removed; Removed distinguishes the two.
type SpaceView struct {
	Card         *string `json:"card"`
	FaceUp       bool    `json:"faceUp"`
	ControlledBy *string `json:"controlledBy"`
	Removed      bool    `json:"removed"`
}

// Snapshot is a point-in-time projection of a game: the full grid plus the
// score table. It shares no state with the live board.
type Snapshot struct {
	Board  [][]SpaceView  `json:"board"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Scores map[string]int `json:"scores"`
}

// FlipResult reports the outcome of one flip. Resolved is true when this
// flip completed a pair; Matched is only meaningful then.
type FlipResult struct {
	Card     string
	Resolved bool
	Matched  bool
}

type pendingCard struct {
	pos  Point
	card string
}

// Session orchestrates one game: it owns the board, tracks per-player
// scores and pending selections, resolves matches, and arbitrates
// concurrent flips. All methods are safe for concurrent use; Flip (under
// the block policy) and Watch may suspend the caller, and both honor
// context cancellation without holding any lock while suspended.
type Session struct {
	arbitration Arbitration

	mu      sync.Mutex
	board   *domain.Board
	scores  map[string]int
	pending map[string][]pendingCard
	// changed is closed and replaced on every board mutation. Waiters grab
	// the current channel under the lock, so a wakeup can never be lost.
	changed chan struct{}
}

// NewSession wraps a board in a session with the given arbitration policy.
func NewSession(board *domain.Board, arbitration Arbitration) *Session {
	return &Session{
		arbitration: arbitration,
		board:       board,
		scores:      make(map[string]int),
		pending:     make(map[string][]pendingCard),
		changed:     make(chan struct{}),
	}
}

// EnsurePlayer adds player to the score table if absent.
func (s *Session) EnsurePlayer(player string) {
	if player == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scores[player]; !ok {
		s.scores[player] = 0
	}
}

// Look returns the current board projection and scores. It never blocks on
// other players and never mutates. Face-down cards are not revealed.
func (s *Session) Look(player string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Watch suspends until the next board mutation anywhere on the grid, then
// returns the same projection as Look.
func (s *Session) Watch(ctx context.Context, player string) (Snapshot, error) {
	s.mu.Lock()
	ch := s.changed
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-ch:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Flip turns the card at (x, y) face-up for player and adds it to their
// pending selection. The second pending card resolves the turn: a matching
// pair is removed and scored, a mismatch turns both cards back face-down.
// A space controlled by another player is contested; depending on the
// session's arbitration policy the call fails with ErrContested or
// suspends until the space frees up, re-evaluating from scratch.
func (s *Session) Flip(ctx context.Context, player string, x, y int) (FlipResult, []Event, error) {
	if player == "" {
		return FlipResult{}, nil, ErrEmptyPlayer
	}
	for {
		s.mu.Lock()
		sp, err := s.board.At(x, y)
		if err != nil {
			s.mu.Unlock()
			return FlipResult{}, nil, err
		}
		if sp.Empty() {
			s.mu.Unlock()
			return FlipResult{}, nil, fmt.Errorf("flip (%d,%d): %w", x, y, domain.ErrNoCard)
		}
		if s.isPendingLocked(player, x, y) {
			s.mu.Unlock()
			return FlipResult{}, nil, fmt.Errorf("flip (%d,%d): %w", x, y, ErrCardPending)
		}
		if sp.Controlled() && sp.ControlledBy != player {
			if s.arbitration == ArbitrationReject {
				s.mu.Unlock()
				return FlipResult{}, nil, fmt.Errorf("flip (%d,%d): %w", x, y, ErrContested)
			}
			ch := s.changed
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return FlipResult{}, nil, ctx.Err()
			case <-ch:
				// The space may have been matched away or claimed again;
				// re-evaluate the whole request.
				continue
			}
		}

		res, events, err := s.applyFlipLocked(player, x, y, sp)
		if err == nil {
			s.notifyLocked()
		}
		s.mu.Unlock()
		return res, events, err
	}
}

// applyFlipLocked performs the flip on an available space and resolves the
// pair when this is the player's second card. Caller holds s.mu.
func (s *Session) applyFlipLocked(player string, x, y int, sp domain.Space) (FlipResult, []Event, error) {
	revealed := false
	if !sp.FaceUp {
		if err := s.board.Flip(x, y); err != nil {
			return FlipResult{}, nil, err
		}
		revealed = true
	}
	if err := s.board.SetControl(x, y, player); err != nil {
		if revealed {
			_ = s.board.Flip(x, y)
		}
		return FlipResult{}, nil, err
	}
	if _, ok := s.scores[player]; !ok {
		s.scores[player] = 0
	}

	card := sp.Card
	s.pending[player] = append(s.pending[player], pendingCard{pos: Point{X: x, Y: y}, card: card})
	events := []Event{{
		Kind:    EventCardFlipped,
		Payload: CardFlippedPayload{PlayerID: player, Pos: Point{X: x, Y: y}, Card: card},
	}}

	if len(s.pending[player]) < PairSize {
		return FlipResult{Card: card}, events, nil
	}

	first, second := s.pending[player][0], s.pending[player][1]
	delete(s.pending, player)

	if first.card == second.card {
		if err := s.board.RemovePair(first.pos.X, first.pos.Y, second.pos.X, second.pos.Y); err != nil {
			return FlipResult{}, nil, err
		}
		s.scores[player]++
		events = append(events, Event{
			Kind: EventPairMatched,
			Payload: PairMatchedPayload{
				PlayerID: player,
				Card:     first.card,
				First:    first.pos,
				Second:   second.pos,
				Score:    s.scores[player],
			},
		})
		return FlipResult{Card: card, Resolved: true, Matched: true}, events, nil
	}

	// Mismatch: both cards return face-down, which also releases control.
	if err := s.board.Flip(first.pos.X, first.pos.Y); err != nil {
		return FlipResult{}, nil, err
	}
	if err := s.board.Flip(second.pos.X, second.pos.Y); err != nil {
		return FlipResult{}, nil, err
	}
	events = append(events, Event{
		Kind:    EventPairMissed,
		Payload: PairMissedPayload{PlayerID: player, First: first.pos, Second: second.pos},
	})
	return FlipResult{Card: card, Resolved: true, Matched: false}, events, nil
}

// Rename rewrites card identifiers across the board according to mapping,
// keeping pending selections in step so an in-flight pair still resolves
// correctly. Watchers are woken like any other mutation.
func (s *Session) Rename(player string, mapping map[string]string) (Snapshot, []Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.board.Rename(mapping); err != nil {
		return Snapshot{}, nil, err
	}
	for _, cards := range s.pending {
		for i := range cards {
			if to, ok := mapping[cards[i].card]; ok {
				cards[i].card = to
			}
		}
	}
	s.notifyLocked()
	events := []Event{{Kind: EventBoardRenamed, Payload: BoardRenamedPayload{PlayerID: player}}}
	return s.snapshotLocked(), events, nil
}

// Release abandons player's pending selection, turning their revealed
// cards back face-down. Called when a player disconnects; safe to call for
// players with nothing pending.
func (s *Session) Release(player string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	pend := s.pending[player]
	if len(pend) == 0 {
		return nil
	}
	delete(s.pending, player)

	freed := make([]Point, 0, len(pend))
	for _, pc := range pend {
		sp, err := s.board.At(pc.pos.X, pc.pos.Y)
		if err != nil || sp.Empty() || !sp.FaceUp || sp.ControlledBy != player {
			continue
		}
		if err := s.board.Flip(pc.pos.X, pc.pos.Y); err != nil {
			continue
		}
		freed = append(freed, pc.pos)
	}
	if len(freed) == 0 {
		return nil
	}
	s.notifyLocked()
	return []Event{{
		Kind:    EventPlayerReleased,
		Payload: PlayerReleasedPayload{PlayerID: player, Freed: freed},
	}}
}

func (s *Session) isPendingLocked(player string, x, y int) bool {
	for _, pc := range s.pending[player] {
		if pc.pos.X == x && pc.pos.Y == y {
			return true
		}
	}
	return false
}

// notifyLocked wakes every suspended Flip and Watch. Caller holds s.mu.
func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// snapshotLocked builds the client projection. Caller holds s.mu.
func (s *Session) snapshotLocked() Snapshot {
	width, height := s.board.Width(), s.board.Height()
	grid := make([][]SpaceView, height)
	for y := 0; y < height; y++ {
		row := make([]SpaceView, width)
		for x := 0; x < width; x++ {
			sp, _ := s.board.At(x, y)
			view := SpaceView{FaceUp: sp.FaceUp, Removed: sp.Empty()}
			if sp.FaceUp {
				card := sp.Card
				view.Card = &card
			}
			if sp.Controlled() {
				controller := sp.ControlledBy
				view.ControlledBy = &controller
			}
			row[x] = view
		}
		grid[y] = row
	}
	scores := make(map[string]int, len(s.scores))
	for id, score := range s.scores {
		scores[id] = score
	}
	return Snapshot{Board: grid, Width: width, Height: height, Scores: scores}
}
