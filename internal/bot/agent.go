package bot

import (
	"context"
	"math/rand"
	"time"

	"memoryscramble/internal/app"
	"memoryscramble/internal/ports"
)

// Agent is an autonomous fill-in player. It studies every board snapshot
// it is shown, remembers where revealed cards were seen, and plays a
// remembered pair as soon as it holds one; otherwise it probes spaces it
// has not seen yet.
type Agent struct {
	ID   string
	Name string

	rng *rand.Rand
	// seen maps a card identifier to the spaces it was observed at.
	seen map[string][]app.Point
}

// NewAgent creates an agent with the given identity. A nil rng falls back
// to a time-seeded source.
func NewAgent(id, name string, rng *rand.Rand) *Agent {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Agent{ID: id, Name: name, rng: rng, seen: make(map[string][]app.Point)}
}

// Observe records every face-up card in the snapshot and drops memory of
// removed spaces.
func (a *Agent) Observe(snap app.Snapshot) {
	for y := range snap.Board {
		for x, view := range snap.Board[y] {
			pos := app.Point{X: x, Y: y}
			if view.Removed {
				a.forgetSpace(pos)
				continue
			}
			if view.FaceUp && view.Card != nil {
				a.remember(*view.Card, pos)
			}
		}
	}
}

// TakeTurn plays one full two-flip turn against the game. A turn that runs
// into contention is abandoned (the agent releases its half-open selection
// and reports no match) rather than suspending the caller's loop.
func (a *Agent) TakeTurn(ctx context.Context, game ports.GameSession) (bool, error) {
	snap := game.Look(a.ID)
	a.Observe(snap)

	first, second, havePair := a.knownPair(snap)
	if !havePair {
		var ok bool
		first, ok = a.probe(snap)
		if !ok {
			return false, nil // nothing left to flip
		}
	}

	res, _, err := game.Flip(ctx, a.ID, first.X, first.Y)
	if err != nil {
		return false, err
	}
	a.remember(res.Card, first)

	if !havePair {
		snap = game.Look(a.ID)
		a.Observe(snap)
		if partner, ok := a.partnerOf(res.Card, first, snap); ok {
			second = partner
		} else {
			var ok bool
			second, ok = a.probe(snap)
			if !ok {
				game.Release(a.ID)
				return false, nil
			}
		}
	}

	res, _, err = game.Flip(ctx, a.ID, second.X, second.Y)
	if err != nil {
		game.Release(a.ID)
		return false, err
	}
	a.remember(res.Card, second)

	if res.Resolved && res.Matched {
		delete(a.seen, res.Card)
		return true, nil
	}
	return false, nil
}

// knownPair returns two remembered spaces holding the same card, both
// currently hidden in the snapshot.
func (a *Agent) knownPair(snap app.Snapshot) (app.Point, app.Point, bool) {
	for _, points := range a.seen {
		if len(points) != 2 {
			continue
		}
		if hiddenIn(snap, points[0]) && hiddenIn(snap, points[1]) {
			return points[0], points[1], true
		}
	}
	return app.Point{}, app.Point{}, false
}

// partnerOf returns the remembered other location of card, if it is
// hidden and distinct from pos.
func (a *Agent) partnerOf(card string, pos app.Point, snap app.Snapshot) (app.Point, bool) {
	for _, p := range a.seen[card] {
		if p != pos && hiddenIn(snap, p) {
			return p, true
		}
	}
	return app.Point{}, false
}

// probe picks a hidden space, preferring ones the agent has never seen.
func (a *Agent) probe(snap app.Snapshot) (app.Point, bool) {
	var unseen, hidden []app.Point
	for y := range snap.Board {
		for x, view := range snap.Board[y] {
			if view.Removed || view.FaceUp {
				continue
			}
			pos := app.Point{X: x, Y: y}
			hidden = append(hidden, pos)
			if !a.remembers(pos) {
				unseen = append(unseen, pos)
			}
		}
	}
	pool := unseen
	if len(pool) == 0 {
		pool = hidden
	}
	if len(pool) == 0 {
		return app.Point{}, false
	}
	return pool[a.rng.Intn(len(pool))], true
}

func (a *Agent) remember(card string, pos app.Point) {
	if card == "" {
		return
	}
	for _, p := range a.seen[card] {
		if p == pos {
			return
		}
	}
	points := append(a.seen[card], pos)
	if len(points) > 2 {
		points = points[len(points)-2:]
	}
	a.seen[card] = points
}

func (a *Agent) remembers(pos app.Point) bool {
	for _, points := range a.seen {
		for _, p := range points {
			if p == pos {
				return true
			}
		}
	}
	return false
}

func (a *Agent) forgetSpace(pos app.Point) {
	for card, points := range a.seen {
		kept := points[:0]
		for _, p := range points {
			if p != pos {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(a.seen, card)
		} else {
			a.seen[card] = kept
		}
	}
}

func hiddenIn(snap app.Snapshot, p app.Point) bool {
	if p.Y < 0 || p.Y >= len(snap.Board) || p.X < 0 || p.X >= len(snap.Board[p.Y]) {
		return false
	}
	view := snap.Board[p.Y][p.X]
	return !view.Removed && !view.FaceUp
}
