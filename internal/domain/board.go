package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"
)

// Board is a mutable width x height grid of card spaces for a memory game.
// Every card identifier placed on the board occurs exactly twice; a matched
// pair is retired by emptying both of its spaces.
//
// Representation invariants, re-checked after every mutating operation:
//   - the grid holds exactly width*height spaces
//   - every card still present occurs exactly twice (never once)
//   - card identifiers are non-empty and contain no whitespace
//   - a controlled space is face-up; an empty space is face-down and
//     uncontrolled
//
// Mutators are validate-then-commit: an operation that would break an
// invariant is rolled back and reported, never half-applied. The Board
// itself is not synchronized; callers serialize mutations externally.
type Board struct {
	width  int
	height int
	grid   []Space // row-major, index y*width+x
}

// NewBoard builds a board from a set of distinct card identifiers, placing
// each card twice and shuffling placements uniformly. The card count must
// fill the grid exactly (len(cards)*2 == width*height). A nil rng falls
// back to a time-seeded source.
func NewBoard(width, height int, cards []string, rng *rand.Rand) (*Board, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrInvalidDimensions)
	}
	if len(cards) == 0 || len(cards)*2 != width*height {
		return nil, fmt.Errorf("%d cards cannot pair-fill %d spaces: %w", len(cards), width*height, ErrInvalidCardSet)
	}
	seen := make(map[string]bool, len(cards))
	for _, card := range cards {
		if !validCardToken(card) {
			return nil, fmt.Errorf("card %q: %w", card, ErrInvalidCardSet)
		}
		if seen[card] {
			return nil, fmt.Errorf("duplicate card %q: %w", card, ErrInvalidCardSet)
		}
		seen[card] = true
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	deck := make([]string, 0, len(cards)*2)
	for _, card := range cards {
		deck = append(deck, card, card)
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	b := &Board{width: width, height: height, grid: make([]Space, width*height)}
	for i, card := range deck {
		b.grid[i] = Space{Card: card}
	}
	if err := b.checkRep(); err != nil {
		return nil, err
	}
	return b, nil
}

// validCardToken reports whether s is a legal card identifier: non-empty
// with no whitespace characters.
func validCardToken(s string) bool {
	return s != "" && strings.IndexFunc(s, unicode.IsSpace) == -1
}

// Width returns the number of columns.
func (b *Board) Width() int { return b.width }

// Height returns the number of rows.
func (b *Board) Height() int { return b.height }

// InBounds reports whether (x, y) addresses a grid space.
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// At returns a copy of the space at (x, y).
func (b *Board) At(x, y int) (Space, error) {
	if !b.InBounds(x, y) {
		return Space{}, fmt.Errorf("(%d,%d) outside %dx%d: %w", x, y, b.width, b.height, ErrOutOfBounds)
	}
	return b.grid[b.idx(x, y)], nil
}

// Cards returns the identifiers of all cards still on the board, row-major.
func (b *Board) Cards() []string {
	out := make([]string, 0, len(b.grid))
	for _, sp := range b.grid {
		if !sp.Empty() {
			out = append(out, sp.Card)
		}
	}
	return out
}

// Remaining returns the number of spaces still holding a card.
func (b *Board) Remaining() int {
	n := 0
	for _, sp := range b.grid {
		if !sp.Empty() {
			n++
		}
	}
	return n
}

// Flip toggles the card at (x, y) between face-up and face-down. Turning a
// card face-down always releases control; a hidden card cannot be held.
func (b *Board) Flip(x, y int) error {
	sp, err := b.At(x, y)
	if err != nil {
		return err
	}
	if sp.Empty() {
		return fmt.Errorf("flip (%d,%d): %w", x, y, ErrNoCard)
	}
	next := sp
	next.FaceUp = !sp.FaceUp
	if !next.FaceUp {
		next.ControlledBy = ""
	}
	return b.commit(x, y, next)
}

// SetControl grants player control of the face-up card at (x, y).
func (b *Board) SetControl(x, y int, player string) error {
	if player == "" {
		return fmt.Errorf("set control (%d,%d): player id must be non-empty", x, y)
	}
	sp, err := b.At(x, y)
	if err != nil {
		return err
	}
	if sp.Empty() {
		return fmt.Errorf("set control (%d,%d): %w", x, y, ErrNoCard)
	}
	if !sp.FaceUp {
		return fmt.Errorf("set control (%d,%d): %w", x, y, ErrNotFaceUp)
	}
	next := sp
	next.ControlledBy = player
	return b.commit(x, y, next)
}

// ClearControl releases control of the card at (x, y), whoever holds it.
// Idempotent on uncontrolled spaces.
func (b *Board) ClearControl(x, y int) error {
	sp, err := b.At(x, y)
	if err != nil {
		return err
	}
	if sp.Empty() {
		return fmt.Errorf("clear control (%d,%d): %w", x, y, ErrNoCard)
	}
	next := sp
	next.ControlledBy = ""
	return b.commit(x, y, next)
}

// Remove retires the face-up card at (x, y), leaving the space empty.
//
// Removing one member of a pair transiently breaks the pairs invariant, so
// Remove does not re-check it; the caller must remove the other member
// before the board is observed again. RemovePair does this atomically and
// is what the game loop uses.
func (b *Board) Remove(x, y int) error {
	sp, err := b.At(x, y)
	if err != nil {
		return err
	}
	if sp.Empty() {
		return fmt.Errorf("remove (%d,%d): %w", x, y, ErrNoCard)
	}
	if !sp.FaceUp {
		return fmt.Errorf("remove (%d,%d): %w", x, y, ErrNotFaceUp)
	}
	b.grid[b.idx(x, y)] = Space{}
	return nil
}

// RemovePair retires a matched pair in one step. Both spaces must hold the
// same face-up card. Either both spaces are emptied or neither is.
func (b *Board) RemovePair(x1, y1, x2, y2 int) error {
	first, err := b.At(x1, y1)
	if err != nil {
		return err
	}
	second, err := b.At(x2, y2)
	if err != nil {
		return err
	}
	if x1 == x2 && y1 == y2 {
		return fmt.Errorf("remove pair: (%d,%d) given twice: %w", x1, y1, ErrInvariant)
	}
	if first.Card != second.Card {
		return fmt.Errorf("remove pair: %q and %q do not match: %w", first.Card, second.Card, ErrInvariant)
	}
	if err := b.Remove(x1, y1); err != nil {
		return err
	}
	if err := b.Remove(x2, y2); err != nil {
		b.grid[b.idx(x1, y1)] = first
		return err
	}
	if err := b.checkRep(); err != nil {
		b.grid[b.idx(x1, y1)] = first
		b.grid[b.idx(x2, y2)] = second
		return err
	}
	return nil
}

// Rename rewrites card identifiers across the whole board according to
// mapping; cards absent from the mapping keep their name. The result must
// still satisfy the pairs invariant, so a mapping that merges two distinct
// cards into one name is rejected and nothing is applied.
func (b *Board) Rename(mapping map[string]string) error {
	next := make([]Space, len(b.grid))
	copy(next, b.grid)
	for i, sp := range next {
		if sp.Empty() {
			continue
		}
		to, ok := mapping[sp.Card]
		if !ok {
			continue
		}
		if !validCardToken(to) {
			return fmt.Errorf("rename %q to %q: %w", sp.Card, to, ErrInvalidCardSet)
		}
		next[i].Card = to
	}
	prev := b.grid
	b.grid = next
	if err := b.checkRep(); err != nil {
		b.grid = prev
		return fmt.Errorf("rename result: %w", ErrInvalidCardSet)
	}
	return nil
}

func (b *Board) idx(x, y int) int {
	return y*b.width + x
}

// commit writes the new space value, re-checks the invariants, and rolls
// back on failure.
func (b *Board) commit(x, y int, next Space) error {
	i := b.idx(x, y)
	prev := b.grid[i]
	b.grid[i] = next
	if err := b.checkRep(); err != nil {
		b.grid[i] = prev
		return err
	}
	return nil
}

// checkRep verifies the representation invariants documented on Board.
func (b *Board) checkRep() error {
	if len(b.grid) != b.width*b.height {
		return fmt.Errorf("grid holds %d spaces, want %d: %w", len(b.grid), b.width*b.height, ErrInvariant)
	}
	counts := make(map[string]int)
	for i, sp := range b.grid {
		x, y := i%b.width, i/b.width
		if sp.Empty() {
			if sp.FaceUp || sp.Controlled() {
				return fmt.Errorf("empty space (%d,%d) is face-up or controlled: %w", x, y, ErrInvariant)
			}
			continue
		}
		if !validCardToken(sp.Card) {
			return fmt.Errorf("space (%d,%d) holds invalid card %q: %w", x, y, sp.Card, ErrInvariant)
		}
		if sp.Controlled() && !sp.FaceUp {
			return fmt.Errorf("space (%d,%d) controlled but face-down: %w", x, y, ErrInvariant)
		}
		counts[sp.Card]++
	}
	for card, n := range counts {
		if n != 2 {
			return fmt.Errorf("card %q occurs %d times, want 2: %w", card, n, ErrInvariant)
		}
	}
	return nil
}
