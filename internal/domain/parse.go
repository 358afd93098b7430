package domain

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// ParseBoard reads a board from its file format: the first line is
// "width height", and the remaining whitespace-separated tokens are card
// identifiers, each of which must occur exactly twice and together fill the
// grid. Card placement is shuffled on load, so the file fixes the card
// multiset and dimensions but not the layout.
func ParseBoard(r io.Reader, rng *rand.Rand) (*Board, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read board: %w", err)
	}

	text := string(raw)
	header, rest, _ := strings.Cut(text, "\n")
	dims := strings.Fields(header)
	if len(dims) != 2 {
		return nil, fmt.Errorf("first line must be \"width height\", got %q: %w", strings.TrimSpace(header), ErrInvalidDimensions)
	}
	width, err := strconv.Atoi(dims[0])
	if err != nil {
		return nil, fmt.Errorf("width %q is not an integer: %w", dims[0], ErrInvalidDimensions)
	}
	height, err := strconv.Atoi(dims[1])
	if err != nil {
		return nil, fmt.Errorf("height %q is not an integer: %w", dims[1], ErrInvalidDimensions)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrInvalidDimensions)
	}

	tokens := strings.Fields(rest)
	if len(tokens) != width*height {
		return nil, fmt.Errorf("expected %d cards for a %dx%d board, got %d: %w", width*height, width, height, len(tokens), ErrInvalidCardSet)
	}

	counts := make(map[string]int, len(tokens)/2)
	cards := make([]string, 0, len(tokens)/2)
	for _, tok := range tokens {
		if counts[tok] == 0 {
			cards = append(cards, tok)
		}
		counts[tok]++
	}
	for _, card := range cards {
		if n := counts[card]; n != 2 {
			return nil, fmt.Errorf("card %q occurs %d times, must occur exactly twice: %w", card, n, ErrInvalidCardSet)
		}
	}

	return NewBoard(width, height, cards, rng)
}

// ParseBoardFile loads a board file from disk.
func ParseBoardFile(path string, rng *rand.Rand) (*Board, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open board file: %w", err)
	}
	defer f.Close()

	b, err := ParseBoard(f, rng)
	if err != nil {
		return nil, fmt.Errorf("board file %s: %w", path, err)
	}
	return b, nil
}

// Format renders a board back into the file format accepted by ParseBoard.
// Only a full board can round-trip; a board with removed pairs no longer
// fills its grid and is rejected.
func Format(b *Board) (string, error) {
	if b.Remaining() != b.Width()*b.Height() {
		return "", fmt.Errorf("board has removed cards: %w", ErrInvalidCardSet)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d %d\n", b.Width(), b.Height())
	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			sp, err := b.At(x, y)
			if err != nil {
				return "", err
			}
			if x > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(sp.Card)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
