package domain

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"
)

func TestParseBoard(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "single line of cards",
			input:   "2 2\nA B A B\n",
			wantErr: nil,
		},
		{
			name:    "multi line with blanks",
			input:   "3 2\nA B C\n\nC B A\n",
			wantErr: nil,
		},
		{
			name:    "emoji cards",
			input:   "2 2\n🌙 ⭐ 🌙 ⭐\n",
			wantErr: nil,
		},
		{
			name:    "missing dimension",
			input:   "4\nA B A B\n",
			wantErr: ErrInvalidDimensions,
		},
		{
			name:    "non-integer dimension",
			input:   "two 2\nA B A B\n",
			wantErr: ErrInvalidDimensions,
		},
		{
			name:    "zero dimension",
			input:   "0 2\n\n",
			wantErr: ErrInvalidDimensions,
		},
		{
			name:    "wrong card count",
			input:   "2 2\nA B A\n",
			wantErr: ErrInvalidCardSet,
		},
		{
			name:    "card occurs once",
			input:   "2 2\nA B C B\n",
			wantErr: ErrInvalidCardSet,
		},
		{
			name:    "card occurs four times",
			input:   "2 2\nA A A A\n",
			wantErr: ErrInvalidCardSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseBoard(strings.NewReader(tt.input), rand.New(rand.NewSource(3)))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if b.Remaining() != b.Width()*b.Height() {
				t.Fatalf("parsed board not full: %d of %d", b.Remaining(), b.Width()*b.Height())
			}
		})
	}
}

func TestFormatRoundTripPreservesMultisetAndDimensions(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	b, err := ParseBoard(strings.NewReader("3 4\nA B C D E F\nF E D C B A\n"), rng)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	text, err := Format(b)
	if err != nil {
		t.Fatalf("format error: %v", err)
	}
	again, err := ParseBoard(strings.NewReader(text), rng)
	if err != nil {
		t.Fatalf("re-parse error: %v", err)
	}

	if again.Width() != b.Width() || again.Height() != b.Height() {
		t.Fatalf("dimensions %dx%d, want %dx%d", again.Width(), again.Height(), b.Width(), b.Height())
	}
	want := b.Cards()
	got := again.Cards()
	sort.Strings(want)
	sort.Strings(got)
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("card multiset changed: got %v, want %v", got, want)
	}
}

func TestFormatRejectsPartialBoard(t *testing.T) {
	b := testBoard(t, 2, 2, []string{"A", "B"})
	x1, y1, x2, y2 := find(t, b, "A")
	for _, p := range [][2]int{{x1, y1}, {x2, y2}} {
		if err := b.Flip(p[0], p[1]); err != nil {
			t.Fatalf("flip error: %v", err)
		}
	}
	if err := b.RemovePair(x1, y1, x2, y2); err != nil {
		t.Fatalf("remove pair error: %v", err)
	}

	if _, err := Format(b); !errors.Is(err, ErrInvalidCardSet) {
		t.Fatalf("err = %v, want ErrInvalidCardSet", err)
	}
}
