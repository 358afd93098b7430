package domain

import "errors"

var (
	ErrInvalidDimensions = errors.New("board dimensions must be positive")
	ErrInvalidCardSet    = errors.New("card set does not fill the board")
	ErrOutOfBounds       = errors.New("coordinates out of bounds")
	ErrNoCard            = errors.New("no card at this space")
	ErrNotFaceUp         = errors.New("card is face-down")
	// ErrInvariant marks an internal defect: a mutation that would leave the
	// board in an illegal state. The mutation is rolled back before it is
	// reported, so the board stays valid.
	ErrInvariant = errors.New("board invariant violated")
)
