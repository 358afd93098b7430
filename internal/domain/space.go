package domain

// Space is one grid cell of the board: the card it holds, whether the card
// is face-up, and which player currently controls it. An empty Card means
// the pair was matched and removed. Space is a value type; boards hand out
// copies, so a Space read is always a consistent snapshot.
type Space struct {
	Card         string
	FaceUp       bool
	ControlledBy string
}

// Empty reports whether the space no longer holds a card.
func (s Space) Empty() bool {
	return s.Card == ""
}

// Controlled reports whether a player holds control of this space.
func (s Space) Controlled() bool {
	return s.ControlledBy != ""
}
