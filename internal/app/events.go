package app

// EventKind identifies emitted game events for transport dispatch.
type EventKind string

const (
	EventCardFlipped    EventKind = "card_flipped"
	EventPairMatched    EventKind = "pair_matched"
	EventPairMissed     EventKind = "pair_missed"
	EventBoardRenamed   EventKind = "board_renamed"
	EventPlayerReleased EventKind = "player_released"
)

// Event is a game event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // player IDs; empty means broadcast
}

// Point addresses one board space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type CardFlippedPayload struct {
	PlayerID string `json:"playerId"`
	Pos      Point  `json:"pos"`
	Card     string `json:"card"`
}

type PairMatchedPayload struct {
	PlayerID string `json:"playerId"`
	Card     string `json:"card"`
	First    Point  `json:"first"`
	Second   Point  `json:"second"`
	Score    int    `json:"score"`
}

type PairMissedPayload struct {
	PlayerID string `json:"playerId"`
	First    Point  `json:"first"`
	Second   Point  `json:"second"`
}

type BoardRenamedPayload struct {
	PlayerID string `json:"playerId"`
}

type PlayerReleasedPayload struct {
	PlayerID string  `json:"playerId"`
	Freed    []Point `json:"freed"`
}
