package app

// PairSize is the number of cards a player reveals before a turn resolves.
// Kept centralized so tests and local variants stay in one place.
const PairSize = 2

// DefaultGameID is the session a transport falls back to when a request
// does not name a game.
const DefaultGameID = "default"
