package nakama

const (
	// RpcLook returns the caller's view of a board without blocking.
	RpcLook = "memory_look"
	// RpcFlip turns a card over for the caller. Under the block policy the
	// call suspends while the space is contested.
	RpcFlip = "memory_flip"
	// RpcWatch long-polls until the board changes, then returns the new view.
	RpcWatch = "memory_watch"
	// RpcRename rewrites card identifiers across a board.
	RpcRename = "memory_rename"
	// RpcNewGame creates (or replaces) a board in the registry.
	RpcNewGame = "memory_new_game"
	// RpcFindMatch finds a realtime match with open seats or creates one.
	RpcFindMatch = "memory_find_game"

	// MatchNameMemory is the authoritative match handler name registered with Nakama.
	MatchNameMemory = "memory_match"

	// MatchLabelKeyOpenSeats is the label key matchmaking queries filter on.
	MatchLabelKeyOpenSeats = "open"

	// MaxMatchPlayers caps seats in a realtime match, humans and bots combined.
	MaxMatchPlayers = 4
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpLook int64 = 1
	OpFlip int64 = 2

	// Server -> Client events
	OpBoardState     int64 = 101
	OpCardFlipped    int64 = 102
	OpPairMatched    int64 = 103
	OpPairMissed     int64 = 104
	OpPlayerJoined   int64 = 105
	OpPlayerLeft     int64 = 106
	OpPlayerReleased int64 = 107
	OpGameError      int64 = 120
)
