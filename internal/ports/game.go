package ports

import (
	"context"

	"memoryscramble/internal/app"
)

// GameSession is the command surface a transport drives. Look never
// blocks. Flip may suspend on a contested space (policy permitting) and
// Watch suspends until the next board mutation; both take a cancellable
// context so a disconnecting caller can abort cleanly.
type GameSession interface {
	Look(player string) app.Snapshot
	Flip(ctx context.Context, player string, x, y int) (app.FlipResult, []app.Event, error)
	Watch(ctx context.Context, player string) (app.Snapshot, error)
	Rename(player string, mapping map[string]string) (app.Snapshot, []app.Event, error)
	Release(player string) []app.Event
	EnsurePlayer(player string)
}
