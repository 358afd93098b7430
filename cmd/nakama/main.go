package main

import (
	"context"
	"database/sql"

	"memoryscramble/internal/ports/nakama"

	"github.com/heroiclabs/nakama-common/runtime"
)

// main is never invoked; this package is loaded by Nakama as a plugin via
// InitModule. It exists so the package compiles under `go build ./...`.
func main() {}

// InitModule proxies Nakama initialization to the nakama adapter package.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	return nakama.InitModule(ctx, logger, db, nk, initializer)
}
