package nakama

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"memoryscramble/internal/app"
	"memoryscramble/internal/bot"
	"memoryscramble/internal/config"
	"memoryscramble/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs, hooks and the match handler for the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}
	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("InitModule: Could not load bot identities: %v", err)
	} else if err := bot.ProvisionBots(ctx, nk, logger); err != nil {
		logger.Warn("InitModule: Bot provisioning incomplete: %v", err)
	}

	arbitration := app.ParseArbitration(config.GetArbitration())
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if val, ok := env["memory_arbitration"]; ok {
			arbitration = app.ParseArbitration(val)
		}
	}

	registry := app.NewRegistry()
	board, err := defaultBoard(ctx)
	if err != nil {
		return err
	}
	registry.Put(app.DefaultGameID, app.NewSession(board, arbitration))
	logger.Info("InitModule: Default game ready (%dx%d, arbitration=%s).", board.Width(), board.Height(), arbitration)

	if err := RegisterRPCs(initializer, registry, arbitration); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameMemory, NewMatch); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(afterAuthenticateDevice(registry)); err != nil {
		return err
	}

	logger.Info("Memory Scramble module loaded.")
	return nil
}

// defaultBoard builds the default game's board. An env var wins over the
// config file, and any file failure falls back to a random board.
func defaultBoard(ctx context.Context) (*domain.Board, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	file := config.GetBoardFile()
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if val, ok := env["memory_board_file"]; ok && val != "" {
			file = val
		}
	}
	if file != "" {
		if board, err := domain.ParseBoardFile(file, rng); err == nil {
			return board, nil
		}
	}

	width, height := config.GetBoardSize()
	return domain.NewBoard(width, height, config.GetCards(), rng)
}
