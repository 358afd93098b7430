package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// GameConfig describes how new games are built and arbitrated.
type GameConfig struct {
	// BoardFile is the board definition loaded for the default game. When
	// empty or unreadable, a random board is built from Cards instead.
	BoardFile   string   `json:"board_file"`
	BoardWidth  int      `json:"board_width"`
	BoardHeight int      `json:"board_height"`
	Cards       []string `json:"cards"`
	// Arbitration is "block" or "reject" and decides what a flip on a
	// contested space does on the RPC surface.
	Arbitration string `json:"arbitration"`
	// BotAutoFillDelaySeconds configures how many seconds a solo human waits in a match before a bot joins.
	BotAutoFillDelaySeconds int `json:"bot_auto_fill_delay_seconds"`
	// BotMinDelaySeconds/BotMaxDelaySeconds bound how long a bot waits between its turns.
	BotMinDelaySeconds int `json:"bot_min_delay_seconds"`
	BotMaxDelaySeconds int `json:"bot_max_delay_seconds"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		var c GameConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration.
func GetGameConfig() *GameConfig {
	return cfg
}

// GetBoardFile returns the configured board file path, or "" when unset.
func GetBoardFile() string {
	if cfg == nil {
		return ""
	}
	return cfg.BoardFile
}

// GetBoardSize returns the configured random-board dimensions, defaulting
// to 4x4.
func GetBoardSize() (int, int) {
	if cfg == nil || cfg.BoardWidth <= 0 || cfg.BoardHeight <= 0 {
		return 4, 4
	}
	return cfg.BoardWidth, cfg.BoardHeight
}

// GetCards returns the card set for random boards. The default is eight
// emoji pairs for the default 4x4 grid.
func GetCards() []string {
	if cfg == nil || len(cfg.Cards) == 0 {
		return []string{"🦄", "🌈", "🎨", "⭐", "🎪", "🎭", "🎬", "🎸"}
	}
	return cfg.Cards
}

// GetArbitration returns the configured arbitration policy string.
func GetArbitration() string {
	if cfg == nil {
		return "block"
	}
	return cfg.Arbitration
}

// GetBotAutoFillDelay returns seconds to wait before bots fill a solo
// human's match.
func GetBotAutoFillDelay() int {
	if cfg == nil || cfg.BotAutoFillDelaySeconds <= 0 {
		return 10
	}
	return cfg.BotAutoFillDelaySeconds
}

// GetBotDelayBounds returns the min and max seconds between bot turns.
func GetBotDelayBounds() (int, int) {
	min, max := 1, 3
	if cfg != nil && cfg.BotMinDelaySeconds > 0 {
		min = cfg.BotMinDelaySeconds
	}
	if cfg != nil && cfg.BotMaxDelaySeconds >= min {
		max = cfg.BotMaxDelaySeconds
	}
	if max < min {
		max = min
	}
	return min, max
}
