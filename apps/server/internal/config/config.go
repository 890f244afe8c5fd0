package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"teenpatti-lite/teenpatti"
)

// Config is the full server configuration, loaded from the environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// memory | local (sqlite) | postgres
	StorageMode string `env:"STORAGE_MODE" envDefault:"memory"`
	AuthMode    string `env:"AUTH_MODE" envDefault:"memory"`

	// Bearer token guarding the admin endpoints. Empty disables them.
	AdminToken string `env:"ADMIN_TOKEN"`

	// Table defaults for newly created games.
	MaxPlayers         int   `env:"TABLE_MAX_PLAYERS" envDefault:"6"`
	MinPlayers         int   `env:"TABLE_MIN_PLAYERS" envDefault:"2"`
	MinBet             int64 `env:"TABLE_MIN_BET" envDefault:"10"`
	MinShowRounds      int   `env:"TABLE_MIN_SHOW_ROUNDS" envDefault:"4"`
	TurnTimeoutSeconds int   `env:"TURN_TIMEOUT_SECONDS" envDefault:"30"`
	RestoreChips       bool  `env:"TABLE_RESTORE_CHIPS" envDefault:"false"`

	// Rule variants.
	LowSequenceHigh  bool `env:"RULE_LOW_SEQUENCE_HIGH" envDefault:"false"`
	TwoThreeFiveHigh bool `env:"RULE_TWO_THREE_FIVE_HIGH" envDefault:"false"`

	// Stacks.
	DefaultChips int64 `env:"DEFAULT_CHIPS" envDefault:"1000"`
	BotChips     int64 `env:"BOT_CHIPS" envDefault:"1000"`

	// Bots auto-seated at round start to reach MinPlayers. 0 disables.
	BotFill int `env:"BOT_FILL" envDefault:"0"`

	// Registry limits.
	MaxGames int `env:"MAX_GAMES" envDefault:"200"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// TableConfig maps the server defaults onto an engine Config.
func (c Config) TableConfig() teenpatti.Config {
	return teenpatti.Config{
		MaxPlayers:         c.MaxPlayers,
		MinPlayers:         c.MinPlayers,
		MinBet:             c.MinBet,
		MinShowRounds:      c.MinShowRounds,
		TurnTimeoutSeconds: c.TurnTimeoutSeconds,
		RestoreChips:       c.RestoreChips,
		Rules: teenpatti.RuleFlags{
			LowSequenceHigh:  c.LowSequenceHigh,
			TwoThreeFiveHigh: c.TwoThreeFiveHigh,
		},
	}
}
