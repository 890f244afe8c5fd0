package teenpatti

import "fmt"

type Config struct {
	// Table
	MaxPlayers int
	MinPlayers int

	// Ante collected from every player at round start; also the blind bet unit.
	MinBet int64

	// MinShowRounds gates blind shows: a show involving a blind player is
	// refused until roundNumber reaches this value.
	MinShowRounds int

	// Seconds a human player may hold the turn before auto-fold.
	TurnTimeoutSeconds int

	// RestoreChips resets every stack to its initial stake on rematch.
	RestoreChips bool

	Rules RuleFlags

	// RNG seed (0 => time-based)
	Seed int64
}

// A 52-card deck deals 3 cards each to at most 17 seats.
const maxTableSeats = 17

func (c Config) validate() error {
	if c.MaxPlayers <= 0 {
		return fmt.Errorf("MaxPlayers must be > 0")
	}
	if c.MaxPlayers > maxTableSeats {
		return fmt.Errorf("MaxPlayers must be <= %d", maxTableSeats)
	}
	if c.MinPlayers < 2 {
		return fmt.Errorf("MinPlayers must be >= 2")
	}
	if c.MinPlayers > c.MaxPlayers {
		return fmt.Errorf("MinPlayers must be <= MaxPlayers")
	}
	if c.MinBet <= 0 {
		return fmt.Errorf("MinBet must be > 0")
	}
	if c.MinShowRounds < 0 {
		return fmt.Errorf("MinShowRounds must be >= 0")
	}
	if c.TurnTimeoutSeconds < 0 {
		return fmt.Errorf("TurnTimeoutSeconds must be >= 0")
	}
	return nil
}
