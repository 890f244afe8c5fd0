package bot

import (
	"teenpatti-lite/card"
	"teenpatti-lite/teenpatti"
)

// GameView is a read-only projection of the game state visible to the bot.
type GameView struct {
	Hand        []card.Card
	HasSeen     bool
	Pot         int64
	Baseline    int64
	MyChips     int64
	MyBet       int64
	ActiveCount int
	RoundNumber int
	Flags       teenpatti.RuleFlags

	// Seen, active opponents; the only legal side-show targets.
	SideShowTargets []string

	// ChallengePending is set when this bot is the target of a side show
	// and must answer before anyone else moves.
	ChallengePending bool
}

// Decision is what a BrainDecider returns.
type Decision struct {
	Action   teenpatti.ActionType
	Amount   int64
	TargetID string
}

// BrainDecider is the core interface all bot types implement.
type BrainDecider interface {
	// Decide is called when it's the bot's turn. Returning SEE keeps the
	// turn, so the caller asks again with the updated view.
	Decide(view GameView) Decision
	// Name returns a human-readable identifier for debugging.
	Name() string
}
