package teenpatti

import (
	"fmt"
	"time"

	"teenpatti-lite/card"
)

const InvalidSeat = -1

// Status 会话状态
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// ActionType is the wire name of a player action.
type ActionType string

const (
	ActionSee             ActionType = "SEE"
	ActionCall            ActionType = "CALL"
	ActionRaise           ActionType = "RAISE"
	ActionFold            ActionType = "FOLD"
	ActionShow            ActionType = "SHOW"
	ActionSideShow        ActionType = "SIDE_SHOW"
	ActionAcceptSideShow  ActionType = "ACCEPT_SIDE_SHOW"
	ActionDeclineSideShow ActionType = "DECLINE_SIDE_SHOW"
)

// Action is the closed tagged union behind the single mutation entry point.
// Build one with ParseAction so malformed envelopes never reach the session.
type Action struct {
	Type     ActionType
	Amount   int64
	TargetID string
}

// ParseAction validates an inbound action envelope at the boundary.
func ParseAction(actionType string, amount int64, targetID string) (Action, error) {
	switch ActionType(actionType) {
	case ActionSee, ActionCall, ActionFold, ActionShow,
		ActionAcceptSideShow, ActionDeclineSideShow:
		return Action{Type: ActionType(actionType)}, nil
	case ActionRaise:
		if amount <= 0 {
			return Action{}, fmt.Errorf("raise requires a positive amount")
		}
		return Action{Type: ActionRaise, Amount: amount}, nil
	case ActionSideShow:
		if targetID == "" {
			return Action{}, fmt.Errorf("side show requires a target player")
		}
		return Action{Type: ActionSideShow, TargetID: targetID}, nil
	default:
		return Action{}, fmt.Errorf("unknown action type %q", actionType)
	}
}

// RuleFlags are the optional hand-ranking variants.
type RuleFlags struct {
	// LowSequenceHigh promotes A-2-3 above every other sequence of its band.
	LowSequenceHigh bool `json:"lowSequenceHigh"`
	// TwoThreeFiveHigh promotes the off-suit 2-3-5 pattern above both pure
	// and plain sequences (still below a trail).
	TwoThreeFiveHigh bool `json:"twoThreeFiveHigh"`
}

// LastAction is the most recent accepted action, as exposed on the wire.
type LastAction struct {
	PlayerID string     `json:"playerId"`
	Type     ActionType `json:"type"`
	Amount   int64      `json:"amount,omitempty"`
}

// SideShowChallenge freezes both hands at request time. It exists only
// between SIDE_SHOW and its resolution.
type SideShowChallenge struct {
	ChallengerID   string    `json:"challengerId"`
	TargetID       string    `json:"targetId"`
	Timestamp      time.Time `json:"timestamp"`
	challengerHand card.CardList
	targetHand     card.CardList
}

// SideShowResult records one resolved (or declined) challenge for the round.
type SideShowResult struct {
	ChallengerID string `json:"challengerId"`
	TargetID     string `json:"targetId"`
	Accepted     bool   `json:"accepted"`
	WinnerID     string `json:"winnerId,omitempty"`
	LoserID      string `json:"loserId,omitempty"`
	Payout       int64  `json:"payout,omitempty"`
	Refund       int64  `json:"refund,omitempty"`
}

// TeenPattiCards 52 张整副牌
var TeenPattiCards = []card.Card{
	card.CardHeartA, card.CardHeart2, card.CardHeart3, card.CardHeart4, card.CardHeart5, card.CardHeart6,
	card.CardHeart7, card.CardHeart8, card.CardHeart9, card.CardHeartT, card.CardHeartJ, card.CardHeartQ, card.CardHeartK,
	card.CardDiamondA, card.CardDiamond2, card.CardDiamond3, card.CardDiamond4, card.CardDiamond5, card.CardDiamond6,
	card.CardDiamond7, card.CardDiamond8, card.CardDiamond9, card.CardDiamondT, card.CardDiamondJ, card.CardDiamondQ, card.CardDiamondK,
	card.CardClubA, card.CardClub2, card.CardClub3, card.CardClub4, card.CardClub5, card.CardClub6,
	card.CardClub7, card.CardClub8, card.CardClub9, card.CardClubT, card.CardClubJ, card.CardClubQ, card.CardClubK,
	card.CardSpadeA, card.CardSpade2, card.CardSpade3, card.CardSpade4, card.CardSpade5, card.CardSpade6,
	card.CardSpade7, card.CardSpade8, card.CardSpade9, card.CardSpadeT, card.CardSpadeJ, card.CardSpadeQ, card.CardSpadeK,
}

// betMultiplier 已看牌玩家按双倍盲注单位下注
func betMultiplier(seen bool) int64 {
	if seen {
		return 2
	}
	return 1
}
