package teenpatti

import (
	"sort"

	"teenpatti-lite/card"
)

// HandCategory bands, weakest to strongest. Each band owns a disjoint score
// range, so category always dominates within-category tie-breaks.
type HandCategory byte

const (
	HandHighCard HandCategory = iota + 1
	HandPair
	HandColor
	HandSequence
	HandPureSequence
	HandSpecial235 // only reachable with RuleFlags.TwoThreeFiveHigh
	HandTrail
)

var HandCategoryDictionary = map[HandCategory]string{
	HandHighCard:     "highCard",
	HandPair:         "pair",
	HandColor:        "color",
	HandSequence:     "sequence",
	HandPureSequence: "pureSequence",
	HandSpecial235:   "special235",
	HandTrail:        "trail",
}

// Evaluate ranks a 3-card hand into a strictly ordered score; larger is
// stronger. Layout: category<<12 | t1<<8 | t2<<4 | t3 where the t's are rank
// nibbles with A=14. A promoted A-2-3 uses 15 so it clears A-K-Q inside its
// own band without touching the next one.
func Evaluate(hand []card.Card, flags RuleFlags) uint32 {
	if len(hand) != 3 {
		return 0
	}

	v := []int{hand[0].HandRealVal(), hand[1].HandRealVal(), hand[2].HandRealVal()}
	sort.Sort(sort.Reverse(sort.IntSlice(v)))

	flush := hand[0].Suit() == hand[1].Suit() && hand[1].Suit() == hand[2].Suit()
	trail := v[0] == v[1] && v[1] == v[2]
	run := v[0] == v[1]+1 && v[1] == v[2]+1
	aceLow := v[0] == 14 && v[1] == 3 && v[2] == 2 // A-2-3
	is235 := v[0] == 5 && v[1] == 3 && v[2] == 2

	switch {
	case trail:
		return pack(HandTrail, v[0], 0, 0)
	case flags.TwoThreeFiveHigh && is235 && !flush:
		return pack(HandSpecial235, 0, 0, 0)
	case (run || aceLow) && flush:
		return pack(HandPureSequence, sequenceHigh(v[0], aceLow, flags), 0, 0)
	case run || aceLow:
		return pack(HandSequence, sequenceHigh(v[0], aceLow, flags), 0, 0)
	case flush:
		return pack(HandColor, v[0], v[1], v[2])
	case v[0] == v[1]:
		return pack(HandPair, v[0], v[2], 0)
	case v[1] == v[2]:
		return pack(HandPair, v[1], v[0], 0)
	default:
		return pack(HandHighCard, v[0], v[1], v[2])
	}
}

// CategoryOf extracts the band from an Evaluate score.
func CategoryOf(score uint32) HandCategory {
	return HandCategory(score >> 12)
}

// sequenceHigh: a run is fully ordered by its high card. A-2-3 sits at the
// bottom by default (high card 3) and above A-K-Q when LowSequenceHigh is set.
func sequenceHigh(high int, aceLow bool, flags RuleFlags) int {
	if !aceLow {
		return high
	}
	if flags.LowSequenceHigh {
		return 15
	}
	return 3
}

func pack(cat HandCategory, t1, t2, t3 int) uint32 {
	return uint32(cat)<<12 | uint32(t1)<<8 | uint32(t2)<<4 | uint32(t3)
}
