package bot

import (
	"math/rand"

	"teenpatti-lite/teenpatti"
)

// RuleBrain makes decisions based on a PersonalityProfile with tunable parameters.
type RuleBrain struct {
	Persona *Persona
	rng     *rand.Rand
}

// NewRuleBrain creates a RuleBrain from a persona definition.
func NewRuleBrain(persona *Persona, seed int64) *RuleBrain {
	return &RuleBrain{
		Persona: persona,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (b *RuleBrain) Name() string { return b.Persona.Name }

// Decide implements BrainDecider.
func (b *RuleBrain) Decide(view GameView) Decision {
	p := b.Persona.Brain

	aggression := clamp01(p.Aggression + (b.rng.Float64()-0.5)*p.Randomness*0.4)
	tightness := clamp01(p.Tightness + (b.rng.Float64()-0.5)*p.Randomness*0.3)

	if view.ChallengePending {
		return b.answerChallenge(view, tightness)
	}

	// Blind play: the hand is unknown, so the profile drives everything.
	if !view.HasSeen {
		// Curious bots peek once the pot starts costing real money.
		pressure := float64(view.Baseline) / float64(view.MyChips+1)
		if b.rng.Float64() < p.Curiosity*0.5+pressure*2 {
			return Decision{Action: teenpatti.ActionSee}
		}
		cost := view.Baseline
		if cost > view.MyChips {
			return Decision{Action: teenpatti.ActionFold}
		}
		if b.rng.Float64() < aggression*0.25 && view.MyChips >= view.Baseline*2 {
			return Decision{Action: teenpatti.ActionRaise, Amount: view.Baseline * 2}
		}
		// Tight bots bail out of an inflated pot they never looked at.
		if pressure > 0.15 && b.rng.Float64() < tightness {
			return Decision{Action: teenpatti.ActionFold}
		}
		return Decision{Action: teenpatti.ActionCall}
	}

	strength := handStrength(view)
	cost := view.Baseline * 2
	if cost > view.MyChips {
		if strength > 0.55 {
			return Decision{Action: teenpatti.ActionCall} // all-in on the short stack
		}
		return Decision{Action: teenpatti.ActionFold}
	}

	// Heads-up with a strong hand: end it.
	if view.ActiveCount == 2 && strength > 0.5-aggression*0.2 {
		return Decision{Action: teenpatti.ActionShow}
	}

	// Multi-way with a decent seen hand: pick on another seen player.
	if len(view.SideShowTargets) > 0 && strength > 0.45 && b.rng.Float64() < 0.3+aggression*0.3 {
		target := view.SideShowTargets[b.rng.Intn(len(view.SideShowTargets))]
		return Decision{Action: teenpatti.ActionSideShow, TargetID: target}
	}

	if strength > 0.6 || (strength > 0.4 && b.rng.Float64() < aggression*0.5) {
		amount := view.Baseline * 4 // minimum legal seen raise
		if amount > view.MyChips {
			amount = view.MyChips
		}
		return Decision{Action: teenpatti.ActionRaise, Amount: amount}
	}

	if strength < tightness*0.45 {
		return Decision{Action: teenpatti.ActionFold}
	}
	return Decision{Action: teenpatti.ActionCall}
}

// answerChallenge decides a pending side show. The target wins ties, so the
// threshold leans toward accepting.
func (b *RuleBrain) answerChallenge(view GameView, tightness float64) Decision {
	if handStrength(view) > 0.35+tightness*0.15 {
		return Decision{Action: teenpatti.ActionAcceptSideShow}
	}
	return Decision{Action: teenpatti.ActionDeclineSideShow}
}

// handStrength maps an evaluated hand onto 0.0–1.0.
func handStrength(view GameView) float64 {
	if len(view.Hand) != 3 {
		return 0.3
	}
	score := teenpatti.Evaluate(view.Hand, view.Flags)
	switch cat := teenpatti.CategoryOf(score); {
	case cat >= teenpatti.HandSequence:
		return 0.9
	case cat == teenpatti.HandColor:
		return 0.75
	case cat == teenpatti.HandPair:
		// 0.45 for a pair of twos up to ~0.7 for aces
		pairRank := float64((score >> 8) & 0x0F)
		return 0.45 + (pairRank-2)/12*0.25
	default:
		high := float64((score >> 8) & 0x0F)
		return (high - 2) / 12 * 0.45
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
