package teenpatti

import "teenpatti-lite/card"

// PlayerSnapshot 玩家状态投影
type PlayerSnapshot struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Chips        int64       `json:"chips"`
	SeatPosition int         `json:"seatPosition"`
	Hand         []card.Card `json:"hand"`
	HasSeen      bool        `json:"hasSeen"`
	HasFolded    bool        `json:"hasFolded"`
	IsActive     bool        `json:"isActive"`
	CurrentBet   int64       `json:"currentBet"`
	TotalBet     int64       `json:"totalBet"`
	IsBot        bool        `json:"isBot"`
}

// SessionSnapshot is the full point-in-time projection of a game. It carries
// every hand; callers facing untrusted viewers go through RedactFor first.
// TurnTimeRemaining is filled by the layer that owns the turn clock.
type SessionSnapshot struct {
	ID                  string             `json:"id"`
	Status              Status             `json:"status"`
	Players             []PlayerSnapshot   `json:"players"`
	CurrentTurnPlayerID string             `json:"currentTurnPlayerId"`
	Pot                 int64              `json:"pot"`
	CurrentBetBaseline  int64              `json:"currentBetBaseline"`
	MinBet              int64              `json:"minBet"`
	RoundNumber         int                `json:"roundNumber"`
	LastAction          *LastAction        `json:"lastAction,omitempty"`
	SideShowChallenge   *SideShowChallenge `json:"sideShowChallenge,omitempty"`
	SideShowResults     []SideShowResult   `json:"sideShowResults,omitempty"`
	TurnTimeoutSeconds  int                `json:"turnTimeoutSeconds"`
	TurnTimeRemaining   int                `json:"turnTimeRemaining"`
	RuleFlags           RuleFlags          `json:"ruleFlags"`
	Seats               []string           `json:"seats"`
}

// Snapshot projects the current state. The result shares nothing with the
// live game, so it stays consistent after the lock is released.
func (g *Game) Snapshot() *SessionSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	players := make([]PlayerSnapshot, 0, len(g.players))
	seats := make([]string, g.cfg.MaxPlayers)
	for _, p := range g.players {
		if p.Seat >= 0 && p.Seat < len(seats) {
			seats[p.Seat] = p.ID
		}
		players = append(players, PlayerSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			Chips:        p.chips,
			SeatPosition: p.Seat,
			Hand:         p.Hand(),
			HasSeen:      p.hasSeen,
			HasFolded:    p.hasFolded,
			IsActive:     p.isActive,
			CurrentBet:   p.currentBet,
			TotalBet:     p.totalBet,
			IsBot:        p.Robot,
		})
	}

	snap := &SessionSnapshot{
		ID:                  g.id,
		Status:              g.status,
		Players:             players,
		CurrentTurnPlayerID: g.currentTurnID,
		Pot:                 g.pot,
		CurrentBetBaseline:  g.baseline,
		MinBet:              g.cfg.MinBet,
		RoundNumber:         g.roundNumber,
		TurnTimeoutSeconds:  g.cfg.TurnTimeoutSeconds,
		RuleFlags:           g.cfg.Rules,
		Seats:               seats,
	}
	if g.lastAction != nil {
		la := *g.lastAction
		snap.LastAction = &la
	}
	if g.challenge != nil {
		// Hands stay out of the projection entirely.
		snap.SideShowChallenge = &SideShowChallenge{
			ChallengerID: g.challenge.ChallengerID,
			TargetID:     g.challenge.TargetID,
			Timestamp:    g.challenge.Timestamp,
		}
	}
	if len(g.sideShowResults) > 0 {
		snap.SideShowResults = append([]SideShowResult{}, g.sideShowResults...)
	}
	return snap
}

// RedactFor clones the snapshot for one viewer: the viewer keeps their own
// cards, everyone else's are hidden until the round finishes. At showdown the
// hands of the players still in contention become public.
func (s *SessionSnapshot) RedactFor(viewerID string) *SessionSnapshot {
	out := *s
	out.Players = make([]PlayerSnapshot, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p
		if p.ID == viewerID {
			continue
		}
		if s.Status == StatusFinished && p.IsActive {
			continue
		}
		out.Players[i].Hand = nil
	}
	return &out
}
