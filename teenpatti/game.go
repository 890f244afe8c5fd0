package teenpatti

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"teenpatti-lite/card"
)

// Game is the authoritative session state machine. All mutations enter
// through HandleAction (plus the lifecycle calls AddPlayer / Start /
// RemovePlayer / ResetForRematch); the caller serializes delivery per game id.
type Game struct {
	cfg Config
	rng *rand.Rand

	mu sync.Mutex

	id     string
	status Status

	// seating
	players    []*Player // seat order
	eliminated []*Player // removed mid-round; kept for settlement

	// round state
	deck          card.CardList
	pot           int64
	baseline      int64 // currentBetBaseline: the blind bet unit
	roundNumber   int
	currentTurnID string

	lastAction      *LastAction
	challenge       *SideShowChallenge
	sideShowResults []SideShowResult

	lastSettlement *Settlement
}

func NewGame(id string, cfg Config) (*Game, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Game{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(seed)),
		id:          id,
		status:      StatusWaiting,
		roundNumber: 1,
	}, nil
}

// RestoreGame rebuilds a session from a persisted snapshot. In-flight hands
// are never rebuilt, so a session comes back at its last round boundary:
// the same seats and stacks, waiting for Start.
func RestoreGame(snap *SessionSnapshot, cfg Config) (*Game, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	g, err := NewGame(snap.ID, cfg)
	if err != nil {
		return nil, err
	}
	if snap.RoundNumber > 0 {
		g.roundNumber = snap.RoundNumber
	}
	if snap.Status == StatusFinished {
		// The finished round is history; the revived table starts the next one.
		g.roundNumber++
	}
	for _, ps := range snap.Players {
		if len(g.players) >= cfg.MaxPlayers {
			break
		}
		if ps.Chips <= 0 {
			continue // busted stacks do not come back
		}
		g.players = append(g.players, &Player{
			ID:           ps.ID,
			Name:         ps.Name,
			Seat:         ps.SeatPosition,
			Robot:        ps.IsBot,
			chips:        ps.Chips,
			initialChips: ps.Chips,
			isActive:     true,
		})
	}
	g.sortBySeatLocked()
	return g, nil
}

func (g *Game) ID() string { return g.id }

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Game) RoundNumber() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roundNumber
}

func (g *Game) Config() Config { return g.cfg }

// CurrentTurn returns the player holding the turn and whether it is a bot.
func (g *Game) CurrentTurn() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.playerByIDLocked(g.currentTurnID)
	if p == nil {
		return "", false
	}
	return p.ID, p.Robot
}

// LastSettlement returns the result of the most recently finished round.
func (g *Game) LastSettlement() *Settlement {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSettlement
}

// AddPlayer seats a player at the lowest free position.
func (g *Game) AddPlayer(id, name string, chips int64, robot bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status == StatusPlaying {
		return ErrInvalidMove
	}
	if chips <= 0 {
		return fmt.Errorf("chips must be > 0")
	}
	if g.playerByIDLocked(id) != nil {
		return ErrInvalidState(fmt.Sprintf("player %s already seated", id))
	}
	if len(g.players) >= g.cfg.MaxPlayers {
		return ErrGameFull
	}

	g.players = append(g.players, &Player{
		ID:           id,
		Name:         name,
		Seat:         g.lowestFreeSeatLocked(),
		Robot:        robot,
		chips:        chips,
		initialChips: chips,
		isActive:     true,
	})
	g.sortBySeatLocked()
	return nil
}

// RemovePlayer handles an explicit leave. Mid-round it behaves like a fold
// first (which may end the round), and a pending side-show involving the
// leaver resolves as a decline so the challenger is made whole.
func (g *Game) RemovePlayer(id string) (*Settlement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := g.playerByIDLocked(id)
	if p == nil {
		return nil, ErrPlayerNotFound
	}

	if g.status != StatusPlaying {
		g.dropFromTableLocked(p, false)
		return nil, nil
	}

	if ch := g.challenge; ch != nil && (ch.ChallengerID == id || ch.TargetID == id) {
		g.refundChallengerLocked(ch)
		g.challenge = nil
	}

	var settle *Settlement
	if p.isActive && !p.hasFolded {
		p.setFolded()
		if actives := g.activePlayersLocked(); len(actives) == 1 {
			settle, _ = g.endGameLocked(actives[0])
		} else if g.currentTurnID == id {
			g.advanceTurnLocked(p.Seat)
		}
	}
	g.dropFromTableLocked(p, true)
	return settle, nil
}

// Start deals a fresh round: waiting -> playing.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusWaiting {
		return ErrInvalidState("round already started")
	}
	if len(g.players) < g.cfg.MinPlayers {
		return fmt.Errorf("not enough players: %d < %d", len(g.players), g.cfg.MinPlayers)
	}

	for _, p := range g.players {
		p.resetForNewRound()
	}
	g.eliminated = nil
	g.sideShowResults = nil
	g.challenge = nil
	g.lastAction = nil
	g.lastSettlement = nil
	g.pot = 0

	g.shuffleLocked()
	// 一张一张轮流发，共 3 轮
	for i := 0; i < 3; i++ {
		for _, p := range g.players {
			c := g.deck.PopCard()
			if c == card.CardInvalid {
				return ErrInvalidState("deck underflow")
			}
			p.hand.Add(c)
		}
	}

	// Antes. A short stack antes what it has; nobody starts below zero.
	for _, p := range g.players {
		ante := g.cfg.MinBet
		if p.chips < ante {
			ante = p.chips
		}
		p.placeBet(ante)
		g.pot += ante
	}
	g.baseline = g.cfg.MinBet

	// First turn rotates with the round number so the opener moves each rematch.
	start := (g.roundNumber - 1) % len(g.players)
	g.currentTurnID = g.players[start].ID
	g.status = StatusPlaying
	return nil
}

// HandleAction is the single mutation entry point for player, bot and timer
// events. A rejected action mutates nothing. The returned Settlement is
// non-nil exactly when this action finished the round.
func (g *Game) HandleAction(playerID string, act Action) (*Settlement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusPlaying {
		return nil, ErrInvalidMove
	}
	p := g.playerByIDLocked(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}

	// SEE is legal at any time for an active player and never consumes the turn.
	if act.Type == ActionSee {
		if !p.isActive || p.hasFolded {
			return nil, ErrInvalidMove
		}
		p.hasSeen = true
		g.lastAction = &LastAction{PlayerID: playerID, Type: ActionSee}
		return nil, nil
	}

	// While a side-show challenge is pending, only its target may act.
	if g.challenge != nil {
		switch act.Type {
		case ActionAcceptSideShow:
			return g.acceptSideShowLocked(p)
		case ActionDeclineSideShow:
			return g.declineSideShowLocked(p)
		default:
			return nil, ErrInvalidMove
		}
	}
	if act.Type == ActionAcceptSideShow || act.Type == ActionDeclineSideShow {
		return nil, ErrInvalidMove
	}

	if playerID != g.currentTurnID || !p.isActive || p.hasFolded {
		return nil, ErrInvalidMove
	}

	switch act.Type {
	case ActionCall:
		return g.callLocked(p)
	case ActionRaise:
		return g.raiseLocked(p, act.Amount)
	case ActionFold:
		return g.foldLocked(p)
	case ActionShow:
		return g.showLocked(p)
	case ActionSideShow:
		return nil, g.sideShowLocked(p, act.TargetID)
	default:
		return nil, ErrInvalidMove
	}
}

func (g *Game) callLocked(p *Player) (*Settlement, error) {
	required := g.baseline * betMultiplier(p.hasSeen)
	actual := required
	if p.chips < actual {
		actual = p.chips // all-in partial call
	}
	if actual <= 0 {
		return nil, ErrInsufficientChips
	}
	p.placeBet(actual)
	g.pot += actual
	g.lastAction = &LastAction{PlayerID: p.ID, Type: ActionCall, Amount: actual}
	g.advanceTurnLocked(p.Seat)
	return nil, nil
}

func (g *Game) raiseLocked(p *Player, amount int64) (*Settlement, error) {
	mult := betMultiplier(p.hasSeen)
	if amount < g.baseline*2*mult {
		return nil, ErrMinRaiseViolation
	}
	if amount > p.chips {
		return nil, ErrInsufficientChips
	}
	p.placeBet(amount)
	g.pot += amount
	// Divide the multiplier back out so the blind unit stays comparable
	// across seen and blind players.
	g.baseline = amount / mult
	g.lastAction = &LastAction{PlayerID: p.ID, Type: ActionRaise, Amount: amount}
	g.advanceTurnLocked(p.Seat)
	return nil, nil
}

func (g *Game) foldLocked(p *Player) (*Settlement, error) {
	p.setFolded()
	g.lastAction = &LastAction{PlayerID: p.ID, Type: ActionFold}

	if actives := g.activePlayersLocked(); len(actives) == 1 {
		return g.endGameLocked(actives[0])
	}
	g.advanceTurnLocked(p.Seat)
	return nil, nil
}

func (g *Game) showLocked(p *Player) (*Settlement, error) {
	actives := g.activePlayersLocked()

	if len(actives) == 2 {
		other := actives[0]
		if other == p {
			other = actives[1]
		}
		switch {
		case p.hasSeen && !other.hasSeen:
			// The seen side of a blind/seen pair must use a side show.
			return nil, ErrShowNotAllowed
		case !p.hasSeen || !other.hasSeen:
			if g.roundNumber < g.cfg.MinShowRounds {
				return nil, ErrShowNotAllowed
			}
		}
		// Two seen players may show unconditionally.
	} else {
		// Multi-way show is a blind-only affair.
		for _, a := range actives {
			if a.hasSeen {
				return nil, ErrShowNotAllowed
			}
		}
		if g.roundNumber < g.cfg.MinShowRounds {
			return nil, ErrShowNotAllowed
		}
	}

	winner := g.bestHandLocked(actives, p)
	g.lastAction = &LastAction{PlayerID: p.ID, Type: ActionShow}
	return g.endGameLocked(winner)
}

func (g *Game) sideShowLocked(p *Player, targetID string) error {
	if len(g.activePlayersLocked()) <= 2 {
		return ErrSideShowIneligible
	}
	target := g.playerByIDLocked(targetID)
	if target == nil {
		return ErrPlayerNotFound
	}
	if target == p || !target.isActive || target.hasFolded {
		return ErrSideShowIneligible
	}
	if !p.hasSeen || !target.hasSeen {
		return ErrSideShowIneligible
	}

	g.challenge = &SideShowChallenge{
		ChallengerID:   p.ID,
		TargetID:       targetID,
		Timestamp:      time.Now(),
		challengerHand: append(card.CardList{}, p.hand...),
		targetHand:     append(card.CardList{}, target.hand...),
	}
	g.lastAction = &LastAction{PlayerID: p.ID, Type: ActionSideShow}
	// The turn stays with the challenger until the target answers.
	return nil
}

// acceptSideShowLocked resolves the pending challenge atomically: evaluate,
// eliminate the loser, pay the winner half the pot.
func (g *Game) acceptSideShowLocked(p *Player) (*Settlement, error) {
	ch := g.challenge
	if p.ID != ch.TargetID {
		return nil, ErrInvalidMove
	}
	challenger := g.playerByIDLocked(ch.ChallengerID)
	if challenger == nil {
		g.challenge = nil
		return nil, ErrInvalidState("challenger no longer seated")
	}
	challengerSeat := challenger.Seat

	winner, loser := p, challenger // a tie goes against the challenger
	if Evaluate(ch.challengerHand, g.cfg.Rules) > Evaluate(ch.targetHand, g.cfg.Rules) {
		winner, loser = challenger, p
	}

	payout := g.pot / 2
	winner.addChips(payout)
	g.pot -= payout

	loser.setFolded()
	g.dropFromTableLocked(loser, true)

	g.sideShowResults = append(g.sideShowResults, SideShowResult{
		ChallengerID: ch.ChallengerID,
		TargetID:     ch.TargetID,
		Accepted:     true,
		WinnerID:     winner.ID,
		LoserID:      loser.ID,
		Payout:       payout,
	})
	g.lastAction = &LastAction{PlayerID: p.ID, Type: ActionAcceptSideShow}
	g.challenge = nil

	if actives := g.activePlayersLocked(); len(actives) == 1 {
		return g.endGameLocked(actives[0])
	}
	g.advanceTurnLocked(challengerSeat)
	return nil, nil
}

func (g *Game) declineSideShowLocked(p *Player) (*Settlement, error) {
	ch := g.challenge
	if p.ID != ch.TargetID {
		return nil, ErrInvalidMove
	}

	refund := g.refundChallengerLocked(ch)
	g.sideShowResults = append(g.sideShowResults, SideShowResult{
		ChallengerID: ch.ChallengerID,
		TargetID:     ch.TargetID,
		Accepted:     false,
		Refund:       refund,
	})
	g.lastAction = &LastAction{PlayerID: p.ID, Type: ActionDeclineSideShow}
	g.challenge = nil

	if challenger := g.playerByIDLocked(ch.ChallengerID); challenger != nil {
		g.advanceTurnLocked(challenger.Seat)
	}
	return nil, nil
}

func (g *Game) refundChallengerLocked(ch *SideShowChallenge) int64 {
	challenger := g.playerByIDLocked(ch.ChallengerID)
	if challenger == nil {
		return 0
	}
	refund := challenger.currentBet
	challenger.addChips(refund)
	challenger.currentBet = 0
	g.pot -= refund
	return refund
}

// ResetForRematch: finished -> waiting. Seating survives, transient round
// state does not.
func (g *Game) ResetForRematch() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != StatusFinished {
		return ErrInvalidState("rematch only after a finished round")
	}
	g.roundNumber++
	g.status = StatusWaiting
	g.pot = 0
	g.baseline = 0
	g.deck = nil
	g.challenge = nil
	g.sideShowResults = nil
	g.lastAction = nil
	g.lastSettlement = nil
	g.currentTurnID = ""
	g.eliminated = nil
	for _, p := range g.players {
		p.resetForNewRound()
		if g.cfg.RestoreChips {
			p.chips = p.initialChips
		}
	}
	return nil
}

// Resize changes table capacity between rounds: humans are compacted into the
// low seats first, then bots keep their order while seats remain. Returned
// ids are the bots that lost their seat; a human is never displaced.
func (g *Game) Resize(maxPlayers int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if maxPlayers <= 0 {
		return nil, fmt.Errorf("maxPlayers must be > 0")
	}
	if maxPlayers > maxTableSeats {
		return nil, fmt.Errorf("maxPlayers must be <= %d", maxTableSeats)
	}
	if g.status == StatusPlaying {
		return nil, ErrInvalidState("cannot resize during a round")
	}

	var humans, bots []*Player
	for _, p := range g.players {
		if p.Robot {
			bots = append(bots, p)
		} else {
			humans = append(humans, p)
		}
	}
	if len(humans) > maxPlayers {
		return nil, ErrInvalidState("capacity below seated humans")
	}

	seat := 0
	kept := make([]*Player, 0, len(g.players))
	for _, h := range humans {
		h.Seat = seat
		seat++
		kept = append(kept, h)
	}
	var removed []string
	for _, b := range bots {
		if seat < maxPlayers {
			b.Seat = seat
			seat++
			kept = append(kept, b)
		} else {
			removed = append(removed, b.ID)
		}
	}
	g.players = kept
	g.cfg.MaxPlayers = maxPlayers
	return removed, nil
}

func (g *Game) endGameLocked(winner *Player) (*Settlement, error) {
	winAmount := g.pot
	winner.addChips(winAmount)
	g.pot = 0
	g.status = StatusFinished
	g.currentTurnID = ""

	settle := g.buildSettlementLocked(winner.ID, winAmount)
	g.lastSettlement = settle
	return settle, nil
}

func (g *Game) buildSettlementLocked(winnerID string, winAmount int64) *Settlement {
	participants := append(append([]*Player{}, g.players...), g.eliminated...)

	nets := make(map[string]int64, len(participants))
	for _, p := range participants {
		nets[p.ID] = p.chips - p.initialChips
	}
	transfers := ComputeTransfers(nets)

	moves := make(map[string]int)
	for _, t := range transfers {
		moves[t.FromPlayerID]++
		moves[t.ToPlayerID]++
	}

	records := make([]SettlementRecord, 0, len(participants))
	for _, p := range participants {
		records = append(records, SettlementRecord{
			GameID:     g.id,
			Round:      g.roundNumber,
			PlayerID:   p.ID,
			FinalChips: p.chips,
			NetChips:   nets[p.ID],
			MovesCount: moves[p.ID],
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PlayerID < records[j].PlayerID })

	return &Settlement{
		GameID:    g.id,
		Round:     g.roundNumber,
		WinnerID:  winnerID,
		WinAmount: winAmount,
		Records:   records,
		Transfers: transfers,
	}
}

// --- helpers ---

func (g *Game) shuffleLocked() {
	cards := make([]card.Card, len(TeenPattiCards))
	copy(cards, TeenPattiCards)
	g.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	g.deck.Init(cards)
}

func (g *Game) playerByIDLocked(id string) *Player {
	if id == "" {
		return nil
	}
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) activePlayersLocked() []*Player {
	actives := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		if p.isActive && !p.hasFolded {
			actives = append(actives, p)
		}
	}
	return actives
}

// advanceTurnLocked grants the turn to the next active player after fromSeat,
// circularly in seating order.
func (g *Game) advanceTurnLocked(fromSeat int) {
	actives := g.activePlayersLocked()
	if len(actives) == 0 {
		g.currentTurnID = ""
		return
	}
	for _, p := range actives {
		if p.Seat > fromSeat {
			g.currentTurnID = p.ID
			return
		}
	}
	g.currentTurnID = actives[0].ID
}

func (g *Game) bestHandLocked(actives []*Player, shower *Player) *Player {
	var best *Player
	var bestScore uint32
	for _, a := range actives {
		score := Evaluate(a.hand, g.cfg.Rules)
		// On equal scores the initiator of the show loses.
		if best == nil || score > bestScore || (score == bestScore && best == shower) {
			best, bestScore = a, score
		}
	}
	return best
}

func (g *Game) dropFromTableLocked(p *Player, keepForSettlement bool) {
	for i, q := range g.players {
		if q == p {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}
	p.Seat = InvalidSeat
	if keepForSettlement {
		g.eliminated = append(g.eliminated, p)
	}
}

func (g *Game) lowestFreeSeatLocked() int {
	taken := make(map[int]bool, len(g.players))
	for _, p := range g.players {
		taken[p.Seat] = true
	}
	for seat := 0; ; seat++ {
		if !taken[seat] {
			return seat
		}
	}
}

func (g *Game) sortBySeatLocked() {
	sort.Slice(g.players, func(i, j int) bool { return g.players[i].Seat < g.players[j].Seat })
}
