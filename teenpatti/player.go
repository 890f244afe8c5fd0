package teenpatti

import "teenpatti-lite/card"

type Player struct {
	ID    string
	Name  string
	Seat  int
	Robot bool

	chips        int64
	initialChips int64

	hand       card.CardList
	hasSeen    bool
	hasFolded  bool
	isActive   bool
	currentBet int64
	totalBet   int64
}

func (p *Player) Chips() int64        { return p.chips }
func (p *Player) InitialChips() int64 { return p.initialChips }
func (p *Player) HasSeen() bool       { return p.hasSeen }
func (p *Player) HasFolded() bool     { return p.hasFolded }
func (p *Player) IsActive() bool      { return p.isActive }
func (p *Player) CurrentBet() int64   { return p.currentBet }
func (p *Player) TotalBet() int64     { return p.totalBet }
func (p *Player) IsRobot() bool       { return p.Robot }

func (p *Player) Hand() []card.Card {
	return append([]card.Card{}, p.hand...)
}

func (p *Player) resetForNewRound() {
	p.hand = nil
	p.hasSeen = false
	p.hasFolded = false
	p.isActive = true
	p.currentBet = 0
	p.totalBet = 0
}

// placeBet moves chips to the pot side of the books; amount is clamped by the
// caller, never here, so chips stay >= 0 by construction.
func (p *Player) placeBet(amount int64) {
	p.chips -= amount
	p.currentBet = amount
	p.totalBet += amount
}

func (p *Player) addChips(amount int64) {
	p.chips += amount
}

func (p *Player) setFolded() {
	p.hasFolded = true
	p.isActive = false
}
