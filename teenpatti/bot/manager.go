package bot

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"teenpatti-lite/teenpatti"
)

// Instance represents an active bot seated at a table.
type Instance struct {
	PlayerID   string
	Persona    *Persona
	Brain      BrainDecider
	ThinkDelay time.Duration
}

// Manager manages bot lifecycle and decision-making at tables.
type Manager struct {
	personas  []*Persona
	instances map[string]*Instance // keyed by PlayerID
	mu        sync.RWMutex
	rng       *rand.Rand
	nextID    int
}

// NewManager creates a bot manager. A nil roster falls back to DefaultPersonas.
func NewManager(personas []*Persona) *Manager {
	if len(personas) == 0 {
		personas = DefaultPersonas
	}
	return &Manager{
		personas:  personas,
		instances: make(map[string]*Instance),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Spawn creates and seats a bot at the game's lowest free position.
func (m *Manager) Spawn(game *teenpatti.Game, chips int64) (*Instance, error) {
	m.mu.Lock()
	m.nextID++
	playerID := fmt.Sprintf("bot_%d", m.nextID)
	persona := m.personas[(m.nextID-1)%len(m.personas)]
	seed := m.rng.Int63()
	// 1–3 秒思考时间, 多个 bot 连续行动时节奏更自然
	thinkDelay := time.Duration(1000+m.rng.Intn(2000)) * time.Millisecond
	m.mu.Unlock()

	if err := game.AddPlayer(playerID, persona.Name, chips, true); err != nil {
		return nil, fmt.Errorf("spawn bot %s: %w", persona.Name, err)
	}

	inst := &Instance{
		PlayerID:   playerID,
		Persona:    persona,
		Brain:      NewRuleBrain(persona, seed),
		ThinkDelay: thinkDelay,
	}

	m.mu.Lock()
	m.instances[playerID] = inst
	m.mu.Unlock()

	log.Printf("[Bot] Spawned %s (id=%s)", persona.Name, playerID)
	return inst, nil
}

// Adopt re-registers a bot restored from a persisted session under its old
// player id, so decision-making resumes without reseating it.
func (m *Manager) Adopt(playerID, name string) *Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst := m.instances[playerID]; inst != nil {
		return inst
	}

	persona := m.personas[0]
	for _, p := range m.personas {
		if p.Name == name {
			persona = p
			break
		}
	}
	// Keep fresh spawns from colliding with the adopted id.
	var n int
	if _, err := fmt.Sscanf(playerID, "bot_%d", &n); err == nil && n > m.nextID {
		m.nextID = n
	}

	inst := &Instance{
		PlayerID:   playerID,
		Persona:    persona,
		Brain:      NewRuleBrain(persona, m.rng.Int63()),
		ThinkDelay: time.Duration(1000+m.rng.Intn(2000)) * time.Millisecond,
	}
	m.instances[playerID] = inst
	log.Printf("[Bot] Adopted %s (id=%s)", persona.Name, playerID)
	return inst
}

// OnTurn is called when it's a bot's turn to act. The snapshot must be the
// unredacted engine projection so the bot can read its own hand.
func (m *Manager) OnTurn(playerID string, snap *teenpatti.SessionSnapshot) Decision {
	m.mu.RLock()
	inst := m.instances[playerID]
	m.mu.RUnlock()

	if inst == nil {
		log.Printf("[Bot] OnTurn called for unknown player %s", playerID)
		return Decision{Action: teenpatti.ActionFold}
	}

	decision := inst.Brain.Decide(buildGameView(playerID, snap))
	log.Printf("[Bot] %s decides: %s amount=%d target=%s",
		inst.Persona.Name, decision.Action, decision.Amount, decision.TargetID)
	return decision
}

// IsBot checks if a playerID belongs to a managed bot.
func (m *Manager) IsBot(playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[playerID] != nil
}

// Despawn removes a bot from tracking.
func (m *Manager) Despawn(playerID string) {
	m.mu.Lock()
	inst := m.instances[playerID]
	delete(m.instances, playerID)
	m.mu.Unlock()

	if inst != nil {
		log.Printf("[Bot] Despawned %s (id=%s)", inst.Persona.Name, playerID)
	}
}

// ThinkDelay returns the simulated thinking delay for a bot.
func (m *Manager) ThinkDelay(playerID string) time.Duration {
	m.mu.RLock()
	inst := m.instances[playerID]
	m.mu.RUnlock()
	if inst == nil {
		return time.Second
	}
	return inst.ThinkDelay
}

// buildGameView constructs a GameView from a snapshot for a specific bot.
func buildGameView(playerID string, snap *teenpatti.SessionSnapshot) GameView {
	view := GameView{
		Pot:         snap.Pot,
		Baseline:    snap.CurrentBetBaseline,
		RoundNumber: snap.RoundNumber,
		Flags:       snap.RuleFlags,
	}

	for _, ps := range snap.Players {
		if ps.IsActive && !ps.HasFolded {
			view.ActiveCount++
		}
	}
	for _, ps := range snap.Players {
		if ps.ID == playerID {
			view.Hand = ps.Hand
			view.HasSeen = ps.HasSeen
			view.MyChips = ps.Chips
			view.MyBet = ps.CurrentBet
			continue
		}
		// Side shows need more than two actives and a seen target.
		if view.ActiveCount > 2 && ps.IsActive && !ps.HasFolded && ps.HasSeen {
			view.SideShowTargets = append(view.SideShowTargets, ps.ID)
		}
	}

	if ch := snap.SideShowChallenge; ch != nil && ch.TargetID == playerID {
		view.ChallengePending = true
	}
	return view
}
