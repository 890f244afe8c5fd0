package room

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"teenpatti-lite/apps/server/internal/store"
	"teenpatti-lite/teenpatti"
	"teenpatti-lite/teenpatti/bot"
)

// Room wraps one game in an actor: every mutation arrives on the event
// channel and is handled by a single goroutine, so the engine never sees
// concurrent writers for the same table.
type Room struct {
	ID string

	mu       sync.RWMutex
	game     *teenpatti.Game
	conns    map[string]*PlayerConn // playerID -> connection state (humans only)
	closed   bool
	stopOnce sync.Once

	events chan Event
	done   chan struct{}

	serverSeq uint64
	actionSeq int

	// Turn clock. The epoch fences stale timer and bot injections: any
	// submission tagged with an old epoch is dropped.
	turnEpoch    uint64
	turnPlayerID string
	turnDeadline time.Time

	emptySince time.Time

	broadcast func(playerID string, data []byte)
	store     store.Service
	bots      *bot.Manager
	botFill   int
	botChips  int64
}

// Deps are the room's collaborators and bot policy, fixed at construction.
type Deps struct {
	Broadcast func(playerID string, data []byte)
	Store     store.Service
	Bots      *bot.Manager
	// BotFill is how many bots may be auto-seated at round start to reach
	// the minimum player count. Zero disables filling.
	BotFill  int
	BotChips int64
}

// PlayerConn tracks one human player's connection at the room.
type PlayerConn struct {
	PlayerID string
	Name     string
	Online   bool
	LastSeen time.Time
}

// Event types for the actor message queue.
type EventType int

const (
	EventJoin EventType = iota
	EventLeave
	EventAction
	EventStartRound
	EventRematch
	EventAddBot
	EventResize
	EventConnLost
	EventConnResume
	EventClose
)

// Event represents a message to the room actor.
type Event struct {
	Type       EventType
	PlayerID   string
	Name       string
	Chips      int64
	Action     teenpatti.Action
	MaxPlayers int
	// Epoch tags timer and bot submissions; zero means a live client event.
	Epoch     uint64
	Timestamp time.Time
	Response  chan error
}

var ErrRoomClosed = errors.New("room closed")

const offlineSeatTTL = 60 * time.Second

// New creates a room and starts its actor goroutine.
func New(id string, cfg teenpatti.Config, deps Deps) (*Room, error) {
	game, err := teenpatti.NewGame(id, cfg)
	if err != nil {
		return nil, err
	}
	r := newRoom(game, deps)
	log.Printf("[Room %s] Created (max=%d, minBet=%d)", id, cfg.MaxPlayers, cfg.MinBet)
	return r, nil
}

// NewFromSnapshot revives a persisted session at its last round boundary.
// Restored bots are re-adopted by the manager under their old ids.
func NewFromSnapshot(snap *teenpatti.SessionSnapshot, cfg teenpatti.Config, deps Deps) (*Room, error) {
	game, err := teenpatti.RestoreGame(snap, cfg)
	if err != nil {
		return nil, err
	}
	if deps.Bots != nil {
		for _, ps := range snap.Players {
			if ps.IsBot {
				deps.Bots.Adopt(ps.ID, ps.Name)
			}
		}
	}
	r := newRoom(game, deps)
	log.Printf("[Room %s] Restored (round=%d, players=%d)", game.ID(), game.RoundNumber(), len(snap.Players))
	return r, nil
}

func newRoom(game *teenpatti.Game, deps Deps) *Room {
	r := &Room{
		ID:         game.ID(),
		game:       game,
		conns:      make(map[string]*PlayerConn),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		broadcast:  deps.Broadcast,
		store:      deps.Store,
		bots:       deps.Bots,
		botFill:    deps.BotFill,
		botChips:   deps.BotChips,
		emptySince: time.Now(),
	}
	go r.run()
	return r
}

// run is the main actor loop.
func (r *Room) run() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.events:
			err := r.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			r.tick()
		case <-r.done:
			log.Printf("[Room %s] Actor stopped", r.ID)
			return
		}
	}
}

func (r *Room) handleEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return ErrRoomClosed
	}

	switch e.Type {
	case EventJoin:
		return r.handleJoin(e.PlayerID, e.Name, e.Chips)
	case EventLeave:
		return r.handleLeave(e.PlayerID)
	case EventAction:
		return r.handleAction(e.PlayerID, e.Action, e.Epoch)
	case EventStartRound:
		return r.handleStartRound()
	case EventRematch:
		return r.handleRematch()
	case EventAddBot:
		return r.handleAddBot(e.Chips)
	case EventResize:
		return r.handleResize(e.MaxPlayers)
	case EventConnLost:
		return r.handleConnLost(e.PlayerID, e.Timestamp)
	case EventConnResume:
		return r.handleConnResume(e.PlayerID, e.Timestamp)
	case EventClose:
		r.stopLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (r *Room) handleJoin(playerID, name string, chips int64) error {
	now := time.Now()

	// A player the engine already knows is reconnecting, not joining.
	if r.hasPlayerLocked(playerID) {
		pc := r.conns[playerID]
		if pc == nil {
			pc = &PlayerConn{PlayerID: playerID, Name: name}
			r.conns[playerID] = pc
		}
		pc.Online = true
		pc.LastSeen = now
		r.sendStateTo(playerID)
		return nil
	}

	if err := r.game.AddPlayer(playerID, name, chips, false); err != nil {
		return err
	}
	r.conns[playerID] = &PlayerConn{PlayerID: playerID, Name: name, Online: true, LastSeen: now}
	r.emptySince = time.Time{}
	log.Printf("[Room %s] Player %s (%s) joined with %d", r.ID, playerID, name, chips)

	env := r.newEnvelope(EventTypePlayerJoined)
	env.PlayerID = playerID
	env.PlayerName = name
	r.broadcastWithState(env)
	r.saveSessionLocked()
	return nil
}

func (r *Room) handleLeave(playerID string) error {
	settle, err := r.game.RemovePlayer(playerID)
	if err != nil {
		return err
	}
	delete(r.conns, playerID)
	if r.bots != nil {
		r.bots.Despawn(playerID)
	}
	r.updateEmptySinceLocked(time.Now())
	log.Printf("[Room %s] Player %s left", r.ID, playerID)

	env := r.newEnvelope(EventTypePlayerLeft)
	env.PlayerID = playerID
	r.broadcastWithState(env)

	if settle != nil {
		r.handleRoundEndLocked(settle)
	} else if r.game.Status() == teenpatti.StatusPlaying {
		r.resetTurnClockLocked()
	} else {
		r.saveSessionLocked()
	}
	return nil
}

func (r *Room) handleStartRound() error {
	r.fillWithBotsLocked()

	if err := r.game.Start(); err != nil {
		return err
	}
	r.actionSeq = 0
	log.Printf("[Room %s] Round %d started", r.ID, r.game.RoundNumber())

	r.broadcastWithState(r.newEnvelope(EventTypeGameState))
	r.resetTurnClockLocked()
	r.saveSessionLocked()
	return nil
}

// fillWithBotsLocked seats bots up to the fill allowance so a short table can
// still start. Humans are never displaced; seats beyond MinPlayers stay open.
func (r *Room) fillWithBotsLocked() {
	if r.bots == nil || r.botFill <= 0 {
		return
	}
	cfg := r.game.Config()
	for {
		snap := r.game.Snapshot()
		if len(snap.Players) >= cfg.MinPlayers || len(snap.Players) >= cfg.MaxPlayers {
			return
		}
		botCount := 0
		for _, ps := range snap.Players {
			if ps.IsBot {
				botCount++
			}
		}
		if botCount >= r.botFill {
			return
		}
		inst, err := r.bots.Spawn(r.game, r.botChips)
		if err != nil {
			log.Printf("[Room %s] bot fill failed: %v", r.ID, err)
			return
		}
		env := r.newEnvelope(EventTypePlayerJoined)
		env.PlayerID = inst.PlayerID
		env.PlayerName = inst.Persona.Name
		r.broadcastWithState(env)
	}
}

func (r *Room) handleRematch() error {
	if err := r.game.ResetForRematch(); err != nil {
		return err
	}
	log.Printf("[Room %s] Rematch: round %d waiting", r.ID, r.game.RoundNumber())
	r.broadcastWithState(r.newEnvelope(EventTypeGameState))
	r.saveSessionLocked()
	return nil
}

func (r *Room) handleAddBot(chips int64) error {
	if r.bots == nil {
		return fmt.Errorf("bots not available")
	}
	inst, err := r.bots.Spawn(r.game, chips)
	if err != nil {
		return err
	}
	env := r.newEnvelope(EventTypePlayerJoined)
	env.PlayerID = inst.PlayerID
	env.PlayerName = inst.Persona.Name
	r.broadcastWithState(env)
	return nil
}

func (r *Room) handleResize(maxPlayers int) error {
	removed, err := r.game.Resize(maxPlayers)
	if err != nil {
		return err
	}
	for _, id := range removed {
		if r.bots != nil {
			r.bots.Despawn(id)
		}
		env := r.newEnvelope(EventTypePlayerLeft)
		env.PlayerID = id
		r.broadcastWithState(env)
	}
	log.Printf("[Room %s] Resized to %d seats, removed %d bots", r.ID, maxPlayers, len(removed))
	if len(removed) == 0 {
		r.broadcastWithState(r.newEnvelope(EventTypeGameState))
	}
	r.saveSessionLocked()
	return nil
}

// handleAction feeds one action into the engine and fans out the result.
// Stale epochs are dropped silently: the timer or bot that queued them
// lost a race against a live action.
func (r *Room) handleAction(playerID string, act teenpatti.Action, epoch uint64) error {
	if epoch != 0 && epoch != r.turnEpoch {
		return nil
	}

	settle, err := r.game.HandleAction(playerID, act)
	if err != nil {
		r.sendErrorTo(playerID, err)
		return err
	}

	r.actionSeq++
	if r.store != nil {
		item := store.ActionItem{
			Seq:      r.actionSeq,
			PlayerID: playerID,
			Action:   string(act.Type),
			Amount:   act.Amount,
			TsMs:     time.Now().UnixMilli(),
		}
		round := r.game.RoundNumber()
		go r.store.AppendAction(r.ID, round, item)
	}

	snap := r.game.Snapshot()
	env := r.newEnvelope(EventTypeActionResult)
	env.Action = snap.LastAction
	r.broadcastSnapshot(env, snap)

	// A resolved challenge rides on its own event so clients can animate it.
	if n := len(snap.SideShowResults); n > 0 &&
		(act.Type == teenpatti.ActionAcceptSideShow || act.Type == teenpatti.ActionDeclineSideShow) {
		last := snap.SideShowResults[n-1]
		resultEnv := r.newEnvelope(EventTypeSideShowResult)
		resultEnv.SideShowResult = &last
		r.broadcastWithState(resultEnv)
	}

	if settle != nil {
		r.handleRoundEndLocked(settle)
	} else if act.Type != teenpatti.ActionSee {
		// SEE is turn-free: the armed deadline still belongs to whoever
		// holds the turn and must not be pushed out.
		r.resetTurnClockLocked()
	}
	return nil
}

func (r *Room) handleRoundEndLocked(settle *teenpatti.Settlement) {
	r.clearTurnClockLocked()

	env := r.newEnvelope(EventTypeGameEnded)
	env.Settlement = settle
	r.broadcastWithState(env)

	if r.store != nil {
		// Archive the revealed hands before the snapshot is reset by a rematch.
		for _, ps := range r.game.Snapshot().Players {
			if len(ps.Hand) == 0 {
				continue
			}
			go r.store.PersistHand(r.ID, settle.Round, ps.ID, ps.Hand)
		}
		go func(s *teenpatti.Settlement) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.store.RecordSettlement(ctx, s); err != nil {
				log.Printf("[Room %s] record settlement failed: round=%d err=%v", r.ID, s.Round, err)
			}
		}(settle)
	}
	log.Printf("[Room %s] Round %d ended, winner=%s amount=%d", r.ID, settle.Round, settle.WinnerID, settle.WinAmount)
	r.saveSessionLocked()
}

// saveSessionLocked persists the current boundary snapshot off-loop.
func (r *Room) saveSessionLocked() {
	if r.store == nil {
		return
	}
	snap := r.game.Snapshot()
	go r.store.SaveSession(r.ID, snap)
}

func (r *Room) handleConnLost(playerID string, ts time.Time) error {
	pc := r.conns[playerID]
	if pc == nil {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	pc.Online = false
	pc.LastSeen = ts
	log.Printf("[Room %s] Player %s connection lost", r.ID, playerID)
	return nil
}

func (r *Room) handleConnResume(playerID string, ts time.Time) error {
	pc := r.conns[playerID]
	if pc == nil {
		return nil
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	pc.Online = true
	pc.LastSeen = ts
	r.sendStateTo(playerID)
	log.Printf("[Room %s] Player %s connection resumed", r.ID, playerID)
	return nil
}

// tick drives the turn clock and evicts seats held by long-gone players.
func (r *Room) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	now := time.Now()
	r.releaseOfflineSeats(now)

	if r.turnDeadline.IsZero() || now.Before(r.turnDeadline) {
		return
	}

	playerID := r.turnPlayerID
	epoch := r.turnEpoch
	r.turnDeadline = time.Time{}

	env := r.newEnvelope(EventTypeTurnTimeout)
	env.PlayerID = playerID
	r.broadcastWithState(env)

	// A stalled challenge target declines; anyone else folds.
	auto := teenpatti.Action{Type: teenpatti.ActionFold}
	if snap := r.game.Snapshot(); snap.SideShowChallenge != nil && snap.SideShowChallenge.TargetID == playerID {
		auto = teenpatti.Action{Type: teenpatti.ActionDeclineSideShow}
	}
	log.Printf("[Room %s] Turn timeout for %s -> auto %s", r.ID, playerID, auto.Type)
	if err := r.handleAction(playerID, auto, epoch); err != nil {
		log.Printf("[Room %s] auto action failed for %s: %v", r.ID, playerID, err)
	}
}

func (r *Room) releaseOfflineSeats(now time.Time) {
	for playerID, pc := range r.conns {
		if pc == nil || pc.Online {
			continue
		}
		if now.Sub(pc.LastSeen) < offlineSeatTTL {
			continue
		}
		if err := r.handleLeave(playerID); err != nil {
			pc.LastSeen = now
			log.Printf("[Room %s] auto-leave failed for offline player %s: %v", r.ID, playerID, err)
			continue
		}
		log.Printf("[Room %s] Released seat of offline player %s after %s", r.ID, playerID, offlineSeatTTL)
	}
}

// resetTurnClockLocked rearms the clock for whoever must act next. While a
// side-show challenge is pending that is its target, not the turn holder.
func (r *Room) resetTurnClockLocked() {
	r.turnEpoch++
	snap := r.game.Snapshot()

	actor := snap.CurrentTurnPlayerID
	if ch := snap.SideShowChallenge; ch != nil {
		actor = ch.TargetID
	}
	r.turnPlayerID = actor
	r.turnDeadline = time.Time{}
	if actor == "" {
		return
	}

	if r.bots != nil && r.bots.IsBot(actor) {
		r.scheduleBotAction(actor, r.turnEpoch)
		return
	}
	if secs := r.game.Config().TurnTimeoutSeconds; secs > 0 {
		r.turnDeadline = time.Now().Add(time.Duration(secs) * time.Second)
	}
}

func (r *Room) clearTurnClockLocked() {
	r.turnEpoch++
	r.turnPlayerID = ""
	r.turnDeadline = time.Time{}
}

// scheduleBotAction asks the brain off-loop and injects the decision back
// into the actor queue tagged with the epoch it was scheduled under.
func (r *Room) scheduleBotAction(playerID string, epoch uint64) {
	thinkDelay := r.bots.ThinkDelay(playerID)

	go func() {
		time.Sleep(thinkDelay)

		snap := r.game.Snapshot() // unredacted: the bot reads its own hand
		decision := r.bots.OnTurn(playerID, snap)
		act := teenpatti.Action{
			Type:     decision.Action,
			Amount:   decision.Amount,
			TargetID: decision.TargetID,
		}
		if err := r.SubmitEvent(Event{Type: EventAction, PlayerID: playerID, Action: act, Epoch: epoch}); err != nil {
			// The brain can pick a move the table refuses (a gated show, an
			// ineligible side show). Fall back to the safe ladder.
			for _, fallback := range []teenpatti.ActionType{teenpatti.ActionCall, teenpatti.ActionFold} {
				err = r.SubmitEvent(Event{
					Type: EventAction, PlayerID: playerID,
					Action: teenpatti.Action{Type: fallback}, Epoch: epoch,
				})
				if err == nil {
					return
				}
			}
			log.Printf("[Room %s] bot %s has no legal fallback: %v", r.ID, playerID, err)
		}
	}()
}

// --- fan-out helpers ---

func (r *Room) nextSeq() uint64 {
	r.serverSeq++
	return r.serverSeq
}

func (r *Room) turnRemainingSeconds() int {
	if r.turnDeadline.IsZero() {
		return 0
	}
	remaining := time.Until(r.turnDeadline)
	if remaining < 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// broadcastWithState attaches a fresh snapshot and fans out per viewer.
func (r *Room) broadcastWithState(env *ServerEnvelope) {
	r.broadcastSnapshot(env, r.game.Snapshot())
}

func (r *Room) broadcastSnapshot(env *ServerEnvelope, snap *teenpatti.SessionSnapshot) {
	snap.TurnTimeRemaining = r.turnRemainingSeconds()
	for playerID, pc := range r.conns {
		if pc == nil || !pc.Online {
			continue
		}
		viewerEnv := *env
		viewerEnv.State = snap.RedactFor(playerID)
		if data := encodeEnvelope(&viewerEnv); data != nil {
			r.broadcast(playerID, data)
		}
	}
}

func (r *Room) sendStateTo(playerID string) {
	snap := r.game.Snapshot()
	snap.TurnTimeRemaining = r.turnRemainingSeconds()
	env := r.newEnvelope(EventTypeGameState)
	env.State = snap.RedactFor(playerID)
	if data := encodeEnvelope(env); data != nil {
		r.broadcast(playerID, data)
	}
}

func (r *Room) sendErrorTo(playerID string, actionErr error) {
	env := r.newEnvelope(EventTypeError)
	env.Error = &ErrorBody{Code: errorCode(actionErr), Message: actionErr.Error()}
	if data := encodeEnvelope(env); data != nil {
		r.broadcast(playerID, data)
	}
}

func errorCode(err error) string {
	var invalidState teenpatti.InvalidStateError
	switch {
	case errors.Is(err, teenpatti.ErrInvalidMove):
		return "INVALID_MOVE"
	case errors.Is(err, teenpatti.ErrInsufficientChips):
		return "INSUFFICIENT_CHIPS"
	case errors.Is(err, teenpatti.ErrMinRaiseViolation):
		return "MIN_RAISE_VIOLATION"
	case errors.Is(err, teenpatti.ErrSideShowIneligible):
		return "SIDE_SHOW_INELIGIBLE"
	case errors.Is(err, teenpatti.ErrShowNotAllowed):
		return "SHOW_NOT_ALLOWED"
	case errors.Is(err, teenpatti.ErrPlayerNotFound):
		return "PLAYER_NOT_FOUND"
	case errors.Is(err, teenpatti.ErrGameFull):
		return "GAME_FULL"
	case errors.As(err, &invalidState):
		return "INVALID_STATE"
	default:
		return "INTERNAL"
	}
}

// --- lifecycle ---

func (r *Room) hasPlayerLocked(playerID string) bool {
	for _, ps := range r.game.Snapshot().Players {
		if ps.ID == playerID {
			return true
		}
	}
	return false
}

func (r *Room) updateEmptySinceLocked(now time.Time) {
	if len(r.conns) == 0 {
		if r.emptySince.IsZero() {
			r.emptySince = now
		}
		return
	}
	r.emptySince = time.Time{}
}

// SubmitEvent sends an event to the actor and waits for the outcome.
func (r *Room) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return ErrRoomClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-r.done:
		return ErrRoomClosed
	}
}

// Stop shuts down the room actor.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Room) stopLocked() {
	r.closed = true
	r.clearTurnClockLocked()
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// IsIdleFor reports whether the room has had no human connections for ttl.
func (r *Room) IsIdleFor(ttl time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return true
	}
	if len(r.conns) > 0 {
		return false
	}
	if r.emptySince.IsZero() {
		return false
	}
	return time.Since(r.emptySince) >= ttl
}

// SnapshotFor returns the current state redacted for one viewer.
func (r *Room) SnapshotFor(viewerID string) *teenpatti.SessionSnapshot {
	r.mu.RLock()
	remaining := r.turnRemainingSeconds()
	r.mu.RUnlock()

	snap := r.game.Snapshot()
	snap.TurnTimeRemaining = remaining
	return snap.RedactFor(viewerID)
}

// Game exposes the engine for read paths (registry listings, tests).
func (r *Room) Game() *teenpatti.Game { return r.game }
