package room

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"teenpatti-lite/teenpatti"
)

// sink captures everything the room fans out, keyed by receiving player.
type sink struct {
	mu       sync.Mutex
	byPlayer map[string][]ServerEnvelope
}

func newSink() *sink {
	return &sink{byPlayer: make(map[string][]ServerEnvelope)}
}

func (s *sink) deliver(playerID string, data []byte) {
	var env ServerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		panic(err)
	}
	s.mu.Lock()
	s.byPlayer[playerID] = append(s.byPlayer[playerID], env)
	s.mu.Unlock()
}

func (s *sink) last(playerID string) *ServerEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	envs := s.byPlayer[playerID]
	if len(envs) == 0 {
		return nil
	}
	return &envs[len(envs)-1]
}

func (s *sink) lastOfType(playerID, eventType string) *ServerEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	envs := s.byPlayer[playerID]
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == eventType {
			return &envs[i]
		}
	}
	return nil
}

func roomTestConfig() teenpatti.Config {
	return teenpatti.Config{
		MaxPlayers:    4,
		MinPlayers:    2,
		MinBet:        10,
		MinShowRounds: 1,
		// 0 disables the turn clock so the test drives every move itself.
		TurnTimeoutSeconds: 0,
		Seed:               1,
	}
}

func newTestRoom(t *testing.T, s *sink, ids ...string) *Room {
	t.Helper()
	r, err := New("room1", roomTestConfig(), Deps{Broadcast: s.deliver})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	t.Cleanup(r.Stop)
	for _, id := range ids {
		if err := r.SubmitEvent(Event{Type: EventJoin, PlayerID: id, Name: "n-" + id, Chips: 1000}); err != nil {
			t.Fatalf("join %s err: %v", id, err)
		}
	}
	return r
}

func TestRoomBroadcastsRedactedState(t *testing.T) {
	s := newSink()
	r := newTestRoom(t, s, "a", "b")

	if err := r.SubmitEvent(Event{Type: EventStartRound}); err != nil {
		t.Fatalf("start err: %v", err)
	}

	envA := s.lastOfType("a", EventTypeGameState)
	envB := s.lastOfType("b", EventTypeGameState)
	if envA == nil || envB == nil {
		t.Fatalf("expected gameState for both players")
	}
	if envA.State.Status != teenpatti.StatusPlaying {
		t.Fatalf("status: %s", envA.State.Status)
	}

	// 每个玩家只能看到自己的手牌
	for _, p := range envA.State.Players {
		switch p.ID {
		case "a":
			if len(p.Hand) != 3 {
				t.Fatalf("a should see own hand, got %d cards", len(p.Hand))
			}
		default:
			if len(p.Hand) != 0 {
				t.Fatalf("a should not see %s's hand", p.ID)
			}
		}
	}
	for _, p := range envB.State.Players {
		if p.ID != "b" && len(p.Hand) != 0 {
			t.Fatalf("b should not see %s's hand", p.ID)
		}
	}
}

func TestRoomRejectsOutOfTurnAction(t *testing.T) {
	s := newSink()
	r := newTestRoom(t, s, "a", "b")
	if err := r.SubmitEvent(Event{Type: EventStartRound}); err != nil {
		t.Fatalf("start err: %v", err)
	}

	turn := s.lastOfType("a", EventTypeGameState).State.CurrentTurnPlayerID
	other := "a"
	if turn == "a" {
		other = "b"
	}

	err := r.SubmitEvent(Event{
		Type: EventAction, PlayerID: other,
		Action: teenpatti.Action{Type: teenpatti.ActionCall},
	})
	if err == nil {
		t.Fatalf("expected out-of-turn call to fail")
	}

	errEnv := s.lastOfType(other, EventTypeError)
	if errEnv == nil || errEnv.Error.Code != "INVALID_MOVE" {
		t.Fatalf("expected INVALID_MOVE error envelope, got %+v", errEnv)
	}
	// 错误只发给出错的人
	if s.lastOfType(turn, EventTypeError) != nil {
		t.Fatalf("error leaked to the wrong player")
	}
}

func TestRoomFoldEndsRoundWithSettlement(t *testing.T) {
	s := newSink()
	r := newTestRoom(t, s, "a", "b")
	if err := r.SubmitEvent(Event{Type: EventStartRound}); err != nil {
		t.Fatalf("start err: %v", err)
	}

	turn := s.lastOfType("a", EventTypeGameState).State.CurrentTurnPlayerID
	winner := "a"
	if turn == "a" {
		winner = "b"
	}

	if err := r.SubmitEvent(Event{
		Type: EventAction, PlayerID: turn,
		Action: teenpatti.Action{Type: teenpatti.ActionFold},
	}); err != nil {
		t.Fatalf("fold err: %v", err)
	}

	ended := s.lastOfType("a", EventTypeGameEnded)
	if ended == nil || ended.Settlement == nil {
		t.Fatalf("expected gameEnded with settlement")
	}
	if ended.Settlement.WinnerID != winner {
		t.Fatalf("winner=%s want %s", ended.Settlement.WinnerID, winner)
	}
	if ended.State.Status != teenpatti.StatusFinished {
		t.Fatalf("status: %s", ended.State.Status)
	}

	// 对局结束后可以重开
	if err := r.SubmitEvent(Event{Type: EventRematch}); err != nil {
		t.Fatalf("rematch err: %v", err)
	}
	state := s.lastOfType("b", EventTypeGameState)
	if state.State.Status != teenpatti.StatusWaiting || state.State.RoundNumber != 2 {
		t.Fatalf("after rematch: status=%s round=%d", state.State.Status, state.State.RoundNumber)
	}
}

// newTimedRoom arms a real turn clock; the tests expire it by hand instead of
// sleeping through it.
func newTimedRoom(t *testing.T, s *sink, ids ...string) *Room {
	t.Helper()
	cfg := roomTestConfig()
	cfg.TurnTimeoutSeconds = 30
	r, err := New("room1", cfg, Deps{Broadcast: s.deliver})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	t.Cleanup(r.Stop)
	for _, id := range ids {
		if err := r.SubmitEvent(Event{Type: EventJoin, PlayerID: id, Name: "n-" + id, Chips: 1000}); err != nil {
			t.Fatalf("join %s err: %v", id, err)
		}
	}
	return r
}

func (r *Room) forceExpireTurnClock(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	if r.turnDeadline.IsZero() {
		r.mu.Unlock()
		t.Fatalf("turn clock not armed")
	}
	r.turnDeadline = time.Now().Add(-time.Second)
	r.mu.Unlock()
	r.tick()
}

func (r *Room) turnClock() (string, time.Time, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.turnPlayerID, r.turnDeadline, r.turnEpoch
}

func TestRoomSeeDoesNotRearmTurnClock(t *testing.T) {
	s := newSink()
	r := newTimedRoom(t, s, "a", "b")
	if err := r.SubmitEvent(Event{Type: EventStartRound}); err != nil {
		t.Fatalf("start err: %v", err)
	}

	holder, deadline, epoch := r.turnClock()
	other := "a"
	if holder == "a" {
		other = "b"
	}

	// SEE 不占回合, 任何人看牌都不能给持回合者续时
	for _, id := range []string{other, holder} {
		if err := r.SubmitEvent(Event{
			Type: EventAction, PlayerID: id,
			Action: teenpatti.Action{Type: teenpatti.ActionSee},
		}); err != nil {
			t.Fatalf("SEE by %s err: %v", id, err)
		}
	}

	gotHolder, gotDeadline, gotEpoch := r.turnClock()
	if gotHolder != holder || gotEpoch != epoch {
		t.Fatalf("clock actor moved: holder=%s epoch=%d (was %s/%d)", gotHolder, gotEpoch, holder, epoch)
	}
	if !gotDeadline.Equal(deadline) {
		t.Fatalf("SEE extended the deadline by %s", gotDeadline.Sub(deadline))
	}
}

func TestRoomTurnTimeoutAutoFolds(t *testing.T) {
	s := newSink()
	r := newTimedRoom(t, s, "a", "b")
	if err := r.SubmitEvent(Event{Type: EventStartRound}); err != nil {
		t.Fatalf("start err: %v", err)
	}

	holder, _, _ := r.turnClock()
	winner := "a"
	if holder == "a" {
		winner = "b"
	}

	r.forceExpireTurnClock(t)

	timeout := s.lastOfType(winner, EventTypeTurnTimeout)
	if timeout == nil || timeout.PlayerID != holder {
		t.Fatalf("expected turnTimeout for %s, got %+v", holder, timeout)
	}
	// 超时自动弃牌, 两人局直接结束
	ended := s.lastOfType(winner, EventTypeGameEnded)
	if ended == nil || ended.Settlement == nil || ended.Settlement.WinnerID != winner {
		t.Fatalf("expected %s to win by timeout fold, got %+v", winner, ended)
	}
}

func TestRoomStaleEpochActionDropped(t *testing.T) {
	s := newSink()
	r := newTimedRoom(t, s, "a", "b")
	if err := r.SubmitEvent(Event{Type: EventStartRound}); err != nil {
		t.Fatalf("start err: %v", err)
	}
	holder, _, epoch := r.turnClock()

	// 过期纪元的注入是无声的空操作
	if err := r.SubmitEvent(Event{
		Type: EventAction, PlayerID: holder,
		Action: teenpatti.Action{Type: teenpatti.ActionFold},
		Epoch:  epoch + 7,
	}); err != nil {
		t.Fatalf("stale submission err: %v", err)
	}

	snap := r.SnapshotFor(holder)
	if snap.Status != teenpatti.StatusPlaying {
		t.Fatalf("stale fold finished the round: %s", snap.Status)
	}
	for _, p := range snap.Players {
		if p.HasFolded {
			t.Fatalf("stale fold mutated player %s", p.ID)
		}
	}
}

func TestRoomStalledSideShowTargetAutoDeclines(t *testing.T) {
	s := newSink()
	r := newTimedRoom(t, s, "a", "b", "c")
	if err := r.SubmitEvent(Event{Type: EventStartRound}); err != nil {
		t.Fatalf("start err: %v", err)
	}

	act := func(id string, a teenpatti.Action) {
		t.Helper()
		if err := r.SubmitEvent(Event{Type: EventAction, PlayerID: id, Action: a}); err != nil {
			t.Fatalf("%s %s err: %v", id, a.Type, err)
		}
	}
	act("a", teenpatti.Action{Type: teenpatti.ActionCall})
	act("b", teenpatti.Action{Type: teenpatti.ActionSee})
	act("b", teenpatti.Action{Type: teenpatti.ActionCall})
	act("c", teenpatti.Action{Type: teenpatti.ActionSee})
	act("c", teenpatti.Action{Type: teenpatti.ActionSideShow, TargetID: "b"})

	// 挑战期间由被挑战者计时
	actor, _, _ := r.turnClock()
	if actor != "b" {
		t.Fatalf("clock must follow the challenge target, got %s", actor)
	}

	r.forceExpireTurnClock(t)

	// 超时的被挑战者自动拒绝, 挑战者退注
	result := s.lastOfType("c", EventTypeSideShowResult)
	if result == nil || result.SideShowResult == nil || result.SideShowResult.Accepted {
		t.Fatalf("expected declined side show, got %+v", result)
	}
	if result.SideShowResult.Refund == 0 {
		t.Fatalf("decline must refund the challenger")
	}
	snap := r.SnapshotFor("a")
	if snap.Status != teenpatti.StatusPlaying || snap.SideShowChallenge != nil {
		t.Fatalf("challenge not cleared: status=%s challenge=%+v", snap.Status, snap.SideShowChallenge)
	}
}

func TestRoomClosedRejectsEvents(t *testing.T) {
	s := newSink()
	r := newTestRoom(t, s, "a", "b")
	r.Stop()

	err := r.SubmitEvent(Event{Type: EventStartRound})
	if err != ErrRoomClosed {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}
