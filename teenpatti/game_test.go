package teenpatti

import (
	"errors"
	"fmt"
	"testing"
)

func testConfig() Config {
	return Config{
		MaxPlayers:         6,
		MinPlayers:         2,
		MinBet:             10,
		MinShowRounds:      1,
		TurnTimeoutSeconds: 30,
		Seed:               1,
	}
}

func newTestGame(t *testing.T, cfg Config, ids ...string) *Game {
	t.Helper()
	g, err := NewGame("g1", cfg)
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	for _, id := range ids {
		if err := g.AddPlayer(id, "player-"+id, 1000, false); err != nil {
			t.Fatalf("AddPlayer(%s) err: %v", id, err)
		}
	}
	return g
}

// 桌上筹码守恒检查: 所有玩家(含已淘汰)筹码 + 彩池 恒定
func totalOnTable(g *Game) int64 {
	sum := g.pot
	for _, p := range g.players {
		sum += p.chips
	}
	for _, p := range g.eliminated {
		sum += p.chips
	}
	return sum
}

func mustAct(t *testing.T, g *Game, id string, act Action) *Settlement {
	t.Helper()
	settle, err := g.HandleAction(id, act)
	if err != nil {
		t.Fatalf("%s %s err: %v", id, act.Type, err)
	}
	return settle
}

func TestStart_DealsAndAntes(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b", "c")
	if err := g.Start(); err != nil {
		t.Fatalf("Start err: %v", err)
	}

	snap := g.Snapshot()
	if snap.Status != StatusPlaying {
		t.Fatalf("expected playing, got %v", snap.Status)
	}
	if snap.Pot != 30 || snap.CurrentBetBaseline != 10 {
		t.Fatalf("pot=%d baseline=%d", snap.Pot, snap.CurrentBetBaseline)
	}
	if snap.CurrentTurnPlayerID != "a" {
		t.Fatalf("round 1 opens on the first seat, got %s", snap.CurrentTurnPlayerID)
	}
	for _, p := range snap.Players {
		if len(p.Hand) != 3 {
			t.Fatalf("%s dealt %d cards", p.ID, len(p.Hand))
		}
		if p.Chips != 990 || p.CurrentBet != 10 || p.TotalBet != 10 {
			t.Fatalf("%s ante wrong: chips=%d currentBet=%d totalBet=%d", p.ID, p.Chips, p.CurrentBet, p.TotalBet)
		}
	}
	if got := totalOnTable(g); got != 3000 {
		t.Fatalf("chips not conserved: %d", got)
	}

	// 发出的 9 张牌互不相同
	seen := map[string]bool{}
	for _, p := range snap.Players {
		for _, c := range p.Hand {
			key := c.String()
			if seen[key] {
				t.Fatalf("duplicate card dealt: %s", key)
			}
			seen[key] = true
		}
	}

	if err := g.Start(); err == nil {
		t.Fatalf("second Start must fail")
	}
}

func TestCall_BlindAndSeenAmounts(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b", "c")
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}

	// a 盲注跟注: 1x 基准
	mustAct(t, g, "a", Action{Type: ActionCall})
	snap := g.Snapshot()
	if snap.Players[0].Chips != 980 || snap.Pot != 40 {
		t.Fatalf("blind call: chips=%d pot=%d", snap.Players[0].Chips, snap.Pot)
	}

	// b 看牌后跟注: 2x 基准; SEE 不消耗行动权
	mustAct(t, g, "b", Action{Type: ActionSee})
	if got := g.Snapshot().CurrentTurnPlayerID; got != "b" {
		t.Fatalf("SEE must not advance the turn, got %s", got)
	}
	mustAct(t, g, "b", Action{Type: ActionCall})
	snap = g.Snapshot()
	if snap.Players[1].Chips != 970 || snap.Pot != 60 {
		t.Fatalf("seen call: chips=%d pot=%d", snap.Players[1].Chips, snap.Pot)
	}
	if snap.CurrentTurnPlayerID != "c" {
		t.Fatalf("turn should be c, got %s", snap.CurrentTurnPlayerID)
	}
	if got := totalOnTable(g); got != 3000 {
		t.Fatalf("chips not conserved: %d", got)
	}
}

func TestRaise_MinimumAndBaselineUpdate(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b", "c")
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}

	// 盲注加注下限 = 2x 基准
	if _, err := g.HandleAction("a", Action{Type: ActionRaise, Amount: 19}); !errors.Is(err, ErrMinRaiseViolation) {
		t.Fatalf("expected ErrMinRaiseViolation, got %v", err)
	}
	// 被拒绝的动作不产生任何副作用
	snap := g.Snapshot()
	if snap.Pot != 30 || snap.Players[0].Chips != 990 || snap.CurrentTurnPlayerID != "a" {
		t.Fatalf("rejected raise mutated state: %+v", snap)
	}

	mustAct(t, g, "a", Action{Type: ActionRaise, Amount: 30})
	snap = g.Snapshot()
	if snap.CurrentBetBaseline != 30 {
		t.Fatalf("baseline after blind raise: %d", snap.CurrentBetBaseline)
	}

	// 看牌玩家加注: 下限 = 2x 基准 x2, 基准按半额推进
	mustAct(t, g, "b", Action{Type: ActionSee})
	if _, err := g.HandleAction("b", Action{Type: ActionRaise, Amount: 119}); !errors.Is(err, ErrMinRaiseViolation) {
		t.Fatalf("seen raise below 120 must fail, got %v", err)
	}
	mustAct(t, g, "b", Action{Type: ActionRaise, Amount: 120})
	snap = g.Snapshot()
	if snap.CurrentBetBaseline != 60 {
		t.Fatalf("baseline after seen raise: %d", snap.CurrentBetBaseline)
	}
	if snap.Pot != 30+30+120 {
		t.Fatalf("pot=%d", snap.Pot)
	}

	// 超出筹码的加注被拒绝
	if _, err := g.HandleAction("c", Action{Type: ActionRaise, Amount: 2000}); !errors.Is(err, ErrInsufficientChips) {
		t.Fatalf("expected ErrInsufficientChips, got %v", err)
	}
}

func TestCall_ShortStackGoesAllIn(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b")
	// c 只带了 25, 底注后剩 15
	if err := g.AddPlayer("c", "player-c", 25, false); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}

	mustAct(t, g, "a", Action{Type: ActionRaise, Amount: 40})
	mustAct(t, g, "b", Action{Type: ActionCall})
	mustAct(t, g, "c", Action{Type: ActionCall}) // 只能全下 15
	snap := g.Snapshot()
	if snap.Players[2].Chips != 0 || snap.Players[2].CurrentBet != 15 {
		t.Fatalf("short stack call: chips=%d currentBet=%d", snap.Players[2].Chips, snap.Players[2].CurrentBet)
	}

	// 全下后筹码为 0, 再跟注被拒绝
	mustAct(t, g, "a", Action{Type: ActionCall})
	mustAct(t, g, "b", Action{Type: ActionCall})
	if _, err := g.HandleAction("c", Action{Type: ActionCall}); !errors.Is(err, ErrInsufficientChips) {
		t.Fatalf("zero-chip call should fail, got %v", err)
	}
	if got := totalOnTable(g); got != 2025 {
		t.Fatalf("chips not conserved: %d", got)
	}
}

func TestFold_LastActiveWinsPot(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b", "c")
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}

	mustAct(t, g, "a", Action{Type: ActionCall})
	if settle := mustAct(t, g, "b", Action{Type: ActionFold}); settle != nil {
		t.Fatalf("two players remain, round must not end")
	}
	settle := mustAct(t, g, "c", Action{Type: ActionFold})
	if settle == nil {
		t.Fatalf("fold-to-one must finish the round")
	}
	if settle.WinnerID != "a" || settle.WinAmount != 40 {
		t.Fatalf("winner=%s amount=%d", settle.WinnerID, settle.WinAmount)
	}

	snap := g.Snapshot()
	if snap.Status != StatusFinished || snap.Pot != 0 || snap.CurrentTurnPlayerID != "" {
		t.Fatalf("finished state wrong: %+v", snap)
	}
	// a: -10 底注 -10 跟注 +40 彩池 = +20
	if snap.Players[0].Chips != 1020 {
		t.Fatalf("winner chips=%d", snap.Players[0].Chips)
	}
	if got := totalOnTable(g); got != 3000 {
		t.Fatalf("chips not conserved: %d", got)
	}

	// 结算净额之和为 0
	var net int64
	for _, r := range settle.Records {
		net += r.NetChips
	}
	if net != 0 {
		t.Fatalf("settlement nets must sum to zero, got %d", net)
	}

	// 结束后的动作一律拒绝
	if _, err := g.HandleAction("a", Action{Type: ActionCall}); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("action after finish: %v", err)
	}
}

func TestTurnRotation_SkipsFoldedPlayers(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b", "c", "d")
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}

	mustAct(t, g, "a", Action{Type: ActionCall})
	mustAct(t, g, "b", Action{Type: ActionFold})
	mustAct(t, g, "c", Action{Type: ActionCall})
	mustAct(t, g, "d", Action{Type: ActionCall})
	// 回到 a, b 已弃牌被跳过
	if got := g.Snapshot().CurrentTurnPlayerID; got != "a" {
		t.Fatalf("expected a, got %s", got)
	}
	mustAct(t, g, "a", Action{Type: ActionCall})
	if got := g.Snapshot().CurrentTurnPlayerID; got != "c" {
		t.Fatalf("expected c after a, got %s", got)
	}

	// 非当前回合玩家的动作被拒绝
	if _, err := g.HandleAction("d", Action{Type: ActionCall}); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("out of turn call: %v", err)
	}
	// 已弃牌玩家连 SEE 也不行
	if _, err := g.HandleAction("b", Action{Type: ActionSee}); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("folded SEE: %v", err)
	}
}

func TestAddPlayer_Rules(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 3
	g := newTestGame(t, cfg, "a", "b", "c")

	if err := g.AddPlayer("a", "again", 500, false); err == nil {
		t.Fatalf("duplicate id must fail")
	}
	if err := g.AddPlayer("d", "player-d", 500, false); !errors.Is(err, ErrGameFull) {
		t.Fatalf("expected ErrGameFull, got %v", err)
	}

	if err := g.Start(); err != nil {
		t.Fatal(err)
	}
	if err := g.AddPlayer("e", "player-e", 500, false); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("join during a round: %v", err)
	}
}

func TestRemovePlayer_MidRoundFoldsAndSettles(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b", "c")
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}

	// 当前回合玩家离开: 视作弃牌, 回合移交
	settle, err := g.RemovePlayer("a")
	if err != nil {
		t.Fatal(err)
	}
	if settle != nil {
		t.Fatalf("two players remain")
	}
	snap := g.Snapshot()
	if len(snap.Players) != 2 || snap.CurrentTurnPlayerID != "b" {
		t.Fatalf("players=%d turn=%s", len(snap.Players), snap.CurrentTurnPlayerID)
	}
	// 离席者不再占座
	if g.eliminated[0].Seat != InvalidSeat {
		t.Fatalf("leaver still holds seat %d", g.eliminated[0].Seat)
	}

	// 剩两人时再走一个, 回合立即结束, 离开者保留在结算里
	settle, err = g.RemovePlayer("b")
	if err != nil {
		t.Fatal(err)
	}
	if settle == nil || settle.WinnerID != "c" {
		t.Fatalf("expected c to win by default, got %+v", settle)
	}
	if len(settle.Records) != 3 {
		t.Fatalf("leavers must appear in the settlement, got %d records", len(settle.Records))
	}
	if _, err := g.RemovePlayer("zz"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestRematch_ResetsRoundState(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b")
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}
	if err := g.ResetForRematch(); err == nil {
		t.Fatalf("rematch mid-round must fail")
	}

	mustAct(t, g, "a", Action{Type: ActionFold})
	if err := g.ResetForRematch(); err != nil {
		t.Fatal(err)
	}

	snap := g.Snapshot()
	if snap.Status != StatusWaiting || snap.RoundNumber != 2 {
		t.Fatalf("status=%v round=%d", snap.Status, snap.RoundNumber)
	}
	if snap.Pot != 0 || snap.LastAction != nil || len(snap.SideShowResults) != 0 {
		t.Fatalf("transient state not cleared: %+v", snap)
	}
	// 默认不回复筹码: b 带着上局赢来的继续
	if snap.Players[1].Chips != 1010 {
		t.Fatalf("chips must carry over, got %d", snap.Players[1].Chips)
	}

	if err := g.Start(); err != nil {
		t.Fatal(err)
	}
	// 第二局由下一个座位开局
	if got := g.Snapshot().CurrentTurnPlayerID; got != "b" {
		t.Fatalf("round 2 opener should rotate to b, got %s", got)
	}
}

func TestRematch_RestoreChips(t *testing.T) {
	cfg := testConfig()
	cfg.RestoreChips = true
	g := newTestGame(t, cfg, "a", "b")
	if err := g.Start(); err != nil {
		t.Fatal(err)
	}
	mustAct(t, g, "a", Action{Type: ActionFold})
	if err := g.ResetForRematch(); err != nil {
		t.Fatal(err)
	}
	for _, p := range g.Snapshot().Players {
		if p.Chips != 1000 {
			t.Fatalf("%s chips=%d, want restored 1000", p.ID, p.Chips)
		}
	}
}

func TestSeatCap_BoundedByDeck(t *testing.T) {
	// 52 张牌每人 3 张, 最多 17 座
	cfg := testConfig()
	cfg.MaxPlayers = 18
	if _, err := NewGame("g1", cfg); err == nil {
		t.Fatalf("18 seats cannot be dealt from one deck")
	}

	g := newTestGame(t, testConfig(), "a", "b")
	if _, err := g.Resize(18); err == nil {
		t.Fatalf("resize beyond deck capacity must fail")
	}

	// 满座 17 人仍可完整发牌
	cfg = testConfig()
	cfg.MaxPlayers = 17
	g, err := NewGame("g1", cfg)
	if err != nil {
		t.Fatalf("NewGame err: %v", err)
	}
	for i := 0; i < 17; i++ {
		id := fmt.Sprintf("p%02d", i)
		if err := g.AddPlayer(id, "player-"+id, 1000, false); err != nil {
			t.Fatalf("AddPlayer(%s) err: %v", id, err)
		}
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	for _, p := range g.Snapshot().Players {
		if len(p.Hand) != 3 {
			t.Fatalf("%s dealt %d cards", p.ID, len(p.Hand))
		}
	}
}

func TestResize_HumansKeepSeatsBotsYield(t *testing.T) {
	g := newTestGame(t, testConfig(), "a", "b")
	if err := g.AddPlayer("bot1", "Bot One", 1000, true); err != nil {
		t.Fatal(err)
	}
	if err := g.AddPlayer("bot2", "Bot Two", 1000, true); err != nil {
		t.Fatal(err)
	}

	removed, err := g.Resize(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != "bot2" {
		t.Fatalf("removed=%v", removed)
	}
	snap := g.Snapshot()
	if len(snap.Seats) != 3 {
		t.Fatalf("seats len=%d", len(snap.Seats))
	}
	want := []string{"a", "b", "bot1"}
	for i, id := range want {
		if snap.Seats[i] != id {
			t.Fatalf("seat %d = %s, want %s", i, snap.Seats[i], id)
		}
	}

	if _, err := g.Resize(1); err == nil {
		t.Fatalf("capacity below human count must fail")
	}
}
