package teenpatti

import "testing"

func TestComputeTransfers_MatchesNets(t *testing.T) {
	nets := map[string]int64{
		"a": 120,
		"b": -50,
		"c": -70,
		"d": 0,
	}
	transfers := ComputeTransfers(nets)

	delta := map[string]int64{}
	for _, tr := range transfers {
		if tr.Amount <= 0 {
			t.Fatalf("non-positive transfer: %+v", tr)
		}
		delta[tr.ToPlayerID] += tr.Amount
		delta[tr.FromPlayerID] -= tr.Amount
	}
	for id, net := range nets {
		if delta[id] != net {
			t.Fatalf("%s: delta %d != net %d", id, delta[id], net)
		}
	}
	// 净额为 0 的玩家不出现在任何转账里
	for _, tr := range transfers {
		if tr.FromPlayerID == "d" || tr.ToPlayerID == "d" {
			t.Fatalf("zero-net player in transfer: %+v", tr)
		}
	}
}

// 贪心配对: 最大债权人先对最大债务人
func TestComputeTransfers_LargestFirst(t *testing.T) {
	transfers := ComputeTransfers(map[string]int64{
		"big":   100,
		"small": 20,
		"x":     -90,
		"y":     -30,
	})
	if len(transfers) != 3 {
		t.Fatalf("want 3 transfers, got %d: %+v", len(transfers), transfers)
	}
	first := transfers[0]
	if first.ToPlayerID != "big" || first.FromPlayerID != "x" || first.Amount != 90 {
		t.Fatalf("first transfer: %+v", first)
	}
}

func TestComputeTransfers_Deterministic(t *testing.T) {
	nets := map[string]int64{"a": 50, "b": 50, "c": -50, "d": -50}
	base := ComputeTransfers(nets)
	for i := 0; i < 10; i++ {
		again := ComputeTransfers(nets)
		if len(again) != len(base) {
			t.Fatalf("run %d: length changed", i)
		}
		for j := range base {
			if base[j] != again[j] {
				t.Fatalf("run %d: transfer %d differs: %+v vs %+v", i, j, base[j], again[j])
			}
		}
	}
	// 同额并列按玩家 id 升序
	if base[0].ToPlayerID != "a" || base[0].FromPlayerID != "c" {
		t.Fatalf("tie-break order: %+v", base[0])
	}
}

func TestComputeTransfers_Empty(t *testing.T) {
	if got := ComputeTransfers(map[string]int64{"a": 0, "b": 0}); len(got) != 0 {
		t.Fatalf("expected no transfers, got %+v", got)
	}
	if got := ComputeTransfers(nil); len(got) != 0 {
		t.Fatalf("expected no transfers, got %+v", got)
	}
}
