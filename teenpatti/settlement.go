package teenpatti

// SettlementRecord is one durable row per player per finished round.
type SettlementRecord struct {
	GameID     string `json:"gameId"`
	Round      int    `json:"roundNumber"`
	PlayerID   string `json:"playerId"`
	FinalChips int64  `json:"finalChips"`
	NetChips   int64  `json:"netChips"`
	MovesCount int    `json:"movesCount"`
}

// Transfer is one payment in the resolved payout graph.
type Transfer struct {
	FromPlayerID string `json:"fromPlayerId"`
	ToPlayerID   string `json:"toPlayerId"`
	Amount       int64  `json:"amount"`
}

// Settlement is the end-of-round result handed to the caller of the action
// that finished the game.
type Settlement struct {
	GameID    string             `json:"gameId"`
	Round     int                `json:"roundNumber"`
	WinnerID  string             `json:"winnerId"`
	WinAmount int64              `json:"winAmount"`
	Records   []SettlementRecord `json:"records"`
	Transfers []Transfer         `json:"transfers"`
}

// ComputeTransfers reconciles per-player net chip deltas into an ordered
// transfer list by repeatedly matching the largest current creditor against
// the largest current debtor. Players with net 0 appear in no transfer.
// Ties break on the smaller player id so the output is deterministic.
func ComputeTransfers(nets map[string]int64) []Transfer {
	credits := make(map[string]int64)
	debts := make(map[string]int64)
	for id, net := range nets {
		if net > 0 {
			credits[id] = net
		} else if net < 0 {
			debts[id] = -net
		}
	}

	transfers := make([]Transfer, 0, len(nets))
	for len(credits) > 0 && len(debts) > 0 {
		creditorID, creditAmt := largestEntry(credits)
		debtorID, debtAmt := largestEntry(debts)

		amount := creditAmt
		if debtAmt < amount {
			amount = debtAmt
		}
		transfers = append(transfers, Transfer{
			FromPlayerID: debtorID,
			ToPlayerID:   creditorID,
			Amount:       amount,
		})

		if creditAmt -= amount; creditAmt == 0 {
			delete(credits, creditorID)
		} else {
			credits[creditorID] = creditAmt
		}
		if debtAmt -= amount; debtAmt == 0 {
			delete(debts, debtorID)
		} else {
			debts[debtorID] = debtAmt
		}
	}
	return transfers
}

func largestEntry(m map[string]int64) (string, int64) {
	var bestID string
	var bestAmt int64
	for id, amt := range m {
		if amt > bestAmt || (amt == bestAmt && (bestID == "" || id < bestID)) {
			bestID, bestAmt = id, amt
		}
	}
	return bestID, bestAmt
}
