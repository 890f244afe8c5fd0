package store

import (
	"context"
	"testing"

	"teenpatti-lite/card"
	"teenpatti-lite/teenpatti"
)

func TestSQLite_SettlementRoundTrip(t *testing.T) {
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService err: %v", err)
	}
	defer s.Close()

	settle := &teenpatti.Settlement{
		GameID:    "g1",
		Round:     3,
		WinnerID:  "a",
		WinAmount: 120,
		Records: []teenpatti.SettlementRecord{
			{GameID: "g1", Round: 3, PlayerID: "a", FinalChips: 1080, NetChips: 80, MovesCount: 2},
			{GameID: "g1", Round: 3, PlayerID: "b", FinalChips: 960, NetChips: -40, MovesCount: 1},
			{GameID: "g1", Round: 3, PlayerID: "c", FinalChips: 960, NetChips: -40, MovesCount: 1},
		},
		Transfers: []teenpatti.Transfer{
			{FromPlayerID: "b", ToPlayerID: "a", Amount: 40},
			{FromPlayerID: "c", ToPlayerID: "a", Amount: 40},
		},
	}
	ctx := context.Background()
	if err := s.RecordSettlement(ctx, settle); err != nil {
		t.Fatalf("RecordSettlement err: %v", err)
	}
	// 幂等: 重放同一局覆盖而不是报错
	if err := s.RecordSettlement(ctx, settle); err != nil {
		t.Fatalf("replayed RecordSettlement err: %v", err)
	}

	rounds, err := s.ListRecentRounds(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("ListRecentRounds err: %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("rounds=%d", len(rounds))
	}
	got := rounds[0]
	if got.WinnerID != "a" || got.WinAmount != 120 || got.Round != 3 {
		t.Fatalf("round: %+v", got)
	}
	if len(got.Records) != 3 || len(got.Transfers) != 2 {
		t.Fatalf("records=%d transfers=%d", len(got.Records), len(got.Transfers))
	}
	if got.Records[0].NetChips != 80 {
		t.Fatalf("record: %+v", got.Records[0])
	}

	if rounds, _ := s.ListRecentRounds(ctx, "missing", 10); len(rounds) != 0 {
		t.Fatalf("unexpected rows for unknown game")
	}
}

func TestSQLite_SessionRoundTrip(t *testing.T) {
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService err: %v", err)
	}
	defer s.Close()

	snap := &teenpatti.SessionSnapshot{
		ID:          "g1",
		Status:      teenpatti.StatusWaiting,
		RoundNumber: 4,
		MinBet:      10,
		Players: []teenpatti.PlayerSnapshot{
			{ID: "a", Name: "Asha", Chips: 1200, SeatPosition: 0, IsActive: true},
			{ID: "bot_1", Name: "Raju", Chips: 800, SeatPosition: 1, IsActive: true, IsBot: true},
		},
		Seats: []string{"a", "bot_1", "", ""},
	}
	s.SaveSession("g1", snap)
	// 覆盖写入
	snap.RoundNumber = 5
	s.SaveSession("g1", snap)

	got, err := s.LoadSession(context.Background(), "g1")
	if err != nil {
		t.Fatalf("LoadSession err: %v", err)
	}
	if got.RoundNumber != 5 || got.Status != teenpatti.StatusWaiting {
		t.Fatalf("session: round=%d status=%s", got.RoundNumber, got.Status)
	}
	if len(got.Players) != 2 || !got.Players[1].IsBot || got.Players[1].Chips != 800 {
		t.Fatalf("players: %+v", got.Players)
	}

	if _, err := s.LoadSession(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_HandArchive(t *testing.T) {
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService err: %v", err)
	}
	defer s.Close()

	s.PersistHand("g1", 2, "a", []card.Card{card.CardHeartA, card.CardSpadeA, card.CardClubA})
	s.PersistHand("g1", 2, "b", []card.Card{card.CardHeart2, card.CardHeart3, card.CardHeart5})
	// 重放覆盖同一手
	s.PersistHand("g1", 2, "b", []card.Card{card.CardHeart2, card.CardHeart3, card.CardHeart5})

	got, err := s.GetRoundHands(context.Background(), "g1", 2)
	if err != nil {
		t.Fatalf("GetRoundHands err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("hands=%d", len(got))
	}
	if len(got["a"]) != 3 || !card.CardList(got["a"]).Contains(card.CardSpadeA) {
		t.Fatalf("hand a: %v", got["a"])
	}
	if len(got["b"]) != 3 {
		t.Fatalf("hand b: %v", got["b"])
	}

	if got, err := s.GetRoundHands(context.Background(), "g1", 9); err != nil || len(got) != 0 {
		t.Fatalf("unexpected hands for unknown round: %v %v", got, err)
	}
}

func TestSQLite_ActionLog(t *testing.T) {
	s, err := NewSQLiteService(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteService err: %v", err)
	}
	defer s.Close()

	s.AppendAction("g1", 1, ActionItem{Seq: 1, PlayerID: "a", Action: "CALL", Amount: 10, TsMs: 1000})
	s.AppendAction("g1", 1, ActionItem{Seq: 2, PlayerID: "b", Action: "RAISE", Amount: 40, TsMs: 2000})
	// 同序号重复写入被吞掉
	s.AppendAction("g1", 1, ActionItem{Seq: 2, PlayerID: "b", Action: "RAISE", Amount: 99, TsMs: 9000})

	items, err := s.GetRoundActions(context.Background(), "g1", 1)
	if err != nil {
		t.Fatalf("GetRoundActions err: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items=%d", len(items))
	}
	if items[1].Action != "RAISE" || items[1].Amount != 40 {
		t.Fatalf("item: %+v", items[1])
	}
}
