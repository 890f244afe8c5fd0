package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"teenpatti-lite/card"
	"teenpatti-lite/teenpatti"

	_ "modernc.org/sqlite"
)

const defaultLocalDBName = "teenpatti_local.db"

type SQLiteService struct {
	db *sql.DB
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	dbPath, err := localDatabasePathFromEnv()
	if err != nil {
		return nil, err
	}
	return NewSQLiteService(dbPath)
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteStoreSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteService{db: db}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) AppendAction(gameID string, round int, item ActionItem) {
	if strings.TrimSpace(gameID) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO game_action_log (game_id, round, seq, player_id, action, amount, ts_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, round, seq) DO NOTHING
`, gameID, round, item.Seq, item.PlayerID, item.Action, item.Amount, item.TsMs)
	if err != nil {
		log.Printf("[Store] append action failed: game=%s round=%d seq=%d err=%v", gameID, round, item.Seq, err)
	}
}

func (s *SQLiteService) RecordSettlement(ctx context.Context, settle *teenpatti.Settlement) error {
	if settle == nil || strings.TrimSpace(settle.GameID) == "" {
		return fmt.Errorf("settlement is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	recordsRaw, err := json.Marshal(settle.Records)
	if err != nil {
		return err
	}
	transfersRaw, err := json.Marshal(settle.Transfers)
	if err != nil {
		return err
	}

	nowMs := time.Now().UTC().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO game_round_history (
    game_id, round, winner_id, win_amount, records_json, transfers_json, played_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, round) DO UPDATE
SET
    winner_id = excluded.winner_id,
    win_amount = excluded.win_amount,
    records_json = excluded.records_json,
    transfers_json = excluded.transfers_json,
    played_at_ms = excluded.played_at_ms
`, settle.GameID, settle.Round, settle.WinnerID, settle.WinAmount,
		string(recordsRaw), string(transfersRaw), nowMs)
	return err
}

func (s *SQLiteService) ListRecentRounds(ctx context.Context, gameID string, limit int) ([]RoundSummary, error) {
	if strings.TrimSpace(gameID) == "" {
		return []RoundSummary{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT game_id, round, winner_id, win_amount, records_json, transfers_json, played_at_ms
FROM game_round_history
WHERE game_id = ?
ORDER BY round DESC
LIMIT ?
`, gameID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]RoundSummary, 0, limit)
	for rows.Next() {
		var item RoundSummary
		var recordsRaw, transfersRaw []byte
		var playedAtMs int64
		if err := rows.Scan(&item.GameID, &item.Round, &item.WinnerID, &item.WinAmount,
			&recordsRaw, &transfersRaw, &playedAtMs); err != nil {
			return nil, err
		}
		item.PlayedAt = time.UnixMilli(playedAtMs).UTC()
		_ = json.Unmarshal(recordsRaw, &item.Records)
		_ = json.Unmarshal(transfersRaw, &item.Transfers)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteService) GetRoundActions(ctx context.Context, gameID string, round int) ([]ActionItem, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, ErrNotFound
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, player_id, action, amount, ts_ms
FROM game_action_log
WHERE game_id = ?
  AND round = ?
ORDER BY seq ASC
`, gameID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]ActionItem, 0, 64)
	for rows.Next() {
		var item ActionItem
		if err := rows.Scan(&item.Seq, &item.PlayerID, &item.Action, &item.Amount, &item.TsMs); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteService) SaveSession(gameID string, snap *teenpatti.SessionSnapshot) {
	if strings.TrimSpace(gameID) == "" || snap == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[Store] marshal session failed: game=%s err=%v", gameID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO game_sessions (game_id, status, round, snapshot_json, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (game_id) DO UPDATE
SET
    status = excluded.status,
    round = excluded.round,
    snapshot_json = excluded.snapshot_json,
    updated_at_ms = excluded.updated_at_ms
`, gameID, string(snap.Status), snap.RoundNumber, string(raw), time.Now().UnixMilli())
	if err != nil {
		log.Printf("[Store] save session failed: game=%s err=%v", gameID, err)
	}
}

func (s *SQLiteService) LoadSession(ctx context.Context, gameID string) (*teenpatti.SessionSnapshot, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, ErrNotFound
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx, `
SELECT snapshot_json
FROM game_sessions
WHERE game_id = ?
`, gameID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var snap teenpatti.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *SQLiteService) PersistHand(gameID string, round int, playerID string, hand []card.Card) {
	if strings.TrimSpace(gameID) == "" || playerID == "" || len(hand) == 0 {
		return
	}
	raw, err := json.Marshal(hand)
	if err != nil {
		log.Printf("[Store] marshal hand failed: game=%s player=%s err=%v", gameID, playerID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO game_hands (game_id, round, player_id, cards_json)
VALUES (?, ?, ?, ?)
ON CONFLICT (game_id, round, player_id) DO UPDATE
SET cards_json = excluded.cards_json
`, gameID, round, playerID, string(raw))
	if err != nil {
		log.Printf("[Store] persist hand failed: game=%s round=%d player=%s err=%v", gameID, round, playerID, err)
	}
}

func (s *SQLiteService) GetRoundHands(ctx context.Context, gameID string, round int) (map[string][]card.Card, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, ErrNotFound
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT player_id, cards_json
FROM game_hands
WHERE game_id = ?
  AND round = ?
`, gameID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hands := make(map[string][]card.Card)
	for rows.Next() {
		var playerID string
		var raw []byte
		if err := rows.Scan(&playerID, &raw); err != nil {
			return nil, err
		}
		var hand []card.Card
		if err := json.Unmarshal(raw, &hand); err != nil {
			return nil, err
		}
		hands[playerID] = hand
	}
	return hands, rows.Err()
}

func ensureSQLiteStoreSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS game_round_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    winner_id TEXT NOT NULL,
    win_amount INTEGER NOT NULL,
    records_json TEXT NOT NULL DEFAULT '[]',
    transfers_json TEXT NOT NULL DEFAULT '[]',
    played_at_ms INTEGER NOT NULL,
    UNIQUE (game_id, round)
)`,
		`CREATE INDEX IF NOT EXISTS idx_game_round_history_recent ON game_round_history(game_id, round DESC)`,
		`
CREATE TABLE IF NOT EXISTS game_action_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    player_id TEXT NOT NULL,
    action TEXT NOT NULL,
    amount INTEGER NOT NULL DEFAULT 0,
    ts_ms INTEGER NOT NULL,
    UNIQUE (game_id, round, seq)
)`,
		`CREATE INDEX IF NOT EXISTS idx_game_action_log_round ON game_action_log(game_id, round, seq)`,
		`
CREATE TABLE IF NOT EXISTS game_sessions (
    game_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    round INTEGER NOT NULL,
    snapshot_json TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS game_hands (
    game_id TEXT NOT NULL,
    round INTEGER NOT NULL,
    player_id TEXT NOT NULL,
    cards_json TEXT NOT NULL,
    PRIMARY KEY (game_id, round, player_id)
)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func localDatabasePathFromEnv() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("STORE_LOCAL_DATABASE_PATH")),
		strings.TrimSpace(os.Getenv("LOCAL_DATABASE_PATH")),
	}
	for _, candidate := range candidates {
		if candidate != "" {
			return filepath.Clean(candidate), nil
		}
	}

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "TeenPattiLite", defaultLocalDBName), nil
}
