// Package history records swaps, captures and other identity operations
// in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Action string

const (
	ActionSwap    Action = "swap"
	ActionCapture Action = "capture"
	ActionRename  Action = "rename"
	ActionForget  Action = "forget"
	ActionOrder   Action = "order"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomePartial Outcome = "partial"
)

type Event struct {
	ID         string
	OccurredAt time.Time
	Platform   string
	Action     Action
	Identity   string
	Outcome    Outcome
	Detail     string
}

// Recorder is what the swap engine writes to.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening DB: %w", err)
	}
	if err := configureSQLiteConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: %w", err)
	}

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS swap_events (
			event_id TEXT PRIMARY KEY,
			occurred_at TEXT NOT NULL,
			platform_id TEXT NOT NULL,
			action TEXT NOT NULL,
			identity TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_swap_events_platform_time ON swap_events(platform_id, occurred_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// Record stores ev, filling in ID and OccurredAt when empty.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeOK
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO swap_events (event_id, occurred_at, platform_id, action, identity, outcome, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.OccurredAt.UTC().Format(timeLayout),
		strings.ToLower(ev.Platform),
		string(ev.Action),
		ev.Identity,
		string(ev.Outcome),
		ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("history: insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty platform
// returns events for all platforms.
func (s *Store) Recent(ctx context.Context, platform string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT event_id, occurred_at, platform_id, action, identity, outcome, detail FROM swap_events`
	args := []any{}
	if platform != "" {
		query += ` WHERE platform_id = ?`
		args = append(args, strings.ToLower(platform))
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var occurred, action, outcome string
		if err := rows.Scan(&ev.ID, &occurred, &ev.Platform, &action, &ev.Identity, &outcome, &ev.Detail); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		ev.OccurredAt, _ = time.Parse(timeLayout, occurred)
		ev.Action = Action(action)
		ev.Outcome = Outcome(outcome)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Prune deletes events older than the cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM swap_events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}
