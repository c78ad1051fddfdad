// Package journal keeps an operational history of generation attempts.
// Entries carry outcomes, sizes and timings, never page bodies.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/aicanvas/internal/db"
	"github.com/alexanderramin/aicanvas/internal/generator"
)

// DefaultRetain is the number of entries kept when no limit is configured.
const DefaultRetain = 1000

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one recorded generation.
type Entry struct {
	ID             string    `json:"id"`
	Outcome        string    `json:"outcome"`
	Model          string    `json:"model,omitempty"`
	LatencyMs      int64     `json:"latencyMs"`
	PromptChars    int       `json:"promptChars"`
	ComponentCount int       `json:"componentCount"`
	ErrorCount     int       `json:"errorCount"`
	WarningCount   int       `json:"warningCount"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromEvent converts a generator event.
func FromEvent(e generator.Event) Entry {
	return Entry{
		ID:             e.ID,
		Outcome:        e.Outcome,
		Model:          e.Model,
		LatencyMs:      e.LatencyMs,
		PromptChars:    e.PromptChars,
		ComponentCount: e.ComponentCount,
		ErrorCount:     e.ErrorCount,
		WarningCount:   e.WarningCount,
		Error:          e.Error,
		CreatedAt:      e.CreatedAt,
	}
}

// Store persists entries in SQLite.
type Store struct {
	db     *sql.DB
	uow    db.UnitOfWork
	retain int
}

// Open opens (and migrates) the journal database at path.
func Open(path string, retain int) (*Store, error) {
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	return NewStore(database, retain), nil
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithUnitOfWork replaces the transaction runner used for writes.
func WithUnitOfWork(uow db.UnitOfWork) StoreOption {
	return func(s *Store) { s.uow = uow }
}

// NewStore wraps an open, migrated database. retain <= 0 uses DefaultRetain.
func NewStore(database *sql.DB, retain int, opts ...StoreOption) *Store {
	if retain <= 0 {
		retain = DefaultRetain
	}
	s := &Store{db: database, uow: db.NewSQLiteUnitOfWork(database), retain: retain}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts e and trims the journal to the retained size in one
// transaction.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		query := `INSERT INTO generations (id, outcome, model, latency_ms, prompt_chars, component_count,
			error_count, warning_count, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, query,
			e.ID,
			e.Outcome,
			e.Model,
			e.LatencyMs,
			e.PromptChars,
			e.ComponentCount,
			e.ErrorCount,
			e.WarningCount,
			e.Error,
			e.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("inserting journal entry: %w", err)
		}

		prune := `DELETE FROM generations WHERE id NOT IN (
			SELECT id FROM generations ORDER BY created_at DESC, rowid DESC LIMIT ?)`
		if _, err := tx.ExecContext(ctx, prune, s.retain); err != nil {
			return fmt.Errorf("pruning journal: %w", err)
		}
		return nil
	})
}

const selectEntry = `SELECT id, outcome, model, latency_ms, prompt_chars, component_count,
	error_count, warning_count, error, created_at FROM generations`

// Get returns one entry by id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectEntry+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}
	return entries, nil
}

// Stats summarizes the journal by outcome.
type Stats struct {
	Total        int            `json:"total"`
	ByOutcome    map[string]int `json:"byOutcome"`
	AvgLatencyMs float64        `json:"avgLatencyMs"`
}

// Stats aggregates all retained entries.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*), AVG(latency_ms) FROM generations GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("aggregating journal: %w", err)
	}
	defer rows.Close()

	st := &Stats{ByOutcome: map[string]int{}}
	var latencySum float64
	for rows.Next() {
		var outcome string
		var n int
		var avg float64
		if err := rows.Scan(&outcome, &n, &avg); err != nil {
			return nil, fmt.Errorf("scanning journal stats: %w", err)
		}
		st.ByOutcome[outcome] = n
		st.Total += n
		latencySum += avg * float64(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal stats: %w", err)
	}
	if st.Total > 0 {
		st.AvgLatencyMs = latencySum / float64(st.Total)
	}
	return st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var createdAt string
	err := row.Scan(&e.ID, &e.Outcome, &e.Model, &e.LatencyMs, &e.PromptChars, &e.ComponentCount,
		&e.ErrorCount, &e.WarningCount, &e.Error, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning journal entry: %w", err)
	}
	e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &e, nil
}
