// Package journal persists a unified daily log of processed attention
// events in SQLite. One row per pipeline run, bucketed by day, queryable for
// the API and the morning digest. Writes are fail-soft from the pipeline's
// point of view: a journal error costs observability, never a notification.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jayminwest/kota-gateway/internal/attention"
)

// DayFormat is the bucket key layout, UTC.
const DayFormat = "2006-01-02"

// Store persists journal entries in SQLite.
type Store struct {
	db *sql.DB
}

// Entry is one processed event in the daily log.
type Entry struct {
	ID            string    `json:"id"`
	Day           string    `json:"day"`
	Source        string    `json:"source"`
	Kind          string    `json:"kind"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Outcome       string    `json:"outcome"`
	RuleID        string    `json:"rule_id"`
	UrgencyScore  float64   `json:"urgency_score"`
	Relevance     string    `json:"relevance"`
	Summary       string    `json:"summary,omitempty"`
	Channels      int       `json:"channels"`
	Delivered     int       `json:"delivered"`
	ReceivedAt    time.Time `json:"received_at"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// DaySummary aggregates one day of the journal.
type DaySummary struct {
	Day       string         `json:"day"`
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"by_outcome"`
	BySource  map[string]int `json:"by_source"`
}

// NewStore opens (and if needed creates) the journal database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS journal (
		id TEXT PRIMARY KEY,
		day TEXT NOT NULL,
		source TEXT NOT NULL,
		kind TEXT NOT NULL,
		correlation_id TEXT,
		outcome TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		urgency_score REAL NOT NULL,
		relevance TEXT NOT NULL,
		summary TEXT,
		channels INTEGER NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL DEFAULT 0,
		received_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_day ON journal(day);
	CREATE INDEX IF NOT EXISTS idx_journal_source ON journal(source);
	CREATE INDEX IF NOT EXISTS idx_journal_correlation ON journal(correlation_id);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordResult writes one pipeline run into the log. Implements
// attention.Journal.
func (s *Store) RecordResult(ctx context.Context, ev *attention.Event, res *attention.PipelineResult) error {
	now := time.Now().UTC()

	delivered := 0
	for _, dr := range res.DispatchResults {
		if dr.Delivered {
			delivered++
		}
	}

	summary := ""
	if res.PrimaryDirective != nil {
		summary = res.PrimaryDirective.Summary
	}

	entry := &Entry{
		ID:            "jrn_" + uuid.New().String()[:12],
		Day:           ev.ReceivedAt.UTC().Format(DayFormat),
		Source:        ev.Source,
		Kind:          ev.Kind,
		CorrelationID: ev.CorrelationID,
		Outcome:       string(res.Outcome),
		RuleID:        res.Decision.RuleID,
		UrgencyScore:  res.Classification.UrgencyScore,
		Relevance:     string(res.Classification.Relevance),
		Summary:       summary,
		Channels:      len(res.DispatchResults),
		Delivered:     delivered,
		ReceivedAt:    ev.ReceivedAt.UTC(),
		ProcessedAt:   now,
	}

	return s.insert(ctx, entry)
}

func (s *Store) insert(ctx context.Context, e *Entry) error {
	query := `INSERT INTO journal
		(id, day, source, kind, correlation_id, outcome, rule_id, urgency_score, relevance, summary, channels, delivered, received_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Day, e.Source, e.Kind, e.CorrelationID, e.Outcome, e.RuleID,
		e.UrgencyScore, e.Relevance, e.Summary, e.Channels, e.Delivered,
		e.ReceivedAt, e.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// ListDay returns the day's entries, newest first.
func (s *Store) ListDay(ctx context.Context, day string) ([]Entry, error) {
	query := `SELECT id, day, source, kind, correlation_id, outcome, rule_id, urgency_score, relevance, summary, channels, delivered, received_at, processed_at
		FROM journal WHERE day = ? ORDER BY processed_at DESC`
	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Day, &e.Source, &e.Kind, &e.CorrelationID, &e.Outcome, &e.RuleID,
			&e.UrgencyScore, &e.Relevance, &e.Summary, &e.Channels, &e.Delivered, &e.ReceivedAt, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summarize aggregates the day's entries by outcome and source.
func (s *Store) Summarize(ctx context.Context, day string) (*DaySummary, error) {
	summary := &DaySummary{
		Day:       day,
		ByOutcome: make(map[string]int),
		BySource:  make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, source, COUNT(*) FROM journal WHERE day = ? GROUP BY outcome, source`, day)
	if err != nil {
		return nil, fmt.Errorf("summarizing journal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome, source string
		var count int
		if err := rows.Scan(&outcome, &source, &count); err != nil {
			return nil, fmt.Errorf("scanning journal summary: %w", err)
		}
		summary.Total += count
		summary.ByOutcome[outcome] += count
		summary.BySource[source] += count
	}
	return summary, rows.Err()
}
