package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// sequenceCounter hands out the monotonic sequence numbers that order the
// history. The mutex serializes within the process; the RETURNING clause
// makes the increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter creates a counter and ensures the tracking table exists.
func newSequenceCounter(db *sql.DB) (*sequenceCounter, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS global_sequence (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		next_val INTEGER NOT NULL DEFAULT 1
	)`)
	if err != nil {
		return nil, fmt.Errorf("create sequence table: %w", err)
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}

	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// eventRepo implements EventRepo.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *eventRepo) Append(ctx context.Context, e Event) (Event, error) {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("next sequence: %w", err)
	}
	e.ID = uuid.New().String()
	e.Sequence = seqNum
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	query, args := builder.Insert("events").
		Columns("id", "sequence", "kind", "slug", "set_id", "detail", "created_at").
		Values(e.ID, e.Sequence, string(e.Kind), e.Slug, e.SetID, e.Detail, e.Timestamp.UnixMilli()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return Event{}, fmt.Errorf("save %s event: %w", e.Kind, err)
	}
	return e, nil
}

func (r *eventRepo) Query(ctx context.Context, opts QueryOpts) ([]Event, error) {
	var preds []*entsql.Predicate
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("created_at", opts.From.UnixMilli()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("created_at", opts.To.UnixMilli()))
	}
	if opts.Kind != "" {
		preds = append(preds, entsql.EQ("kind", string(opts.Kind)))
	}

	sel := builder.Select("id", "sequence", "kind", "slug", "set_id", "detail", "created_at").
		From(entsql.Table("events")).
		OrderBy(entsql.Desc("sequence"))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	q, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var kind string
		var ms int64
		if err := rows.Scan(&e.ID, &e.Sequence, &kind, &e.Slug, &e.SetID, &e.Detail, &ms); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Timestamp = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}
