package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// progressRepo implements ProgressRepo. Every read first folds in any
// legacy layout keys; migrated short-circuits that check after it succeeds.
type progressRepo struct {
	db       *sql.DB
	migrated *atomic.Bool
	resolve  func(slug string) string
}

func (r *progressRepo) ensureMigrated(ctx context.Context) error {
	if r.migrated.Load() {
		return nil
	}
	if err := migrateLegacy(ctx, r.db, time.Now(), r.resolve); err != nil {
		return fmt.Errorf("migrate legacy progress: %w", err)
	}
	r.migrated.Store(true)
	return nil
}

func (r *progressRepo) Solved(ctx context.Context) (map[string]bool, error) {
	if err := r.ensureMigrated(ctx); err != nil {
		return nil, err
	}
	query, args := builder.Select("slug").From(entsql.Table("solved_problems")).Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query solved: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan solved: %w", err)
		}
		out[slug] = true
	}
	return out, rows.Err()
}

func (r *progressRepo) AddSolved(ctx context.Context, at time.Time, slugs ...string) (int, error) {
	if err := r.ensureMigrated(ctx); err != nil {
		return 0, err
	}
	if len(slugs) == 0 {
		return 0, nil
	}
	var added int
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		n, err := insertSolved(ctx, tx, at, slugs)
		added = n
		return err
	})
	return added, err
}

func (r *progressRepo) Position(ctx context.Context, setID string) (Cursor, bool, error) {
	if err := r.ensureMigrated(ctx); err != nil {
		return Cursor{}, false, err
	}
	query, args := builder.Select("category_index", "problem_index").
		From(entsql.Table("positions")).
		Where(entsql.EQ("set_id", setID)).
		Query()
	var c Cursor
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.CategoryIndex, &c.ProblemIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("query position %s: %w", setID, err)
	}
	return c, true, nil
}

func (r *progressRepo) Positions(ctx context.Context) (map[string]Cursor, error) {
	if err := r.ensureMigrated(ctx); err != nil {
		return nil, err
	}
	return queryPositions(ctx, r.db)
}

func (r *progressRepo) SavePosition(ctx context.Context, setID string, c Cursor) error {
	return upsertPosition(ctx, r.db, setID, c)
}

func (r *progressRepo) Reset(ctx context.Context, setIDs []string) error {
	if err := r.ensureMigrated(ctx); err != nil {
		return err
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args := builder.Delete("solved_problems").Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear solved: %w", err)
		}
		query, args = builder.Update("positions").
			Set("category_index", 0).
			Set("problem_index", 0).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("reset positions: %w", err)
		}
		for _, id := range setIDs {
			if err := upsertPosition(ctx, tx, id, Cursor{}); err != nil {
				return err
			}
		}
		return nil
	})
}
