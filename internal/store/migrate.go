package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/leetbuddy/internal/catalog"
)

// Keys of the single-cursor layout that predates per-set positions.
const (
	legacyCategoryKey = "currentCategoryIndex"
	legacyProblemKey  = "currentProblemIndex"
	legacySolvedKey   = "solvedProblems"
)

// MigratePositions maps a legacy single cursor into per-set cursors. The
// legacy cursor lands on activeSet, every other set in setIDs starts at the
// origin, and cursors already present in existing are kept. A nil legacy
// cursor leaves existing as-is apart from filling in missing sets.
func MigratePositions(legacy *Cursor, existing map[string]Cursor, activeSet string, setIDs []string) map[string]Cursor {
	out := make(map[string]Cursor, len(setIDs)+len(existing))
	for id, c := range existing {
		out[id] = c
	}
	for _, id := range setIDs {
		if _, ok := out[id]; !ok {
			out[id] = Cursor{}
		}
	}
	if legacy != nil {
		out[activeSet] = *legacy
	}
	return out
}

// migrateLegacy moves legacy layout keys into the positions and
// solved_problems tables, then deletes them. It is a no-op once no legacy
// keys remain. Legacy solved entries are site slugs; resolve, when set,
// maps them to canonical slugs.
func migrateLegacy(ctx context.Context, db *sql.DB, now time.Time, resolve func(string) string) error {
	return inTx(ctx, db, func(tx *sql.Tx) error {
		var catIdx, probIdx int
		hasCat, err := getJSON(ctx, tx, scopeSync, legacyCategoryKey, &catIdx)
		if err != nil {
			return err
		}
		hasProb, err := getJSON(ctx, tx, scopeSync, legacyProblemKey, &probIdx)
		if err != nil {
			return err
		}
		var solved []string
		hasSolved, err := getJSON(ctx, tx, scopeSync, legacySolvedKey, &solved)
		if err != nil {
			return err
		}
		if !hasCat && !hasProb && !hasSolved {
			return nil
		}

		if hasCat || hasProb {
			active := catalog.DefaultSetID
			var sel string
			if ok, err := getJSON(ctx, tx, scopeSync, selectedSetKey, &sel); err != nil {
				return err
			} else if ok && sel != "" {
				active = sel
			}

			existing, err := queryPositions(ctx, tx)
			if err != nil {
				return err
			}
			legacy := &Cursor{CategoryIndex: catIdx, ProblemIndex: probIdx}
			for id, c := range MigratePositions(legacy, existing, active, catalog.SetIDs()) {
				if err := upsertPosition(ctx, tx, id, c); err != nil {
					return err
				}
			}
		}

		if resolve != nil {
			for i, slug := range solved {
				solved[i] = resolve(slug)
			}
		}
		if len(solved) > 0 {
			if _, err := insertSolved(ctx, tx, now, solved); err != nil {
				return err
			}
		}

		return deleteKeys(ctx, tx, scopeSync, legacyCategoryKey, legacyProblemKey, legacySolvedKey)
	})
}

// queryer is the subset of *sql.DB and *sql.Tx needed for multi-row reads.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPositions(ctx context.Context, q queryer) (map[string]Cursor, error) {
	query, args := builder.Select("set_id", "category_index", "problem_index").
		From(entsql.Table("positions")).
		Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Cursor)
	for rows.Next() {
		var id string
		var c Cursor
		if err := rows.Scan(&id, &c.CategoryIndex, &c.ProblemIndex); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out[id] = c
	}
	return out, rows.Err()
}

func upsertPosition(ctx context.Context, q execer, setID string, c Cursor) error {
	query, args := builder.Insert("positions").
		Columns("set_id", "category_index", "problem_index").
		Values(setID, c.CategoryIndex, c.ProblemIndex).
		OnConflict(entsql.ConflictColumns("set_id"), entsql.ResolveWith(func(u *entsql.UpdateSet) {
			u.SetExcluded("category_index")
			u.SetExcluded("problem_index")
		})).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save position %s: %w", setID, err)
	}
	return nil
}

func insertSolved(ctx context.Context, q execer, at time.Time, slugs []string) (int, error) {
	added := 0
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		query, args := builder.Insert("solved_problems").
			Columns("slug", "solved_at").
			Values(slug, at.UnixMilli()).
			OnConflict(entsql.ConflictColumns("slug"), entsql.DoNothing()).
			Query()
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return added, fmt.Errorf("add solved %s: %w", slug, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	return added, nil
}
