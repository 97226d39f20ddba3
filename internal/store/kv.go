package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// builder renders every statement in SQLite's dialect.
var builder = entsql.Dialect(dialect.SQLite)

// Key scopes. "sync" mirrors settings that followed the user across
// machines; "local" holds per-machine state.
const (
	scopeSync  = "sync"
	scopeLocal = "local"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getJSON decodes the value stored under scope/key into dst. It reports
// false when the key is absent.
func getJSON(ctx context.Context, q execer, scope, key string, dst any) (bool, error) {
	query, args := builder.Select("value").
		From(entsql.Table("kv")).
		Where(entsql.And(entsql.EQ("scope", scope), entsql.EQ("key", key))).
		Query()
	var raw string
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s/%s: %w", scope, key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", scope, key, err)
	}
	return true, nil
}

func putJSON(ctx context.Context, q execer, scope, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	query, args := builder.Insert("kv").
		Columns("scope", "key", "value").
		Values(scope, key, string(b)).
		OnConflict(entsql.ConflictColumns("scope", "key"), entsql.ResolveWith(func(u *entsql.UpdateSet) {
			u.SetExcluded("value")
		})).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write %s/%s: %w", scope, key, err)
	}
	return nil
}

func deleteKeys(ctx context.Context, q execer, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	in := make([]any, len(keys))
	for i, k := range keys {
		in[i] = k
	}
	query, args := builder.Delete("kv").
		Where(entsql.And(entsql.EQ("scope", scope), entsql.In("key", in...))).
		Query()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s keys %v: %w", scope, keys, err)
	}
	return nil
}

// inTx runs fn inside a transaction, committing on success.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
