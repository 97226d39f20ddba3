package store

import (
	"context"
	"database/sql"
	"time"
)

// Timer keys keep the names the browser-side storage used.
const (
	dailyDateKey      = "dailySolveDate"
	dailyTimestampKey = "dailySolveTimestamp"
	dailyProblemKey   = "dailySolveProblem"
	bypassUntilKey    = "bypassUntil"
	nextBypassKey     = "nextBypassAllowed"
)

// timerRepo implements TimerRepo on the kv table. Instants are stored as unix
// milliseconds; each field group is written in one transaction.
type timerRepo struct {
	db *sql.DB
}

func (r *timerRepo) DailySolve(ctx context.Context) (DailySolve, error) {
	var d DailySolve
	var ms int64
	if _, err := getJSON(ctx, r.db, scopeLocal, dailyDateKey, &d.Date); err != nil {
		return DailySolve{}, err
	}
	if _, err := getJSON(ctx, r.db, scopeLocal, dailyTimestampKey, &ms); err != nil {
		return DailySolve{}, err
	}
	if _, err := getJSON(ctx, r.db, scopeLocal, dailyProblemKey, &d.Slug); err != nil {
		return DailySolve{}, err
	}
	d.Timestamp = fromMillis(ms)
	return d, nil
}

func (r *timerRepo) SaveDailySolve(ctx context.Context, d DailySolve) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := putJSON(ctx, tx, scopeLocal, dailyDateKey, d.Date); err != nil {
			return err
		}
		if err := putJSON(ctx, tx, scopeLocal, dailyTimestampKey, toMillis(d.Timestamp)); err != nil {
			return err
		}
		return putJSON(ctx, tx, scopeLocal, dailyProblemKey, d.Slug)
	})
}

func (r *timerRepo) ClearDailySolve(ctx context.Context) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return deleteKeys(ctx, tx, scopeLocal, dailyDateKey, dailyTimestampKey, dailyProblemKey)
	})
}

func (r *timerRepo) Bypass(ctx context.Context) (Bypass, error) {
	var until, next int64
	if _, err := getJSON(ctx, r.db, scopeLocal, bypassUntilKey, &until); err != nil {
		return Bypass{}, err
	}
	if _, err := getJSON(ctx, r.db, scopeLocal, nextBypassKey, &next); err != nil {
		return Bypass{}, err
	}
	return Bypass{ActiveUntil: fromMillis(until), NextAllowedAt: fromMillis(next)}, nil
}

func (r *timerRepo) SaveBypass(ctx context.Context, b Bypass) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := putJSON(ctx, tx, scopeLocal, bypassUntilKey, toMillis(b.ActiveUntil)); err != nil {
			return err
		}
		return putJSON(ctx, tx, scopeLocal, nextBypassKey, toMillis(b.NextAllowedAt))
	})
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
