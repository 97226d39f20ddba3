package store

import (
	"context"
	"time"
)

// Cursor is a stored position inside a catalog set.
type Cursor struct {
	CategoryIndex int `json:"categoryIndex"`
	ProblemIndex  int `json:"problemIndex"`
}

// ProgressRepo persists the shared solved set and per-set cursors.
type ProgressRepo interface {
	// Solved returns every solved canonical slug.
	Solved(ctx context.Context) (map[string]bool, error)

	// AddSolved unions slugs into the solved set and reports how many were new.
	AddSolved(ctx context.Context, at time.Time, slugs ...string) (int, error)

	// Position returns the cursor stored for setID. ok is false when the set
	// has never been positioned.
	Position(ctx context.Context, setID string) (c Cursor, ok bool, err error)

	// Positions returns every stored cursor keyed by set id.
	Positions(ctx context.Context) (map[string]Cursor, error)

	// SavePosition upserts the cursor for one set, leaving others untouched.
	SavePosition(ctx context.Context, setID string, c Cursor) error

	// Reset empties the solved set and puts every listed set at the origin.
	Reset(ctx context.Context, setIDs []string) error
}

// DailySolve attests that a qualifying solve happened on Date.
type DailySolve struct {
	Date      string // YYYY-MM-DD in the configured timezone
	Timestamp time.Time
	Slug      string
}

// Bypass holds the bypass window and the cooldown that follows it.
type Bypass struct {
	ActiveUntil   time.Time
	NextAllowedAt time.Time
}

// TimerRepo persists the state machine's timing facts.
type TimerRepo interface {
	DailySolve(ctx context.Context) (DailySolve, error)
	SaveDailySolve(ctx context.Context, d DailySolve) error
	ClearDailySolve(ctx context.Context) error

	Bypass(ctx context.Context) (Bypass, error)
	SaveBypass(ctx context.Context, b Bypass) error
}

// SettingsRepo persists user choices.
type SettingsRepo interface {
	// SelectedSet returns the active set id, or "" when none was chosen.
	SelectedSet(ctx context.Context) (string, error)
	SetSelectedSet(ctx context.Context, id string) error

	// Policy returns the raw stored selection policy, or "" when unset.
	Policy(ctx context.Context) (string, error)
	SetPolicy(ctx context.Context, policy string) error

	// UserExclusions returns the stored user domain list. ok is false when
	// nothing was ever stored.
	UserExclusions(ctx context.Context) (domains []string, ok bool, err error)
	SetUserExclusions(ctx context.Context, domains []string) error

	InitialSyncDone(ctx context.Context) (bool, error)
	MarkInitialSyncDone(ctx context.Context) error
}

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
	Kind   EventKind // "" = any
}

// EventKind names what happened.
type EventKind string

const (
	EventSolve  EventKind = "solve"
	EventBypass EventKind = "bypass"
	EventReset  EventKind = "reset"
	EventSwitch EventKind = "switch"
)

// Event is one entry of the append-only history.
type Event struct {
	ID        string    `json:"id"`
	Sequence  int64     `json:"sequence"`
	Kind      EventKind `json:"kind"`
	Slug      string    `json:"slug,omitempty"`
	SetID     string    `json:"setId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventRepo provides append and query access to the history.
type EventRepo interface {
	// Append assigns the id, sequence, and (if zero) timestamp, then stores e.
	Append(ctx context.Context, e Event) (Event, error)

	// Query returns events newest first.
	Query(ctx context.Context, opts QueryOpts) ([]Event, error)
}
