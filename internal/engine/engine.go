// Package engine orchestrates lifecycle events and user requests over the
// catalog, the stores, the selector, the verifier, and the enforcement
// state machine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/abhisek/leetbuddy/internal/catalog"
	"github.com/abhisek/leetbuddy/internal/enforce"
	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/remote"
	"github.com/abhisek/leetbuddy/internal/selection"
	"github.com/abhisek/leetbuddy/internal/store"
	"github.com/abhisek/leetbuddy/internal/verify"
)

var (
	ErrUnknownSet    = errors.New("unknown problem set")
	ErrUnknownPolicy = errors.New("unknown selection policy")
)

// DefaultRemoteTimeout bounds a remote status pass.
const DefaultRemoteTimeout = 15 * time.Second

var (
	remoteSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leetbuddy_remote_syncs_total",
		Help: "Remote status passes by result",
	}, []string{"result"})

	solveClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leetbuddy_solve_claims_total",
		Help: "Solve claims by verdict reason",
	}, []string{"reason"})
)

// Catalog is the read side of the catalog cache.
type Catalog interface {
	Set(id string) (*catalog.Set, error)
	Aliases() catalog.Aliases
	Resolve(slug string) string
	Lookup(canonical string) (catalog.Problem, bool)
	Invalidate(id string)
}

// Options wires an Engine. Remote may be nil, in which case remote passes
// find nothing.
type Options struct {
	Catalog   Catalog
	Progress  store.ProgressRepo
	Timers    store.TimerRepo
	Settings  store.SettingsRepo
	Events    store.EventRepo
	Primitive redirect.Primitive
	Remote    remote.StatusSource
	Selector  *selection.Selector
	Verifier  verify.Verifier
	Enforce   enforce.Config

	RemoteTimeout time.Duration
	Now           func() time.Time
	Log           zerolog.Logger
}

// Engine holds no mutable state of its own. Every operation reads what it
// needs from the stores, so concurrent callers interleave at the store level.
type Engine struct {
	catalog  Catalog
	progress store.ProgressRepo
	timers   store.TimerRepo
	settings store.SettingsRepo
	events   store.EventRepo
	remote   remote.StatusSource
	selector *selection.Selector
	verifier verify.Verifier
	machine  *enforce.Machine

	remoteTimeout time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		catalog:       opts.Catalog,
		progress:      opts.Progress,
		timers:        opts.Timers,
		settings:      opts.Settings,
		events:        opts.Events,
		remote:        opts.Remote,
		selector:      opts.Selector,
		verifier:      opts.Verifier,
		remoteTimeout: opts.RemoteTimeout,
		now:           opts.Now,
		log:           opts.Log.With().Str("component", "engine").Logger(),
	}
	if e.selector == nil {
		e.selector = selection.New()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.remoteTimeout <= 0 {
		e.remoteTimeout = DefaultRemoteTimeout
	}
	if e.verifier.Location == nil {
		e.verifier.Location = opts.Enforce.Location
	}
	e.machine = enforce.New(opts.Enforce, opts.Timers, opts.Primitive, e.target, opts.Log)
	return e
}

// Machine exposes the state machine for status reporting.
func (e *Engine) Machine() *enforce.Machine {
	return e.machine
}

// Install runs once when the engine is first set up: a full remote pass
// across every catalog set, then a fresh selection and reconcile.
func (e *Engine) Install(ctx context.Context) error {
	done, err := e.settings.InitialSyncDone(ctx)
	if err != nil {
		return fmt.Errorf("read install flag: %w", err)
	}
	if !done {
		var sets []*catalog.Set
		for _, id := range catalog.SetIDs() {
			s, err := e.catalog.Set(id)
			if err != nil {
				e.log.Warn().Err(err).Str("set", id).Msg("skip set in initial sync")
				continue
			}
			sets = append(sets, s)
		}
		if _, err := e.syncRemote(ctx, sets); err != nil {
			e.log.Warn().Err(err).Msg("initial sync incomplete, will retry on next install")
		} else if err := e.settings.MarkInitialSyncDone(ctx); err != nil {
			return fmt.Errorf("mark install done: %w", err)
		}
	}

	if _, _, err := e.assignment(ctx, true); err != nil {
		return err
	}
	return e.reconcile(ctx)
}

// Startup rebuilds state after a restart without touching the network:
// day rollover first, then the assignment (the stored cursor wins while its
// problem is unsolved), then reconcile.
func (e *Engine) Startup(ctx context.Context) error {
	if err := e.reconcile(ctx); err != nil {
		return err
	}
	if _, _, err := e.assignment(ctx, false); err != nil {
		return err
	}
	return e.reconcile(ctx)
}

// Tick reconciles the block with the timer facts.
func (e *Engine) Tick(ctx context.Context) error {
	return e.reconcile(ctx)
}

func (e *Engine) reconcile(ctx context.Context) error {
	if _, err := e.machine.Reconcile(ctx, e.now()); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	return nil
}

// ActiveSet returns the selected set id, falling back to the default when
// none or an unknown one is stored.
func (e *Engine) ActiveSet(ctx context.Context) (string, error) {
	id, err := e.settings.SelectedSet(ctx)
	if err != nil {
		return "", fmt.Errorf("read selected set: %w", err)
	}
	if !catalog.IsKnownSet(id) {
		return catalog.DefaultSetID, nil
	}
	return id, nil
}

// Policy returns the stored selection policy, Sequential when unset or
// unrecognized.
func (e *Engine) Policy(ctx context.Context) (selection.Policy, error) {
	raw, err := e.settings.Policy(ctx)
	if err != nil {
		return "", fmt.Errorf("read policy: %w", err)
	}
	p, _ := selection.ParsePolicy(raw)
	return p, nil
}

// activeCatalog loads the active set. A nil set with a nil error means the
// catalog is unavailable.
func (e *Engine) activeCatalog(ctx context.Context) (*catalog.Set, string, error) {
	id, err := e.ActiveSet(ctx)
	if err != nil {
		return nil, "", err
	}
	set, err := e.catalog.Set(id)
	if errors.Is(err, catalog.ErrUnavailable) {
		e.log.Warn().Err(err).Str("set", id).Msg("catalog unavailable")
		return nil, id, nil
	}
	if err != nil {
		return nil, id, err
	}
	return set, id, nil
}

// assignment returns the current assignment for the active set. Unless
// reselect is set, the stored cursor is honored while its problem is still
// unsolved; otherwise a new one is selected and persisted. ok is false when
// the catalog is unavailable or empty.
func (e *Engine) assignment(ctx context.Context, reselect bool) (selection.Assignment, bool, error) {
	set, id, err := e.activeCatalog(ctx)
	if err != nil || set == nil {
		return selection.Assignment{}, false, err
	}
	solved, err := e.progress.Solved(ctx)
	if err != nil {
		return selection.Assignment{}, false, fmt.Errorf("read solved: %w", err)
	}

	if !reselect {
		stored, ok, err := e.progress.Position(ctx, id)
		if err != nil {
			return selection.Assignment{}, false, fmt.Errorf("read position: %w", err)
		}
		if ok {
			a, found := selection.Current(set, solved, selection.Cursor(stored))
			if found && !solved[a.Problem.CanonicalSlug] {
				if store.Cursor(a.Cursor) != stored {
					if err := e.progress.SavePosition(ctx, id, store.Cursor(a.Cursor)); err != nil {
						return selection.Assignment{}, false, fmt.Errorf("save position: %w", err)
					}
				}
				return a, true, nil
			}
		}
	}

	policy, err := e.Policy(ctx)
	if err != nil {
		return selection.Assignment{}, false, err
	}
	a, ok := e.selector.Select(set, solved, policy)
	if !ok {
		return selection.Assignment{}, false, nil
	}
	if err := e.progress.SavePosition(ctx, id, store.Cursor(a.Cursor)); err != nil {
		return selection.Assignment{}, false, fmt.Errorf("save position: %w", err)
	}
	return a, true, nil
}

// target supplies the state machine with the rule for the current
// assignment.
func (e *Engine) target(ctx context.Context) (redirect.Rule, bool, error) {
	a, ok, err := e.assignment(ctx, false)
	if err != nil || !ok {
		return redirect.Rule{}, false, err
	}
	ex, err := e.Exclusions(ctx)
	if err != nil {
		return redirect.Rule{}, false, err
	}
	return redirect.NewRule(a.Problem.URL(), ex.All()), true, nil
}

// syncRemote unions every accepted remote status that names a problem of
// sets into the solved set. Remote failures degrade to an empty pass; the
// error is returned for callers that care.
func (e *Engine) syncRemote(ctx context.Context, sets []*catalog.Set) (int, error) {
	if e.remote == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
	defer cancel()

	statuses, err := e.remote.Statuses(ctx)
	if err != nil {
		remoteSyncs.WithLabelValues("error").Inc()
		e.log.Warn().Err(err).Msg("remote status unavailable")
		return 0, err
	}

	var slugs []string
	seen := make(map[string]bool)
	for _, slug := range statuses.Accepted() {
		canonical := e.catalog.Resolve(slug)
		if seen[canonical] {
			continue
		}
		for _, s := range sets {
			if s.Contains(canonical) {
				seen[canonical] = true
				slugs = append(slugs, canonical)
				break
			}
		}
	}

	added, err := e.progress.AddSolved(ctx, e.now(), slugs...)
	if err != nil {
		remoteSyncs.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("add solved: %w", err)
	}
	remoteSyncs.WithLabelValues("ok").Inc()
	e.log.Info().Int("accepted", len(slugs)).Int("new", added).Msg("remote status synced")
	return added, nil
}

func (e *Engine) record(ctx context.Context, ev store.Event) {
	if e.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if _, err := e.events.Append(ctx, ev); err != nil {
		e.log.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("record event")
	}
}
