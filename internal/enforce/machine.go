// Package enforce runs the timed state machine that decides whether the
// redirect block is active.
package enforce

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/store"
	"github.com/abhisek/leetbuddy/internal/verify"
)

// Default timing.
const (
	DefaultBypassDuration = 10 * time.Minute
	DefaultCooldown       = 30 * time.Minute
)

// ReasonCooldown is returned when a bypass is refused.
const ReasonCooldown = "cooldown"

var (
	redirectOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leetbuddy_redirect_operations_total",
		Help: "Redirect primitive install/remove calls by operation and result",
	}, []string{"op", "result"})

	dayRollovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leetbuddy_day_rollovers_total",
		Help: "Daily solve states cleared because the calendar day changed",
	})

	bypassRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leetbuddy_bypass_requests_total",
		Help: "Bypass requests by outcome",
	}, []string{"outcome"})
)

// State is the observable enforcement state.
type State string

const (
	StateBlocked           State = "blocked"
	StateUnblockedBySolve  State = "unblocked-by-solve"
	StateUnblockedByBypass State = "unblocked-by-bypass"
)

// Target supplies the rule to install when blocking. ok is false when no
// assignment is available; the machine then leaves the primitive untouched.
type Target func(ctx context.Context) (rule redirect.Rule, ok bool, err error)

// Config holds the machine's tunables.
type Config struct {
	BypassDuration time.Duration
	Cooldown       time.Duration
	Location       *time.Location
}

// DefaultConfig returns the standard 10 minute bypass and 30 minute
// cooldown on the local calendar.
func DefaultConfig() Config {
	return Config{
		BypassDuration: DefaultBypassDuration,
		Cooldown:       DefaultCooldown,
		Location:       time.Local,
	}
}

// Machine owns the timer facts and drives the redirect primitive from them.
// It keeps no state of its own; every decision is rebuilt from the TimerRepo.
type Machine struct {
	cfg       Config
	timers    store.TimerRepo
	primitive redirect.Primitive
	target    Target
	log       zerolog.Logger
}

// New creates a Machine.
func New(cfg Config, timers store.TimerRepo, primitive redirect.Primitive, target Target, log zerolog.Logger) *Machine {
	if cfg.BypassDuration <= 0 {
		cfg.BypassDuration = DefaultBypassDuration
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Machine{
		cfg:       cfg,
		timers:    timers,
		primitive: primitive,
		target:    target,
		log:       log.With().Str("component", "enforce").Logger(),
	}
}

// Today returns the calendar day of now in the machine's location.
func (m *Machine) Today(now time.Time) string {
	return verify.Day(now, m.cfg.Location)
}

// BypassStatus describes the bypass window relative to an instant.
type BypassStatus struct {
	IsActive      bool  `json:"isActive"`
	RemainingMs   int64 `json:"remainingMs"`
	CanBypass     bool  `json:"canBypass"`
	NextAllowedMs int64 `json:"nextAllowedMs"`
}

// Status is a snapshot of the enforcement facts.
type Status struct {
	State            State        `json:"state"`
	DailySolvedToday bool         `json:"dailySolvedToday"`
	DailySolveSlug   string       `json:"dailySolveSlug,omitempty"`
	Bypass           BypassStatus `json:"bypass"`
}

// Status reports the current state without changing anything. A daily solve
// from an earlier day reads as not solved even before Reconcile clears it.
func (m *Machine) Status(ctx context.Context, now time.Time) (Status, error) {
	daily, err := m.timers.DailySolve(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read daily solve: %w", err)
	}
	b, err := m.timers.Bypass(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read bypass: %w", err)
	}

	st := Status{Bypass: bypassStatus(b, now)}
	if daily.Date != "" && daily.Date == m.Today(now) {
		st.DailySolvedToday = true
		st.DailySolveSlug = daily.Slug
	}
	st.State = stateOf(st.DailySolvedToday, st.Bypass.IsActive)
	return st, nil
}

// Reconcile clears a daily solve left over from an earlier day, then
// installs or removes the block to match the timer facts. Primitive failures
// are logged and counted but not returned; the next reconcile retries.
func (m *Machine) Reconcile(ctx context.Context, now time.Time) (State, error) {
	daily, err := m.timers.DailySolve(ctx)
	if err != nil {
		return "", fmt.Errorf("read daily solve: %w", err)
	}
	if daily.Date != "" && daily.Date != m.Today(now) {
		if err := m.timers.ClearDailySolve(ctx); err != nil {
			return "", fmt.Errorf("clear daily solve: %w", err)
		}
		dayRollovers.Inc()
		m.log.Info().Str("previous", daily.Date).Str("today", m.Today(now)).Msg("day rolled over, daily solve cleared")
	}

	st, err := m.Status(ctx, now)
	if err != nil {
		return "", err
	}
	if st.State == StateBlocked {
		m.block(ctx)
	} else {
		m.unblock(ctx)
	}
	return st.State, nil
}

// ConfirmSolve records today's qualifying solve and lifts the block.
func (m *Machine) ConfirmSolve(ctx context.Context, slug string, now time.Time) error {
	err := m.timers.SaveDailySolve(ctx, store.DailySolve{
		Date:      m.Today(now),
		Timestamp: now,
		Slug:      slug,
	})
	if err != nil {
		return fmt.Errorf("save daily solve: %w", err)
	}
	m.log.Info().Str("slug", slug).Msg("daily solve confirmed")
	m.unblock(ctx)
	return nil
}

// BypassResult is the outcome of RequestBypass.
type BypassResult struct {
	Granted       bool          `json:"granted"`
	Reason        string        `json:"reason,omitempty"`
	Remaining     time.Duration `json:"-"`
	ActiveUntil   time.Time     `json:"-"`
	NextAllowedAt time.Time     `json:"-"`
}

// RequestBypass opens a bypass window unless the cooldown from the previous
// one is still running, in which case nothing changes.
func (m *Machine) RequestBypass(ctx context.Context, now time.Time) (BypassResult, error) {
	b, err := m.timers.Bypass(ctx)
	if err != nil {
		return BypassResult{}, fmt.Errorf("read bypass: %w", err)
	}
	if now.Before(b.NextAllowedAt) {
		bypassRequests.WithLabelValues("cooldown").Inc()
		return BypassResult{
			Reason:        ReasonCooldown,
			Remaining:     b.NextAllowedAt.Sub(now),
			NextAllowedAt: b.NextAllowedAt,
		}, nil
	}

	next := store.Bypass{
		ActiveUntil:   now.Add(m.cfg.BypassDuration),
		NextAllowedAt: now.Add(m.cfg.BypassDuration + m.cfg.Cooldown),
	}
	if err := m.timers.SaveBypass(ctx, next); err != nil {
		return BypassResult{}, fmt.Errorf("save bypass: %w", err)
	}
	bypassRequests.WithLabelValues("granted").Inc()
	m.log.Info().Time("until", next.ActiveUntil).Msg("bypass granted")
	m.unblock(ctx)

	return BypassResult{
		Granted:       true,
		ActiveUntil:   next.ActiveUntil,
		NextAllowedAt: next.NextAllowedAt,
	}, nil
}

func (m *Machine) block(ctx context.Context) {
	rule, ok, err := m.target(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("resolve redirect target")
		return
	}
	if !ok {
		m.log.Warn().Msg("no assignment available, redirect left unchanged")
		return
	}
	if err := m.primitive.Install(ctx, rule); err != nil {
		redirectOps.WithLabelValues("install", "error").Inc()
		m.log.Error().Err(err).Str("url", rule.Action.Redirect.URL).Msg("install redirect rule")
		return
	}
	redirectOps.WithLabelValues("install", "ok").Inc()
}

func (m *Machine) unblock(ctx context.Context) {
	if err := m.primitive.Remove(ctx); err != nil {
		redirectOps.WithLabelValues("remove", "error").Inc()
		m.log.Error().Err(err).Msg("remove redirect rule")
		return
	}
	redirectOps.WithLabelValues("remove", "ok").Inc()
}

func bypassStatus(b store.Bypass, now time.Time) BypassStatus {
	return BypassStatus{
		IsActive:      now.Before(b.ActiveUntil),
		RemainingMs:   max(b.ActiveUntil.Sub(now).Milliseconds(), 0),
		CanBypass:     !now.Before(b.NextAllowedAt),
		NextAllowedMs: max(b.NextAllowedAt.Sub(now).Milliseconds(), 0),
	}
}

func stateOf(solvedToday, bypassActive bool) State {
	switch {
	case solvedToday:
		return StateUnblockedBySolve
	case bypassActive:
		return StateUnblockedByBypass
	default:
		return StateBlocked
	}
}
