package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/leetbuddy/internal/catalog"
	"github.com/abhisek/leetbuddy/internal/enforce"
	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/remote"
	"github.com/abhisek/leetbuddy/internal/selection"
	"github.com/abhisek/leetbuddy/internal/store"
	"github.com/abhisek/leetbuddy/internal/verify"
)

// AssignmentView answers GET_ASSIGNMENT.
type AssignmentView struct {
	Available        bool                         `json:"available"`
	SetID            string                       `json:"setId"`
	Policy           selection.Policy             `json:"policy"`
	Problem          *catalog.Problem             `json:"problem,omitempty"`
	SolutionURL      string                       `json:"solutionUrl,omitempty"`
	CategoryName     string                       `json:"categoryName,omitempty"`
	CategoryIndex    int                          `json:"categoryIndex"`
	ProblemIndex     int                          `json:"problemIndex"`
	TotalProblems    int                          `json:"totalProblems"`
	SolvedCount      int                          `json:"solvedCount"`
	AllSolved        bool                         `json:"allSolved"`
	State            enforce.State                `json:"state"`
	DailySolvedToday bool                         `json:"dailySolvedToday"`
	Bypass           enforce.BypassStatus         `json:"bypass"`
	CategoryProgress []selection.CategoryProgress `json:"categoryProgress"`
}

// SolveResult answers SOLVE_CLAIM.
type SolveResult struct {
	Accepted      bool            `json:"accepted"`
	CountsAsToday bool            `json:"countsAsToday"`
	Reason        string          `json:"reason"`
	NewAssignment *AssignmentView `json:"newAssignment,omitempty"`
}

// BypassView answers REQUEST_BYPASS. Instants are unix milliseconds.
type BypassView struct {
	Granted       bool   `json:"granted"`
	Reason        string `json:"reason,omitempty"`
	RemainingMs   int64  `json:"remainingMs,omitempty"`
	ActiveUntil   int64  `json:"activeUntil,omitempty"`
	NextAllowedAt int64  `json:"nextAllowedAt,omitempty"`
}

// ProgressView answers GET_DETAILED_PROGRESS.
type ProgressView struct {
	Available  bool                       `json:"available"`
	SetID      string                     `json:"setId"`
	Policy     selection.Policy           `json:"policy"`
	Categories []selection.CategoryDetail `json:"categories"`
}

// GetAssignment returns the current assignment with enforcement status.
func (e *Engine) GetAssignment(ctx context.Context) (AssignmentView, error) {
	a, ok, err := e.assignment(ctx, false)
	if err != nil {
		return AssignmentView{}, err
	}
	return e.view(ctx, a, ok)
}

func (e *Engine) view(ctx context.Context, a selection.Assignment, ok bool) (AssignmentView, error) {
	id, err := e.ActiveSet(ctx)
	if err != nil {
		return AssignmentView{}, err
	}
	policy, err := e.Policy(ctx)
	if err != nil {
		return AssignmentView{}, err
	}
	st, err := e.machine.Status(ctx, e.now())
	if err != nil {
		return AssignmentView{}, err
	}

	v := AssignmentView{
		Available:        ok,
		SetID:            id,
		Policy:           policy,
		State:            st.State,
		DailySolvedToday: st.DailySolvedToday,
		Bypass:           st.Bypass,
		CategoryProgress: []selection.CategoryProgress{},
	}
	if !ok {
		return v, nil
	}
	p := a.Problem
	v.Problem = &p
	v.SolutionURL = e.catalog.Aliases().SolutionURL(p.Slug)
	v.CategoryName = a.CategoryName
	v.CategoryIndex = a.CategoryIndex
	v.ProblemIndex = a.ProblemIndex
	v.TotalProblems = a.TotalProblems
	v.SolvedCount = a.SolvedCount
	v.AllSolved = a.AllSolved
	v.CategoryProgress = a.CategoryProgress
	return v, nil
}

// SolveClaim judges a detected solve against the current assignment. A
// credible same-day solve of any catalog problem joins the solved set; only
// a solve of the assigned problem lifts today's block.
func (e *Engine) SolveClaim(ctx context.Context, claim verify.Claim) (SolveResult, error) {
	now := e.now()
	claim.CanonicalSlug = e.catalog.Resolve(strings.TrimSpace(claim.CanonicalSlug))

	current, ok, err := e.assignment(ctx, false)
	if err != nil {
		return SolveResult{}, err
	}
	if !ok {
		// Without an assignment nothing can satisfy today's obligation.
		solveClaims.WithLabelValues(verify.ReasonNoAssignment).Inc()
		e.log.Info().Str("slug", claim.CanonicalSlug).Msg("solve claim with no assignment")
		return SolveResult{Reason: verify.ReasonNoAssignment}, nil
	}
	verdict := e.verifier.Verify(claim, current.Problem, now)
	solveClaims.WithLabelValues(verdict.Reason).Inc()

	res := SolveResult{CountsAsToday: verdict.CountsAsToday, Reason: verdict.Reason}
	log := e.log.With().Str("slug", claim.CanonicalSlug).Str("reason", verdict.Reason).Logger()

	if verdict.SolvedToday {
		if _, known := e.catalog.Lookup(claim.CanonicalSlug); known {
			if _, err := e.progress.AddSolved(ctx, now, claim.CanonicalSlug); err != nil {
				return SolveResult{}, fmt.Errorf("add solved: %w", err)
			}
			res.Accepted = true
			e.record(ctx, store.Event{
				Kind:      store.EventSolve,
				Slug:      claim.CanonicalSlug,
				Detail:    verdict.Reason,
				Timestamp: now,
			})
		} else {
			log.Info().Msg("solve names no catalog problem, ignored")
		}
	}

	if !verdict.CountsAsToday {
		log.Info().Msg("solve does not count for today")
		return res, nil
	}

	if err := e.machine.ConfirmSolve(ctx, claim.CanonicalSlug, now); err != nil {
		return SolveResult{}, err
	}
	next, ok, err := e.assignment(ctx, true)
	if err != nil {
		return SolveResult{}, err
	}
	v, err := e.view(ctx, next, ok)
	if err != nil {
		return SolveResult{}, err
	}
	res.NewAssignment = &v
	return res, nil
}

// RequestBypass asks the state machine for a bypass window.
func (e *Engine) RequestBypass(ctx context.Context) (BypassView, error) {
	now := e.now()
	res, err := e.machine.RequestBypass(ctx, now)
	if err != nil {
		return BypassView{}, err
	}
	if !res.Granted {
		return BypassView{
			Reason:        res.Reason,
			RemainingMs:   res.Remaining.Milliseconds(),
			NextAllowedAt: res.NextAllowedAt.UnixMilli(),
		}, nil
	}
	e.record(ctx, store.Event{Kind: store.EventBypass})
	return BypassView{
		Granted:       true,
		RemainingMs:   res.ActiveUntil.Sub(now).Milliseconds(),
		ActiveUntil:   res.ActiveUntil.UnixMilli(),
		NextAllowedAt: res.NextAllowedAt.UnixMilli(),
	}, nil
}

// Refresh runs a forced remote pass for the active set, reselects, and
// reconciles.
func (e *Engine) Refresh(ctx context.Context) (AssignmentView, error) {
	set, _, err := e.activeCatalog(ctx)
	if err != nil {
		return AssignmentView{}, err
	}
	if set != nil {
		// Remote failures are already logged; refresh still reselects.
		_, _ = e.syncRemote(remote.WithBypassCache(ctx), []*catalog.Set{set})
	}
	return e.reselect(ctx)
}

// ResetProgress clears the solved set and puts every set's cursor at the
// origin. Timer state is left alone.
func (e *Engine) ResetProgress(ctx context.Context) (AssignmentView, error) {
	if err := e.progress.Reset(ctx, catalog.SetIDs()); err != nil {
		return AssignmentView{}, fmt.Errorf("reset progress: %w", err)
	}
	e.record(ctx, store.Event{Kind: store.EventReset})
	e.log.Info().Msg("progress reset")
	return e.reselect(ctx)
}

// SwitchSet makes id the active set. Cursors of other sets are untouched.
func (e *Engine) SwitchSet(ctx context.Context, id string) (AssignmentView, error) {
	if !catalog.IsKnownSet(id) {
		return AssignmentView{}, fmt.Errorf("%w: %q", ErrUnknownSet, id)
	}
	prev, err := e.ActiveSet(ctx)
	if err != nil {
		return AssignmentView{}, err
	}
	e.catalog.Invalidate(id)
	if err := e.settings.SetSelectedSet(ctx, id); err != nil {
		return AssignmentView{}, fmt.Errorf("save selected set: %w", err)
	}
	e.record(ctx, store.Event{Kind: store.EventSwitch, SetID: id, Detail: prev})
	e.log.Info().Str("set", id).Str("previous", prev).Msg("problem set switched")

	a, ok, err := e.assignment(ctx, false)
	if err != nil {
		return AssignmentView{}, err
	}
	if err := e.reconcile(ctx); err != nil {
		return AssignmentView{}, err
	}
	return e.view(ctx, a, ok)
}

// SetPolicy stores a selection policy and reselects under it.
func (e *Engine) SetPolicy(ctx context.Context, name string) (AssignmentView, error) {
	p, ok := selection.ParsePolicy(name)
	if !ok {
		return AssignmentView{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	if err := e.settings.SetPolicy(ctx, string(p)); err != nil {
		return AssignmentView{}, fmt.Errorf("save policy: %w", err)
	}
	return e.reselect(ctx)
}

func (e *Engine) reselect(ctx context.Context) (AssignmentView, error) {
	a, ok, err := e.assignment(ctx, true)
	if err != nil {
		return AssignmentView{}, err
	}
	if err := e.reconcile(ctx); err != nil {
		return AssignmentView{}, err
	}
	return e.view(ctx, a, ok)
}

// DetailedProgress lists every problem of the active set in the order the
// current policy visits them.
func (e *Engine) DetailedProgress(ctx context.Context) (ProgressView, error) {
	a, ok, err := e.assignment(ctx, false)
	if err != nil {
		return ProgressView{}, err
	}
	set, id, err := e.activeCatalog(ctx)
	if err != nil {
		return ProgressView{}, err
	}
	policy, err := e.Policy(ctx)
	if err != nil {
		return ProgressView{}, err
	}
	v := ProgressView{SetID: id, Policy: policy, Categories: []selection.CategoryDetail{}}
	if set == nil {
		return v, nil
	}
	solved, err := e.progress.Solved(ctx)
	if err != nil {
		return ProgressView{}, fmt.Errorf("read solved: %w", err)
	}
	current := ""
	if ok {
		current = a.Problem.CanonicalSlug
	}
	v.Available = true
	v.Categories = selection.Detail(set, solved, current, policy)
	return v, nil
}

// Exclusions returns the effective exclusion lists.
func (e *Engine) Exclusions(ctx context.Context) (redirect.Exclusions, error) {
	stored, ok, err := e.settings.UserExclusions(ctx)
	if err != nil {
		return redirect.Exclusions{}, fmt.Errorf("read exclusions: %w", err)
	}
	return redirect.NewExclusions(redirect.EffectiveUser(stored, ok)), nil
}

// AddExclusion appends a user domain and re-applies the rule.
func (e *Engine) AddExclusion(ctx context.Context, domain string) (redirect.Exclusions, error) {
	return e.editExclusions(ctx, func(list []string) ([]string, error) {
		return redirect.AddDomain(list, domain)
	})
}

// RemoveExclusion drops the user domain at index and re-applies the rule.
func (e *Engine) RemoveExclusion(ctx context.Context, index int) (redirect.Exclusions, error) {
	return e.editExclusions(ctx, func(list []string) ([]string, error) {
		return redirect.RemoveDomain(list, index)
	})
}

// ResetExclusions restores the default user domains.
func (e *Engine) ResetExclusions(ctx context.Context) (redirect.Exclusions, error) {
	return e.editExclusions(ctx, func([]string) ([]string, error) {
		return redirect.DefaultUserDomains(), nil
	})
}

func (e *Engine) editExclusions(ctx context.Context, edit func([]string) ([]string, error)) (redirect.Exclusions, error) {
	cur, err := e.Exclusions(ctx)
	if err != nil {
		return redirect.Exclusions{}, err
	}
	next, err := edit(cur.User)
	if err != nil {
		return redirect.Exclusions{}, err
	}
	if err := e.settings.SetUserExclusions(ctx, next); err != nil {
		return redirect.Exclusions{}, fmt.Errorf("save exclusions: %w", err)
	}
	if err := e.reconcile(ctx); err != nil {
		return redirect.Exclusions{}, err
	}
	return redirect.NewExclusions(next), nil
}

// History returns recent events, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if e.events == nil {
		return []store.Event{}, nil
	}
	events, err := e.events.Query(ctx, store.QueryOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	if events == nil {
		events = []store.Event{}
	}
	return events, nil
}
