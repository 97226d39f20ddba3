// Package verify decides whether a detected solve counts as today's
// qualifying solve.
package verify

import (
	"time"

	"github.com/abhisek/leetbuddy/internal/catalog"
)

// Reasons reported in a Verdict.
const (
	ReasonVerifiedNotToday  = "verified-not-today"
	ReasonTimestampMismatch = "timestamp-mismatch"
	ReasonVerifiedToday     = "verified-today"
	ReasonFallbackAllow     = "fallback-allow"
	ReasonUnverified        = "unverified"
	ReasonWrongProblem      = "wrong-problem"
	ReasonNoAssignment      = "no-assignment"
)

// Claim is a solve reported by the detector.
type Claim struct {
	CanonicalSlug string `json:"canonicalSlug" binding:"required" validate:"required"`

	// SubmissionTimestamp is the accepted submission's time, when known.
	SubmissionTimestamp *time.Time `json:"submissionTimestamp,omitempty"`

	// ExternallyVerifiedToday is the upstream source's own judgement, when it
	// gave one.
	ExternallyVerifiedToday *bool `json:"externallyVerifiedToday,omitempty"`
}

// Verdict is the outcome of Verify.
type Verdict struct {
	// CountsAsToday is true when the claim satisfies today's obligation.
	CountsAsToday bool `json:"countsAsToday"`

	// SolvedToday is true when the claim is a credible same-day solve,
	// whichever problem it names.
	SolvedToday bool `json:"solvedToday"`

	Reason string `json:"reason"`
}

// Verifier applies the decision table. Location sets the calendar used for
// "today"; nil means time.Local.
type Verifier struct {
	// AllowUnverified accepts claims that carry neither a timestamp nor an
	// explicit upstream verdict.
	AllowUnverified bool
	Location        *time.Location
}

// Verify judges claim against the expected problem at instant now.
func (v Verifier) Verify(claim Claim, expected catalog.Problem, now time.Time) Verdict {
	var d Verdict
	switch {
	case claim.ExternallyVerifiedToday != nil && !*claim.ExternallyVerifiedToday:
		d = Verdict{Reason: ReasonVerifiedNotToday}
	case claim.SubmissionTimestamp != nil:
		if Day(*claim.SubmissionTimestamp, v.Location) == Day(now, v.Location) {
			d = Verdict{CountsAsToday: true, SolvedToday: true, Reason: ReasonVerifiedToday}
		} else {
			d = Verdict{Reason: ReasonTimestampMismatch}
		}
	case v.AllowUnverified:
		d = Verdict{CountsAsToday: true, SolvedToday: true, Reason: ReasonFallbackAllow}
	case claim.ExternallyVerifiedToday != nil:
		// Strict mode still trusts an explicit upstream verdict.
		d = Verdict{CountsAsToday: true, SolvedToday: true, Reason: ReasonVerifiedToday}
	default:
		d = Verdict{Reason: ReasonUnverified}
	}

	// A blank slug never matches, even against a zero-value problem.
	if claim.CanonicalSlug == "" || claim.CanonicalSlug != expected.CanonicalSlug {
		d.CountsAsToday = false
		d.Reason = ReasonWrongProblem
	}
	return d
}

// Day formats t as YYYY-MM-DD in loc (time.Local when nil).
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(time.DateOnly)
}
