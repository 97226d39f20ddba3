package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/leetbuddy/internal/catalog"
	"github.com/abhisek/leetbuddy/internal/engine"
	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/store"
	"github.com/abhisek/leetbuddy/internal/verify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeEngine records the last call and returns canned values.
type fakeEngine struct {
	lastClaim  verify.Claim
	lastSet    string
	lastPolicy string
	lastDomain string
	lastIndex  int
	lastLimit  int
	lastMsg    engine.Message
	err        error
}

func (f *fakeEngine) view() engine.AssignmentView {
	p := catalog.Problem{Slug: "two-sum", CanonicalSlug: "two-sum", Title: "Two Sum", Difficulty: catalog.DifficultyEasy}
	return engine.AssignmentView{Available: true, SetID: "neetcode250", Problem: &p, TotalProblems: 5}
}

func (f *fakeEngine) GetAssignment(context.Context) (engine.AssignmentView, error) {
	return f.view(), f.err
}

func (f *fakeEngine) SolveClaim(_ context.Context, claim verify.Claim) (engine.SolveResult, error) {
	f.lastClaim = claim
	return engine.SolveResult{Accepted: true, CountsAsToday: true, Reason: verify.ReasonFallbackAllow}, f.err
}

func (f *fakeEngine) RequestBypass(context.Context) (engine.BypassView, error) {
	return engine.BypassView{Granted: false, Reason: "cooldown", RemainingMs: 300000}, f.err
}

func (f *fakeEngine) Refresh(context.Context) (engine.AssignmentView, error) {
	return f.view(), f.err
}

func (f *fakeEngine) ResetProgress(context.Context) (engine.AssignmentView, error) {
	return f.view(), f.err
}

func (f *fakeEngine) SwitchSet(_ context.Context, id string) (engine.AssignmentView, error) {
	f.lastSet = id
	if !catalog.IsKnownSet(id) {
		return engine.AssignmentView{}, fmt.Errorf("%w: %q", engine.ErrUnknownSet, id)
	}
	return f.view(), f.err
}

func (f *fakeEngine) SetPolicy(_ context.Context, name string) (engine.AssignmentView, error) {
	f.lastPolicy = name
	return f.view(), f.err
}

func (f *fakeEngine) DetailedProgress(context.Context) (engine.ProgressView, error) {
	return engine.ProgressView{Available: true, SetID: "neetcode250"}, f.err
}

func (f *fakeEngine) Exclusions(context.Context) (redirect.Exclusions, error) {
	return redirect.NewExclusions(redirect.DefaultUserDomains()), f.err
}

func (f *fakeEngine) AddExclusion(_ context.Context, domain string) (redirect.Exclusions, error) {
	f.lastDomain = domain
	list, err := redirect.AddDomain(redirect.DefaultUserDomains(), domain)
	if err != nil {
		return redirect.Exclusions{}, err
	}
	return redirect.NewExclusions(list), nil
}

func (f *fakeEngine) RemoveExclusion(_ context.Context, index int) (redirect.Exclusions, error) {
	f.lastIndex = index
	list, err := redirect.RemoveDomain(redirect.DefaultUserDomains(), index)
	if err != nil {
		return redirect.Exclusions{}, err
	}
	return redirect.NewExclusions(list), nil
}

func (f *fakeEngine) ResetExclusions(context.Context) (redirect.Exclusions, error) {
	return redirect.NewExclusions(redirect.DefaultUserDomains()), f.err
}

func (f *fakeEngine) History(_ context.Context, limit int) ([]store.Event, error) {
	f.lastLimit = limit
	return []store.Event{{ID: "e1", Sequence: 1, Kind: store.EventSolve, Slug: "two-sum"}}, f.err
}

func (f *fakeEngine) Dispatch(_ context.Context, msg engine.Message) (any, error) {
	f.lastMsg = msg
	if msg.Type == "PING" {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownMessage, msg.Type)
	}
	return f.view(), f.err
}

func setupTestRouter(eng Engine) *gin.Engine {
	return NewRouter(NewHandlers(eng, zerolog.Nop()), zerolog.Nop())
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupTestRouter(&fakeEngine{})

	w := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// Touch a route so the histogram has a sample.
	do(t, r, http.MethodGet, "/v1/assignment", "")
	w = do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "leetbuddy_http_request_duration_seconds")
}

func TestRequestIDPropagated(t *testing.T) {
	r := setupTestRouter(&fakeEngine{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestGetAssignment(t *testing.T) {
	r := setupTestRouter(&fakeEngine{})
	w := do(t, r, http.MethodGet, "/v1/assignment", "")
	require.Equal(t, http.StatusOK, w.Code)

	var v engine.AssignmentView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.True(t, v.Available)
	assert.Equal(t, "two-sum", v.Problem.Slug)
}

func TestSolve(t *testing.T) {
	f := &fakeEngine{}
	r := setupTestRouter(f)

	w := do(t, r, http.MethodPost, "/v1/solve",
		`{"canonicalSlug":"two-sum","submissionTimestamp":"2024-01-01T09:00:00Z","externallyVerifiedToday":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "two-sum", f.lastClaim.CanonicalSlug)
	require.NotNil(t, f.lastClaim.SubmissionTimestamp)
	require.NotNil(t, f.lastClaim.ExternallyVerifiedToday)
	assert.True(t, *f.lastClaim.ExternallyVerifiedToday)

	var res engine.SolveResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.CountsAsToday)

	w = do(t, r, http.MethodPost, "/v1/solve", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidRequest, decodeError(t, w).Code)
}

func TestBypass(t *testing.T) {
	r := setupTestRouter(&fakeEngine{})
	w := do(t, r, http.MethodPost, "/v1/bypass", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"granted":false,"reason":"cooldown","remainingMs":300000}`, w.Body.String())
}

func TestSwitchSet(t *testing.T) {
	f := &fakeEngine{}
	r := setupTestRouter(f)

	w := do(t, r, http.MethodPost, "/v1/set", `{"setId":"blind75"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "blind75", f.lastSet)

	w = do(t, r, http.MethodPost, "/v1/set", `{"setId":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeUnknownSet, decodeError(t, w).Code)

	w = do(t, r, http.MethodPost, "/v1/set", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetPolicy(t *testing.T) {
	f := &fakeEngine{}
	r := setupTestRouter(f)
	w := do(t, r, http.MethodPost, "/v1/policy", `{"policy":"random"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "random", f.lastPolicy)
}

func TestExclusionRoutes(t *testing.T) {
	f := &fakeEngine{}
	r := setupTestRouter(f)

	w := do(t, r, http.MethodGet, "/v1/exclusions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ex redirect.Exclusions
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ex))
	assert.Equal(t, redirect.SystemDomains(), ex.System)
	assert.Equal(t, redirect.MaxUserDomains, ex.Max)

	w = do(t, r, http.MethodPost, "/v1/exclusions", `{"domain":"example.org"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "example.org", f.lastDomain)

	w = do(t, r, http.MethodPost, "/v1/exclusions", `{"domain":"leetcode.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidExclusion, decodeError(t, w).Code)

	w = do(t, r, http.MethodDelete, "/v1/exclusions/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.lastIndex)

	w = do(t, r, http.MethodDelete, "/v1/exclusions/9", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodDelete, "/v1/exclusions/first", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/v1/exclusions/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHistory(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"", http.StatusOK, 0},
		{"?limit=0", http.StatusOK, 0},
		{"?limit=5", http.StatusOK, 5},
		{"?limit=abc", http.StatusBadRequest, 0},
		{"?limit=-1", http.StatusBadRequest, 0},
		{"?limit=501", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f := &fakeEngine{}
			w := do(t, setupTestRouter(f), http.MethodGet, "/v1/history"+tt.query, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLimit, f.lastLimit)
		})
	}
}

func TestMessages(t *testing.T) {
	f := &fakeEngine{}
	r := setupTestRouter(f)

	w := do(t, r, http.MethodPost, "/v1/messages", `{"type":"SWITCH_SET","payload":{"setId":"blind75"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engine.MsgSwitchSet, f.lastMsg.Type)
	assert.JSONEq(t, `{"setId":"blind75"}`, string(f.lastMsg.Payload))

	w = do(t, r, http.MethodPost, "/v1/messages", `{"type":"PING"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeUnknownMessage, decodeError(t, w).Code)

	w = do(t, r, http.MethodPost, "/v1/messages", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInternalErrorsHidden(t *testing.T) {
	f := &fakeEngine{err: errors.New("database is locked")}
	w := do(t, setupTestRouter(f), http.MethodPost, "/v1/reset", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeInternal, resp.Code)
	assert.False(t, strings.Contains(resp.Error, "locked"))
}
