// Package server exposes the engine over HTTP for the browser-side
// collaborators.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/abhisek/leetbuddy/internal/engine"
	"github.com/abhisek/leetbuddy/internal/redirect"
	"github.com/abhisek/leetbuddy/internal/store"
	"github.com/abhisek/leetbuddy/internal/verify"
)

// Engine is the subset of *engine.Engine the handlers call.
type Engine interface {
	GetAssignment(ctx context.Context) (engine.AssignmentView, error)
	SolveClaim(ctx context.Context, claim verify.Claim) (engine.SolveResult, error)
	RequestBypass(ctx context.Context) (engine.BypassView, error)
	Refresh(ctx context.Context) (engine.AssignmentView, error)
	ResetProgress(ctx context.Context) (engine.AssignmentView, error)
	SwitchSet(ctx context.Context, id string) (engine.AssignmentView, error)
	SetPolicy(ctx context.Context, name string) (engine.AssignmentView, error)
	DetailedProgress(ctx context.Context) (engine.ProgressView, error)
	Exclusions(ctx context.Context) (redirect.Exclusions, error)
	AddExclusion(ctx context.Context, domain string) (redirect.Exclusions, error)
	RemoveExclusion(ctx context.Context, index int) (redirect.Exclusions, error)
	ResetExclusions(ctx context.Context) (redirect.Exclusions, error)
	History(ctx context.Context, limit int) ([]store.Event, error)
	Dispatch(ctx context.Context, msg engine.Message) (any, error)
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeUnknownSet       = "UNKNOWN_SET"
	CodeUnknownPolicy    = "UNKNOWN_POLICY"
	CodeUnknownMessage   = "UNKNOWN_MESSAGE"
	CodeInvalidExclusion = "INVALID_EXCLUSION"
	CodeInternal         = "INTERNAL"
)

// MaxHistoryLimit caps GET /history.
const MaxHistoryLimit = 500

// Handlers serves the /v1 routes.
type Handlers struct {
	eng Engine
	log zerolog.Logger
}

// NewHandlers creates Handlers.
func NewHandlers(eng Engine, log zerolog.Logger) *Handlers {
	return &Handlers{eng: eng, log: log}
}

// RegisterRoutes mounts the API on rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/assignment", h.HandleGetAssignment)
	rg.POST("/solve", h.HandleSolve)
	rg.POST("/bypass", h.HandleBypass)
	rg.POST("/refresh", h.HandleRefresh)
	rg.POST("/reset", h.HandleReset)
	rg.POST("/set", h.HandleSwitchSet)
	rg.POST("/policy", h.HandleSetPolicy)
	rg.GET("/progress", h.HandleProgress)

	ex := rg.Group("/exclusions")
	{
		ex.GET("", h.HandleGetExclusions)
		ex.POST("", h.HandleAddExclusion)
		ex.DELETE("/:index", h.HandleRemoveExclusion)
		ex.POST("/reset", h.HandleResetExclusions)
	}

	rg.GET("/history", h.HandleHistory)
	rg.POST("/messages", h.HandleMessage)
}

func (h *Handlers) HandleGetAssignment(c *gin.Context) {
	v, err := h.eng.GetAssignment(c.Request.Context())
	h.respond(c, v, err)
}

func (h *Handlers) HandleSolve(c *gin.Context) {
	var claim verify.Claim
	if !h.bind(c, &claim) {
		return
	}
	res, err := h.eng.SolveClaim(c.Request.Context(), claim)
	h.respond(c, res, err)
}

func (h *Handlers) HandleBypass(c *gin.Context) {
	res, err := h.eng.RequestBypass(c.Request.Context())
	h.respond(c, res, err)
}

func (h *Handlers) HandleRefresh(c *gin.Context) {
	v, err := h.eng.Refresh(c.Request.Context())
	h.respond(c, v, err)
}

func (h *Handlers) HandleReset(c *gin.Context) {
	v, err := h.eng.ResetProgress(c.Request.Context())
	h.respond(c, v, err)
}

func (h *Handlers) HandleSwitchSet(c *gin.Context) {
	var req engine.SwitchSetPayload
	if !h.bind(c, &req) {
		return
	}
	v, err := h.eng.SwitchSet(c.Request.Context(), req.SetID)
	h.respond(c, v, err)
}

func (h *Handlers) HandleSetPolicy(c *gin.Context) {
	var req engine.PolicyPayload
	if !h.bind(c, &req) {
		return
	}
	v, err := h.eng.SetPolicy(c.Request.Context(), req.Policy)
	h.respond(c, v, err)
}

func (h *Handlers) HandleProgress(c *gin.Context) {
	v, err := h.eng.DetailedProgress(c.Request.Context())
	h.respond(c, v, err)
}

func (h *Handlers) HandleGetExclusions(c *gin.Context) {
	ex, err := h.eng.Exclusions(c.Request.Context())
	h.respond(c, ex, err)
}

func (h *Handlers) HandleAddExclusion(c *gin.Context) {
	var req engine.AddExclusionPayload
	if !h.bind(c, &req) {
		return
	}
	ex, err := h.eng.AddExclusion(c.Request.Context(), req.Domain)
	h.respond(c, ex, err)
}

func (h *Handlers) HandleRemoveExclusion(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "index must be an integer",
			Code:  CodeInvalidRequest,
		})
		return
	}
	ex, err := h.eng.RemoveExclusion(c.Request.Context(), idx)
	h.respond(c, ex, err)
}

func (h *Handlers) HandleResetExclusions(c *gin.Context) {
	ex, err := h.eng.ResetExclusions(c.Request.Context())
	h.respond(c, ex, err)
}

func (h *Handlers) HandleHistory(c *gin.Context) {
	// 0 or absent selects the engine default.
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > MaxHistoryLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be between 0 and 500",
				Code:  CodeInvalidRequest,
			})
			return
		}
		limit = n
	}
	events, err := h.eng.History(c.Request.Context(), limit)
	h.respond(c, events, err)
}

// HandleMessage accepts the typed message envelope used by the extension.
func (h *Handlers) HandleMessage(c *gin.Context) {
	var msg engine.Message
	if !h.bind(c, &msg) {
		return
	}
	resp, err := h.eng.Dispatch(c.Request.Context(), msg)
	h.respond(c, resp, err)
}

func (h *Handlers) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		requestLogger(c, h.log).Warn().Err(err).Msg("invalid request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  CodeInvalidRequest,
		})
		return false
	}
	return true
}

func (h *Handlers) respond(c *gin.Context, body any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, body)
		return
	}
	status, code := classify(err)
	log := requestLogger(c, h.log)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		c.JSON(status, ErrorResponse{Error: "internal error", Code: code})
		return
	}
	log.Info().Err(err).Str("code", code).Msg("request rejected")
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrUnknownSet):
		return http.StatusBadRequest, CodeUnknownSet
	case errors.Is(err, engine.ErrUnknownPolicy):
		return http.StatusBadRequest, CodeUnknownPolicy
	case errors.Is(err, engine.ErrUnknownMessage):
		return http.StatusBadRequest, CodeUnknownMessage
	case errors.Is(err, engine.ErrInvalidPayload):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, redirect.ErrInvalidDomain),
		errors.Is(err, redirect.ErrDuplicateDomain),
		errors.Is(err, redirect.ErrSystemDomain),
		errors.Is(err, redirect.ErrTooManyDomains),
		errors.Is(err, redirect.ErrIndexOutOfRange):
		return http.StatusBadRequest, CodeInvalidExclusion
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
