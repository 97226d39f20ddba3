package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abhisek/leetbuddy/internal/verify"
)

// Message types accepted by Dispatch.
const (
	MsgGetAssignment       = "GET_ASSIGNMENT"
	MsgSolveClaim          = "SOLVE_CLAIM"
	MsgRequestBypass       = "REQUEST_BYPASS"
	MsgRefresh             = "REFRESH"
	MsgResetProgress       = "RESET_PROGRESS"
	MsgSwitchSet           = "SWITCH_SET"
	MsgGetDetailedProgress = "GET_DETAILED_PROGRESS"
	MsgSetPolicy           = "SET_POLICY"
	MsgGetExclusions       = "GET_EXCLUSIONS"
	MsgAddExclusion        = "ADD_EXCLUSION"
	MsgRemoveExclusion     = "REMOVE_EXCLUSION"
	MsgResetExclusions     = "RESET_EXCLUSIONS"
	MsgGetHistory          = "GET_HISTORY"
)

// DefaultHistoryLimit applies when a history request names no limit or 0.
const DefaultHistoryLimit = 20

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid payload")
)

var messagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "leetbuddy_messages_total",
	Help: "Dispatched messages by type and result",
}, []string{"type", "result"})

// Message is a typed request from a browser-side collaborator.
type Message struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SwitchSetPayload struct {
	SetID string `json:"setId" binding:"required" validate:"required"`
}

type PolicyPayload struct {
	Policy string `json:"policy" binding:"required" validate:"required"`
}

type AddExclusionPayload struct {
	Domain string `json:"domain" binding:"required" validate:"required"`
}

// RemoveExclusionPayload uses a pointer so index 0 is distinguishable from
// a missing field.
type RemoveExclusionPayload struct {
	Index *int `json:"index" binding:"required" validate:"required"`
}

type HistoryPayload struct {
	Limit int `json:"limit" validate:"gte=0,lte=500"`
}

var payloadValidate = validator.New()

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}
	if err := payloadValidate.Struct(v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return v, nil
}

// Dispatch routes msg to the matching operation and returns its response.
func (e *Engine) Dispatch(ctx context.Context, msg Message) (any, error) {
	resp, err := e.dispatch(ctx, msg)
	result := "ok"
	switch {
	case errors.Is(err, ErrUnknownMessage):
		result = "unknown"
	case err != nil:
		result = "error"
	}
	typ := msg.Type
	if result == "unknown" {
		typ = "other"
	}
	messagesHandled.WithLabelValues(typ, result).Inc()
	return resp, err
}

func (e *Engine) dispatch(ctx context.Context, msg Message) (any, error) {
	switch msg.Type {
	case MsgGetAssignment:
		return e.GetAssignment(ctx)
	case MsgSolveClaim:
		claim, err := decode[verify.Claim](msg.Payload)
		if err != nil {
			return nil, err
		}
		return e.SolveClaim(ctx, claim)
	case MsgRequestBypass:
		return e.RequestBypass(ctx)
	case MsgRefresh:
		return e.Refresh(ctx)
	case MsgResetProgress:
		return e.ResetProgress(ctx)
	case MsgSwitchSet:
		p, err := decode[SwitchSetPayload](msg.Payload)
		if err != nil {
			return nil, err
		}
		return e.SwitchSet(ctx, p.SetID)
	case MsgGetDetailedProgress:
		return e.DetailedProgress(ctx)
	case MsgSetPolicy:
		p, err := decode[PolicyPayload](msg.Payload)
		if err != nil {
			return nil, err
		}
		return e.SetPolicy(ctx, p.Policy)
	case MsgGetExclusions:
		return e.Exclusions(ctx)
	case MsgAddExclusion:
		p, err := decode[AddExclusionPayload](msg.Payload)
		if err != nil {
			return nil, err
		}
		return e.AddExclusion(ctx, p.Domain)
	case MsgRemoveExclusion:
		p, err := decode[RemoveExclusionPayload](msg.Payload)
		if err != nil {
			return nil, err
		}
		return e.RemoveExclusion(ctx, *p.Index)
	case MsgResetExclusions:
		return e.ResetExclusions(ctx)
	case MsgGetHistory:
		p, err := decode[HistoryPayload](msg.Payload)
		if err != nil {
			return nil, err
		}
		return e.History(ctx, p.Limit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}
