package ws

import (
	"context"
	"encoding/json"
	"errors"

	"pvyield_simulator/internal/model"
	"pvyield_simulator/internal/report"
	"pvyield_simulator/internal/store"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeRunStart  = "run:start"
	TypeRunCancel = "run:cancel"

	// Server -> Client
	TypeReady       = "server:ready"
	TypeRunAccepted = "run:accepted"
	TypeRunProgress = "run:progress"
	TypeRunResult   = "run:result"
	TypeRunComplete = "run:complete"
	TypeRunError    = "run:error"
)

// Client -> Server messages

// RunStartPayload carries a configuration record; absent fields take their defaults.
type RunStartPayload struct {
	Config json.RawMessage `json:"config"`
}

type RunCancelPayload struct {
	RunID string `json:"run_id"`
}

// Server -> Client messages

type ReadyPayload struct {
	Runs []store.Summary `json:"runs"`
}

type RunAcceptedPayload struct {
	RunID     string `json:"run_id"`
	Scenarios int    `json:"scenarios"`
}

type RunProgressPayload struct {
	RunID   string `json:"run_id"`
	Units   int    `json:"units"`
	Percent int    `json:"percent"`
	Overall int    `json:"overall"`
}

type RunResultPayload struct {
	RunID  string        `json:"run_id"`
	Units  int           `json:"units"`
	Result *model.Result `json:"result"`
}

type RunCompletePayload struct {
	RunID          string           `json:"run_id"`
	ElapsedMs      int64            `json:"elapsed_ms"`
	Units          []int            `json:"units"`
	Sections       []report.Section `json:"sections"`
	DisabledMonths []int            `json:"disabled_months,omitempty"`
	DisabledLabel  string           `json:"disabled_label"`
}

type RunErrorPayload struct {
	RunID string `json:"run_id,omitempty"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Error kinds reported in run:error.
const (
	ErrKindConfiguration = "configuration"
	ErrKindDataSource    = "data_source"
	ErrKindData          = "data"
	ErrKindCanceled      = "canceled"
	ErrKindRequest       = "request"
	ErrKindInternal      = "internal"
)

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// ErrorPayload classifies err by its typed cause.
func ErrorPayload(runID string, err error) RunErrorPayload {
	p := RunErrorPayload{RunID: runID, Kind: ErrKindInternal, Error: err.Error()}
	var cerr *model.ConfigurationError
	var dse *model.DataSourceError
	var derr *model.DataError
	switch {
	case errors.As(err, &cerr):
		p.Kind, p.Field = ErrKindConfiguration, cerr.Field
	case errors.As(err, &dse):
		p.Kind = ErrKindDataSource
	case errors.As(err, &derr):
		p.Kind = ErrKindData
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		p.Kind = ErrKindCanceled
	}
	return p
}
