package dispatch

import (
	"context"
	"errors"

	"github.com/rayamira/concierge/backend/internal/model/conversation"
)

// ErrUnavailable is returned when no answer backend is configured.
var ErrUnavailable = errors.New("answer service unavailable")

// Request is the contract sent to the answer-generation service.
type Request struct {
	Message   string                      `json:"message"`
	Character string                      `json:"character"`
	Mode      string                      `json:"mode"`
	History   []conversation.HistoryEntry `json:"history"`
	Locale    string                      `json:"locale,omitempty"`
}

// Reply is the canonical internal form of an answer-service response. The
// wire shape varies across deployments; every implementation normalizes to
// this record before returning.
type Reply struct {
	Text           string
	CharacterName  string
	Emoji          string
	AudioBase64    string
	DataSource     string
	HasAirportData bool
}

// Gateway is the boundary to the external answer-generation service. Any
// transport failure, non-success status or malformed payload surfaces as a
// plain error; callers treat all of them as one dispatch-failure category.
type Gateway interface {
	Dispatch(ctx context.Context, req Request) (Reply, error)
}

// Unavailable is a Gateway that always fails. It keeps the orchestrator's
// fail-soft path working when no backend is configured.
type Unavailable struct{}

// Dispatch always returns ErrUnavailable.
func (Unavailable) Dispatch(ctx context.Context, req Request) (Reply, error) {
	return Reply{}, ErrUnavailable
}
