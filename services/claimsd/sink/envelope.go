package sink

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"lockdrop/core/events"
)

// Envelope is the JSON wire form of a committed event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps e with a fresh identifier.
func NewEnvelope(e events.Event, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       e.EventType(),
		OccurredAt: now.UTC(),
		Payload:    payload,
	}, nil
}
