// Package event implements the append-only event log and replay mechanics
// shared by all aggregates.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable fact recording one state change of an aggregate.
// It is never mutated after creation. The serialized form uses RFC 3339
// timestamps for OccurredAt.
type Event struct {
	ID          string          `json:"eventId" db:"event_id"`
	AggregateID string          `json:"aggregateId" db:"aggregate_id"`
	Type        string          `json:"eventType" db:"event_type"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	OccurredAt  time.Time       `json:"occurredAt" db:"occurred_at"`
}

// New builds an event for the given aggregate, serializing payload to JSON.
func New(aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal payload for event %q: %w", eventType, err)
	}

	return Event{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     raw,
		OccurredAt:  time.Now().UTC(),
	}, nil
}

// DecodePayload unmarshals the event payload into dst.
func DecodePayload(ev Event, dst any) error {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode payload of event %q: %w", ev.Type, err)
	}
	return nil
}
