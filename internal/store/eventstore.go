package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/auric-labs/personagate/internal/domain/event"
)

type eventRow struct {
	EventID     string    `db:"event_id"`
	AggregateID string    `db:"aggregate_id"`
	EventType   string    `db:"event_type"`
	Payload     string    `db:"payload"`
	OccurredAt  time.Time `db:"occurred_at"`
}

// EventStore appends aggregate events to the append-only log and loads them
// back for replay.
type EventStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewEventStore creates an event store backed by sqlx.
func NewEventStore(db *sqlx.DB, logger *slog.Logger) *EventStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &EventStore{
		db:     db,
		logger: logger.With("component", "event_store"),
	}
}

// Append persists events in order. Delivery is at-least-once: replayed
// appends of the same event id are ignored, so callers may safely retry
// before marking events committed.
func (s *EventStore) Append(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for appending events", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	insert := `
        INSERT OR IGNORE INTO events (event_id, aggregate_id, event_type, payload, occurred_at)
        VALUES (:event_id, :aggregate_id, :event_type, :payload, :occurred_at);
    `
	for _, ev := range events {
		row := eventRow{
			EventID:     ev.ID,
			AggregateID: ev.AggregateID,
			EventType:   ev.Type,
			Payload:     string(ev.Payload),
			OccurredAt:  ev.OccurredAt,
		}
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			s.logger.ErrorContext(ctx, "Error appending event",
				"aggregate_id", ev.AggregateID, "event_type", ev.Type, "error", err)
			return fmt.Errorf("failed to append event %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit event append transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Appended events",
		"aggregate_id", events[0].AggregateID, "count", len(events))
	return nil
}

// Load returns all events of an aggregate in append order.
func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	if aggregateID == "" {
		return nil, fmt.Errorf("aggregate id is required")
	}

	var rows []eventRow
	query := `
        SELECT event_id, aggregate_id, event_type, payload, occurred_at
        FROM events
        WHERE aggregate_id = ?
        ORDER BY id ASC;
    `
	if err := s.db.SelectContext(ctx, &rows, query, aggregateID); err != nil {
		s.logger.ErrorContext(ctx, "Error loading events", "aggregate_id", aggregateID, "error", err)
		return nil, fmt.Errorf("failed to load events for aggregate %s: %w", aggregateID, err)
	}

	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, event.Event{
			ID:          r.EventID,
			AggregateID: r.AggregateID,
			Type:        r.EventType,
			Payload:     []byte(r.Payload),
			OccurredAt:  r.OccurredAt,
		})
	}

	s.logger.DebugContext(ctx, "Loaded events", "aggregate_id", aggregateID, "count", len(events))
	return events, nil
}
