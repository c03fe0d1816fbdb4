package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auric-labs/personagate/internal/domain/aimodel"
	"github.com/auric-labs/personagate/internal/domain/airequest"
	"github.com/auric-labs/personagate/internal/domain/event"
	"github.com/auric-labs/personagate/internal/store"
)

func TestEventStoreAppendAndLoad(t *testing.T) {
	t.Parallel()

	db, _ := newTestDB(t)
	es := store.NewEventStore(db, nil)
	ctx := context.Background()

	loaded, err := es.Load(ctx, "missing-aggregate")
	require.NoError(t, err)
	require.Empty(t, loaded)

	ev1, err := event.New("agg-1", "thing.happened", map[string]int{"n": 1})
	require.NoError(t, err)
	ev2, err := event.New("agg-1", "thing.happened", map[string]int{"n": 2})
	require.NoError(t, err)
	other, err := event.New("agg-2", "thing.happened", map[string]int{"n": 3})
	require.NoError(t, err)

	require.NoError(t, es.Append(ctx, []event.Event{ev1, ev2}))
	require.NoError(t, es.Append(ctx, []event.Event{other}))

	loaded, err = es.Load(ctx, "agg-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, ev1.ID, loaded[0].ID)
	require.Equal(t, ev2.ID, loaded[1].ID)
	require.JSONEq(t, string(ev1.Payload), string(loaded[0].Payload))

	_, err = es.Load(ctx, "")
	require.Error(t, err)
}

func TestEventStoreAppendIsIdempotent(t *testing.T) {
	t.Parallel()

	db, _ := newTestDB(t)
	es := store.NewEventStore(db, nil)
	ctx := context.Background()

	ev, err := event.New("agg-1", "thing.happened", map[string]int{"n": 1})
	require.NoError(t, err)

	require.NoError(t, es.Append(ctx, []event.Event{ev}))
	// a retried append of the same event id is ignored, not duplicated
	require.NoError(t, es.Append(ctx, []event.Event{ev}))

	loaded, err := es.Load(ctx, "agg-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestEventStoreEmptyAppend(t *testing.T) {
	t.Parallel()

	db, _ := newTestDB(t)
	es := store.NewEventStore(db, nil)

	require.NoError(t, es.Append(context.Background(), nil))
}

// Persist a live aggregate, reload its log, and replay it into an identical
// copy.
func TestEventStoreAggregateRoundTrip(t *testing.T) {
	t.Parallel()

	db, _ := newTestDB(t)
	es := store.NewEventStore(db, nil)
	ctx := context.Background()

	r, err := airequest.New("req-1", "user-1", "persona-1",
		aimodel.NewTextContent("hello"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, r.MarkSent())
	require.NoError(t, r.RecordResponse(aimodel.NewTextContent("answer")))

	require.NoError(t, es.Append(ctx, r.UncommittedEvents()))
	r.MarkEventsCommitted()

	history, err := es.Load(ctx, r.ID())
	require.NoError(t, err)
	require.Len(t, history, 3)

	replayed, err := airequest.FromHistory(r.ID(), history)
	require.NoError(t, err)
	require.Equal(t, airequest.StatusCompleted, replayed.Status())
	require.Equal(t, r.Attempts(), replayed.Attempts())
	require.Equal(t, r.Version(), replayed.Version())
	require.Equal(t, r.Response(), replayed.Response())
}
