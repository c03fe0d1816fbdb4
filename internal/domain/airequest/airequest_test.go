package airequest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/auric-labs/personagate/internal/domain/aimodel"
	"github.com/auric-labs/personagate/internal/domain/airequest"
	apperr "github.com/auric-labs/personagate/internal/errors"
)

func newRequest(t *testing.T) *airequest.AIRequest {
	t.Helper()

	r, err := airequest.New("req-1", "user-1", "persona-1",
		aimodel.NewTextContent("hello"), nil, nil)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	t.Parallel()

	textOnly := aimodel.Model{Name: "text-only"}

	testCases := []struct {
		name          string
		id            string
		userID        string
		personalityID string
		content       aimodel.Content
		model         *aimodel.Model
		wantCode      string
	}{
		{
			name:          "valid request",
			id:            "req-1",
			userID:        "user-1",
			personalityID: "persona-1",
			content:       aimodel.NewTextContent("hello"),
		},
		{
			name:          "invalid user id",
			id:            "req-1",
			userID:        "a",
			personalityID: "persona-1",
			content:       aimodel.NewTextContent("hello"),
			wantCode:      apperr.CodeValidation,
		},
		{
			name:          "empty content",
			id:            "req-1",
			userID:        "user-1",
			personalityID: "persona-1",
			content:       aimodel.Content{},
			wantCode:      apperr.CodeValidation,
		},
		{
			name:          "content incompatible with model",
			id:            "req-1",
			userID:        "user-1",
			personalityID: "persona-1",
			content:       aimodel.NewTextContent("hello").WithImage("https://cdn.example.com/a.png"),
			model:         &textOnly,
			wantCode:      apperr.CodeIncompatibleContent,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := airequest.New(tc.id, tc.userID, tc.personalityID, tc.content, nil, tc.model)
			if tc.wantCode != "" {
				require.Error(t, err)
				require.Equal(t, tc.wantCode, apperr.Code(err))
				return
			}
			require.NoError(t, err)

			require.Equal(t, airequest.StatusPending, r.Status())
			require.Equal(t, tc.userID, r.UserID())
			require.Equal(t, tc.personalityID, r.PersonalityID())
			require.Equal(t, aimodel.DefaultModel, r.Model())
			require.Equal(t, 1, r.Version())

			uncommitted := r.UncommittedEvents()
			require.Len(t, uncommitted, 1)
			require.Equal(t, airequest.TypeCreated, uncommitted[0].Type)
		})
	}
}

func TestMarkSent(t *testing.T) {
	t.Parallel()

	r := newRequest(t)
	require.NoError(t, r.MarkSent())
	require.Equal(t, airequest.StatusSent, r.Status())
	require.Equal(t, 1, r.Attempts())
	require.NotNil(t, r.SentAt())

	// sent is not a legal source for another send
	err := r.MarkSent()
	require.Error(t, err)

	var transition *apperr.InvalidStateTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, 1, r.Attempts())
}

func TestRecordResponse(t *testing.T) {
	t.Parallel()

	r := newRequest(t)

	err := r.RecordResponse(aimodel.NewTextContent("too early"))
	require.Error(t, err)
	require.Equal(t, apperr.CodeInvalidState, apperr.Code(err))

	require.NoError(t, r.MarkSent())
	require.NoError(t, r.RecordResponse(aimodel.NewTextContent("answer")))

	require.Equal(t, airequest.StatusCompleted, r.Status())
	require.Equal(t, "answer", r.Response().Text())
	require.NotNil(t, r.CompletedAt())

	rt := r.ResponseTime()
	require.NotNil(t, rt)
	require.GreaterOrEqual(t, *rt, time.Duration(0))
}

func TestResponseTimeNilUntilCompleted(t *testing.T) {
	t.Parallel()

	r := newRequest(t)
	require.Nil(t, r.ResponseTime())

	require.NoError(t, r.MarkSent())
	require.Nil(t, r.ResponseTime())
}

func TestRecordFailureAndCanRetry(t *testing.T) {
	t.Parallel()

	r := newRequest(t)

	err := r.RecordFailure("boom", "UPSTREAM", true)
	require.Error(t, err, "failure is only recordable after send")

	require.NoError(t, r.MarkSent())
	require.NoError(t, r.RecordFailure("boom", "UPSTREAM", true))

	require.Equal(t, airequest.StatusFailed, r.Status())
	require.True(t, r.CanRetry())

	reqErr := r.Err()
	require.NotNil(t, reqErr)
	require.Equal(t, "boom", reqErr.Message)
	require.Equal(t, "UPSTREAM", reqErr.Code)
	require.True(t, reqErr.CanRetry)
}

func TestPermanentFailureCannotRetry(t *testing.T) {
	t.Parallel()

	r := newRequest(t)
	require.NoError(t, r.MarkSent())
	require.NoError(t, r.RecordFailure("bad prompt", "INVALID_ARGUMENT", false))

	require.False(t, r.CanRetry())

	// a permanently failed request is terminal for rate limiting too
	require.Error(t, r.RecordRateLimit(time.Minute))
}

func TestScheduleRetry(t *testing.T) {
	t.Parallel()

	r := newRequest(t)

	err := r.ScheduleRetry(time.Second)
	require.Error(t, err, "pending requests have nothing to retry")

	require.NoError(t, r.MarkSent())
	require.NoError(t, r.RecordFailure("boom", "UPSTREAM", true))
	require.NoError(t, r.ScheduleRetry(30*time.Second))

	require.Equal(t, airequest.StatusRetrying, r.Status())
	require.NotNil(t, r.RetryAt())
	require.True(t, r.RetryAt().After(time.Now().Add(20*time.Second)))

	// retrying is a legal source for the next send
	require.NoError(t, r.MarkSent())
	require.Equal(t, 2, r.Attempts())
}

func TestRetryCap(t *testing.T) {
	t.Parallel()

	r := newRequest(t)
	for i := 0; i < airequest.MaxAttempts; i++ {
		require.NoError(t, r.MarkSent())
		require.NoError(t, r.RecordFailure("boom", "UPSTREAM", true))

		if i < airequest.MaxAttempts-1 {
			require.NoError(t, r.ScheduleRetry(time.Second))
		}
	}

	require.Equal(t, airequest.MaxAttempts, r.Attempts())
	require.False(t, r.CanRetry())

	err := r.ScheduleRetry(time.Second)
	require.Error(t, err)
	require.Equal(t, apperr.CodeMaxRetries, apperr.Code(err))

	var exceeded *apperr.MaxRetriesExceededError
	require.ErrorAs(t, err, &exceeded)
}

func TestRecordRateLimit(t *testing.T) {
	t.Parallel()

	t.Run("from pending", func(t *testing.T) {
		t.Parallel()

		r := newRequest(t)
		require.NoError(t, r.RecordRateLimit(time.Minute))
		require.Equal(t, airequest.StatusRateLimited, r.Status())

		// rate_limited has no outgoing transitions
		require.Error(t, r.RecordRateLimit(time.Minute))
		require.Error(t, r.MarkSent())
	})

	t.Run("from completed", func(t *testing.T) {
		t.Parallel()

		r := newRequest(t)
		require.NoError(t, r.MarkSent())
		require.NoError(t, r.RecordResponse(aimodel.NewTextContent("done")))

		require.Error(t, r.RecordRateLimit(time.Minute))
	})
}

func TestFullLifecycleAndReplay(t *testing.T) {
	t.Parallel()

	r := newRequest(t)
	require.NoError(t, r.MarkSent())
	require.NoError(t, r.RecordFailure("timeout", "UPSTREAM", true))
	require.NoError(t, r.ScheduleRetry(time.Second))
	require.NoError(t, r.MarkSent())
	require.NoError(t, r.RecordResponse(aimodel.NewTextContent("answer")))

	require.Equal(t, airequest.StatusCompleted, r.Status())
	require.Equal(t, 2, r.Attempts())
	require.Equal(t, 6, r.Version())

	events := r.UncommittedEvents()
	require.Len(t, events, 6)
	wantTypes := []string{
		airequest.TypeCreated,
		airequest.TypeSent,
		airequest.TypeFailed,
		airequest.TypeRetried,
		airequest.TypeSent,
		airequest.TypeResponseReceived,
	}
	for i, ev := range events {
		require.Equal(t, wantTypes[i], ev.Type)
		require.Equal(t, r.ID(), ev.AggregateID)
	}

	replayed, err := airequest.FromHistory(r.ID(), events)
	require.NoError(t, err)

	require.Equal(t, r.Status(), replayed.Status())
	require.Equal(t, r.Attempts(), replayed.Attempts())
	require.Equal(t, r.Version(), replayed.Version())
	require.Equal(t, r.UserID(), replayed.UserID())
	require.Equal(t, r.Response(), replayed.Response())
	require.Empty(t, replayed.UncommittedEvents())
}
