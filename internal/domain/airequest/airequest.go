// Package airequest implements the event-sourced lifecycle of one AI call,
// including its retry and rate-limit policy.
package airequest

import (
	"time"

	"github.com/auric-labs/personagate/internal/domain/aimodel"
	"github.com/auric-labs/personagate/internal/domain/event"
	"github.com/auric-labs/personagate/internal/domain/identity"
	apperr "github.com/auric-labs/personagate/internal/errors"
)

// Status is the lifecycle state of an AI request.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSent        Status = "sent"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRetrying    Status = "retrying"
	StatusRateLimited Status = "rate_limited"
)

// MaxAttempts caps how many times a request may be sent.
const MaxAttempts = 3

// RequestError captures an upstream failure. CanRetry is the single source of
// truth distinguishing transient failures from permanent ones.
type RequestError struct {
	Message  string `json:"message"`
	Code     string `json:"code"`
	CanRetry bool   `json:"canRetry"`
}

// AIRequest is the event-sourced aggregate tracking one logical AI call from
// creation through completion, failure, retry or rate limiting.
type AIRequest struct {
	event.Aggregate

	userID        string
	personalityID string
	content       aimodel.Content
	referenced    aimodel.Content
	model         aimodel.Model
	response      aimodel.Content
	status        Status
	attempts      int
	reqErr        *RequestError
	createdAt     time.Time
	sentAt        *time.Time
	completedAt   *time.Time
	retryAt       *time.Time
	rateLimitedAt *time.Time

	clock func() time.Time
}

func newAIRequest(id identity.AIRequestID) *AIRequest {
	r := &AIRequest{
		Aggregate: event.NewAggregate(id.String()),
		clock:     time.Now,
	}
	r.On(TypeCreated, r.applyCreated)
	r.On(TypeSent, r.applySent)
	r.On(TypeResponseReceived, r.applyResponseReceived)
	r.On(TypeFailed, r.applyFailed)
	r.On(TypeRetried, r.applyRetried)
	r.On(TypeRateLimited, r.applyRateLimited)
	return r
}

// New validates the identifiers and content, checks content against the
// model's capability flags, and emits a Created event. A nil model selects
// aimodel.DefaultModel.
func New(id, userID, personalityID string, content, referenced aimodel.Content, model *aimodel.Model) (*AIRequest, error) {
	reqID, err := identity.NewAIRequestID(id)
	if err != nil {
		return nil, err
	}
	uid, err := identity.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	pid, err := identity.NewPersonalityID(personalityID)
	if err != nil {
		return nil, err
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	if referenced != nil {
		if err := referenced.Validate(); err != nil {
			return nil, err
		}
	}

	m := aimodel.DefaultModel
	if model != nil {
		m = *model
	}
	if err := aimodel.CheckCompatibility(content, m); err != nil {
		return nil, err
	}
	if referenced != nil {
		if err := aimodel.CheckCompatibility(referenced, m); err != nil {
			return nil, err
		}
	}

	r := newAIRequest(reqID)
	if err := r.Raise(TypeCreated, CreatedPayload{
		UserID:        uid.String(),
		PersonalityID: pid.String(),
		Content:       content,
		Referenced:    referenced,
		Model:         m,
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// FromHistory rebuilds an AIRequest by replaying its event log.
func FromHistory(id string, events []event.Event) (*AIRequest, error) {
	reqID, err := identity.NewAIRequestID(id)
	if err != nil {
		return nil, err
	}
	r := newAIRequest(reqID)
	if err := r.LoadFromHistory(events); err != nil {
		return nil, err
	}
	return r, nil
}

// MarkSent transitions pending or retrying requests to sent, incrementing
// the attempt counter.
func (r *AIRequest) MarkSent() error {
	if r.status != StatusPending && r.status != StatusRetrying {
		return apperr.NewInvalidStateTransitionError("mark sent", string(r.status))
	}
	return r.Raise(TypeSent, SentPayload{Attempt: r.attempts + 1})
}

// RecordResponse records a completed upstream call. Legal only from sent.
func (r *AIRequest) RecordResponse(response aimodel.Content) error {
	if r.status != StatusSent {
		return apperr.NewInvalidStateTransitionError("record response", string(r.status))
	}
	if err := response.Validate(); err != nil {
		return err
	}
	return r.Raise(TypeResponseReceived, ResponseReceivedPayload{Response: response})
}

// RecordFailure captures an upstream error. Legal only from sent; completed
// and failed requests cannot fail again.
func (r *AIRequest) RecordFailure(message, code string, canRetry bool) error {
	if r.status != StatusSent {
		return apperr.NewInvalidStateTransitionError("record failure", string(r.status))
	}
	return r.Raise(TypeFailed, FailedPayload{
		Message:  message,
		Code:     code,
		CanRetry: canRetry,
	})
}

// ScheduleRetry moves a failed request to retrying with a target retry
// timestamp. The attempts cap is enforced here.
func (r *AIRequest) ScheduleRetry(delay time.Duration) error {
	if r.status != StatusFailed {
		return apperr.NewInvalidStateTransitionError("schedule retry", string(r.status))
	}
	if r.attempts >= MaxAttempts {
		return apperr.NewMaxRetriesExceededError(MaxAttempts)
	}
	return r.Raise(TypeRetried, RetriedPayload{
		RetryAt: r.clock().Add(delay).UTC(),
		Attempt: r.attempts,
	})
}

// RecordRateLimit marks the request rate limited. Reachable from any
// non-terminal state; rate_limited itself has no outgoing transitions.
func (r *AIRequest) RecordRateLimit(retryAfter time.Duration) error {
	if r.isTerminal() || r.status == StatusRateLimited {
		return apperr.NewInvalidStateTransitionError("record rate limit", string(r.status))
	}
	return r.Raise(TypeRateLimited, RateLimitedPayload{
		RateLimitedAt: r.clock().UTC(),
		RetryAfter:    retryAfter,
	})
}

func (r *AIRequest) isTerminal() bool {
	if r.status == StatusCompleted {
		return true
	}
	return r.status == StatusFailed && !r.CanRetry()
}

// CanRetry reports whether the request failed transiently and still has
// attempts left.
func (r *AIRequest) CanRetry() bool {
	return r.status == StatusFailed && r.reqErr != nil && r.reqErr.CanRetry && r.attempts < MaxAttempts
}

// ResponseTime returns completedAt-sentAt, or nil unless both are set.
func (r *AIRequest) ResponseTime() *time.Duration {
	if r.sentAt == nil || r.completedAt == nil {
		return nil
	}
	d := r.completedAt.Sub(*r.sentAt)
	return &d
}

func (r *AIRequest) UserID() string              { return r.userID }
func (r *AIRequest) PersonalityID() string       { return r.personalityID }
func (r *AIRequest) Content() aimodel.Content    { return r.content }
func (r *AIRequest) Referenced() aimodel.Content { return r.referenced }
func (r *AIRequest) Model() aimodel.Model        { return r.model }
func (r *AIRequest) Response() aimodel.Content   { return r.response }
func (r *AIRequest) Status() Status              { return r.status }
func (r *AIRequest) Attempts() int               { return r.attempts }
func (r *AIRequest) CreatedAt() time.Time        { return r.createdAt }
func (r *AIRequest) SentAt() *time.Time          { return r.sentAt }
func (r *AIRequest) CompletedAt() *time.Time     { return r.completedAt }
func (r *AIRequest) RetryAt() *time.Time         { return r.retryAt }

// Err returns the last recorded failure, or nil.
func (r *AIRequest) Err() *RequestError {
	if r.reqErr == nil {
		return nil
	}
	e := *r.reqErr
	return &e
}
