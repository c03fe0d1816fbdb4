package airequest

import (
	"time"

	"github.com/auric-labs/personagate/internal/domain/aimodel"
	"github.com/auric-labs/personagate/internal/domain/event"
)

// Event types emitted by the AIRequest aggregate.
const (
	TypeCreated          = "ai_request.created"
	TypeSent             = "ai_request.sent"
	TypeResponseReceived = "ai_request.response_received"
	TypeFailed           = "ai_request.failed"
	TypeRetried          = "ai_request.retried"
	TypeRateLimited      = "ai_request.rate_limited"
)

type CreatedPayload struct {
	UserID        string          `json:"userId"`
	PersonalityID string          `json:"personalityId"`
	Content       aimodel.Content `json:"content"`
	Referenced    aimodel.Content `json:"referencedContent,omitempty"`
	Model         aimodel.Model   `json:"model"`
}

type SentPayload struct {
	Attempt int `json:"attempt"`
}

type ResponseReceivedPayload struct {
	Response aimodel.Content `json:"response"`
}

type FailedPayload struct {
	Message  string `json:"message"`
	Code     string `json:"code"`
	CanRetry bool   `json:"canRetry"`
}

type RetriedPayload struct {
	RetryAt time.Time `json:"retryAt"`
	Attempt int       `json:"attempt"`
}

type RateLimitedPayload struct {
	RateLimitedAt time.Time     `json:"rateLimitedAt"`
	RetryAfter    time.Duration `json:"retryAfter"`
}

func (r *AIRequest) applyCreated(ev event.Event) error {
	var p CreatedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	r.userID = p.UserID
	r.personalityID = p.PersonalityID
	r.content = p.Content
	r.referenced = p.Referenced
	r.model = p.Model
	r.status = StatusPending
	r.createdAt = ev.OccurredAt
	return nil
}

func (r *AIRequest) applySent(ev event.Event) error {
	var p SentPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	r.attempts = p.Attempt
	t := ev.OccurredAt
	r.sentAt = &t
	r.status = StatusSent
	return nil
}

func (r *AIRequest) applyResponseReceived(ev event.Event) error {
	var p ResponseReceivedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	r.response = p.Response
	t := ev.OccurredAt
	r.completedAt = &t
	r.status = StatusCompleted
	return nil
}

func (r *AIRequest) applyFailed(ev event.Event) error {
	var p FailedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	r.reqErr = &RequestError{
		Message:  p.Message,
		Code:     p.Code,
		CanRetry: p.CanRetry,
	}
	r.status = StatusFailed
	return nil
}

func (r *AIRequest) applyRetried(ev event.Event) error {
	var p RetriedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	t := p.RetryAt
	r.retryAt = &t
	r.status = StatusRetrying
	return nil
}

func (r *AIRequest) applyRateLimited(ev event.Event) error {
	var p RateLimitedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	t := p.RateLimitedAt
	r.rateLimitedAt = &t
	r.status = StatusRateLimited
	return nil
}
