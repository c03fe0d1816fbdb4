// Package conversation implements the event-sourced message history and
// auto-response timing policy for one channel conversation.
package conversation

import (
	"errors"
	"time"

	"github.com/auric-labs/personagate/internal/domain/event"
	"github.com/auric-labs/personagate/internal/domain/identity"
	apperr "github.com/auric-labs/personagate/internal/errors"
)

var (
	// ErrConversationEnded rejects operations on a conversation that has
	// already been closed.
	ErrConversationEnded = errors.New("conversation has ended")

	// ErrConversationTimedOut rejects the message that found the
	// conversation idle beyond its timeout. The conversation is force-ended
	// as a side effect of the rejected call.
	ErrConversationTimedOut = errors.New("conversation timed out due to inactivity")
)

// End reasons recorded on the Ended event.
const (
	EndReasonManual  = "manual"
	EndReasonTimeout = "timeout"
)

// Message is one entry in the conversation history. AuthorID holds the user
// id, or the personality id when the relay itself responded.
type Message struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Settings governs auto-response timing and conversation lifetime.
type Settings struct {
	AutoResponseEnabled bool          `json:"autoResponseEnabled"`
	AutoResponseDelay   time.Duration `json:"autoResponseDelay"`
	Timeout             time.Duration `json:"timeout"`
	IsDM                bool          `json:"isDM"`
	MentionOnly         bool          `json:"mentionOnly"`
}

// DefaultSettings are used for guild channel conversations.
func DefaultSettings() Settings {
	return Settings{
		AutoResponseEnabled: false,
		AutoResponseDelay:   5 * time.Second,
		Timeout:             10 * time.Minute,
		MentionOnly:         true,
	}
}

// DMSettings are used for direct-message conversations, which respond
// without being re-addressed.
func DMSettings() Settings {
	s := DefaultSettings()
	s.AutoResponseEnabled = true
	s.MentionOnly = false
	s.IsDM = true
	return s
}

// Conversation is the event-sourced aggregate holding the message history of
// an active back-and-forth. It lives until an explicit close or idle timeout.
type Conversation struct {
	event.Aggregate

	messages          []Message
	activePersonality string
	settings          Settings
	startedAt         time.Time
	lastActivityAt    time.Time
	ended             bool
	endReason         string

	clock func() time.Time
}

func newConversation(id identity.ConversationID) *Conversation {
	c := &Conversation{
		Aggregate: event.NewAggregate(id.String()),
		clock:     time.Now,
	}
	c.On(TypeStarted, c.applyStarted)
	c.On(TypeMessageAdded, c.applyMessageAdded)
	c.On(TypePersonalityAssigned, c.applyPersonalityAssigned)
	c.On(TypeSettingsUpdated, c.applySettingsUpdated)
	c.On(TypeEnded, c.applyEnded)
	return c
}

// Start opens a conversation with its initial message. DM conversations
// default to auto-response without mention.
func Start(id string, initial Message, personalityID string, isDM bool) (*Conversation, error) {
	convID, err := identity.NewConversationID(id)
	if err != nil {
		return nil, err
	}
	if err := validateMessage(initial); err != nil {
		return nil, err
	}
	if personalityID != "" {
		if _, err := identity.NewPersonalityID(personalityID); err != nil {
			return nil, err
		}
	}

	settings := DefaultSettings()
	if isDM {
		settings = DMSettings()
	}

	c := newConversation(convID)
	if err := c.Raise(TypeStarted, StartedPayload{
		InitialMessage: initial,
		PersonalityID:  personalityID,
		Settings:       settings,
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// FromHistory rebuilds a conversation by replaying its event log.
func FromHistory(id string, events []event.Event) (*Conversation, error) {
	convID, err := identity.NewConversationID(id)
	if err != nil {
		return nil, err
	}
	c := newConversation(convID)
	if err := c.LoadFromHistory(events); err != nil {
		return nil, err
	}
	return c, nil
}

func validateMessage(m Message) error {
	if m.ID == "" {
		return apperr.Validationf("message id is required")
	}
	if m.AuthorID == "" {
		return apperr.Validationf("message author is required")
	}
	if m.Content == "" {
		return apperr.Validationf("message content is required")
	}
	return nil
}

// AddMessage appends to the history and refreshes the activity timestamp.
// A conversation found idle beyond its timeout is force-ended first and the
// call is rejected with ErrConversationTimedOut; callers do not end it
// themselves.
func (c *Conversation) AddMessage(m Message) error {
	if c.ended {
		return ErrConversationEnded
	}
	if err := validateMessage(m); err != nil {
		return err
	}
	if c.IsTimedOut() {
		if err := c.Raise(TypeEnded, EndedPayload{Reason: EndReasonTimeout}); err != nil {
			return err
		}
		return ErrConversationTimedOut
	}
	return c.Raise(TypeMessageAdded, MessageAddedPayload{Message: m})
}

// AssignPersonality switches the active personality. No event is emitted
// when the personality is unchanged.
func (c *Conversation) AssignPersonality(personalityID string) error {
	if c.ended {
		return ErrConversationEnded
	}
	if _, err := identity.NewPersonalityID(personalityID); err != nil {
		return err
	}
	if personalityID == c.activePersonality {
		return nil
	}
	return c.Raise(TypePersonalityAssigned, PersonalityAssignedPayload{
		PersonalityID:         personalityID,
		PreviousPersonalityID: c.activePersonality,
	})
}

// UpdateSettings replaces the settings. No event is emitted when the new
// settings equal the current ones.
func (c *Conversation) UpdateSettings(s Settings) error {
	if c.ended {
		return ErrConversationEnded
	}
	if s == c.settings {
		return nil
	}
	return c.Raise(TypeSettingsUpdated, SettingsUpdatedPayload{Settings: s})
}

// End closes the conversation. Idempotent: ending an ended conversation
// emits nothing. The recorded reason is timeout when the conversation is
// currently idle past its timeout, manual otherwise.
func (c *Conversation) End() error {
	if c.ended {
		return nil
	}
	reason := EndReasonManual
	if c.IsTimedOut() {
		reason = EndReasonTimeout
	}
	return c.Raise(TypeEnded, EndedPayload{Reason: reason})
}

// IsTimedOut reports whether an open conversation has been idle beyond its
// timeout.
func (c *Conversation) IsTimedOut() bool {
	return !c.ended && c.clock().Sub(c.lastActivityAt) > c.settings.Timeout
}

// ShouldAutoRespond reports whether the relay may respond without being
// re-addressed: the conversation is open, auto-response is enabled, the
// latest message was not authored by the active personality, and the
// auto-response delay has elapsed since the last activity.
func (c *Conversation) ShouldAutoRespond() bool {
	if c.ended || !c.settings.AutoResponseEnabled {
		return false
	}
	last := c.LastMessage()
	if last == nil {
		return false
	}
	if c.activePersonality != "" && last.AuthorID == c.activePersonality {
		return false
	}
	return c.clock().Sub(c.lastActivityAt) >= c.settings.AutoResponseDelay
}

// RecentMessages returns up to n of the latest messages in chronological
// order.
func (c *Conversation) RecentMessages(n int) []Message {
	if n <= 0 || len(c.messages) == 0 {
		return nil
	}
	if n > len(c.messages) {
		n = len(c.messages)
	}
	out := make([]Message, n)
	copy(out, c.messages[len(c.messages)-n:])
	return out
}

// LastMessage returns the most recent message, or nil for an empty history.
func (c *Conversation) LastMessage() *Message {
	if len(c.messages) == 0 {
		return nil
	}
	m := c.messages[len(c.messages)-1]
	return &m
}

func (c *Conversation) ActivePersonality() string { return c.activePersonality }
func (c *Conversation) Settings() Settings        { return c.settings }
func (c *Conversation) StartedAt() time.Time      { return c.startedAt }
func (c *Conversation) LastActivityAt() time.Time { return c.lastActivityAt }
func (c *Conversation) Ended() bool               { return c.ended }
func (c *Conversation) EndReason() string         { return c.endReason }
