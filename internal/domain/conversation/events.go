package conversation

import (
	"github.com/auric-labs/personagate/internal/domain/event"
)

// Event types emitted by the Conversation aggregate.
const (
	TypeStarted             = "conversation.started"
	TypeMessageAdded        = "conversation.message_added"
	TypePersonalityAssigned = "conversation.personality_assigned"
	TypeSettingsUpdated     = "conversation.settings_updated"
	TypeEnded               = "conversation.ended"
)

type StartedPayload struct {
	InitialMessage Message  `json:"initialMessage"`
	PersonalityID  string   `json:"personalityId,omitempty"`
	Settings       Settings `json:"settings"`
}

type MessageAddedPayload struct {
	Message Message `json:"message"`
}

type PersonalityAssignedPayload struct {
	PersonalityID         string `json:"personalityId"`
	PreviousPersonalityID string `json:"previousPersonalityId,omitempty"`
}

type SettingsUpdatedPayload struct {
	Settings Settings `json:"settings"`
}

type EndedPayload struct {
	Reason string `json:"reason"`
}

func (c *Conversation) applyStarted(ev event.Event) error {
	var p StartedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	c.messages = []Message{p.InitialMessage}
	c.activePersonality = p.PersonalityID
	c.settings = p.Settings
	c.startedAt = ev.OccurredAt
	c.lastActivityAt = ev.OccurredAt
	return nil
}

func (c *Conversation) applyMessageAdded(ev event.Event) error {
	var p MessageAddedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	c.messages = append(c.messages, p.Message)
	c.lastActivityAt = ev.OccurredAt
	return nil
}

func (c *Conversation) applyPersonalityAssigned(ev event.Event) error {
	var p PersonalityAssignedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	c.activePersonality = p.PersonalityID
	return nil
}

func (c *Conversation) applySettingsUpdated(ev event.Event) error {
	var p SettingsUpdatedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	c.settings = p.Settings
	return nil
}

func (c *Conversation) applyEnded(ev event.Event) error {
	var p EndedPayload
	if err := event.DecodePayload(ev, &p); err != nil {
		return err
	}

	c.ended = true
	c.endReason = p.Reason
	return nil
}
