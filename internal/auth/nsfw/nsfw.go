// Package nsfw implements the channel-classification access-control policy,
// including proxy-identity resolution and auto-verification.
package nsfw

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Channel is the minimal view of a chat context the policy needs. An empty
// GuildID marks a direct message.
type Channel struct {
	ID      string
	GuildID string
	NSFW    bool
}

// IsDM reports whether the channel has no guild.
func (c Channel) IsDM() bool { return c.GuildID == "" }

// Message carries the proxy markers of an inbound message. WebhookID is set
// when the message was relayed by a webhook on behalf of another identity.
type Message struct {
	AuthorID  string
	WebhookID string
	Content   string
}

// IsProxy reports whether the message was relayed through a proxy system.
func (m *Message) IsProxy() bool {
	return m != nil && m.WebhookID != ""
}

// VerificationRecord marks a user as NSFW-verified. Records are created on
// explicit opt-in or auto-verification and never automatically revoked.
type VerificationRecord struct {
	UserID     string    `json:"userId"`
	Verified   bool      `json:"verified"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// ProxyResolver resolves the real author behind a proxy-relayed message.
// Implementations return the resolved user id, a tag naming the relay system,
// and whether resolution succeeded. New relay protocols are additive: they
// plug in here without touching the policy.
type ProxyResolver interface {
	FindRealUserID(ctx context.Context, msg *Message) (userID, systemType string, ok bool)
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed      bool
	Reason       string
	AutoVerified bool
	IsProxy      bool
	SystemType   string
}

// Manager evaluates the NSFW access policy and owns the in-memory
// verification records. Persistence is handled by the composition root
// through LoadRecords and Snapshot.
type Manager struct {
	mu       sync.Mutex
	records  map[string]VerificationRecord
	resolver ProxyResolver
	logger   *slog.Logger
	clock    func() time.Time
}

// NewManager creates a verification manager. resolver may be nil when no
// proxy system integration is configured; proxy messages are then denied.
func NewManager(resolver ProxyResolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		records:  make(map[string]VerificationRecord),
		resolver: resolver,
		logger:   logger.With("component", "nsfw_verification"),
		clock:    time.Now,
	}
}

// LoadRecords replaces the in-memory records with persisted ones.
func (m *Manager) LoadRecords(records map[string]VerificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]VerificationRecord, len(records))
	for id, rec := range records {
		m.records[id] = rec
	}
}

// Snapshot returns a copy of the current records for persistence.
func (m *Manager) Snapshot() map[string]VerificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]VerificationRecord, len(m.records))
	for id, rec := range m.records {
		out[id] = rec
	}
	return out
}

// IsVerified reports whether the user holds a verification record.
func (m *Manager) IsVerified(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	return ok && rec.Verified
}

// StoreVerification records an explicit opt-in for the user.
func (m *Manager) StoreVerification(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeLocked(userID)
}

func (m *Manager) storeLocked(userID string) {
	m.records[userID] = VerificationRecord{
		UserID:     userID,
		Verified:   true,
		VerifiedAt: m.clock().UTC(),
	}
}

// Count returns the number of verification records.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// RequiresNsfwVerification reports whether the channel is subject to the
// verification policy, i.e. it belongs to a guild.
func (m *Manager) RequiresNsfwVerification(ch Channel) bool {
	return !ch.IsDM()
}

// VerifyAccess evaluates the access policy for a user in a channel:
//
//  1. proxy-relayed identities are resolved to the real author first;
//     unresolvable proxies are denied,
//  2. DMs require prior verification,
//  3. guild SFW channels deny verified users (verification does not grant
//     blanket access),
//  4. guild NSFW channels auto-verify unverified users and allow.
func (m *Manager) VerifyAccess(ctx context.Context, ch Channel, userID string, msg *Message) Decision {
	var decision Decision

	if msg.IsProxy() {
		if m.resolver == nil {
			return Decision{
				Allowed: false,
				Reason:  "cannot verify proxy system user",
				IsProxy: true,
			}
		}
		realID, systemType, ok := m.resolver.FindRealUserID(ctx, msg)
		if !ok {
			m.logger.WarnContext(ctx, "Proxy identity resolution failed",
				"channel_id", ch.ID, "webhook_id", msg.WebhookID)
			return Decision{
				Allowed: false,
				Reason:  "cannot verify proxy system user",
				IsProxy: true,
			}
		}
		m.logger.DebugContext(ctx, "Resolved proxy identity",
			"channel_id", ch.ID, "real_user_id", realID, "system_type", systemType)
		userID = realID
		decision.IsProxy = true
		decision.SystemType = systemType
	}

	verified := m.IsVerified(userID)

	switch {
	case ch.IsDM():
		if verified {
			decision.Allowed = true
			return decision
		}
		decision.Reason = fmt.Sprintf("<@%s> you must be NSFW-verified to use personalities in DMs; interact in an age-restricted channel first", userID)
		return decision

	case !ch.NSFW:
		if verified {
			decision.Reason = "NSFW-verified users can only use personalities in NSFW channels or DMs"
			return decision
		}
		decision.Reason = "personalities can only be used in NSFW channels or DMs"
		return decision

	default: // guild NSFW channel
		if verified {
			decision.Allowed = true
			return decision
		}

		m.mu.Lock()
		m.storeLocked(userID)
		m.mu.Unlock()

		m.logger.InfoContext(ctx, "Auto-verified user in NSFW channel",
			"user_id", userID, "channel_id", ch.ID, "guild_id", ch.GuildID)

		decision.Allowed = true
		decision.AutoVerified = true
		return decision
	}
}
