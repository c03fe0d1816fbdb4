// Package auth wires token storage, NSFW verification, AI client caching and
// personality-access validation into one composition root, and owns their
// startup, shutdown and scheduled cleanup.
package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"google.golang.org/genai"

	"github.com/auric-labs/personagate/internal/auth/access"
	"github.com/auric-labs/personagate/internal/auth/aiclient"
	"github.com/auric-labs/personagate/internal/auth/nsfw"
	"github.com/auric-labs/personagate/internal/auth/token"
)

// Config holds the static identity and endpoints of the relay.
type Config struct {
	AppID             string
	APIKey            string
	AuthWebsite       string
	AuthAPIEndpoint   string
	ServiceAPIBaseURL string
	OwnerID           string
	DataDir           string

	// TokenLifetime is the advisory lifetime stamped on newly exchanged
	// tokens; store-level cleanup purges records past it.
	TokenLifetime time.Duration

	// CleanupInterval is how often expired tokens are purged. Defaults to
	// 24h when zero.
	CleanupInterval time.Duration
}

// FileStats reports persisted-store sizes for observability.
type FileStats struct {
	DatabaseBytes    int64
	TokenRows        int
	VerificationRows int
	EventRows        int
}

// PersistenceAdapter is the storage collaborator loading and saving the
// token and verification maps.
type PersistenceAdapter interface {
	LoadUserTokens(ctx context.Context) (map[string]token.Record, error)
	SaveUserTokens(ctx context.Context, tokens map[string]token.Record) error
	LoadNsfwVerifications(ctx context.Context) (map[string]nsfw.VerificationRecord, error)
	SaveNsfwVerifications(ctx context.Context, records map[string]nsfw.VerificationRecord) error
	FileStats(ctx context.Context) (FileStats, error)
}

// OAuthProvider exchanges authorization codes for user tokens.
type OAuthProvider interface {
	AuthorizationURL() string
	ExchangeCodeForToken(ctx context.Context, code string) (string, error)
}

// ClientFactory is the subset of the AI client factory the manager drives.
type ClientFactory interface {
	Initialize(ctx context.Context) error
	GetClient(ctx context.Context, opts aiclient.GetClientOptions) (*genai.Client, error)
	ClearUserClient(userID string)
	ClearAllClients()
	CacheStats() aiclient.Stats
}

// VerificationManager is the subset of the NSFW manager the composition root
// wires for loading, flushing and delegation.
type VerificationManager interface {
	LoadRecords(records map[string]nsfw.VerificationRecord)
	Snapshot() map[string]nsfw.VerificationRecord
	VerifyAccess(ctx context.Context, ch nsfw.Channel, userID string, msg *nsfw.Message) nsfw.Decision
	IsVerified(userID string) bool
	Count() int
}

// AccessValidator decides personality access and renders auth help text.
type AccessValidator interface {
	ValidatePersonalityAccess(ctx context.Context, req access.Request) access.Result
	UserAuthStatus(userID string) access.Status
	AuthHelpMessage(res access.Result) string
}

// GetAIClientOptions selects the client returned by GetAIClient.
type GetAIClientOptions struct {
	UserID     string
	IsWebhook  bool
	UseDefault bool
}

// Statistics aggregates counts across the stores and the client cache.
type Statistics struct {
	TokenCount        int
	VerificationCount int
	ClientCache       aiclient.Stats
	Files             FileStats
}

// Manager is the composition root for authorization. It owns the in-memory
// token map (flushed through the persistence adapter), the cleanup schedule,
// and delegation to the injected collaborators.
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	store     PersistenceAdapter
	oauth     OAuthProvider
	factory   ClientFactory
	verifier  VerificationManager
	validator AccessValidator

	mu     sync.Mutex
	tokens map[string]token.Record

	scheduler gocron.Scheduler
}

// NewManager wires the composition root from its injected collaborators.
func NewManager(
	cfg Config,
	store PersistenceAdapter,
	oauth OAuthProvider,
	factory ClientFactory,
	verifier VerificationManager,
	validator AccessValidator,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = 30 * 24 * time.Hour
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger.With("component", "auth_manager"),
		store:     store,
		oauth:     oauth,
		factory:   factory,
		verifier:  verifier,
		validator: validator,
		tokens:    make(map[string]token.Record),
	}
}

// SetAccessValidator installs the access validator. The validator consults
// the manager's token view, so it is constructed after the manager and wired
// here before Initialize.
func (m *Manager) SetAccessValidator(v AccessValidator) {
	m.validator = v
}

// Initialize builds the default AI client, loads persisted tokens and
// verifications, purges already expired tokens (persisting when any were
// purged) and schedules the recurring cleanup. Initialization failure is
// fatal and propagates.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.factory.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize AI client factory: %w", err)
	}

	tokens, err := m.store.LoadUserTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to load user tokens: %w", err)
	}
	m.mu.Lock()
	m.tokens = tokens
	if m.tokens == nil {
		m.tokens = make(map[string]token.Record)
	}
	m.mu.Unlock()

	verifications, err := m.store.LoadNsfwVerifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to load NSFW verifications: %w", err)
	}
	m.verifier.LoadRecords(verifications)

	purged := m.purgeExpiredTokens()
	if purged > 0 {
		if err := m.persistTokens(ctx); err != nil {
			return fmt.Errorf("failed to persist tokens after startup purge: %w", err)
		}
		m.logger.InfoContext(ctx, "Purged expired tokens during startup", "count", purged)
	}

	if err := m.startCleanupSchedule(); err != nil {
		return fmt.Errorf("failed to schedule token cleanup: %w", err)
	}

	m.logger.InfoContext(ctx, "Auth manager initialized",
		"tokens", len(tokens), "verifications", m.verifier.Count(),
		"cleanup_interval", m.cfg.CleanupInterval)
	return nil
}

func (m *Manager) startCleanupSchedule() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(m.cfg.CleanupInterval),
		gocron.NewTask(func(ctx context.Context) {
			m.PerformScheduledCleanup(ctx)
		}, context.Background()),
		gocron.WithName("token_cleanup"),
	)
	if err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}

	s.Start()
	m.scheduler = s
	return nil
}

// ExchangeCodeForToken trades the one-time code for a token, stores and
// persists it, and invalidates any cached AI client for the user so the next
// request rebuilds with the fresh credential. It never panics or returns an
// error: any internal failure is logged and reported as false.
func (m *Manager) ExchangeCodeForToken(ctx context.Context, code, userID string) bool {
	if userID == "" {
		m.logger.WarnContext(ctx, "Token exchange called without user id")
		return false
	}

	value, err := m.oauth.ExchangeCodeForToken(ctx, code)
	if err != nil {
		m.logger.ErrorContext(ctx, "Token exchange failed", "user_id", userID, "error", err)
		return false
	}

	now := time.Now().UTC()
	expiresAt := now.Add(m.cfg.TokenLifetime)
	m.mu.Lock()
	m.tokens[userID] = token.Record{
		Value:     value,
		ExpiresAt: &expiresAt,
		CreatedAt: now,
	}
	m.mu.Unlock()

	if err := m.persistTokens(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to persist tokens after exchange", "user_id", userID, "error", err)
		return false
	}

	m.factory.ClearUserClient(userID)
	m.logger.InfoContext(ctx, "Stored user token", "user_id", userID)
	return true
}

// DeleteUserToken removes the user's token. Best effort: internal failures
// are logged and reported as false.
func (m *Manager) DeleteUserToken(ctx context.Context, userID string) bool {
	m.mu.Lock()
	_, existed := m.tokens[userID]
	delete(m.tokens, userID)
	m.mu.Unlock()

	if !existed {
		return false
	}

	if err := m.persistTokens(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to persist tokens after delete", "user_id", userID, "error", err)
		return false
	}

	m.factory.ClearUserClient(userID)
	m.logger.InfoContext(ctx, "Deleted user token", "user_id", userID)
	return true
}

// HasToken reports whether the user currently holds a stored token.
func (m *Manager) HasToken(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[userID]
	return ok
}

// UserToken returns the user's current token record.
func (m *Manager) UserToken(userID string) (token.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tokens[userID]
	return rec, ok
}

// GetAIClient returns a client for the interaction. The user's token is
// looked up fresh on every call rather than cached here, so rotations are
// picked up as soon as the factory cache is cleared.
func (m *Manager) GetAIClient(ctx context.Context, opts GetAIClientOptions) (*genai.Client, error) {
	var userToken string
	if rec, ok := m.UserToken(opts.UserID); ok {
		userToken = rec.Value
	}

	return m.factory.GetClient(ctx, aiclient.GetClientOptions{
		UserID:     opts.UserID,
		UserToken:  userToken,
		IsWebhook:  opts.IsWebhook,
		UseDefault: opts.UseDefault,
	})
}

// ValidatePersonalityAccess delegates to the access validator.
func (m *Manager) ValidatePersonalityAccess(ctx context.Context, req access.Request) access.Result {
	return m.validator.ValidatePersonalityAccess(ctx, req)
}

// UserAuthStatus delegates to the access validator.
func (m *Manager) UserAuthStatus(userID string) access.Status {
	return m.validator.UserAuthStatus(userID)
}

// AuthHelpMessage delegates to the access validator.
func (m *Manager) AuthHelpMessage(res access.Result) string {
	return m.validator.AuthHelpMessage(res)
}

// CleanupExpiredTokens purges tokens whose persisted expiry has passed and
// persists the map when anything was removed.
func (m *Manager) CleanupExpiredTokens(ctx context.Context) (int, error) {
	purged := m.purgeExpiredTokens()
	if purged == 0 {
		return 0, nil
	}
	if err := m.persistTokens(ctx); err != nil {
		return purged, fmt.Errorf("failed to persist tokens after cleanup: %w", err)
	}
	return purged, nil
}

// PerformScheduledCleanup runs the periodic purge. Errors are logged, never
// propagated, so a storage hiccup cannot kill the schedule.
func (m *Manager) PerformScheduledCleanup(ctx context.Context) {
	start := time.Now()
	purged, err := m.CleanupExpiredTokens(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Scheduled token cleanup failed",
			"error", err, "duration", time.Since(start))
		return
	}
	m.logger.InfoContext(ctx, "Scheduled token cleanup finished",
		"purged", purged, "duration", time.Since(start))
}

func (m *Manager) purgeExpiredTokens() int {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for userID, rec := range m.tokens {
		if rec.Expired(now) {
			delete(m.tokens, userID)
			m.factory.ClearUserClient(userID)
			purged++
		}
	}
	return purged
}

func (m *Manager) persistTokens(ctx context.Context) error {
	m.mu.Lock()
	snapshot := make(map[string]token.Record, len(m.tokens))
	for id, rec := range m.tokens {
		snapshot[id] = rec
	}
	m.mu.Unlock()

	return m.store.SaveUserTokens(ctx, snapshot)
}

// Shutdown cancels the cleanup schedule and flushes both stores.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			m.logger.ErrorContext(ctx, "Error stopping cleanup scheduler", "error", err)
		}
		m.scheduler = nil
	}

	if err := m.persistTokens(ctx); err != nil {
		return fmt.Errorf("failed to flush user tokens: %w", err)
	}
	if err := m.store.SaveNsfwVerifications(ctx, m.verifier.Snapshot()); err != nil {
		return fmt.Errorf("failed to flush NSFW verifications: %w", err)
	}

	m.logger.InfoContext(ctx, "Auth manager shut down")
	return nil
}

// Statistics aggregates token and verification counts, client-cache stats
// and persisted-store sizes.
func (m *Manager) Statistics(ctx context.Context) (Statistics, error) {
	m.mu.Lock()
	tokenCount := len(m.tokens)
	m.mu.Unlock()

	files, err := m.store.FileStats(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to read store stats: %w", err)
	}

	return Statistics{
		TokenCount:        tokenCount,
		VerificationCount: m.verifier.Count(),
		ClientCache:       m.factory.CacheStats(),
		Files:             files,
	}, nil
}
