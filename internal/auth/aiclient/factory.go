// Package aiclient builds and caches per-user authenticated AI clients.
package aiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"google.golang.org/genai"
)

// Config holds the static service credential and endpoint used for the
// default client and as the base for user clients.
type Config struct {
	APIKey  string
	BaseURL string
}

type cacheKey struct {
	userID        string
	webhookBypass bool
}

// Stats exposes client-cache observability counters.
type Stats struct {
	CachedClients    int
	HasDefaultClient bool
}

// GetClientOptions selects which client GetClient returns.
type GetClientOptions struct {
	UserID     string
	UserToken  string
	IsWebhook  bool
	UseDefault bool
}

// Factory owns the process-wide client cache. Cached clients are immutable
// once built and are invalidated explicitly on credential rotation, never by
// TTL. A repeated CreateUserClient call returns the cached instance without
// re-checking the token value, so a rotated token is stale until
// ClearUserClient is called.
type Factory struct {
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	defaultClient *genai.Client
	userClients   map[cacheKey]*genai.Client
}

// NewFactory creates an uninitialized factory. Initialize must run before
// any other method.
func NewFactory(cfg Config, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Factory{
		cfg:         cfg,
		logger:      logger.With("component", "ai_client_factory"),
		userClients: make(map[cacheKey]*genai.Client),
	}
}

// Initialize builds the default client from the static service credential.
func (f *Factory) Initialize(ctx context.Context) error {
	if f.cfg.APIKey == "" {
		return fmt.Errorf("service API key is required")
	}

	client, err := f.buildClient(ctx, f.cfg.APIKey, nil)
	if err != nil {
		return fmt.Errorf("failed to create default AI client: %w", err)
	}

	f.mu.Lock()
	f.defaultClient = client
	f.mu.Unlock()

	f.logger.Info("AI client factory initialized", "base_url", f.cfg.BaseURL)
	return nil
}

func (f *Factory) buildClient(ctx context.Context, apiKey string, headers http.Header) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: f.cfg.BaseURL,
			Headers: headers,
		},
	})
}

// CreateUserClient returns the client for (userID, webhookBypass), building
// and caching it on first use. The user token feeds the Authorization
// header; webhook bypass adds a marker header instead of user credentials.
func (f *Factory) CreateUserClient(ctx context.Context, userID, userToken string, webhookBypass bool) (*genai.Client, error) {
	if !f.initialized() {
		return nil, fmt.Errorf("factory not initialized")
	}
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	key := cacheKey{userID: userID, webhookBypass: webhookBypass}

	f.mu.Lock()
	if client, ok := f.userClients[key]; ok {
		f.mu.Unlock()
		f.logger.Debug("Returning cached AI client", "user_id", userID, "webhook_bypass", webhookBypass)
		return client, nil
	}
	f.mu.Unlock()

	headers := http.Header{}
	if userToken != "" {
		headers.Set("Authorization", "Bearer "+userToken)
	}
	if webhookBypass {
		headers.Set("X-Webhook-Bypass", "true")
	}

	client, err := f.buildClient(ctx, f.cfg.APIKey, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client for user %s: %w", userID, err)
	}

	// Concurrent first requests for the same user may race here; the built
	// clients are interchangeable, so last writer wins and the lost build is
	// only wasted construction.
	f.mu.Lock()
	f.userClients[key] = client
	f.mu.Unlock()

	f.logger.Debug("Created AI client", "user_id", userID, "webhook_bypass", webhookBypass)
	return client, nil
}

// GetClient returns the default client when UseDefault is set or no user id
// is given, and the per-user client otherwise.
func (f *Factory) GetClient(ctx context.Context, opts GetClientOptions) (*genai.Client, error) {
	f.mu.Lock()
	defaultClient := f.defaultClient
	f.mu.Unlock()

	if defaultClient == nil {
		return nil, fmt.Errorf("factory not initialized")
	}
	if opts.UseDefault || opts.UserID == "" {
		return defaultClient, nil
	}
	return f.CreateUserClient(ctx, opts.UserID, opts.UserToken, opts.IsWebhook)
}

func (f *Factory) initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultClient != nil
}

// ClearUserClient drops both the bypass and non-bypass cache entries for the
// user, forcing the next request to rebuild with fresh credentials.
func (f *Factory) ClearUserClient(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.userClients, cacheKey{userID: userID, webhookBypass: false})
	delete(f.userClients, cacheKey{userID: userID, webhookBypass: true})
	f.logger.Debug("Cleared cached AI clients", "user_id", userID)
}

// ClearAllClients empties the user client cache.
func (f *Factory) ClearAllClients() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.userClients = make(map[cacheKey]*genai.Client)
	f.logger.Info("Cleared all cached AI clients")
}

// CacheStats returns cache observability counters.
func (f *Factory) CacheStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Stats{
		CachedClients:    len(f.userClients),
		HasDefaultClient: f.defaultClient != nil,
	}
}
