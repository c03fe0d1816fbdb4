// Package oauth implements the code-for-token exchange against the upstream
// auth service.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	apperr "github.com/auric-labs/personagate/internal/errors"
)

// Provider exchanges one-time authorization codes for user tokens. The HTTP
// timeout is owned entirely by the injected http.Client.
type Provider struct {
	appID       string
	authWebsite string
	apiEndpoint string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewProvider creates an OAuth provider. A nil httpClient falls back to
// http.DefaultClient.
func NewProvider(appID, authWebsite, apiEndpoint string, httpClient *http.Client, logger *slog.Logger) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{
		appID:       appID,
		authWebsite: authWebsite,
		apiEndpoint: apiEndpoint,
		httpClient:  httpClient,
		logger:      logger.With("component", "oauth_provider"),
	}
}

// AuthorizationURL returns the URL a user visits to obtain an authorization
// code.
func (p *Provider) AuthorizationURL() string {
	return fmt.Sprintf("%s/authorize?client_id=%s", p.authWebsite, url.QueryEscape(p.appID))
}

type exchangeRequest struct {
	AppID string `json:"app_id"`
	Code  string `json:"code"`
}

type exchangeResponse struct {
	Token string `json:"auth_token"`
}

// ExchangeCodeForToken trades an authorization code for a user token.
// Failures are returned as AuthExchangeError for the caller to convert at
// the orchestration boundary.
func (p *Provider) ExchangeCodeForToken(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", apperr.NewAuthExchangeError("authorization code is required", nil)
	}

	body, err := json.Marshal(exchangeRequest{AppID: p.appID, Code: code})
	if err != nil {
		return "", apperr.NewAuthExchangeError("failed to marshal exchange request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiEndpoint+"/token", bytes.NewReader(body))
	if err != nil {
		return "", apperr.NewAuthExchangeError("failed to build exchange request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", apperr.NewAuthExchangeError("token exchange request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.WarnContext(ctx, "Token exchange rejected", "status", resp.StatusCode)
		return "", apperr.NewAuthExchangeError(
			fmt.Sprintf("token exchange failed with status %d", resp.StatusCode), nil)
	}

	var out exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.NewAuthExchangeError("failed to decode exchange response", err)
	}
	if out.Token == "" {
		return "", apperr.NewAuthExchangeError("exchange response contained no token", nil)
	}

	return out.Token, nil
}
