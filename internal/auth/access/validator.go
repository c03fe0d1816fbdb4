// Package access combines channel policy and credential checks into one
// personality-access decision.
package access

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/auric-labs/personagate/internal/auth/nsfw"
)

// TokenChecker reports whether a user currently holds a stored token.
type TokenChecker interface {
	HasToken(userID string) bool
}

// Verifier is the subset of the NSFW verification manager the validator
// needs.
type Verifier interface {
	VerifyAccess(ctx context.Context, ch nsfw.Channel, userID string, msg *nsfw.Message) nsfw.Decision
	IsVerified(userID string) bool
}

// AuthURLProvider supplies the link included in authentication help text.
type AuthURLProvider interface {
	AuthorizationURL() string
}

// Request describes one inbound interaction to authorize.
type Request struct {
	Channel       nsfw.Channel
	UserID        string
	PersonalityID string
	Message       *nsfw.Message

	// RequiresAuth marks personalities that need a per-user token rather
	// than the shared service credential.
	RequiresAuth bool
}

// Result is the outcome of a personality-access check.
type Result struct {
	Allowed   bool
	Reason    string
	NeedsAuth bool
	Decision  nsfw.Decision
}

// Status summarizes a user's authentication state.
type Status struct {
	HasToken     bool
	NsfwVerified bool
}

// Validator evaluates personality access: token requirements first, then the
// channel classification policy.
type Validator struct {
	tokens   TokenChecker
	verifier Verifier
	authURL  AuthURLProvider
	logger   *slog.Logger
}

func NewValidator(tokens TokenChecker, verifier Verifier, authURL AuthURLProvider, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Validator{
		tokens:   tokens,
		verifier: verifier,
		authURL:  authURL,
		logger:   logger.With("component", "access_validator"),
	}
}

// ValidatePersonalityAccess decides whether the user may invoke the
// personality in the channel.
func (v *Validator) ValidatePersonalityAccess(ctx context.Context, req Request) Result {
	if req.RequiresAuth && !v.tokens.HasToken(req.UserID) {
		v.logger.DebugContext(ctx, "Denied personality access: no stored token",
			"user_id", req.UserID, "personality_id", req.PersonalityID)
		return Result{
			Reason:    "this personality requires authentication",
			NeedsAuth: true,
		}
	}

	decision := v.verifier.VerifyAccess(ctx, req.Channel, req.UserID, req.Message)
	return Result{
		Allowed:  decision.Allowed,
		Reason:   decision.Reason,
		Decision: decision,
	}
}

// UserAuthStatus reports the user's token and verification state.
func (v *Validator) UserAuthStatus(userID string) Status {
	return Status{
		HasToken:     v.tokens.HasToken(userID),
		NsfwVerified: v.verifier.IsVerified(userID),
	}
}

// AuthHelpMessage renders user-facing guidance for a denied result.
func (v *Validator) AuthHelpMessage(res Result) string {
	if res.Allowed {
		return ""
	}
	if res.NeedsAuth {
		return fmt.Sprintf("Please authenticate first: visit %s and then run the auth command with your code.", v.authURL.AuthorizationURL())
	}
	if res.Reason != "" {
		return res.Reason
	}
	return "You are not allowed to use this personality here."
}
