package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/auric-labs/personagate/internal/auth"
	"github.com/auric-labs/personagate/internal/auth/nsfw"
	"github.com/auric-labs/personagate/internal/auth/token"
)

type tokenRow struct {
	UserID    string       `db:"user_id"`
	Value     string       `db:"token_value"`
	ExpiresAt sql.NullTime `db:"expires_at"`
	CreatedAt time.Time    `db:"created_at"`
}

type verificationRow struct {
	UserID     string    `db:"user_id"`
	Verified   bool      `db:"verified"`
	VerifiedAt time.Time `db:"verified_at"`
}

// Store implements the persistence adapter over SQLite.
type Store struct {
	db     *sqlx.DB
	dbPath string
	logger *slog.Logger
}

// NewStore creates a persistence adapter backed by sqlx. dbPath is retained
// for file-size reporting.
func NewStore(db *sqlx.DB, dbPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		db:     db,
		dbPath: dbPath,
		logger: logger.With("component", "store"),
	}
}

// LoadUserTokens loads the full token map.
func (s *Store) LoadUserTokens(ctx context.Context) (map[string]token.Record, error) {
	var rows []tokenRow
	query := `SELECT user_id, token_value, expires_at, created_at FROM user_tokens`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		s.logger.ErrorContext(ctx, "Error loading user tokens", "error", err)
		return nil, fmt.Errorf("failed to load user tokens: %w", err)
	}

	tokens := make(map[string]token.Record, len(rows))
	for _, r := range rows {
		rec := token.Record{Value: r.Value, CreatedAt: r.CreatedAt}
		if r.ExpiresAt.Valid {
			exp := r.ExpiresAt.Time
			rec.ExpiresAt = &exp
		}
		tokens[r.UserID] = rec
	}

	s.logger.DebugContext(ctx, "Loaded user tokens", "count", len(tokens))
	return tokens, nil
}

// SaveUserTokens replaces the persisted token map atomically.
func (s *Store) SaveUserTokens(ctx context.Context, tokens map[string]token.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving tokens", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens`); err != nil {
		return fmt.Errorf("failed to clear user tokens: %w", err)
	}

	insert := `
        INSERT INTO user_tokens (user_id, token_value, expires_at, created_at)
        VALUES (:user_id, :token_value, :expires_at, :created_at);
    `
	for userID, rec := range tokens {
		row := tokenRow{
			UserID:    userID,
			Value:     rec.Value,
			CreatedAt: rec.CreatedAt,
		}
		if rec.ExpiresAt != nil {
			row.ExpiresAt = sql.NullTime{Time: *rec.ExpiresAt, Valid: true}
		}
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			s.logger.ErrorContext(ctx, "Error saving user token", "user_id", userID, "error", err)
			return fmt.Errorf("failed to save token for user %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit token save transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Saved user tokens", "count", len(tokens))
	return nil
}

// LoadNsfwVerifications loads the full verification map.
func (s *Store) LoadNsfwVerifications(ctx context.Context) (map[string]nsfw.VerificationRecord, error) {
	var rows []verificationRow
	query := `SELECT user_id, verified, verified_at FROM nsfw_verifications`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		s.logger.ErrorContext(ctx, "Error loading NSFW verifications", "error", err)
		return nil, fmt.Errorf("failed to load NSFW verifications: %w", err)
	}

	records := make(map[string]nsfw.VerificationRecord, len(rows))
	for _, r := range rows {
		records[r.UserID] = nsfw.VerificationRecord{
			UserID:     r.UserID,
			Verified:   r.Verified,
			VerifiedAt: r.VerifiedAt,
		}
	}

	s.logger.DebugContext(ctx, "Loaded NSFW verifications", "count", len(records))
	return records, nil
}

// SaveNsfwVerifications replaces the persisted verification map atomically.
func (s *Store) SaveNsfwVerifications(ctx context.Context, records map[string]nsfw.VerificationRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving verifications", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nsfw_verifications`); err != nil {
		return fmt.Errorf("failed to clear NSFW verifications: %w", err)
	}

	insert := `
        INSERT INTO nsfw_verifications (user_id, verified, verified_at)
        VALUES (:user_id, :verified, :verified_at);
    `
	for userID, rec := range records {
		row := verificationRow{
			UserID:     userID,
			Verified:   rec.Verified,
			VerifiedAt: rec.VerifiedAt,
		}
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			s.logger.ErrorContext(ctx, "Error saving verification", "user_id", userID, "error", err)
			return fmt.Errorf("failed to save verification for user %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit verification save transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Saved NSFW verifications", "count", len(records))
	return nil
}

// FileStats reports the database file size together with per-table row
// counts for the statistics endpoint.
func (s *Store) FileStats(ctx context.Context) (auth.FileStats, error) {
	var stats auth.FileStats

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseBytes = info.Size()
	} else if !os.IsNotExist(err) {
		s.logger.WarnContext(ctx, "Could not stat database file", "path", s.dbPath, "error", err)
	}

	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM user_tokens`, &stats.TokenRows},
		{`SELECT COUNT(*) FROM nsfw_verifications`, &stats.VerificationRows},
		{`SELECT COUNT(*) FROM events`, &stats.EventRows},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return auth.FileStats{}, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	return stats, nil
}
