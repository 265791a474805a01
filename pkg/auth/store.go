package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const tokenColumns = `id, user_id, name, token_hash, token_prefix, created_at, expires_at, last_used_at, revoked_at`

// TokenStore persists API tokens in the api_tokens table
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenStore creates a token store
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(row rowScanner) (*APIToken, error) {
	var (
		t                            APIToken
		expiresAt, lastUsed, revoked sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.TokenPrefix, &t.CreatedAt, &expiresAt, &lastUsed, &revoked); err != nil {
		return nil, err
	}
	t.ExpiresAt = timePtr(expiresAt)
	t.LastUsedAt = timePtr(lastUsed)
	t.RevokedAt = timePtr(revoked)
	return &t, nil
}

// Create mints a token for the user. The plaintext is returned once and
// only its hash is stored.
func (s *TokenStore) Create(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", fmt.Errorf("token name is required")
	}

	sec, err := newSecret()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		UserID:      userID,
		Name:        name,
		TokenHash:   sec.hash,
		TokenPrefix: sec.prefix,
		CreatedAt:   s.now(),
		ExpiresAt:   expiresAt,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, name, token_hash, token_prefix, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, name, sec.hash, sec.prefix, apiToken.CreatedAt, nullTime(expiresAt)).Scan(&apiToken.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, sec.plaintext, nil
}

// Validate resolves a presented token to its record and stamps last_used_at.
// Malformed, unknown, revoked and expired tokens all yield ErrInvalidToken.
func (s *TokenStore) Validate(ctx context.Context, token string) (*APIToken, error) {
	if err := checkFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	apiToken, err := scanToken(s.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE token_hash = $1`, HashToken(token)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	now := s.now()
	if !apiToken.Usable(now) {
		return nil, ErrInvalidToken
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, now, apiToken.ID); err != nil {
		return nil, fmt.Errorf("failed to update token usage: %w", err)
	}
	apiToken.LastUsedAt = &now
	return apiToken, nil
}

// Revoke marks a token revoked. Revoking twice keeps the first timestamp.
func (s *TokenStore) Revoke(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = COALESCE(revoked_at, $1) WHERE id = $2`, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke token %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke token %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("token %d: %w", id, ErrTokenNotFound)
	}
	return nil
}

// List returns the user's tokens, newest first, revoked ones included
func (s *TokenStore) List(ctx context.Context, userID int64) ([]*APIToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeleteExpired removes tokens that expired before now and returns how many went
func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
