package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const userColumns = `id, username, name, email, external_id, avatar_version, created_at, updated_at`

// Store provides database operations for users
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u          User
		externalID sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Email, &externalID, &u.AvatarVersion, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ExternalID = externalID.String
	return &u, nil
}

// Get returns the user with the id or an error wrapping ErrNotFound
func (s *Store) Get(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}

// GetMany returns the users with the given ids keyed by id. Missing ids are skipped.
func (s *Store) GetMany(ctx context.Context, ids []int64) (map[int64]*User, error) {
	out := make(map[int64]*User, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok || id == 0 {
			continue
		}
		u, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = u
	}
	return out, nil
}

// Create inserts a local user and fills in the generated fields
func (s *Store) Create(ctx context.Context, u *User) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	now := time.Now().UTC()
	if u.AvatarVersion == 0 {
		u.AvatarVersion = 1
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, name, email, external_id, avatar_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.Username, u.Name, u.Email, nullString(u.ExternalID), u.AvatarVersion, now, now).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// Provision returns the user linked to the identity subject, creating it on
// first sign-in and refreshing name and email on later ones.
func (s *Store) Provision(ctx context.Context, id Identity) (*User, error) {
	if id.Subject == "" {
		return nil, fmt.Errorf("identity subject is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var userID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE external_id = $1`, id.Subject).Scan(&userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		username, err := uniqueUsername(ctx, tx, usernameFromIdentity(id))
		if err != nil {
			return nil, err
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO users (username, name, email, external_id, avatar_version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5, $6)
			RETURNING id
		`, username, id.Name, id.Email, id.Subject, now, now).Scan(&userID)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET name = $1, email = $2, updated_at = $3 WHERE id = $4
		`, id.Name, id.Email, now, userID); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provisioned user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return u, nil
}

func usernameFromIdentity(id Identity) string {
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		return strings.ToLower(id.Email[:at])
	}
	if id.Email != "" {
		return strings.ToLower(id.Email)
	}
	return "user"
}

// uniqueUsername appends a counter to base until no user holds the name
func uniqueUsername(ctx context.Context, tx *sql.Tx, base string) (string, error) {
	candidate := base
	for n := 2; ; n++ {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = $1`, candidate).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		candidate = base + strconv.Itoa(n)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
