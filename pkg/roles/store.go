package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const roleColumns = `id, name, is_trashed, created_at, created_by, modified_at, modified_by`

// Store handles role persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func scanRole(row interface{ Scan(...interface{}) error }) (*Role, error) {
	var (
		role                  Role
		createdBy, modifiedBy sql.NullInt64
		modifiedAt            sql.NullTime
	)
	if err := row.Scan(&role.ID, &role.Name, &role.IsTrashed, &role.CreatedAt, &createdBy, &modifiedAt, &modifiedBy); err != nil {
		return nil, err
	}
	if createdBy.Valid {
		id := createdBy.Int64
		role.CreatedBy = &id
	}
	if modifiedAt.Valid {
		t := modifiedAt.Time
		role.ModifiedAt = &t
	}
	if modifiedBy.Valid {
		id := modifiedBy.Int64
		role.ModifiedBy = &id
	}
	return &role, nil
}

// Get returns the role with the id, trashed or not
func (s *Store) Get(ctx context.Context, id int64) (*Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role %d: %w", id, err)
	}
	return role, nil
}

// Insert creates a role and fills in the generated fields
func (s *Store) Insert(ctx context.Context, role *Role) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, is_trashed, created_at, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, role.Name, false, now, nullID(role.CreatedBy)).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	role.CreatedAt = now
	role.IsTrashed = false
	return nil
}

// Update persists the role name and modification stamp
func (s *Store) Update(ctx context.Context, role *Role) error {
	return s.exec(ctx, role.ID, "update",
		`UPDATE roles SET name = $1, modified_at = $2, modified_by = $3 WHERE id = $4`,
		role.Name, role.ModifiedAt, nullID(role.ModifiedBy), role.ID)
}

// SetTrashed moves the role into or out of the trash
func (s *Store) SetTrashed(ctx context.Context, id int64, trashed bool) error {
	return s.exec(ctx, id, "trash",
		`UPDATE roles SET is_trashed = $1 WHERE id = $2`, trashed, id)
}

// Delete permanently removes the role and its memberships
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, id, "delete", `DELETE FROM roles WHERE id = $1`, id)
}

func (s *Store) exec(ctx context.Context, id int64, op, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s role %d: %w", op, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s role %d: %w", op, id, err)
	}
	if n == 0 {
		return NotFoundError(id)
	}
	return nil
}

// AddMember records the membership. Adding an existing member is a no-op.
func (s *Store) AddMember(ctx context.Context, roleID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_members (role_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, user_id) DO NOTHING
	`, roleID, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add user %d to role %d: %w", userID, roleID, err)
	}
	return nil
}

// MemberIDs returns the ids of the role's members in the order they were added
func (s *Store) MemberIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM role_members
		WHERE role_id = $1
		ORDER BY created_at ASC, user_id ASC
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of role %d: %w", roleID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsMember reports whether the user belongs to the role
func (s *Store) IsMember(ctx context.Context, roleID, userID int64) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM role_members WHERE role_id = $1 AND user_id = $2`, roleID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
