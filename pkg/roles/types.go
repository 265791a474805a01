package roles

import (
	"errors"
	"fmt"
	"time"

	"github.com/weavy/weavy/pkg/users"
)

var (
	// ErrNotFound is returned when no role matches the lookup
	ErrNotFound = errors.New("role not found")

	// ErrInvalid is returned when a request carries invalid role fields
	ErrInvalid = errors.New("invalid role")
)

// NotFoundError reports the missing role id
func NotFoundError(id int64) error {
	return fmt.Errorf("Role with id %d not found: %w", id, ErrNotFound)
}

// Role is a named group of users
type Role struct {
	ID         int64
	Name       string
	IsTrashed  bool
	CreatedAt  time.Time
	CreatedBy  *int64
	ModifiedAt *time.Time
	ModifiedBy *int64
}

func (r *Role) clone() *Role {
	c := *r
	return &c
}

// Icon is the glyph clients show next to the role
type Icon struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// RoleIcon is shared by every role
var RoleIcon = Icon{Name: "account-multiple", Color: "light-green"}

// View is the API representation of a role as seen by one caller
type View struct {
	ID         int64      `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	IsMember   bool       `json:"is_member"`
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  *users.Ref `json:"created_by,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	ModifiedBy *users.Ref `json:"modified_by,omitempty"`
	IsTrashed  bool       `json:"is_trashed,omitempty"`
	Icon       Icon       `json:"icon"`
	Kind       string     `json:"kind"`
	URL        string     `json:"url"`
}

// InsertRequest is the body of POST /api/roles
type InsertRequest struct {
	Name string `json:"name"`
}
