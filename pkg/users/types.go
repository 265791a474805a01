package users

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no user matches the lookup
var ErrNotFound = errors.New("user not found")

// NotFoundError reports the missing user id in the message handlers return to clients
func NotFoundError(id int64) error {
	return fmt.Errorf("User with id %d not found: %w", id, ErrNotFound)
}

// User is a person or API client known to weavy
type User struct {
	ID            int64
	Username      string
	Name          string
	Email         string
	ExternalID    string // subject from the identity provider, empty for local users
	AvatarVersion int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ref is the compact user representation embedded in other resources
type Ref struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Username string `json:"username"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url"`
}

// Ref returns the API representation of the user
func (u *User) Ref() Ref {
	return Ref{
		ID:       u.ID,
		Type:     "user",
		Username: u.Username,
		Name:     u.Name,
		URL:      fmt.Sprintf("/people/%d", u.ID),
		// {options} is expanded by the client to the requested avatar size
		ThumbURL: fmt.Sprintf("/people/%d/avatar-{options}.svg?v=%d", u.ID, u.AvatarVersion),
	}
}

// Identity is the verified subset of identity provider claims used to provision a user
type Identity struct {
	Subject string
	Email   string
	Name    string
}
