package domain

import (
	"context"
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account. DisplayName is the generated anonymous identity shown
// in chat; the email never leaves the auth layer. MutedUntil, when set and in
// the future, blocks every moderated write by this user; once it passes the
// user is implicitly unmuted (checked lazily at write time, no background
// job).
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"-"`
	PasswordHash string     `json:"-"`
	DisplayName  string     `json:"display_name"`
	AvatarColor  string     `json:"avatar_color,omitempty"`
	Role         string     `json:"role"`
	MutedUntil   *time.Time `json:"muted_until,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Muted reports whether the user's mute is still in effect.
func (u *User) Muted(now time.Time) bool {
	return u.MutedUntil != nil && u.MutedUntil.After(now)
}

// Moderator reports whether the user may bypass read redaction and use the
// admin surface.
func (u *User) Moderator() bool {
	return u.Role == RoleAdmin
}

// Identity is the resolved caller identity attached to every request.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Moderator reports whether the identity carries elevated privilege.
func (i *Identity) Moderator() bool {
	return i.Role == RoleAdmin
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByDisplayName(ctx context.Context, name string) (*User, error)
	SetMutedUntil(ctx context.Context, userID string, until time.Time) error
	List(ctx context.Context) ([]*User, error)
}
