package auth

import (
	"strings"
	"time"
)

const (
	userStatusActive   = "active"
	userStatusDisabled = "disabled"
)

const (
	UserStatusActive   = userStatusActive
	UserStatusDisabled = userStatusDisabled
)

// User is the authenticated principal. PasswordHash and RefreshToken never
// leave the package boundary; callers receive a UserView instead.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Status       string
	Roles        []Role
	// RefreshToken holds the single outstanding refresh token, nil when the
	// user has no live session.
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role groups permissions under a unique name.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserView is the externally visible projection of a User. It is what every
// workflow result and HTTP response carries; credential material has no field
// to ride out on.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Active    bool      `json:"active"`
	Roles     []Role    `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sanitize strips credential state from a user record.
func Sanitize(u *User) UserView {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Active:    u.Status == userStatusActive,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// IsActive reports whether the user may authenticate.
func IsActive(u *User) bool {
	return u != nil && u.Status == userStatusActive
}

// RoleNames returns the role names of a role set in declaration order.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names
}

// HasRole reports whether the role set contains a role with the given name.
func HasRole(roles []Role, name string) bool {
	name = strings.TrimSpace(strings.ToLower(name))
	for _, r := range roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// TokenPair carries freshly issued access and refresh tokens.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   UserView  `json:"user"`
	Tokens TokenPair `json:"tokens"`
}
