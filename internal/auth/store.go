package auth

import "context"

// UserStore describes persistence operations required for principals.
// Implementations map storage-level failures onto the package sentinel
// errors: duplicate email -> ErrConflict, missing row -> ErrNotFound.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	SetRoles(ctx context.Context, userID string, roleIDs []string) error
	SetStatus(ctx context.Context, userID, status string) error
	Remove(ctx context.Context, userID string) error

	// SetRefreshToken unconditionally stores (or, with nil, clears) the
	// single refresh-token slot for the user.
	SetRefreshToken(ctx context.Context, userID string, token *string) error

	// RotateRefreshToken atomically replaces the stored refresh token with
	// next, but only when the stored value equals expected. A stale expected
	// value returns ErrUnauthorized and leaves the slot unchanged. The
	// compare and the swap must be a single storage operation; two
	// concurrent rotations with the same expected value must not both
	// succeed.
	RotateRefreshToken(ctx context.Context, userID, expected, next string) error
}

// RoleStore describes persistence operations for the role catalog.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Update(ctx context.Context, r *Role) error
	Remove(ctx context.Context, id string) error

	// Ensure inserts any of the given roles that are absent, never touching
	// roles that already exist.
	Ensure(ctx context.Context, roles []Role) error
}
