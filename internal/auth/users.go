package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserService covers administrative and profile operations on principals.
type UserService struct {
	users    UserStore
	roles    RoleStore
	hashCost int
}

// NewUserService constructs a UserService.
func NewUserService(users UserStore, roles RoleStore, opts ...UserServiceOption) (*UserService, error) {
	if users == nil || roles == nil {
		return nil, errors.New("auth: user and role stores are required")
	}
	svc := &UserService{users: users, roles: roles, hashCost: DefaultHashCost}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// UserServiceOption configures UserService behavior.
type UserServiceOption func(*UserService) error

// WithUserHashCost overrides the bcrypt cost used for password updates.
func WithUserHashCost(cost int) UserServiceOption {
	return func(s *UserService) error {
		if cost > 0 {
			s.hashCost = cost
		}
		return nil
	}
}

// List returns all principals, sanitized.
func (s *UserService) List(ctx context.Context) ([]UserView, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, Sanitize(u))
	}
	return views, nil
}

// Get fetches a principal by ID.
func (s *UserService) Get(ctx context.Context, id string) (UserView, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	return Sanitize(user), nil
}

// UserUpdate carries optional profile mutations.
type UserUpdate struct {
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
}

// UpdateProfile applies a profile update. Changing the email to one already
// registered yields ErrConflict.
func (s *UserService) UpdateProfile(ctx context.Context, id string, upd UserUpdate) (UserView, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if email == "" || !strings.Contains(email, "@") {
			return UserView{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		if email != user.Email {
			if _, err := s.users.FindByEmail(ctx, email); err == nil {
				return UserView{}, fmt.Errorf("%w: email already registered", ErrConflict)
			} else if !errors.Is(err, ErrNotFound) {
				return UserView{}, err
			}
			user.Email = email
		}
	}
	if upd.Password != nil {
		pw := strings.TrimSpace(*upd.Password)
		if pw == "" {
			return UserView{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw, s.hashCost)
		if err != nil {
			return UserView{}, err
		}
		user.PasswordHash = hash
	}
	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return UserView{}, err
	}
	return Sanitize(user), nil
}

// SetRoles replaces the user's role set with the named roles. Any unknown
// role name yields ErrNotFound. The change affects tokens issued afterwards
// only; outstanding tokens keep their snapshot until they expire.
func (s *UserService) SetRoles(ctx context.Context, id string, roleNames []string) (UserView, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	names := dedupeStrings(roleNames)
	if len(names) == 0 {
		return UserView{}, fmt.Errorf("%w: at least one role is required", ErrInvalidInput)
	}
	roles := make([]Role, 0, len(names))
	var missing []string
	for _, name := range names {
		role, err := s.roles.FindByName(ctx, strings.ToLower(name))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				missing = append(missing, name)
				continue
			}
			return UserView{}, err
		}
		roles = append(roles, *role)
	}
	if len(missing) > 0 {
		return UserView{}, fmt.Errorf("%w: roles not found: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	roleIDs := make([]string, 0, len(roles))
	for _, r := range roles {
		roleIDs = append(roleIDs, r.ID)
	}
	if err := s.users.SetRoles(ctx, user.ID, roleIDs); err != nil {
		return UserView{}, err
	}
	user.Roles = roles
	return Sanitize(user), nil
}

// Deactivate disables the account and revokes its session. Subsequent login,
// refresh and validate calls fail until reactivation.
func (s *UserService) Deactivate(ctx context.Context, id string) (UserView, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	if err := s.users.SetStatus(ctx, user.ID, userStatusDisabled); err != nil {
		return UserView{}, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, nil); err != nil && !errors.Is(err, ErrNotFound) {
		return UserView{}, err
	}
	user.Status = userStatusDisabled
	user.RefreshToken = nil
	return Sanitize(user), nil
}

// Activate re-enables a disabled account.
func (s *UserService) Activate(ctx context.Context, id string) (UserView, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	if err := s.users.SetStatus(ctx, user.ID, userStatusActive); err != nil {
		return UserView{}, err
	}
	user.Status = userStatusActive
	return Sanitize(user), nil
}

// Remove deletes the account immediately and irreversibly.
func (s *UserService) Remove(ctx context.Context, id string) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.users.Remove(ctx, user.ID)
}

func (s *UserService) find(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.users.FindByID(ctx, id)
}
