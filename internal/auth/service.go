package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arcadian-io/authd/internal/ids"
)

// Service orchestrates register, login, refresh and logout on top of the
// injected stores and token issuer. Each call is a short-lived unit of work;
// the only shared state lives behind the store interfaces.
type Service struct {
	users    UserStore
	roles    RoleStore
	issuer   *Issuer
	hashCost int
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithHashCost overrides the bcrypt cost factor.
func WithHashCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost > 0 {
			s.hashCost = cost
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the authentication workflow.
func NewService(users UserStore, roles RoleStore, issuer *Issuer, opts ...ServiceOption) (*Service, error) {
	if users == nil || roles == nil {
		return nil, errors.New("auth: user and role stores are required")
	}
	if issuer == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	svc := &Service{
		users:    users,
		roles:    roles,
		issuer:   issuer,
		hashCost: DefaultHashCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// RegisterParams carries the registration input.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a principal with the default role and opens its first
// session. A taken email yields ErrConflict; a missing default role is a
// bootstrap invariant violation and yields ErrInvalidInput.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*AuthResult, error) {
	email := normalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if p.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	defaultRole, err := s.roles.FindByName(ctx, RoleUser)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: default role %q is missing", ErrInvalidInput, RoleUser)
		}
		return nil, err
	}

	hash, err := HashPassword(p.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Status:       userStatusActive,
		Roles:        []Role{*defaultRole},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.openSession(ctx, user)
}

// Login verifies credentials and opens a session, displacing any previous
// one. Unknown email, disabled account and wrong password all yield the same
// ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !IsActive(user) {
		return nil, ErrUnauthorized
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	return s.openSession(ctx, user)
}

// Refresh rotates the single-slot refresh token. The presented token must
// verify against the refresh secret, resolve to an existing active user, and
// match the stored slot exactly; the swap is a compare-and-swap at the store,
// so of two concurrent refreshes with the same token at most one succeeds.
// Every failure collapses to ErrUnauthorized with state unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, TokenKindRefresh)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !IsActive(user) {
		return TokenPair{}, ErrUnauthorized
	}
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return TokenPair{}, ErrUnauthorized
	}

	pair, err := s.issuer.Issue(user)
	if err != nil {
		return TokenPair{}, err
	}
	// The CAS keyed on the presented token decides the race between two
	// concurrent refreshes; the loser's freshly signed pair is never stored
	// and therefore never redeemable.
	if err := s.users.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken); err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	return pair, nil
}

// Logout clears the stored refresh token. Idempotent: logging out twice, or
// for an unknown user, succeeds quietly.
func (s *Service) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if err := s.users.SetRefreshToken(ctx, userID, nil); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// ValidateUser resolves a user ID for downstream request authorization.
// Absent or disabled users yield ErrUnauthorized.
func (s *Service) ValidateUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !IsActive(user) {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *Service) openSession(ctx context.Context, user *User) (*AuthResult, error) {
	pair, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return nil, err
	}
	return &AuthResult{User: Sanitize(user), Tokens: pair}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
