package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arcadian-io/authd/internal/ids"
)

// Built-in role names. Both always exist after SeedDefaults and can never be
// deleted.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultRoles returns the built-in role definitions seeded at bootstrap.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:        RoleUser,
			Description: "Default user role with basic permissions",
			Permissions: []string{"read:profile", "update:own-profile"},
		},
		{
			Name:        RoleAdmin,
			Description: "Administrator role with full permissions",
			Permissions: []string{PermissionAll},
		},
	}
}

// IsBuiltinRole reports whether the name identifies a protected built-in role.
func IsBuiltinRole(name string) bool {
	return name == RoleUser || name == RoleAdmin
}

// RoleService manages the role catalog.
type RoleService struct {
	store RoleStore
}

// NewRoleService constructs a RoleService.
func NewRoleService(store RoleStore) (*RoleService, error) {
	if store == nil {
		return nil, errors.New("role store is required")
	}
	return &RoleService{store: store}, nil
}

// SeedDefaults idempotently ensures the built-in roles exist. Roles already
// present are never overwritten, so administrative edits to their
// descriptions or permissions survive restarts.
func (s *RoleService) SeedDefaults(ctx context.Context) error {
	roles := DefaultRoles()
	for i := range roles {
		roles[i].ID = ids.New()
	}
	return s.store.Ensure(ctx, roles)
}

// Create registers a new role. A duplicate name yields ErrConflict.
func (s *RoleService) Create(ctx context.Context, name, description string, permissions []string) (*Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := &Role{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: dedupeStrings(permissions),
	}
	if err := s.store.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// List returns the full catalog.
func (s *RoleService) List(ctx context.Context) ([]*Role, error) {
	return s.store.List(ctx)
}

// Get fetches a role by ID.
func (s *RoleService) Get(ctx context.Context, id string) (*Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.FindByID(ctx, id)
}

// FindByName fetches a role by its unique name.
func (s *RoleService) FindByName(ctx context.Context, name string) (*Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.FindByName(ctx, name)
}

// RoleUpdate carries optional role mutations.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions []string
}

// Update applies an administrative role update. Renaming to an existing name
// yields ErrConflict; renaming a built-in role away is refused.
func (s *RoleService) Update(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(strings.ToLower(*upd.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		if name != role.Name {
			if IsBuiltinRole(role.Name) {
				return nil, fmt.Errorf("%w: cannot rename built-in role %s", ErrConflict, role.Name)
			}
			if existing, err := s.store.FindByName(ctx, name); err == nil && existing != nil {
				return nil, fmt.Errorf("%w: role name already exists", ErrConflict)
			} else if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			role.Name = name
		}
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Permissions != nil {
		role.Permissions = dedupeStrings(upd.Permissions)
	}
	if err := s.store.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Remove deletes a role. Built-in roles are refused with ErrConflict.
func (s *RoleService) Remove(ctx context.Context, id string) error {
	role, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if IsBuiltinRole(role.Name) {
		return fmt.Errorf("%w: cannot delete built-in role %s", ErrConflict, role.Name)
	}
	return s.store.Remove(ctx, role.ID)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
