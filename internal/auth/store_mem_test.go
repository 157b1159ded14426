package auth

import (
	"context"
	"sync"
)

// memUserStore is an in-memory UserStore with the same semantics the
// PostgreSQL implementation provides, including the single-statement
// compare-and-swap on the refresh-token slot.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*User
	roles *memRoleStore // resolves role IDs in SetRoles, may be nil
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*User)}
}

func cloneUser(u *User) *User {
	cp := *u
	cp.Roles = append([]Role(nil), u.Roles...)
	if u.RefreshToken != nil {
		tok := *u.RefreshToken
		cp.RefreshToken = &tok
	}
	return &cp
}

func (s *memUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrConflict
		}
	}
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) List(_ context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (s *memUserStore) Update(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range s.users {
		if id != u.ID && other.Email == u.Email {
			return ErrConflict
		}
	}
	updated := cloneUser(u)
	updated.RefreshToken = existing.RefreshToken
	updated.Roles = existing.Roles
	s.users[u.ID] = updated
	return nil
}

func (s *memUserStore) SetRoles(_ context.Context, userID string, roleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	roles := make([]Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		role := Role{ID: id}
		if s.roles != nil {
			if resolved, err := s.roles.FindByID(context.Background(), id); err == nil {
				role = *resolved
			}
		}
		roles = append(roles, role)
	}
	u.Roles = roles
	return nil
}

func (s *memUserStore) SetStatus(_ context.Context, userID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *memUserStore) Remove(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *memUserStore) SetRefreshToken(_ context.Context, userID string, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if token == nil {
		u.RefreshToken = nil
		return nil
	}
	tok := *token
	u.RefreshToken = &tok
	return nil
}

func (s *memUserStore) RotateRefreshToken(_ context.Context, userID, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if u.RefreshToken == nil || *u.RefreshToken != expected {
		return ErrUnauthorized
	}
	tok := next
	u.RefreshToken = &tok
	return nil
}

// memRoleStore is an in-memory RoleStore.
type memRoleStore struct {
	mu    sync.Mutex
	roles map[string]*Role // keyed by name
}

func newMemRoleStore() *memRoleStore {
	return &memRoleStore{roles: make(map[string]*Role)}
}

func cloneRole(r *Role) *Role {
	cp := *r
	cp.Permissions = append([]string(nil), r.Permissions...)
	return &cp
}

func (s *memRoleStore) Create(_ context.Context, r *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.Name]; ok {
		return ErrConflict
	}
	s.roles[r.Name] = cloneRole(r)
	return nil
}

func (s *memRoleStore) FindByID(_ context.Context, id string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.ID == id {
			return cloneRole(r), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memRoleStore) FindByName(_ context.Context, name string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRole(r), nil
}

func (s *memRoleStore) List(_ context.Context) ([]*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, cloneRole(r))
	}
	return out, nil
}

func (s *memRoleStore) Update(_ context.Context, r *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, existing := range s.roles {
		if existing.ID == r.ID {
			if name != r.Name {
				if _, taken := s.roles[r.Name]; taken {
					return ErrConflict
				}
				delete(s.roles, name)
			}
			s.roles[r.Name] = cloneRole(r)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memRoleStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, r := range s.roles {
		if r.ID == id {
			delete(s.roles, name)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memRoleStore) Ensure(_ context.Context, roles []Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range roles {
		r := roles[i]
		if _, ok := s.roles[r.Name]; ok {
			continue
		}
		s.roles[r.Name] = cloneRole(&r)
	}
	return nil
}
