package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/arcadian-io/authd/internal/auth"
)

// fakeUserStore and fakeRoleStore give the HTTP tests real workflow semantics
// without a database, including the compare-and-swap refresh slot.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*auth.User
	roles *fakeRoleStore
}

func newFakeUserStore(roles *fakeRoleStore) *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*auth.User), roles: roles}
}

func copyUser(u *auth.User) *auth.User {
	cp := *u
	cp.Roles = append([]auth.Role(nil), u.Roles...)
	if u.RefreshToken != nil {
		tok := *u.RefreshToken
		cp.RefreshToken = &tok
	}
	return &cp
}

func (s *fakeUserStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.ErrConflict
		}
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *fakeUserStore) List(_ context.Context) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	return out, nil
}

func (s *fakeUserStore) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return auth.ErrNotFound
	}
	updated := copyUser(u)
	updated.RefreshToken = existing.RefreshToken
	updated.Roles = existing.Roles
	s.users[u.ID] = updated
	return nil
}

func (s *fakeUserStore) SetRoles(_ context.Context, userID string, roleIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	roles := make([]auth.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		role, err := s.roles.FindByID(context.Background(), id)
		if err != nil {
			return auth.ErrNotFound
		}
		roles = append(roles, *role)
	}
	u.Roles = roles
	return nil
}

func (s *fakeUserStore) SetStatus(_ context.Context, userID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *fakeUserStore) Remove(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

func (s *fakeUserStore) SetRefreshToken(_ context.Context, userID string, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	if token == nil {
		u.RefreshToken = nil
		return nil
	}
	tok := *token
	u.RefreshToken = &tok
	return nil
}

func (s *fakeUserStore) RotateRefreshToken(_ context.Context, userID, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	if u.RefreshToken == nil || *u.RefreshToken != expected {
		return auth.ErrUnauthorized
	}
	tok := next
	u.RefreshToken = &tok
	return nil
}

type fakeRoleStore struct {
	mu    sync.Mutex
	roles map[string]*auth.Role // keyed by name
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{roles: make(map[string]*auth.Role)}
}

func copyRole(r *auth.Role) *auth.Role {
	cp := *r
	cp.Permissions = append([]string(nil), r.Permissions...)
	return &cp
}

func (s *fakeRoleStore) Create(_ context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.Name]; ok {
		return auth.ErrConflict
	}
	s.roles[r.Name] = copyRole(r)
	return nil
}

func (s *fakeRoleStore) FindByID(_ context.Context, id string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.ID == id {
			return copyRole(r), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *fakeRoleStore) FindByName(_ context.Context, name string) (*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[name]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyRole(r), nil
}

func (s *fakeRoleStore) List(_ context.Context) ([]*auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*auth.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, copyRole(r))
	}
	return out, nil
}

func (s *fakeRoleStore) Update(_ context.Context, r *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, existing := range s.roles {
		if existing.ID == r.ID {
			if name != r.Name {
				if _, taken := s.roles[r.Name]; taken {
					return auth.ErrConflict
				}
				delete(s.roles, name)
			}
			s.roles[r.Name] = copyRole(r)
			return nil
		}
	}
	return auth.ErrNotFound
}

func (s *fakeRoleStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, r := range s.roles {
		if r.ID == id {
			delete(s.roles, name)
			return nil
		}
	}
	return auth.ErrNotFound
}

func (s *fakeRoleStore) Ensure(_ context.Context, roles []auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range roles {
		r := roles[i]
		if _, ok := s.roles[r.Name]; ok {
			continue
		}
		s.roles[r.Name] = copyRole(&r)
	}
	return nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	users   *fakeUserStore
	roles   *fakeRoleStore
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	roleStore := newFakeRoleStore()
	userStore := newFakeUserStore(roleStore)

	roleSvc, err := auth.NewRoleService(roleStore)
	if err != nil {
		t.Fatalf("NewRoleService: %v", err)
	}
	if err := roleSvc.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	issuer, err := auth.NewIssuer("test-access-secret", "test-refresh-secret")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	authSvc, err := auth.NewService(userStore, roleStore, issuer, auth.WithHashCost(4))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	userSvc, err := auth.NewUserService(userStore, roleStore, auth.WithUserHashCost(4))
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}

	api := New(authSvc, userSvc, roleSvc, issuer, ReadyProbe{}, "test")
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		users:   userStore,
		roles:   roleStore,
	}
}

func (c *apiClient) do(method, path string, body any, token string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, token string) *http.Response {
	return c.do(http.MethodPost, path, body, token)
}

func (c *apiClient) get(path, token string) *http.Response {
	return c.do(http.MethodGet, path, nil, token)
}

type sessionResponse struct {
	User struct {
		ID     string      `json:"id"`
		Email  string      `json:"email"`
		Active bool        `json:"active"`
		Roles  []auth.Role `json:"roles"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"tokens"`
}

func (c *apiClient) register(email, password string) sessionResponse {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}
	return decode[sessionResponse](c.t, resp)
}

func (c *apiClient) login(email, password string) sessionResponse {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	return decode[sessionResponse](c.t, resp)
}

// registerAdmin creates a user, grants it the admin role directly in the
// store and logs in again so the token snapshot carries the new role.
func (c *apiClient) registerAdmin(email, password string) sessionResponse {
	c.t.Helper()
	created := c.register(email, password)
	adminRole, err := c.roles.FindByName(context.Background(), auth.RoleAdmin)
	if err != nil {
		c.t.Fatalf("admin role missing: %v", err)
	}
	if err := c.users.SetRoles(context.Background(), created.User.ID, []string{adminRole.ID}); err != nil {
		c.t.Fatalf("grant admin: %v", err)
	}
	return c.login(email, password)
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func decodeMap(t *testing.T, r *http.Response) map[string]any {
	return decode[map[string]any](t, r)
}
