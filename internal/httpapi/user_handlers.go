package httpapi

import (
	"net/http"
	"strings"

	"github.com/arcadian-io/authd/internal/audit"
	"github.com/arcadian-io/authd/internal/auth"
)

type updateUserRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type updateUserRolesRequest struct {
	Roles []string `json:"roles"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireRole(w, r, auth.RoleAdmin) {
		return
	}
	users, err := a.users.List(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleProfile serves the authenticated user's own record.
func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch r.Method {
	case http.MethodGet:
		view, err := a.users.Get(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		a.updateUser(w, r, userID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 1:
		a.handleUserByID(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.handleUserRoles(w, r, userID)
	case len(parts) == 2 && parts[1] == "activate":
		a.handleUserActivation(w, r, userID, true)
	case len(parts) == 2 && parts[1] == "deactivate":
		a.handleUserActivation(w, r, userID, false)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		view, err := a.users.Get(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		// Users may edit their own profile; anything else needs admin.
		if actor, _ := auth.UserIDFromContext(r.Context()); actor != userID {
			if !a.requireRole(w, r, auth.RoleAdmin) {
				return
			}
		}
		a.updateUser(w, r, userID)
	case http.MethodDelete:
		if !a.requireRole(w, r, auth.RoleAdmin) {
			return
		}
		if err := a.users.Remove(r.Context(), userID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.delete", map[string]any{"user_id": userID})
		writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, userID string) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.users.UpdateProfile(r.Context(), userID, auth.UserUpdate{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.requireRole(w, r, auth.RoleAdmin) {
		return
	}
	var req updateUserRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	view, err := a.users.SetRoles(r.Context(), userID, req.Roles)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.roles.update", map[string]any{
		"user_id": userID,
		"roles":   req.Roles,
	})
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUserActivation(w http.ResponseWriter, r *http.Request, userID string, activate bool) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.requireRole(w, r, auth.RoleAdmin) {
		return
	}
	var (
		view  auth.UserView
		err   error
		event = "user.deactivate"
	)
	if activate {
		view, err = a.users.Activate(r.Context(), userID)
		event = "user.activate"
	} else {
		view, err = a.users.Deactivate(r.Context(), userID)
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{"user_id": userID})
	writeJSON(w, http.StatusOK, view)
}
