package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/findithq/findit/internal/model"
	"github.com/findithq/findit/internal/store"
)

// UsersHandler handles profile and user administration endpoints.
type UsersHandler struct {
	DB *sql.DB
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// Profile handles GET /api/users/profile.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get profile", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/users/profile. Only name fields are
// caller-editable; email and role are not.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	firstName := user.FirstName
	if req.FirstName != "" {
		firstName = req.FirstName
	}
	lastName := user.LastName
	if req.LastName != "" {
		lastName = req.LastName
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, claims.UserID, firstName, lastName); err != nil {
		slog.Error("failed to update profile", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	user, _ = store.GetUser(r.Context(), h.DB, claims.UserID)
	jsonResponse(w, http.StatusOK, user)
}

// List handles GET /api/admin/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Search handles GET /api/admin/users/search?email=. A missing query is a
// bad request, not an empty search.
func (h *UsersHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("email")
	if query == "" {
		jsonError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	users, err := store.SearchUsersByEmail(r.Context(), h.DB, query)
	if err != nil {
		slog.Error("failed to search users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to search users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// UpdateRole handles PUT /api/admin/users/{id}/role.
func (h *UsersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role, valid roles are: "+strings.Join(model.Roles, ", "))
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := store.UpdateUserRole(r.Context(), h.DB, id, req.Role); err != nil {
		slog.Error("failed to update user role", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update user role")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("user role updated", "admin", claims.Email, "target_user", user.Email, "new_role", req.Role)

	user, _ = store.GetUser(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, user)
}

// Delete handles DELETE /api/admin/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	// Prevent self-deletion.
	claims := GetClaims(r.Context())
	if claims != nil && claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	slog.Info("user deleted", "admin", claims.Email, "deleted_user", target.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("user %s deleted", target.Email)})
}
