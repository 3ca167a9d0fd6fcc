package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// UsersHandler handles account administration.
type UsersHandler struct {
	DB *sql.DB
}

type usersResponse struct {
	Users      []model.User `json:"users"`
	TotalUsers int          `json:"total_users"`
}

// List handles GET /api/admin/users. An optional ?role= narrows the list.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	var role model.Role
	if v := r.URL.Query().Get("role"); v != "" {
		parsed, err := model.ParseRole(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		role = parsed
	}

	users, err := store.ListUsers(r.Context(), h.DB, role)
	if err != nil {
		writeError(w, "listing users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, usersResponse{Users: users, TotalUsers: len(users)})
}

// Get handles GET /api/admin/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, "getting user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// CreateLibrarian handles POST /api/admin/librarians.
func (h *UsersHandler) CreateLibrarian(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, ok := createAccount(w, r, h.DB, req, model.RoleLibrarian)
	if !ok {
		return
	}

	slog.Info("librarian added", "user_id", user.ID, "by", GetClaims(r.Context()).UserID)
	jsonResponse(w, http.StatusCreated, user)
}
