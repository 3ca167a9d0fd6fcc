package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/knjiznica/internal/mail"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ContactHandler stores contact form messages and forwards them to the
// library inbox.
type ContactHandler struct {
	DB     *sql.DB
	Mailer mail.Mailer
	Inbox  string
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Create handles POST /api/users/contact.
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m := model.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   model.NormalizeEmail(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	if m.Name == "" || m.Email == "" || m.Subject == "" || m.Message == "" {
		jsonError(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if !validEmail(m.Email) {
		jsonError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	saved, err := store.CreateContactMessage(r.Context(), h.DB, m)
	if err != nil {
		writeError(w, "storing contact message", err)
		return
	}

	// The message is stored either way; a failed notification is only logged.
	if h.Inbox != "" {
		msg, err := mail.ContactMessage(h.Inbox, m.Name, m.Email, m.Subject, m.Message)
		if err == nil {
			err = h.Mailer.Send(r.Context(), msg)
		}
		if err != nil {
			slog.Error("forwarding contact message", "contact_id", saved.ID, "error", err)
		}
	}

	slog.Info("contact message received", "contact_id", saved.ID)
	jsonMessage(w, http.StatusCreated, "message sent successfully")
}

// List handles GET /api/admin/contacts.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := store.ListContactMessages(r.Context(), h.DB)
	if err != nil {
		writeError(w, "listing contact messages", err)
		return
	}
	if messages == nil {
		messages = []model.ContactMessage{}
	}
	jsonResponse(w, http.StatusOK, messages)
}
