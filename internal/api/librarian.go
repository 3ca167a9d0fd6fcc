package api

import (
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
)

// LibrarianHandler handles the desk side of the borrow lifecycle.
type LibrarianHandler struct {
	Engine *circulation.Engine
}

// Issued handles GET /api/librarian/bookissued.
func (h *LibrarianHandler) Issued(w http.ResponseWriter, r *http.Request) {
	listBorrows(w, r, h.Engine, model.BorrowFilter{Status: model.BorrowIssued})
}

// IssueRequests handles GET /api/librarian/issuerequest.
func (h *LibrarianHandler) IssueRequests(w http.ResponseWriter, r *http.Request) {
	listBorrows(w, r, h.Engine, model.BorrowFilter{Status: model.BorrowRequested})
}

// ReturnRequests handles GET /api/librarian/returnrequest.
func (h *LibrarianHandler) ReturnRequests(w http.ResponseWriter, r *http.Request) {
	listBorrows(w, r, h.Engine, model.BorrowFilter{Status: model.BorrowReturnRequested})
}

// Get handles GET /api/librarian/borrows/{id}.
func (h *LibrarianHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid borrow id")
		return
	}

	rec, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, "getting borrow", err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// Approve handles PUT /api/librarian/approverequest/{id}.
func (h *LibrarianHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid borrow id")
		return
	}

	rec, err := h.Engine.Approve(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, "approving request", err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// ApproveReturn handles PUT /api/librarian/approvereturnrequest/{id}.
func (h *LibrarianHandler) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid borrow id")
		return
	}

	rec, err := h.Engine.ApproveReturn(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, "approving return", err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// Cancel handles DELETE /api/librarian/cancelrequest/{id}.
func (h *LibrarianHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid borrow id")
		return
	}

	if err := h.Engine.Cancel(r.Context(), actor(r), id); err != nil {
		writeError(w, "cancelling request", err)
		return
	}
	jsonMessage(w, http.StatusOK, "request cancelled")
}
