package api

import (
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
)

// BorrowHandler handles the reader side of the borrow lifecycle.
type BorrowHandler struct {
	Engine *circulation.Engine
}

// RequestIssue handles POST /api/borrow/request-issue/{bookId}.
func (h *BorrowHandler) RequestIssue(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(r, "bookId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	rec, err := h.Engine.Request(r.Context(), actor(r), bookID)
	if err != nil {
		writeError(w, "requesting book", err)
		return
	}
	jsonResponse(w, http.StatusCreated, rec)
}

// RequestReturn handles POST /api/borrow/request-return/{bookId}.
func (h *BorrowHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(r, "bookId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	rec, err := h.Engine.RequestReturn(r.Context(), actor(r), bookID)
	if err != nil {
		writeError(w, "requesting return", err)
		return
	}
	jsonResponse(w, http.StatusOK, rec)
}

// Mine handles GET /api/borrow/mine. An optional ?status= narrows the list.
func (h *BorrowHandler) Mine(w http.ResponseWriter, r *http.Request) {
	f := model.BorrowFilter{UserID: actor(r).UserID}
	if v := r.URL.Query().Get("status"); v != "" {
		status, err := model.ParseBorrowStatus(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = status
	}
	listBorrows(w, r, h.Engine, f)
}

func listBorrows(w http.ResponseWriter, r *http.Request, engine *circulation.Engine, f model.BorrowFilter) {
	records, err := engine.List(r.Context(), f)
	if err != nil {
		writeError(w, "listing borrows", err)
		return
	}
	if records == nil {
		records = []model.BorrowRecord{}
	}
	jsonResponse(w, http.StatusOK, records)
}
