package api

import (
	"net/http"

	"github.com/erazemk/knjiznica/internal/catalog"
	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
)

// AdminHandler serves the reporting endpoints.
type AdminHandler struct {
	Engine  *circulation.Engine
	Catalog *catalog.Service
}

const adminLatestBooks = 5

// BorrowStats handles GET /api/admin/borrow-stats.
func (h *AdminHandler) BorrowStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		writeError(w, "computing borrow stats", err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// IssuedBooks handles GET /api/admin/issued-books.
func (h *AdminHandler) IssuedBooks(w http.ResponseWriter, r *http.Request) {
	listBorrows(w, r, h.Engine, model.BorrowFilter{Status: model.BorrowIssued})
}

// Borrows handles GET /api/admin/borrows with optional status, book and
// user filters.
func (h *AdminHandler) Borrows(w http.ResponseWriter, r *http.Request) {
	var f model.BorrowFilter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status, err := model.ParseBorrowStatus(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = status
	}
	for name, dst := range map[string]*int64{"book_id": &f.BookID, "user_id": &f.UserID} {
		if v := q.Get(name); v != "" {
			id, ok := parseID(v)
			if !ok {
				jsonError(w, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = id
		}
	}
	listBorrows(w, r, h.Engine, f)
}

// Books handles GET /api/admin/books.
func (h *AdminHandler) Books(w http.ResponseWriter, r *http.Request) {
	books, err := h.Catalog.List(r.Context(), model.BookFilter{})
	if err != nil {
		writeError(w, "listing books", err)
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"books": books, "total_books": len(books)})
}

// LatestBooks handles GET /api/admin/books/latest.
func (h *AdminHandler) LatestBooks(w http.ResponseWriter, r *http.Request) {
	(&BooksHandler{Catalog: h.Catalog}).latest(w, r, adminLatestBooks)
}
