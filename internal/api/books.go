package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/catalog"
	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BooksHandler handles the book catalog endpoints.
type BooksHandler struct {
	Catalog *catalog.Service
}

type createBookRequest struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Category    string  `json:"category"`
	ISBN        string  `json:"isbn"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	TotalCopies int     `json:"total_copies"`
}

// Listing limits.
const (
	defaultLatestBooks = 4
	maxListedBooks     = 500
)

// List handles GET /api/books with optional category, q and limit filters.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r, maxListedBooks, maxListedBooks)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	q := r.URL.Query()
	books, err := h.Catalog.List(r.Context(), model.BookFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, "listing books", err)
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Latest handles GET /api/books/latest.
func (h *BooksHandler) Latest(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, defaultLatestBooks)
}

func (h *BooksHandler) latest(w http.ResponseWriter, r *http.Request, def int) {
	limit, ok := queryLimit(r, def, maxListedBooks)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	books, err := h.Catalog.Latest(r.Context(), limit)
	if err != nil {
		writeError(w, "listing latest books", err)
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, "getting book", err)
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	book, err := h.Catalog.Create(r.Context(), store.NewBook{
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		ISBN:        req.ISBN,
		Price:       req.Price,
		Description: req.Description,
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		writeError(w, "creating book", err)
		return
	}
	jsonResponse(w, http.StatusCreated, book)
}

// Update handles PUT /api/books/{id}. Only fields present in the body change.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var patch model.BookPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	book, err := h.Catalog.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, "updating book", err)
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	if err := h.Catalog.Delete(r.Context(), id); err != nil {
		writeError(w, "deleting book", err)
		return
	}
	jsonMessage(w, http.StatusOK, "book deleted")
}

// UploadCover handles PUT /api/books/{id}/cover. The image is sent as the
// "cover" field of a multipart form.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	book, err := h.Catalog.SetCover(r.Context(), id, file)
	if errors.Is(err, catalog.ErrInvalid) {
		slog.Warn("cover rejected", "book_id", id, "error", err)
		jsonError(w, http.StatusBadRequest, "cover must be a JPEG, PNG, GIF or WebP image")
		return
	}
	if err != nil {
		writeError(w, "setting cover", err)
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	data, mime, err := h.Catalog.Cover(r.Context(), id)
	if err != nil {
		writeError(w, "getting cover", err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
