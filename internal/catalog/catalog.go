// Package catalog manages the book catalog and the homepage summary built
// from it.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/cache"
	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ErrInvalid is returned for book input that fails validation.
var ErrInvalid = errors.New("invalid book")

// Homepage sizes.
const (
	HomeTopCategories = 4
	HomeLatestBooks   = 4
)

const homeKey = "home"

// Home is the public homepage summary.
type Home struct {
	TotalBooks      int                   `json:"total_books"`
	TotalCategories int                   `json:"total_categories"`
	TopCategories   []model.CategoryCount `json:"top_categories"`
	LatestBooks     []model.Book          `json:"latest_books"`
	ActiveStudents  int                   `json:"active_students"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// Service is the catalog. It owns the homepage cache and drops it whenever
// the catalog changes.
type Service struct {
	db   *sql.DB
	home *cache.TTL[string, *Home]
}

// New creates a catalog whose homepage summary is cached for homeTTL.
// A zero homeTTL disables caching.
func New(db *sql.DB, homeTTL time.Duration) *Service {
	return &Service{
		db:   db,
		home: cache.New[string, *Home](homeTTL),
	}
}

// InvalidateHome drops the cached homepage summary.
func (s *Service) InvalidateHome() {
	s.home.Invalidate(homeKey)
}

// SweepCache evicts expired cache entries and returns how many were removed.
func (s *Service) SweepCache() int {
	return s.home.Purge()
}

func validate(b store.NewBook) error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case b.TotalCopies < 0:
		return fmt.Errorf("%w: total_copies must not be negative", ErrInvalid)
	case b.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}
	return nil
}

// Create adds a book with every copy available.
func (s *Service) Create(ctx context.Context, b store.NewBook) (*model.Book, error) {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.Category = strings.TrimSpace(b.Category)
	if err := validate(b); err != nil {
		return nil, err
	}

	book, err := store.CreateBook(ctx, s.db, b)
	if err != nil {
		return nil, err
	}

	slog.Info("book added", "book_id", book.ID, "title", book.Title, "copies", book.TotalCopies)
	s.InvalidateHome()
	return book, nil
}

// Get returns a book or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*model.Book, error) {
	book, err := store.GetBook(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("book %d: %w", id, store.ErrNotFound)
	}
	return book, nil
}

// List returns books matching the filter.
func (s *Service) List(ctx context.Context, f model.BookFilter) ([]model.Book, error) {
	return store.ListBooks(ctx, s.db, f)
}

// Latest returns the n most recently added books.
func (s *Service) Latest(ctx context.Context, n int) ([]model.Book, error) {
	return store.LatestBooks(ctx, s.db, n)
}

// Update applies a patch. Lowering the total below the number of copies
// currently out fails with store.ErrConflict.
func (s *Service) Update(ctx context.Context, id int64, p model.BookPatch) (*model.Book, error) {
	if p.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalid)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalid)
	}
	if p.TotalCopies != nil && *p.TotalCopies < 0 {
		return nil, fmt.Errorf("%w: total_copies must not be negative", ErrInvalid)
	}
	if p.Price != nil && *p.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}

	book, err := store.UpdateBook(ctx, s.db, id, p)
	if err != nil {
		return nil, err
	}

	slog.Info("book updated", "book_id", id)
	s.InvalidateHome()
	return book, nil
}

// Delete removes a book. Books with active borrows cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := store.DeleteBook(ctx, s.db, id); err != nil {
		return err
	}

	slog.Info("book deleted", "book_id", id)
	s.InvalidateHome()
	return nil
}

// SetCover processes an uploaded image and stores it as the book's cover.
func (s *Service) SetCover(ctx context.Context, id int64, r io.Reader) (*model.Book, error) {
	cover, err := imaging.ProcessCover(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := store.SetBookCover(ctx, s.db, id, cover.Data, cover.MIME); err != nil {
		return nil, err
	}

	slog.Info("book cover set", "book_id", id, "width", cover.Width, "height", cover.Height, "bytes", len(cover.Data))
	s.InvalidateHome()
	return s.Get(ctx, id)
}

// Cover returns a book's cover image and MIME type, or store.ErrNotFound
// when the book has none.
func (s *Service) Cover(ctx context.Context, id int64) ([]byte, string, error) {
	data, mime, err := store.GetBookCover(ctx, s.db, id)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", fmt.Errorf("cover of book %d: %w", id, store.ErrNotFound)
	}
	return data, mime, nil
}

// Home returns the homepage summary, computing it when the cached copy is
// missing or expired.
func (s *Service) Home(ctx context.Context) (*Home, error) {
	if h, ok := s.home.Get(homeKey); ok {
		return h, nil
	}
	return s.refreshHome(ctx, s.home.Generation())
}

// refreshHome builds the summary and caches it unless the catalog changed
// after gen was taken.
func (s *Service) refreshHome(ctx context.Context, gen uint64) (*Home, error) {
	h, err := s.buildHome(ctx)
	if err != nil {
		return nil, err
	}
	s.home.SetIfCurrent(homeKey, h, gen)
	return h, nil
}

func (s *Service) buildHome(ctx context.Context) (*Home, error) {
	h := &Home{GeneratedAt: time.Now().UTC()}
	var err error

	if h.TotalBooks, err = store.CountBooks(ctx, s.db); err != nil {
		return nil, err
	}
	if h.TotalCategories, err = store.CountCategories(ctx, s.db); err != nil {
		return nil, err
	}
	if h.TopCategories, err = store.TopCategories(ctx, s.db, HomeTopCategories); err != nil {
		return nil, err
	}
	if h.LatestBooks, err = store.LatestBooks(ctx, s.db, HomeLatestBooks); err != nil {
		return nil, err
	}
	if h.ActiveStudents, err = store.CountActiveBorrowers(ctx, s.db); err != nil {
		return nil, err
	}

	// Empty lists encode as [] rather than null.
	if h.TopCategories == nil {
		h.TopCategories = []model.CategoryCount{}
	}
	if h.LatestBooks == nil {
		h.LatestBooks = []model.Book{}
	}
	return h, nil
}
