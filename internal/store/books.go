package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"github.com/erazemk/knjiznica/internal/model"
)

var dialect = goqu.Dialect("sqlite3")

var bookColumns = []any{
	"id", "title", "author", "category", "isbn", "price", "description",
	"cover_mime", "total_copies", "available_copies", "created_at", "updated_at",
}

// NewBook holds the fields of a book to add to the catalog.
type NewBook struct {
	Title       string
	Author      string
	Category    string
	ISBN        string
	Price       float64
	Description string
	TotalCopies int
}

// CreateBook adds a book. All copies start out available.
func CreateBook(ctx context.Context, db *sql.DB, b NewBook) (*model.Book, error) {
	if b.TotalCopies < 0 {
		return nil, fmt.Errorf("total copies must not be negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO books (title, author, category, isbn, price, description, total_copies, available_copies)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.Author, nullString(b.Category), nullString(b.ISBN), b.Price, nullString(b.Description),
		b.TotalCopies, b.TotalCopies,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	return GetBook(ctx, db, id)
}

// GetBook returns a book by ID, or nil if it does not exist.
func GetBook(ctx context.Context, db *sql.DB, id int64) (*model.Book, error) {
	query, args, err := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building book query: %w", err)
	}

	b, err := scanBook(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return b, nil
}

// ListBooks returns books ordered by title, narrowed by the filter.
func ListBooks(ctx context.Context, db *sql.DB, f model.BookFilter) ([]model.Book, error) {
	ds := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Order(goqu.I("title").Asc(), goqu.I("id").Asc())

	if f.Category != "" {
		ds = ds.Where(goqu.C("category").Eq(f.Category))
	}
	if f.Query != "" {
		like := "%" + f.Query + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").Like(like),
			goqu.C("author").Like(like),
			goqu.C("isbn").Like(like),
		))
	}
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}

	return queryBooks(ctx, db, ds)
}

// LatestBooks returns the n most recently added books, newest first.
func LatestBooks(ctx context.Context, db *sql.DB, n int) ([]model.Book, error) {
	ds := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc())
	if n > 0 {
		ds = ds.Limit(uint(n))
	}
	return queryBooks(ctx, db, ds)
}

func queryBooks(ctx context.Context, db *sql.DB, ds *goqu.SelectDataset) ([]model.Book, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building book query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// UpdateBook applies a patch in a single statement. Changing the total shifts
// the available count by the same delta; if that would leave fewer available
// copies than zero (more copies are out than the new total), ErrConflict is
// returned and nothing changes.
func UpdateBook(ctx context.Context, db *sql.DB, id int64, p model.BookPatch) (*model.Book, error) {
	rec := goqu.Record{"updated_at": goqu.L("CURRENT_TIMESTAMP")}
	if p.Title != nil {
		rec["title"] = *p.Title
	}
	if p.Author != nil {
		rec["author"] = *p.Author
	}
	if p.Category != nil {
		rec["category"] = nullString(*p.Category)
	}
	if p.ISBN != nil {
		rec["isbn"] = nullString(*p.ISBN)
	}
	if p.Price != nil {
		rec["price"] = *p.Price
	}
	if p.Description != nil {
		rec["description"] = nullString(*p.Description)
	}
	if p.TotalCopies != nil {
		if *p.TotalCopies < 0 {
			return nil, fmt.Errorf("updating book: total copies must not be negative: %w", ErrConflict)
		}
		rec["total_copies"] = *p.TotalCopies
		rec["available_copies"] = goqu.L("available_copies + (? - total_copies)", *p.TotalCopies)
	}

	query, args, err := dialect.Update("books").Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building book update: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if isConstraintError(err) {
		return nil, fmt.Errorf("updating book: more copies are out than the new total: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("updating book: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("updating book %d: %w", id, ErrNotFound)
	}

	return GetBook(ctx, db, id)
}

// DeleteBook removes a book and its finished borrow history. Books with
// active borrows cannot be deleted.
func DeleteBook(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM books WHERE id = ? AND NOT EXISTS (
		     SELECT 1 FROM borrows WHERE book_id = ? AND status IN ('requested', 'issued', 'return_requested'))`,
		id, id,
	)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	book, err := GetBook(ctx, db, id)
	if err != nil {
		return err
	}
	if book == nil {
		return fmt.Errorf("deleting book %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("deleting book %d: book has active borrows: %w", id, ErrConflict)
}

// SetBookCover stores a book's cover image.
func SetBookCover(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting book cover: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("setting book cover %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetBookCover returns a book's cover image data and MIME type. Data is nil
// when the book has no cover or does not exist.
func GetBookCover(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return image, mime.String, nil
}

// CountBooks returns the number of books in the catalog.
func CountBooks(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	return n, nil
}

// CountCategories returns the number of distinct categories. Books without a
// category count as one category together.
func CountCategories(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT COALESCE(category, '')) FROM books`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	return n, nil
}

// TopCategories returns the n categories holding the most books, with the
// cover of the first book added to each.
func TopCategories(ctx context.Context, db *sql.DB, n int) ([]model.CategoryCount, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT COALESCE(b.category, ''), COUNT(*),
		        (SELECT f.id FROM books f
		          WHERE COALESCE(f.category, '') = COALESCE(b.category, '') AND f.cover_mime IS NOT NULL
		          ORDER BY f.created_at, f.id LIMIT 1)
		 FROM books b
		 GROUP BY COALESCE(b.category, '')
		 ORDER BY COUNT(*) DESC, COALESCE(b.category, '')
		 LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing top categories: %w", err)
	}
	defer rows.Close()

	var cats []model.CategoryCount
	for rows.Next() {
		var c model.CategoryCount
		var coverBook sql.NullInt64
		if err := rows.Scan(&c.Category, &c.Count, &coverBook); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		if c.Category == "" {
			c.Category = model.UncategorizedLabel
		}
		if coverBook.Valid {
			c.CoverImage = coverURL(coverBook.Int64)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func scanBook(row rowScanner) (*model.Book, error) {
	b := &model.Book{}
	var category, isbn, description, coverMime sql.NullString
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &category, &isbn, &b.Price, &description,
		&coverMime, &b.TotalCopies, &b.AvailableCopies, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Category = category.String
	b.ISBN = isbn.String
	b.Description = description.String
	b.CoverMime = coverMime.String
	if b.CoverMime != "" {
		b.CoverImage = coverURL(b.ID)
	}
	return b, nil
}

// coverURL is the public API path of a book's cover image.
func coverURL(bookID int64) string {
	return fmt.Sprintf("/api/books/%d/cover", bookID)
}
