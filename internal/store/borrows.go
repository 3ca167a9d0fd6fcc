package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/knjiznica/internal/model"
)

var borrowColumns = []any{
	goqu.I("br.id"), goqu.I("br.book_id"), goqu.I("br.user_id"), goqu.I("br.status"),
	goqu.I("br.created_at"), goqu.I("br.issue_date"), goqu.I("br.due_date"), goqu.I("br.return_date"),
	goqu.I("br.fine"),
	goqu.I("b.title"), goqu.I("b.author"), goqu.I("u.name"), goqu.I("u.email"),
}

func borrowDataset() *goqu.SelectDataset {
	return dialect.From(goqu.T("borrows").As("br")).Prepared(true).
		Select(borrowColumns...).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("br.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("br.user_id"))))
}

// CreateBorrowRequest records a borrow request and reserves one copy of the
// book in the same transaction. The copy is taken with a conditional
// decrement, and the partial unique index on active (book, user) pairs
// rejects duplicates, so concurrent requests cannot oversubscribe a book or
// open two active records for one pair.
func CreateBorrowRequest(ctx context.Context, db *sql.DB, bookID, userID int64, at, due time.Time) (*model.BorrowRecord, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Writing first takes the database write lock before anything is read.
	result, err := tx.ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies - 1
		 WHERE id = ? AND available_copies > 0`, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("reserving copy: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, explainNoCopy(ctx, tx, bookID, userID)
	}

	result, err = tx.ExecContext(ctx,
		`INSERT INTO borrows (book_id, user_id, status, created_at, due_date) VALUES (?, ?, ?, ?, ?)`,
		bookID, userID, string(model.BorrowRequested), at, due,
	)
	if isConstraintError(err) {
		return nil, fmt.Errorf("book already requested or issued: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("recording borrow request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing borrow request: %w", err)
	}

	id, _ := result.LastInsertId()
	return GetBorrow(ctx, db, id)
}

// explainNoCopy tells apart the reasons a copy could not be reserved.
func explainNoCopy(ctx context.Context, tx *sql.Tx, bookID, userID int64) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, bookID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking book: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrows
		 WHERE book_id = ? AND user_id = ? AND status IN ('requested', 'issued', 'return_requested')`,
		bookID, userID,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("checking active borrows: %w", err)
	}
	if active > 0 {
		return fmt.Errorf("book already requested or issued: %w", ErrConflict)
	}
	return fmt.Errorf("book out of stock: %w", ErrConflict)
}

// ApplyBorrowAction moves a record through one lifecycle step. The update is
// conditional on the record being in the status the action requires, so a
// record in any other status is left untouched and ErrInvalidState is
// returned. Cancel deletes the record; cancel and return approval release
// the reserved copy.
func ApplyBorrowAction(ctx context.Context, db *sql.DB, id int64, action model.BorrowAction, at time.Time, fine int64) error {
	from := model.RequiredStatus(action)
	to, err := model.NextStatus(from, action)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var bookID int64
	switch action {
	case model.ActionApprove:
		err = tx.QueryRowContext(ctx,
			`UPDATE borrows SET status = ?, issue_date = ? WHERE id = ? AND status = ? RETURNING book_id`,
			string(to), at, id, string(from),
		).Scan(&bookID)
	case model.ActionCancel:
		err = tx.QueryRowContext(ctx,
			`DELETE FROM borrows WHERE id = ? AND status = ? RETURNING book_id`,
			id, string(from),
		).Scan(&bookID)
	case model.ActionRequestReturn:
		err = tx.QueryRowContext(ctx,
			`UPDATE borrows SET status = ? WHERE id = ? AND status = ? RETURNING book_id`,
			string(to), id, string(from),
		).Scan(&bookID)
	case model.ActionApproveReturn:
		err = tx.QueryRowContext(ctx,
			`UPDATE borrows SET status = ?, return_date = ?, fine = ? WHERE id = ? AND status = ? RETURNING book_id`,
			string(to), at, fine, id, string(from),
		).Scan(&bookID)
	}
	if err == sql.ErrNoRows {
		tx.Rollback()
		return classifyMissedTransition(ctx, db, id, action)
	}
	if err != nil {
		return fmt.Errorf("applying %s to borrow %d: %w", action, id, err)
	}

	if action == model.ActionCancel || action == model.ActionApproveReturn {
		_, err = tx.ExecContext(ctx,
			`UPDATE books SET available_copies = MIN(available_copies + 1, total_copies) WHERE id = ?`,
			bookID,
		)
		if err != nil {
			return fmt.Errorf("releasing copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", action, err)
	}
	return nil
}

func classifyMissedTransition(ctx context.Context, db *sql.DB, id int64, action model.BorrowAction) error {
	rec, err := GetBorrow(ctx, db, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("borrow %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("cannot %s borrow %d in status %s: %w", action, id, rec.Status, ErrInvalidState)
}

// GetBorrow returns a borrow record with its book and user, or nil.
func GetBorrow(ctx context.Context, db *sql.DB, id int64) (*model.BorrowRecord, error) {
	query, args, err := borrowDataset().Where(goqu.I("br.id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building borrow query: %w", err)
	}

	rec, err := scanBorrow(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow: %w", err)
	}
	return rec, nil
}

// FindActiveBorrow returns the active record for a (book, user) pair, or nil.
func FindActiveBorrow(ctx context.Context, db *sql.DB, bookID, userID int64) (*model.BorrowRecord, error) {
	statuses := make([]string, len(model.ActiveBorrowStatuses))
	for i, s := range model.ActiveBorrowStatuses {
		statuses[i] = string(s)
	}

	query, args, err := borrowDataset().Where(
		goqu.I("br.book_id").Eq(bookID),
		goqu.I("br.user_id").Eq(userID),
		goqu.I("br.status").In(statuses),
	).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building borrow query: %w", err)
	}

	rec, err := scanBorrow(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding active borrow: %w", err)
	}
	return rec, nil
}

// ListBorrows returns borrow records, newest first, narrowed by the filter.
func ListBorrows(ctx context.Context, db *sql.DB, f model.BorrowFilter) ([]model.BorrowRecord, error) {
	ds := borrowDataset().Order(goqu.I("br.created_at").Desc(), goqu.I("br.id").Desc())
	if f.Status != "" {
		ds = ds.Where(goqu.I("br.status").Eq(string(f.Status)))
	}
	if f.BookID > 0 {
		ds = ds.Where(goqu.I("br.book_id").Eq(f.BookID))
	}
	if f.UserID > 0 {
		ds = ds.Where(goqu.I("br.user_id").Eq(f.UserID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building borrow query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrows: %w", err)
	}
	defer rows.Close()

	var records []model.BorrowRecord
	for rows.Next() {
		rec, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanBorrow(row rowScanner) (*model.BorrowRecord, error) {
	rec := &model.BorrowRecord{}
	var status string
	var issueDate, returnDate sql.NullTime
	if err := row.Scan(&rec.ID, &rec.BookID, &rec.UserID, &status,
		&rec.CreatedAt, &issueDate, &rec.DueDate, &returnDate, &rec.Fine,
		&rec.BookTitle, &rec.BookAuthor, &rec.UserName, &rec.UserEmail); err != nil {
		return nil, err
	}
	rec.Status = model.BorrowStatus(status)
	if issueDate.Valid {
		t := issueDate.Time
		rec.IssueDate = &t
	}
	if returnDate.Valid {
		t := returnDate.Time
		rec.ReturnDate = &t
	}
	return rec, nil
}
