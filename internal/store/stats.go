package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// BorrowStats counts borrow records by status.
func BorrowStats(ctx context.Context, db *sql.DB) (*model.BorrowStats, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM borrows GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting borrows: %w", err)
	}
	defer rows.Close()

	stats := &model.BorrowStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning borrow count: %w", err)
		}
		switch model.BorrowStatus(status) {
		case model.BorrowRequested:
			stats.Requested = n
		case model.BorrowIssued:
			stats.Issued = n
		case model.BorrowReturnRequested:
			stats.ReturnRequested = n
		case model.BorrowReturned:
			stats.Returned = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.TotalBorrowed = stats.Requested + stats.Issued
	return stats, nil
}

// CountActiveBorrowers returns the number of distinct users holding at least
// one issued book.
func CountActiveBorrowers(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM borrows WHERE status = ?`, string(model.BorrowIssued),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active borrowers: %w", err)
	}
	return n, nil
}
