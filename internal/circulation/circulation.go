// Package circulation runs the borrow lifecycle: requests, issue approval,
// cancellation, return requests and return approval.
package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ErrForbidden is returned when the actor's role does not allow the operation.
var ErrForbidden = errors.New("forbidden")

// Actor identifies who performs an operation.
type Actor struct {
	UserID int64
	Role   model.Role
}

// Invalidator is notified after every successful transition so derived views
// (such as the cached homepage) can be rebuilt.
type Invalidator interface {
	InvalidateHome()
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	LoanPeriod  time.Duration
	Fines       model.FinePolicy
	Now         func() time.Time
	Invalidator Invalidator
}

// Engine executes borrow lifecycle transitions against the database.
type Engine struct {
	db          *sql.DB
	loanPeriod  time.Duration
	fines       model.FinePolicy
	now         func() time.Time
	invalidator Invalidator
}

// New creates an Engine.
func New(db *sql.DB, opts Options) *Engine {
	e := &Engine{
		db:          db,
		loanPeriod:  opts.LoanPeriod,
		fines:       opts.Fines,
		now:         opts.Now,
		invalidator: opts.Invalidator,
	}
	if e.loanPeriod <= 0 {
		e.loanPeriod = model.DefaultLoanPeriod
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

func (e *Engine) changed() {
	if e.invalidator != nil {
		e.invalidator.InvalidateHome()
	}
}

func authorize(actor Actor, c model.Capability) error {
	if !actor.Role.Can(c) {
		return fmt.Errorf("role %q cannot %s: %w", actor.Role, c, ErrForbidden)
	}
	return nil
}

// Request creates a borrow request for bookID on behalf of the actor and
// reserves one copy. It fails with store.ErrNotFound for an unknown book and
// store.ErrConflict when no copy is available or the actor already has an
// active record for the book.
func (e *Engine) Request(ctx context.Context, actor Actor, bookID int64) (*model.BorrowRecord, error) {
	if err := authorize(actor, model.CapRequestBorrow); err != nil {
		return nil, err
	}

	now := e.clock()
	rec, err := store.CreateBorrowRequest(ctx, e.db, bookID, actor.UserID, now, now.Add(e.loanPeriod))
	if err != nil {
		return nil, err
	}

	slog.Info("borrow requested", "borrow_id", rec.ID, "book_id", bookID, "user_id", actor.UserID)
	e.changed()
	return rec, nil
}

// Approve issues a requested book.
func (e *Engine) Approve(ctx context.Context, actor Actor, borrowID int64) (*model.BorrowRecord, error) {
	if err := authorize(actor, model.CapManageCirculation); err != nil {
		return nil, err
	}
	if err := store.ApplyBorrowAction(ctx, e.db, borrowID, model.ActionApprove, e.clock(), 0); err != nil {
		return nil, err
	}

	slog.Info("borrow issued", "borrow_id", borrowID, "by", actor.UserID)
	e.changed()
	return e.Get(ctx, borrowID)
}

// Cancel rejects a pending request. The record is deleted and its copy released.
func (e *Engine) Cancel(ctx context.Context, actor Actor, borrowID int64) error {
	if err := authorize(actor, model.CapManageCirculation); err != nil {
		return err
	}
	if err := store.ApplyBorrowAction(ctx, e.db, borrowID, model.ActionCancel, e.clock(), 0); err != nil {
		return err
	}

	slog.Info("borrow cancelled", "borrow_id", borrowID, "by", actor.UserID)
	e.changed()
	return nil
}

// RequestReturn marks the actor's issued copy of bookID as handed back,
// pending librarian confirmation. Only the borrower can request a return.
func (e *Engine) RequestReturn(ctx context.Context, actor Actor, bookID int64) (*model.BorrowRecord, error) {
	if err := authorize(actor, model.CapRequestBorrow); err != nil {
		return nil, err
	}

	rec, err := store.FindActiveBorrow(ctx, e.db, bookID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no active borrow of book %d: %w", bookID, store.ErrNotFound)
	}
	if rec.Status != model.BorrowIssued {
		return nil, fmt.Errorf("book %d is %s, not issued: %w", bookID, rec.Status, store.ErrInvalidState)
	}

	if err := store.ApplyBorrowAction(ctx, e.db, rec.ID, model.ActionRequestReturn, e.clock(), 0); err != nil {
		return nil, err
	}

	slog.Info("return requested", "borrow_id", rec.ID, "book_id", bookID, "user_id", actor.UserID)
	e.changed()
	return e.Get(ctx, rec.ID)
}

// ApproveReturn confirms a return, assesses the late fine and releases the copy.
func (e *Engine) ApproveReturn(ctx context.Context, actor Actor, borrowID int64) (*model.BorrowRecord, error) {
	if err := authorize(actor, model.CapManageCirculation); err != nil {
		return nil, err
	}

	rec, err := store.GetBorrow(ctx, e.db, borrowID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("borrow %d: %w", borrowID, store.ErrNotFound)
	}

	now := e.clock()
	fine := e.fines.Assess(rec.DueDate, now)
	if err := store.ApplyBorrowAction(ctx, e.db, borrowID, model.ActionApproveReturn, now, fine); err != nil {
		return nil, err
	}

	slog.Info("return approved", "borrow_id", borrowID, "by", actor.UserID, "fine", fine)
	e.changed()
	return e.Get(ctx, borrowID)
}

// Get returns one record with its current fine.
func (e *Engine) Get(ctx context.Context, borrowID int64) (*model.BorrowRecord, error) {
	rec, err := store.GetBorrow(ctx, e.db, borrowID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("borrow %d: %w", borrowID, store.ErrNotFound)
	}
	rec.Fine = e.fines.CurrentFine(rec, e.clock())
	return rec, nil
}

// List returns records matching the filter, newest first, with current fines.
func (e *Engine) List(ctx context.Context, f model.BorrowFilter) ([]model.BorrowRecord, error) {
	records, err := store.ListBorrows(ctx, e.db, f)
	if err != nil {
		return nil, err
	}
	now := e.clock()
	for i := range records {
		records[i].Fine = e.fines.CurrentFine(&records[i], now)
	}
	return records, nil
}

// Stats returns the number of records in each status.
func (e *Engine) Stats(ctx context.Context) (*model.BorrowStats, error) {
	return store.BorrowStats(ctx, e.db)
}
