package model

import (
	"errors"
	"fmt"
	"time"
)

// BorrowStatus is the lifecycle state of a borrow record.
type BorrowStatus string

// Borrow statuses.
const (
	BorrowRequested       BorrowStatus = "requested"
	BorrowIssued          BorrowStatus = "issued"
	BorrowReturnRequested BorrowStatus = "return_requested"
	BorrowReturned        BorrowStatus = "returned"
)

// ActiveBorrowStatuses are the non-terminal statuses. At most one record per
// (book, user) may be in one of these.
var ActiveBorrowStatuses = []BorrowStatus{BorrowRequested, BorrowIssued, BorrowReturnRequested}

// ParseBorrowStatus converts a string into a BorrowStatus.
func ParseBorrowStatus(s string) (BorrowStatus, error) {
	switch st := BorrowStatus(s); st {
	case BorrowRequested, BorrowIssued, BorrowReturnRequested, BorrowReturned:
		return st, nil
	default:
		return "", fmt.Errorf("unknown borrow status %q", s)
	}
}

// Active reports whether the status is non-terminal.
func (s BorrowStatus) Active() bool {
	switch s {
	case BorrowRequested, BorrowIssued, BorrowReturnRequested:
		return true
	default:
		return false
	}
}

// BorrowAction is a lifecycle transition trigger.
type BorrowAction string

// Borrow actions.
const (
	ActionApprove       BorrowAction = "approve"
	ActionCancel        BorrowAction = "cancel"
	ActionRequestReturn BorrowAction = "request_return"
	ActionApproveReturn BorrowAction = "approve_return"
)

// ErrInvalidTransition is returned when an action is not allowed from a status.
var ErrInvalidTransition = errors.New("invalid borrow transition")

// NextStatus returns the status a record moves to when action is applied in
// status from. Cancel has no successor: the record is deleted, so the
// returned status is empty.
func NextStatus(from BorrowStatus, action BorrowAction) (BorrowStatus, error) {
	switch action {
	case ActionApprove:
		if from == BorrowRequested {
			return BorrowIssued, nil
		}
	case ActionCancel:
		if from == BorrowRequested {
			return "", nil
		}
	case ActionRequestReturn:
		if from == BorrowIssued {
			return BorrowReturnRequested, nil
		}
	case ActionApproveReturn:
		if from == BorrowReturnRequested {
			return BorrowReturned, nil
		}
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	return "", fmt.Errorf("%w: cannot %s a %s record", ErrInvalidTransition, action, from)
}

// RequiredStatus returns the only status from which action may be applied.
func RequiredStatus(action BorrowAction) BorrowStatus {
	switch action {
	case ActionApprove, ActionCancel:
		return BorrowRequested
	case ActionRequestReturn:
		return BorrowIssued
	case ActionApproveReturn:
		return BorrowReturnRequested
	default:
		return ""
	}
}

// BorrowRecord is one user's attempt to obtain one copy of one book.
type BorrowRecord struct {
	ID         int64        `json:"id"`
	BookID     int64        `json:"book_id"`
	UserID     int64        `json:"user_id"`
	Status     BorrowStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	IssueDate  *time.Time   `json:"issue_date,omitempty"`
	DueDate    time.Time    `json:"due_date"`
	ReturnDate *time.Time   `json:"return_date,omitempty"`
	Fine       int64        `json:"fine"`

	// Joined fields (not always populated).
	BookTitle  string `json:"book_title,omitempty"`
	BookAuthor string `json:"book_author,omitempty"`
	UserName   string `json:"user_name,omitempty"`
	UserEmail  string `json:"user_email,omitempty"`
}

// BorrowFilter narrows a borrow listing. Zero values mean "any".
type BorrowFilter struct {
	Status BorrowStatus
	BookID int64
	UserID int64
}

// BorrowStats are point-in-time counts of records by status.
type BorrowStats struct {
	Requested       int `json:"requested"`
	Issued          int `json:"issued"`
	ReturnRequested int `json:"return_requested"`
	Returned        int `json:"returned"`
	TotalBorrowed   int `json:"total_borrowed"`
}

// DefaultLoanPeriod is the time between a request and its due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour
