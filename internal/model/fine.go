package model

import "time"

// FinePolicy charges a flat amount for every whole day a book is kept past
// its due date, after an optional grace period. Amounts are in minor units.
type FinePolicy struct {
	PerDay    int64
	GraceDays int
}

// DefaultFinePolicy is used when no policy is configured.
var DefaultFinePolicy = FinePolicy{PerDay: 10}

// Assess returns the fine owed for a book due at due and handed back (or
// still held) at at.
func (p FinePolicy) Assess(due, at time.Time) int64 {
	if p.PerDay <= 0 || !at.After(due) {
		return 0
	}
	days := int(at.Sub(due) / (24 * time.Hour))
	days -= p.GraceDays
	if days <= 0 {
		return 0
	}
	return int64(days) * p.PerDay
}

// CurrentFine returns the fine of a record as of now: the stored amount for
// returned records, the running amount for books still out.
func (p FinePolicy) CurrentFine(rec *BorrowRecord, now time.Time) int64 {
	switch rec.Status {
	case BorrowReturned:
		return rec.Fine
	case BorrowIssued, BorrowReturnRequested:
		return p.Assess(rec.DueDate, now)
	default:
		return 0
	}
}
