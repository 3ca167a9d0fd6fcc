package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestBorrowRequestReservesCopy(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	b := mustBook(t, database, "Dune", 2)
	u := mustUser(t, database, "a@example.com", model.RoleUser)

	rec, err := CreateBorrowRequest(ctx, database, b.ID, u.ID, now, now.Add(model.DefaultLoanPeriod))
	require.NoError(t, err)
	assert.Equal(t, model.BorrowRequested, rec.Status)
	assert.Equal(t, "Dune", rec.BookTitle)
	assert.Equal(t, "a@example.com", rec.UserEmail)
	assert.True(t, rec.DueDate.Equal(now.Add(14*24*time.Hour)))
	assert.Nil(t, rec.IssueDate)
	assert.Equal(t, 1, available(t, database, b.ID))
}

func TestBorrowRequestConflicts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	due := now.Add(model.DefaultLoanPeriod)

	b := mustBook(t, database, "Dune", 1)
	a := mustUser(t, database, "a@example.com", model.RoleUser)
	other := mustUser(t, database, "b@example.com", model.RoleUser)

	_, err := CreateBorrowRequest(ctx, database, b.ID, a.ID, now, due)
	require.NoError(t, err)

	// Same pair while the first request is active.
	_, err = CreateBorrowRequest(ctx, database, b.ID, a.ID, now, due)
	assert.ErrorIs(t, err, ErrConflict)

	// Last copy is reserved for a.
	_, err = CreateBorrowRequest(ctx, database, b.ID, other.ID, now, due)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, available(t, database, b.ID))

	_, err = CreateBorrowRequest(ctx, database, 9999, a.ID, now, due)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBorrowDuplicateWithStockLeft(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	due := now.Add(model.DefaultLoanPeriod)

	b := mustBook(t, database, "Dune", 3)
	a := mustUser(t, database, "a@example.com", model.RoleUser)

	_, err := CreateBorrowRequest(ctx, database, b.ID, a.ID, now, due)
	require.NoError(t, err)

	_, err = CreateBorrowRequest(ctx, database, b.ID, a.ID, now, due)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 2, available(t, database, b.ID), "rejected request must not hold a copy")
}

func TestBorrowFullLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	due := created.Add(model.DefaultLoanPeriod)

	b := mustBook(t, database, "Dune", 1)
	u := mustUser(t, database, "a@example.com", model.RoleUser)

	rec, err := CreateBorrowRequest(ctx, database, b.ID, u.ID, created, due)
	require.NoError(t, err)

	issuedAt := created.Add(time.Hour)
	require.NoError(t, ApplyBorrowAction(ctx, database, rec.ID, model.ActionApprove, issuedAt, 0))

	got, err := GetBorrow(ctx, database, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowIssued, got.Status)
	require.NotNil(t, got.IssueDate)
	assert.True(t, got.IssueDate.Equal(issuedAt))
	assert.Equal(t, 0, available(t, database, b.ID))

	require.NoError(t, ApplyBorrowAction(ctx, database, rec.ID, model.ActionRequestReturn, issuedAt, 0))

	returnedAt := due.Add(3 * 24 * time.Hour)
	require.NoError(t, ApplyBorrowAction(ctx, database, rec.ID, model.ActionApproveReturn, returnedAt, 30))

	got, err = GetBorrow(ctx, database, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.True(t, got.ReturnDate.Equal(returnedAt))
	assert.Equal(t, int64(30), got.Fine)
	assert.Equal(t, 1, available(t, database, b.ID))

	// A returned record does not block a new request for the same pair.
	_, err = CreateBorrowRequest(ctx, database, b.ID, u.ID, returnedAt, returnedAt.Add(model.DefaultLoanPeriod))
	assert.NoError(t, err)
}

func TestApplyBorrowActionWrongState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	b := mustBook(t, database, "Dune", 1)
	u := mustUser(t, database, "a@example.com", model.RoleUser)

	rec, err := CreateBorrowRequest(ctx, database, b.ID, u.ID, now, now.Add(model.DefaultLoanPeriod))
	require.NoError(t, err)

	for _, action := range []model.BorrowAction{model.ActionRequestReturn, model.ActionApproveReturn} {
		err := ApplyBorrowAction(ctx, database, rec.ID, action, now, 0)
		assert.ErrorIs(t, err, ErrInvalidState, "action %s", action)
	}

	require.NoError(t, ApplyBorrowAction(ctx, database, rec.ID, model.ActionApprove, now, 0))

	// Approving twice or cancelling an issued record leaves it untouched.
	for _, action := range []model.BorrowAction{model.ActionApprove, model.ActionCancel, model.ActionApproveReturn} {
		err := ApplyBorrowAction(ctx, database, rec.ID, action, now, 0)
		assert.ErrorIs(t, err, ErrInvalidState, "action %s", action)
	}

	got, err := GetBorrow(ctx, database, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowIssued, got.Status)
	assert.Equal(t, 0, available(t, database, b.ID))

	err = ApplyBorrowAction(ctx, database, 9999, model.ActionApprove, now, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelReleasesCopy(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	b := mustBook(t, database, "Dune", 1)
	u := mustUser(t, database, "a@example.com", model.RoleUser)

	rec, err := CreateBorrowRequest(ctx, database, b.ID, u.ID, now, now.Add(model.DefaultLoanPeriod))
	require.NoError(t, err)
	require.Equal(t, 0, available(t, database, b.ID))

	require.NoError(t, ApplyBorrowAction(ctx, database, rec.ID, model.ActionCancel, now, 0))

	got, err := GetBorrow(ctx, database, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, available(t, database, b.ID))

	err = ApplyBorrowAction(ctx, database, rec.ID, model.ActionCancel, now, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindActiveAndListBorrows(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	due := now.Add(model.DefaultLoanPeriod)

	dune := mustBook(t, database, "Dune", 2)
	emma := mustBook(t, database, "Emma", 2)
	a := mustUser(t, database, "a@example.com", model.RoleUser)
	other := mustUser(t, database, "b@example.com", model.RoleUser)

	r1, err := CreateBorrowRequest(ctx, database, dune.ID, a.ID, now, due)
	require.NoError(t, err)
	_, err = CreateBorrowRequest(ctx, database, emma.ID, a.ID, now.Add(time.Second), due)
	require.NoError(t, err)
	_, err = CreateBorrowRequest(ctx, database, dune.ID, other.ID, now.Add(2*time.Second), due)
	require.NoError(t, err)
	require.NoError(t, ApplyBorrowAction(ctx, database, r1.ID, model.ActionApprove, now, 0))

	found, err := FindActiveBorrow(ctx, database, dune.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, r1.ID, found.ID)

	none, err := FindActiveBorrow(ctx, database, emma.ID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	tests := []struct {
		name   string
		filter model.BorrowFilter
		want   int
	}{
		{"all", model.BorrowFilter{}, 3},
		{"issued", model.BorrowFilter{Status: model.BorrowIssued}, 1},
		{"requested", model.BorrowFilter{Status: model.BorrowRequested}, 2},
		{"by user", model.BorrowFilter{UserID: a.ID}, 2},
		{"by book", model.BorrowFilter{BookID: dune.ID}, 2},
		{"user and status", model.BorrowFilter{UserID: a.ID, Status: model.BorrowRequested}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ListBorrows(ctx, database, tt.filter)
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}

	all, err := ListBorrows(ctx, database, model.BorrowFilter{})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", all[0].UserEmail, "newest first")
}

func TestBorrowStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	due := now.Add(model.DefaultLoanPeriod)

	b := mustBook(t, database, "Dune", 5)
	users := make([]*model.User, 4)
	records := make([]*model.BorrowRecord, 4)
	for i := range users {
		users[i] = mustUser(t, database, string(rune('a'+i))+"@example.com", model.RoleUser)
		rec, err := CreateBorrowRequest(ctx, database, b.ID, users[i].ID, now, due)
		require.NoError(t, err)
		records[i] = rec
	}

	// 0: requested, 1: issued, 2: return_requested, 3: returned.
	require.NoError(t, ApplyBorrowAction(ctx, database, records[1].ID, model.ActionApprove, now, 0))
	require.NoError(t, ApplyBorrowAction(ctx, database, records[2].ID, model.ActionApprove, now, 0))
	require.NoError(t, ApplyBorrowAction(ctx, database, records[2].ID, model.ActionRequestReturn, now, 0))
	require.NoError(t, ApplyBorrowAction(ctx, database, records[3].ID, model.ActionApprove, now, 0))
	require.NoError(t, ApplyBorrowAction(ctx, database, records[3].ID, model.ActionRequestReturn, now, 0))
	require.NoError(t, ApplyBorrowAction(ctx, database, records[3].ID, model.ActionApproveReturn, now, 0))

	stats, err := BorrowStats(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowStats{
		Requested:       1,
		Issued:          1,
		ReturnRequested: 1,
		Returned:        1,
		TotalBorrowed:   2,
	}, *stats)

	n, err := CountActiveBorrowers(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Copies: 5 total, 3 still reserved or out.
	assert.Equal(t, 2, available(t, database, b.ID))
}

func TestConcurrentRequestsForLastCopy(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	ctx := context.Background()
	now := time.Now().UTC()

	b := mustBook(t, database, "Dune", 1)
	const n = 8
	users := make([]*model.User, n)
	for i := range users {
		users[i] = mustUser(t, database, string(rune('a'+i))+"@example.com", model.RoleUser)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = CreateBorrowRequest(ctx, database, b.ID, users[i].ID, now, now.Add(model.DefaultLoanPeriod))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, available(t, database, b.ID))
}
