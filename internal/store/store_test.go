package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
)

func mustUser(t *testing.T, db *sql.DB, email string, role model.Role) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), db, NewUser{
		Name:         email,
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
	})
	require.NoError(t, err)
	return u
}

func mustBook(t *testing.T, db *sql.DB, title string, copies int) *model.Book {
	t.Helper()
	b, err := CreateBook(context.Background(), db, NewBook{
		Title:       title,
		Author:      fmt.Sprintf("Author of %s", title),
		Category:    "Fiction",
		TotalCopies: copies,
	})
	require.NoError(t, err)
	return b
}

func available(t *testing.T, db *sql.DB, bookID int64) int {
	t.Helper()
	b, err := GetBook(context.Background(), db, bookID)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b.AvailableCopies
}
