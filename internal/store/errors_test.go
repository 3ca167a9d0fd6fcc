package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestIsConstraintError(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, err := CreateUser(ctx, database, NewUser{Name: "Ana", Email: "ana@example.com", PasswordHash: "h", Role: model.RoleUser})
	require.NoError(t, err)

	_, err = database.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash) VALUES ('Ana', 'ANA@example.com', 'h')`)
	require.Error(t, err)
	assert.True(t, isConstraintError(err), "duplicate email")
	assert.True(t, isConstraintError(fmt.Errorf("wrapped: %w", err)), "wrapped duplicate email")

	_, err = database.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role) VALUES ('Bor', 'bor@example.com', 'h', 'owner')`)
	require.Error(t, err)
	assert.True(t, isConstraintError(err), "role check")

	_, err = database.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash) VALUES (NULL, 'cene@example.com', 'h')`)
	require.Error(t, err)
	assert.False(t, isConstraintError(err), "not null")

	_, err = database.ExecContext(ctx,
		`INSERT INTO borrows (book_id, user_id, created_at, due_date) VALUES (999, 999, ?, ?)`,
		time.Now().UTC(), time.Now().UTC())
	require.Error(t, err)
	assert.False(t, isConstraintError(err), "foreign key")

	assert.False(t, isConstraintError(nil))
	assert.False(t, isConstraintError(errors.New("UNIQUE constraint failed: users.email")))
}
