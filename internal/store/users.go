package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// NewUser holds the fields of an account to create.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         model.Role
	Stream       string
	Year         string
}

const userColumns = `id, name, email, password_hash, role, stream, year, created_at`

// CreateUser creates a new user. A taken email yields ErrConflict.
func CreateUser(ctx context.Context, db *sql.DB, u NewUser) (*model.User, error) {
	if !u.Role.Valid() {
		return nil, fmt.Errorf("creating user: invalid role %q", u.Role)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, stream, year) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name, model.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), nullString(u.Stream), nullString(u.Year),
	)
	if isConstraintError(err) {
		return nil, fmt.Errorf("creating user: email already exists: %w", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email address (case-insensitive).
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, model.NormalizeEmail(email),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all users, optionally only those with the given role.
func ListUsers(ctx context.Context, db *sql.DB, role model.Role) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("updating user password: %w", ErrNotFound)
	}
	return nil
}

// CountUsers returns the number of accounts with the given role.
func CountUsers(ctx context.Context, db *sql.DB, role model.Role) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var role string
	var stream, year sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &stream, &year, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.Stream = stream.String
	u.Year = year.String
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
