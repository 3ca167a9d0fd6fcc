package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// CreateContactMessage stores a message left through the contact form.
func CreateContactMessage(ctx context.Context, db *sql.DB, m model.ContactMessage) (*model.ContactMessage, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := db.QueryRowContext(ctx,
		`INSERT INTO contacts (name, email, subject, message, created_at) VALUES (?, ?, ?, ?, ?)
		 RETURNING id`,
		m.Name, m.Email, m.Subject, m.Message, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("storing contact message: %w", err)
	}
	return &m, nil
}

// ListContactMessages returns contact messages, newest first.
func ListContactMessages(ctx context.Context, db *sql.DB) ([]model.ContactMessage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, email, subject, message, created_at FROM contacts ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing contact messages: %w", err)
	}
	defer rows.Close()

	var messages []model.ContactMessage
	for rows.Next() {
		var m model.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning contact message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
