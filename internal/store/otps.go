package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// SaveOTP stores a fresh code for email, replacing any previous one.
func SaveOTP(ctx context.Context, db *sql.DB, email, code string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO otps (email, code, verified, attempts, created_at) VALUES (?, ?, 0, 0, ?)
		 ON CONFLICT(email) DO UPDATE SET code = excluded.code, verified = 0, attempts = 0, created_at = excluded.created_at`,
		model.NormalizeEmail(email), code, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving otp: %w", err)
	}
	return nil
}

// GetOTP returns the code issued to email, or nil.
func GetOTP(ctx context.Context, db *sql.DB, email string) (*model.OTP, error) {
	o := &model.OTP{}
	var verified int
	err := db.QueryRowContext(ctx,
		`SELECT email, code, verified, attempts, created_at FROM otps WHERE email = ?`,
		model.NormalizeEmail(email),
	).Scan(&o.Email, &o.Code, &verified, &o.Attempts, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting otp: %w", err)
	}
	o.Verified = verified != 0
	return o, nil
}

// MarkOTPVerified flags the code issued to email as verified.
func MarkOTPVerified(ctx context.Context, db *sql.DB, email string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE otps SET verified = 1 WHERE email = ?`, model.NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("verifying otp: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("verifying otp: %w", ErrNotFound)
	}
	return nil
}

// RecordOTPFailure counts a wrong guess against the code issued to email.
// Once max guesses have failed the code is deleted and burned is true.
func RecordOTPFailure(ctx context.Context, db *sql.DB, email string, max int) (burned bool, err error) {
	email = model.NormalizeEmail(email)

	var attempts int
	err = db.QueryRowContext(ctx,
		`UPDATE otps SET attempts = attempts + 1 WHERE email = ? RETURNING attempts`, email,
	).Scan(&attempts)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recording otp failure: %w", err)
	}
	if attempts < max {
		return false, nil
	}

	if err := DeleteOTP(ctx, db, email); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteOTP removes the code issued to email. Deleting a missing code is not an error.
func DeleteOTP(ctx context.Context, db *sql.DB, email string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM otps WHERE email = ?`, model.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("deleting otp: %w", err)
	}
	return nil
}

// ResetPasswordWithOTP sets a new password hash for email and consumes its
// verified code in one transaction. Codes issued before notBefore no longer
// count. It returns ErrInvalidState when there is no usable verified code for
// the address.
func ResetPasswordWithOTP(ctx context.Context, db *sql.DB, email, passwordHash string, notBefore time.Time) error {
	email = model.NormalizeEmail(email)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM otps WHERE email = ? AND verified = 1 AND created_at > ?`, email, notBefore.UTC(),
	)
	if err != nil {
		return fmt.Errorf("consuming otp: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("no unexpired verified code for %s: %w", email, ErrInvalidState)
	}

	result, err = tx.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE email = ?`, passwordHash, email)
	if err != nil {
		return fmt.Errorf("resetting password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", email, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing password reset: %w", err)
	}
	return nil
}
