package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// OTPDigits is the length of a password reset code.
const OTPDigits = 6

var (
	// ErrOTPInvalid is returned when no code exists or the code does not match.
	ErrOTPInvalid = errors.New("invalid otp")

	// ErrOTPExpired is returned when the code is older than model.OTPValidity.
	ErrOTPExpired = errors.New("otp expired")
)

// GenerateOTP returns a random numeric code of OTPDigits digits.
func GenerateOTP() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

// CheckOTP verifies code against the stored OTP at time now.
func CheckOTP(stored *model.OTP, code string, now time.Time) error {
	if stored == nil {
		return ErrOTPInvalid
	}
	if subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1 {
		return ErrOTPInvalid
	}
	if stored.Expired(now) {
		return ErrOTPExpired
	}
	return nil
}
