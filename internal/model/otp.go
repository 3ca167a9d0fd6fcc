package model

import "time"

// OTP is a one-time password reset code bound to an email address.
type OTP struct {
	Email     string
	Code      string
	Verified  bool
	Attempts  int
	CreatedAt time.Time
}

// OTPValidity is how long a code may be verified after it was issued.
const OTPValidity = 10 * time.Minute

// MaxOTPAttempts is how many wrong guesses burn a code.
const MaxOTPAttempts = 5

// Expired reports whether the code is past its validity window at now.
func (o *OTP) Expired(now time.Time) bool {
	return now.Sub(o.CreatedAt) > OTPValidity
}

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
