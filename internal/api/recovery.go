package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/mail"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// RecoveryHandler handles OTP based password reset.
type RecoveryHandler struct {
	DB     *sql.DB
	Mailer mail.Mailer
	Now    func() time.Time
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

func (h *RecoveryHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// ForgotPassword handles POST /api/users/forgot-password.
func (h *RecoveryHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.issueOTP(w, r, false)
}

// ResendOTP handles POST /api/users/resend-otp. Any previous code stops working.
func (h *RecoveryHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	h.issueOTP(w, r, true)
}

func (h *RecoveryHandler) issueOTP(w http.ResponseWriter, r *http.Request, resend bool) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := model.NormalizeEmail(req.Email)
	if email == "" {
		jsonError(w, http.StatusBadRequest, "email required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, email)
	if err != nil {
		writeError(w, "looking up user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		writeError(w, "generating otp", err)
		return
	}
	if err := store.SaveOTP(r.Context(), h.DB, email, code, h.now().UTC()); err != nil {
		writeError(w, "saving otp", err)
		return
	}

	msg, err := mail.OTPMessage(email, code, int(model.OTPValidity/time.Minute), resend)
	if err != nil {
		writeError(w, "building otp email", err)
		return
	}
	if err := h.Mailer.Send(r.Context(), msg); err != nil {
		slog.Error("sending otp email", "email", email, "error", err)
		jsonError(w, http.StatusBadGateway, "failed to send email")
		return
	}

	slog.Info("password reset code sent", "user_id", user.ID, "resend", resend)
	jsonMessage(w, http.StatusOK, "OTP sent to your email")
}

// VerifyOTP handles POST /api/users/verify-otp.
func (h *RecoveryHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := model.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.OTP)
	if email == "" || code == "" {
		jsonError(w, http.StatusBadRequest, "email and otp required")
		return
	}

	stored, err := store.GetOTP(r.Context(), h.DB, email)
	if err != nil {
		writeError(w, "getting otp", err)
		return
	}

	switch err := auth.CheckOTP(stored, code, h.now()); {
	case errors.Is(err, auth.ErrOTPExpired):
		jsonError(w, http.StatusBadRequest, "OTP expired")
		return
	case err != nil:
		slog.Warn("otp verification failed", "email", email, "remote", r.RemoteAddr)
		burned, ferr := store.RecordOTPFailure(r.Context(), h.DB, email, model.MaxOTPAttempts)
		if ferr != nil {
			writeError(w, "recording otp failure", ferr)
			return
		}
		if burned {
			slog.Warn("otp burned after repeated failures", "email", email)
			jsonError(w, http.StatusTooManyRequests, "too many attempts, request a new OTP")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid OTP")
		return
	}

	if err := store.MarkOTPVerified(r.Context(), h.DB, email); err != nil {
		writeError(w, "verifying otp", err)
		return
	}
	jsonMessage(w, http.StatusOK, "OTP verified")
}

// ResetPassword handles POST /api/users/reset-password. It needs a verified
// code that is still inside its validity window, and consumes it.
func (h *RecoveryHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := model.NormalizeEmail(req.Email)
	if email == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "email and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now()
	stored, err := store.GetOTP(r.Context(), h.DB, email)
	if err != nil {
		writeError(w, "getting otp", err)
		return
	}
	if stored != nil && stored.Verified && stored.Expired(now) {
		jsonError(w, http.StatusBadRequest, "OTP expired")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, "hashing password", err)
		return
	}

	err = store.ResetPasswordWithOTP(r.Context(), h.DB, email, hash, now.Add(-model.OTPValidity))
	if errors.Is(err, store.ErrInvalidState) {
		jsonError(w, http.StatusBadRequest, "OTP not verified")
		return
	}
	if err != nil {
		writeError(w, "resetting password", err)
		return
	}

	slog.Info("password reset", "email", email)
	jsonMessage(w, http.StatusOK, "password reset successful")
}
