package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/subashmuthub/lab-management-system/internal/config"
	"github.com/subashmuthub/lab-management-system/internal/mail"
	"github.com/subashmuthub/lab-management-system/internal/metrics"
	"github.com/subashmuthub/lab-management-system/internal/middleware"
	"github.com/subashmuthub/lab-management-system/internal/model"
	"github.com/subashmuthub/lab-management-system/internal/otp"
	"github.com/subashmuthub/lab-management-system/internal/repository"
	"github.com/subashmuthub/lab-management-system/internal/session"
	"github.com/subashmuthub/lab-management-system/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints: password
// login issuing opaque session cookies, OTP-backed email verification
// and password reset.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UserRepo
	Sessions session.Store
	OTPs     *otp.Service
	Mailer   mail.Mailer
	Log      zerolog.Logger
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, sessions session.Store, otps *otp.Service, mailer mail.Mailer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Sessions: sessions, OTPs: otps, Mailer: mailer, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role"` // TECHNICIAN | STUDENT; anything else falls back to STUDENT
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type otpReq struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6"`
}
type sendOTPReq struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"required"`
}
type resetPasswordReq struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type userPart struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

// Register creates an unverified account and dispatches a
// registration passcode. The account cannot log in until the email is
// verified.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role != model.RoleTechnician {
		role = model.RoleStudent
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, strings.TrimSpace(req.Name), req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	expiresIn, err := h.OTPs.Send(ctx, req.Email, otp.PurposeRegistration)
	if err != nil {
		if errors.Is(err, otp.ErrDeliveryFailed) {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to send verification code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue verification code"})
	}
	metrics.OTPSent.WithLabelValues(otp.PurposeRegistration).Inc()

	return c.JSON(http.StatusCreated, echo.Map{
		"user":               userPart{ID: uid, Name: req.Name, Email: req.Email, Role: role},
		"expires_in_seconds": expiresIn,
	})
}

// VerifyEmail consumes a registration passcode, marks the account
// verified and sends the welcome mail (best effort).
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	result, err := h.OTPs.Verify(ctx, req.Email, req.OTP)
	if err != nil {
		return h.otpError(c, err)
	}
	if result.Purpose != otp.PurposeRegistration && result.Purpose != otp.PurposeVerification {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code was not issued for email verification"})
	}
	metrics.OTPVerified.WithLabelValues(result.Purpose).Inc()

	if err := h.Users.VerifyEmail(ctx, req.Email); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to verify email"})
	}
	_ = h.OTPs.Clear(ctx, req.Email)

	// Welcome email is best effort: failure is logged and the
	// verification still succeeds.
	go func(email string) {
		bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		u, err := h.Users.GetByEmail(bg, email)
		if err != nil {
			return
		}
		if err := h.Mailer.SendWelcomeEmail(bg, u.Email, u.Name); err != nil {
			h.Log.Warn().Err(err).Str("email", email).Msg("welcome email failed")
		}
	}(req.Email)

	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

// ResendOTP re-dispatches a code; the same rate-limit window as the
// first send applies.
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req sendOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	expiresIn, err := h.OTPs.Resend(ctx, req.Email, req.Purpose)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrUnknownPurpose):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown purpose"})
		case errors.Is(err, otp.ErrRateLimited):
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "code sent recently, wait before retrying"})
		case errors.Is(err, otp.ErrDeliveryFailed):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to send code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue code"})
	}
	metrics.OTPSent.WithLabelValues(req.Purpose).Inc()
	return c.JSON(http.StatusOK, echo.Map{"expires_in_seconds": expiresIn})
}

// Login verifies credentials and issues an opaque session token in an
// HttpOnly cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.EmailVerified {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "email not verified"})
	}

	token, err := h.Sessions.Create(ctx, session.Data{UserID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create session"})
	}
	metrics.SessionsCreated.Inc()
	h.setSessionCookie(c, token)

	return c.JSON(http.StatusOK, echo.Map{
		"user": userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, EmailVerified: u.EmailVerified},
	})
}

// Logout destroys the session and clears the cookie. Safe to call
// without a live session.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(middleware.CookieName); err == nil && cookie.Value != "" {
		_ = h.Sessions.Delete(c.Request().Context(), cookie.Value)
	}
	h.clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword dispatches a password-reset code. The response does
// not reveal whether the account exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, req.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Same response as the success path.
			return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, a code was sent"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if _, err := h.OTPs.Send(ctx, req.Email, otp.PurposePasswordReset); err != nil {
		switch {
		case errors.Is(err, otp.ErrRateLimited):
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "code sent recently, wait before retrying"})
		case errors.Is(err, otp.ErrDeliveryFailed):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to send code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue code"})
	}
	metrics.OTPSent.WithLabelValues(otp.PurposePasswordReset).Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "if the account exists, a code was sent"})
}

// ResetPassword consumes a password-reset code and replaces the
// stored hash.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	result, err := h.OTPs.Verify(ctx, req.Email, req.OTP)
	if err != nil {
		return h.otpError(c, err)
	}
	if result.Purpose != otp.PurposePasswordReset {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code was not issued for password reset"})
	}
	metrics.OTPVerified.WithLabelValues(result.Purpose).Inc()

	if err := h.Users.UpdatePassword(ctx, req.Email, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update password"})
	}
	_ = h.OTPs.Clear(ctx, req.Email)
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The account vanished while the session lived; kill it.
			if cookie, cerr := c.Cookie(middleware.CookieName); cerr == nil {
				_ = h.Sessions.Delete(ctx, cookie.Value)
			}
			h.clearSessionCookie(c)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, EmailVerified: u.EmailVerified},
	})
}

// otpError maps OTP lifecycle failures onto HTTP responses. Invalid
// codes include how many attempts remain before lockout.
func (h *AuthHandler) otpError(c echo.Context, err error) error {
	var invalid *otp.InvalidCodeError
	switch {
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":              "invalid code",
			"attempts_remaining": invalid.Remaining,
		})
	case errors.Is(err, otp.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no code pending for this email"})
	case errors.Is(err, otp.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "code expired, request a new one"})
	case errors.Is(err, otp.ErrTooManyAttempts):
		return c.JSON(http.StatusGone, echo.Map{"error": "too many attempts, request a new code"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Cfg.SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.Cfg.Env == "prod",
	})
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.Cfg.Env == "prod",
	})
}
