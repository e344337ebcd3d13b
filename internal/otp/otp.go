// Package otp implements the one-time-passcode lifecycle used for
// email verification, login challenges and password resets. One live
// record exists per email at a time; a new send overwrites whatever
// came before it, regardless of purpose.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Passcode purposes. The purpose travels with the record so the
// verifying caller can branch without a second source of truth.
const (
	PurposeRegistration  = "registration"
	PurposeLogin         = "login"
	PurposePasswordReset = "password-reset"
	PurposeVerification  = "verification"
)

const (
	// DefaultTTL is the validity window of a freshly sent code.
	DefaultTTL = 10 * time.Minute
	// ResendAfter is how long after a send a re-send becomes
	// allowed. While the live record has more than TTL-ResendAfter
	// remaining, Send fails with ErrRateLimited.
	ResendAfter = time.Minute
	// AttemptCeiling is the number of failed verifications that
	// invalidates a record. The observed system used 5 in one flow
	// and 3 in another; 5 is applied uniformly here.
	AttemptCeiling = 5
	// codeDigits is the fixed passcode width. Codes are drawn
	// uniformly from the full zero-padded range, so "004821" is a
	// valid code.
	codeDigits = 6
)

var (
	// ErrUnknownPurpose rejects Send calls with a purpose outside
	// the fixed set.
	ErrUnknownPurpose = errors.New("unknown otp purpose")
	// ErrRateLimited means a code was sent too recently.
	ErrRateLimited = errors.New("otp resend too soon")
	// ErrDeliveryFailed means the mail dispatch failed; the record
	// has been rolled back and no code is outstanding.
	ErrDeliveryFailed = errors.New("otp delivery failed")
	// ErrNotFound means no record exists for the email.
	ErrNotFound = errors.New("otp not found")
	// ErrExpired means the record outlived its TTL; it has been
	// cleared and a new code must be requested.
	ErrExpired = errors.New("otp expired")
	// ErrTooManyAttempts means the attempt ceiling was reached; the
	// record has been cleared and a new code must be requested.
	ErrTooManyAttempts = errors.New("otp attempts exceeded")
	// ErrInvalidCode is matched by errors.Is against the richer
	// InvalidCodeError returned on a mismatch.
	ErrInvalidCode = errors.New("invalid otp code")
)

// InvalidCodeError carries the attempts the caller has left so the
// response can help the user self-correct before lockout.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid otp code, %d attempts remaining", e.Remaining)
}

// Is lets errors.Is(err, ErrInvalidCode) succeed.
func (e *InvalidCodeError) Is(target error) bool { return target == ErrInvalidCode }

// Record is the per-email passcode state.
type Record struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	Verified  bool      `json:"verified"`
}

// Expired reports whether the record is dead at the given instant.
// The deadline itself is inclusive: verification at now == ExpiresAt
// still succeeds.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Store persists passcode records keyed by email. Get returns
// (nil, nil) for an absent record. IncrementAttempts must be atomic
// with respect to concurrent increments and returns the new count.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, email string) (*Record, error)
	Delete(ctx context.Context, email string) error
	IncrementAttempts(ctx context.Context, email string) (int, error)
	MarkVerified(ctx context.Context, email string) error
}

// Sender dispatches the passcode to the user. mail.Mailer satisfies
// this interface.
type Sender interface {
	SendOTP(ctx context.Context, email, code, purpose string) error
}

// VerifyResult is returned on a successful verification.
type VerifyResult struct {
	Purpose string
}

// Service drives the passcode lifecycle over an injected store and
// mail sender.
type Service struct {
	store  Store
	sender Sender
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time // injectable for tests
}

// NewService wires a lifecycle service. A zero ttl falls back to
// DefaultTTL.
func NewService(store Store, sender Sender, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, sender: sender, ttl: ttl, log: log, now: time.Now}
}

// Send generates a fresh code for the email and dispatches it. It
// fails with ErrRateLimited while a live record still has more than
// TTL-ResendAfter of validity left. When the mail dispatch fails the
// record is rolled back so no phantom code stays verifiable, and
// ErrDeliveryFailed is returned. On success it returns the validity
// window in seconds.
func (s *Service) Send(ctx context.Context, email, purpose string) (int, error) {
	email = normalizeEmail(email)
	switch purpose {
	case PurposeRegistration, PurposeLogin, PurposePasswordReset, PurposeVerification:
	default:
		return 0, ErrUnknownPurpose
	}

	now := s.now().UTC()
	existing, err := s.store.Get(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil && !existing.Expired(now) {
		if remaining := existing.ExpiresAt.Sub(now); remaining > s.ttl-ResendAfter {
			return 0, ErrRateLimited
		}
	}

	code, err := NewCode()
	if err != nil {
		return 0, err
	}
	rec := Record{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return 0, err
	}
	if err := s.sender.SendOTP(ctx, email, code, purpose); err != nil {
		if delErr := s.store.Delete(ctx, email); delErr != nil {
			s.log.Error().Err(delErr).Str("email", email).Msg("otp rollback after failed delivery")
		}
		return 0, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return int(s.ttl / time.Second), nil
}

// Resend is Send under another name; the rate-limit rule is identical
// and the previous code is discarded.
func (s *Service) Resend(ctx context.Context, email, purpose string) (int, error) {
	return s.Send(ctx, email, purpose)
}

// Verify checks a candidate code. Expired records and records that
// reached the attempt ceiling are cleared as a side effect. A
// mismatch increments the attempt counter and reports how many tries
// remain. A match marks the record verified, zeroes the counter and
// returns the purpose it was sent for.
func (s *Service) Verify(ctx context.Context, email, candidate string) (*VerifyResult, error) {
	email = normalizeEmail(email)
	rec, err := s.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Expired(s.now().UTC()) {
		_ = s.store.Delete(ctx, email)
		return nil, ErrExpired
	}
	if rec.Attempts >= AttemptCeiling {
		_ = s.store.Delete(ctx, email)
		return nil, ErrTooManyAttempts
	}
	if strings.TrimSpace(candidate) != rec.Code {
		attempts, err := s.store.IncrementAttempts(ctx, email)
		if err != nil {
			return nil, err
		}
		remaining := AttemptCeiling - attempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, &InvalidCodeError{Remaining: remaining}
	}
	if err := s.store.MarkVerified(ctx, email); err != nil {
		return nil, err
	}
	return &VerifyResult{Purpose: rec.Purpose}, nil
}

// Clear drops the record unconditionally. Called once the consuming
// flow is done with it (account activated, password changed).
func (s *Service) Clear(ctx context.Context, email string) error {
	return s.store.Delete(ctx, normalizeEmail(email))
}

// NewCode draws a uniformly distributed zero-padded numeric code from
// the full 10^codeDigits space.
func NewCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
