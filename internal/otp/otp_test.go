package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	email   string
	code    string
	purpose string
}

// fakeSender records outbound codes and can be told to fail.
type fakeSender struct {
	sent []sentMail
	fail error
}

func (f *fakeSender) SendOTP(_ context.Context, email, code, purpose string) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentMail{email: email, code: code, purpose: purpose})
	return nil
}

var otpBase = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

func newTestOTP(t *testing.T) (*Service, *fakeSender, *time.Time) {
	t.Helper()
	clock := otpBase
	sender := &fakeSender{}
	svc := NewService(NewMemoryStore(), sender, DefaultTTL, zerolog.Nop())
	svc.now = func() time.Time { return clock }
	return svc, sender, &clock
}

func lastCode(t *testing.T, sender *fakeSender) string {
	t.Helper()
	require.NotEmpty(t, sender.sent)
	return sender.sent[len(sender.sent)-1].code
}

func TestSendDeliversSixDigitCode(t *testing.T) {
	svc, sender, _ := newTestOTP(t)

	ttl, err := svc.Send(context.Background(), "Dana@Example.edu ", PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, 600, ttl)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "dana@example.edu", sender.sent[0].email)
	assert.Equal(t, PurposeRegistration, sender.sent[0].purpose)
	assert.Len(t, sender.sent[0].code, 6)
	for _, r := range sender.sent[0].code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestSendRejectsUnknownPurpose(t *testing.T) {
	svc, _, _ := newTestOTP(t)

	_, err := svc.Send(context.Background(), "dana@example.edu", "mfa")
	assert.ErrorIs(t, err, ErrUnknownPurpose)
}

func TestResendRateLimit(t *testing.T) {
	svc, sender, clock := newTestOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	require.NoError(t, err)

	// Too soon: under a minute since the first send.
	*clock = otpBase.Add(30 * time.Second)
	_, err = svc.Resend(ctx, "dana@example.edu", PurposeRegistration)
	assert.ErrorIs(t, err, ErrRateLimited)

	// 61 seconds later the resend goes through and replaces the code.
	*clock = otpBase.Add(61 * time.Second)
	first := lastCode(t, sender)
	_, err = svc.Resend(ctx, "dana@example.edu", PurposeRegistration)
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	// The old code no longer verifies (unless the draw collided).
	if first != lastCode(t, sender) {
		_, err = svc.Verify(ctx, "dana@example.edu", first)
		assert.ErrorIs(t, err, ErrInvalidCode)
	}
}

func TestDeliveryFailureRollsBack(t *testing.T) {
	svc, sender, _ := newTestOTP(t)
	ctx := context.Background()

	sender.fail = errors.New("smtp: connection refused")
	_, err := svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	// No phantom record remains, so verification finds nothing and a
	// fresh send is not rate limited.
	_, err = svc.Verify(ctx, "dana@example.edu", "123456")
	assert.ErrorIs(t, err, ErrNotFound)

	sender.fail = nil
	_, err = svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	assert.NoError(t, err)
}

func TestVerifySuccess(t *testing.T) {
	svc, sender, _ := newTestOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "dana@example.edu", PurposePasswordReset)
	require.NoError(t, err)

	res, err := svc.Verify(ctx, "DANA@example.edu", " "+lastCode(t, sender)+" ")
	require.NoError(t, err)
	assert.Equal(t, PurposePasswordReset, res.Purpose)
}

func TestVerifyUnknownEmail(t *testing.T) {
	svc, _, _ := newTestOTP(t)

	_, err := svc.Verify(context.Background(), "nobody@example.edu", "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	svc, sender, clock := newTestOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	require.NoError(t, err)
	code := lastCode(t, sender)

	// The deadline is inclusive: at exactly TTL the code still works.
	*clock = otpBase.Add(DefaultTTL)
	res, err := svc.Verify(ctx, "dana@example.edu", code)
	require.NoError(t, err)
	assert.Equal(t, PurposeRegistration, res.Purpose)
}

func TestVerifyAfterExpiryClearsRecord(t *testing.T) {
	svc, sender, clock := newTestOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	require.NoError(t, err)
	code := lastCode(t, sender)

	*clock = otpBase.Add(DefaultTTL + time.Second)
	_, err = svc.Verify(ctx, "dana@example.edu", code)
	assert.ErrorIs(t, err, ErrExpired)

	// The record is gone, not just expired.
	_, err = svc.Verify(ctx, "dana@example.edu", code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyAttemptCeiling(t *testing.T) {
	svc, sender, _ := newTestOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	require.NoError(t, err)
	code := lastCode(t, sender)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 1; i <= AttemptCeiling; i++ {
		_, err := svc.Verify(ctx, "dana@example.edu", wrong)
		var invalid *InvalidCodeError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, AttemptCeiling-i, invalid.Remaining)
	}

	// Even the correct code is dead once the ceiling is reached.
	_, err = svc.Verify(ctx, "dana@example.edu", code)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// The lockout cleared the record; the next send starts fresh.
	_, err = svc.Verify(ctx, "dana@example.edu", code)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendOverwritesPreviousPurpose(t *testing.T) {
	svc, sender, clock := newTestOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	require.NoError(t, err)

	*clock = otpBase.Add(2 * time.Minute)
	_, err = svc.Send(ctx, "dana@example.edu", PurposePasswordReset)
	require.NoError(t, err)

	res, err := svc.Verify(ctx, "dana@example.edu", lastCode(t, sender))
	require.NoError(t, err)
	assert.Equal(t, PurposePasswordReset, res.Purpose)
}

func TestClear(t *testing.T) {
	svc, sender, _ := newTestOTP(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, "dana@example.edu", PurposeRegistration)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "dana@example.edu"))
	_, err = svc.Verify(ctx, "dana@example.edu", lastCode(t, sender))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewCodeIsZeroPadded(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9')
		}
	}
}
