package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dealflow/internal/core/domain"
)

var codeInMessage = regexp.MustCompile(`\b(\d{6})\b`)

type otpFixture struct {
	svc   *OTPService
	store *MemoryOTPStore
	sms   *mockSMS
	clock *fakeClock
	last  string
}

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()
	f := &otpFixture{clock: &fakeClock{now: t0}, sms: &mockSMS{}}
	f.store = NewMemoryOTPStore(f.clock.Now)
	f.svc = NewOTPService(f.store, f.sms, OTPConfig{
		TTL:            5 * time.Minute,
		ResendCooldown: time.Minute,
		MaxAttempts:    3,
	}, f.clock.Now)
	f.sms.On("Send", mock.Anything, "+79990000001", mock.Anything).
		Run(func(args mock.Arguments) {
			m := codeInMessage.FindStringSubmatch(args.String(2))
			require.Len(t, m, 2)
			f.last = m[1]
		}).
		Return(nil)
	return f
}

func TestOTPService_SendAndValidate(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	expiresIn, err := f.svc.SendOTP(ctx, "tok", "+7 999 000-00-01")
	require.NoError(t, err)
	assert.Equal(t, 300, expiresIn)
	assert.Len(t, f.last, 6)

	ok, err := f.svc.ValidateOTP(ctx, "tok", " "+f.last+" ")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.ValidateOTP(ctx, "tok", f.last)
	assert.ErrorIs(t, err, domain.ErrCodeExpired, "codes are single use")
}

func TestOTPService_ResendCooldown(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, "tok", "+79990000001")
	require.NoError(t, err)
	first := f.last

	f.clock.Advance(30 * time.Second)
	_, err = f.svc.SendOTP(ctx, "tok", "+79990000001")
	assert.ErrorIs(t, err, domain.ErrCooldownActive)

	f.clock.Advance(31 * time.Second)
	_, err = f.svc.SendOTP(ctx, "tok", "+79990000001")
	require.NoError(t, err)
	f.sms.AssertNumberOfCalls(t, "Send", 2)

	if first != f.last {
		ok, err := f.svc.ValidateOTP(ctx, "tok", first)
		require.NoError(t, err)
		assert.False(t, ok, "a resend replaces the previous code")
	}
}

func TestOTPService_TooManyAttempts(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, "tok", "+79990000001")
	require.NoError(t, err)
	wrong := "000000"
	if f.last == wrong {
		wrong = "111111"
	}

	for i := 0; i < 2; i++ {
		ok, err := f.svc.ValidateOTP(ctx, "tok", wrong)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	_, err = f.svc.ValidateOTP(ctx, "tok", wrong)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

	_, err = f.svc.ValidateOTP(ctx, "tok", f.last)
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestOTPService_Expired(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendOTP(ctx, "tok", "+79990000001")
	require.NoError(t, err)

	f.clock.Advance(5*time.Minute + time.Second)
	_, err = f.svc.ValidateOTP(ctx, "tok", f.last)
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestOTPService_SendFailureDropsCode(t *testing.T) {
	clock := &fakeClock{now: t0}
	store := NewMemoryOTPStore(clock.Now)
	sms := &mockSMS{}
	sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gateway down")).Once()
	sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := NewOTPService(store, sms, OTPConfig{TTL: time.Minute, ResendCooldown: time.Minute, MaxAttempts: 3}, clock.Now)
	ctx := context.Background()

	_, err := svc.SendOTP(ctx, "tok", "+79990000001")
	assert.ErrorContains(t, err, "gateway down")

	entry, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = svc.SendOTP(ctx, "tok", "+79990000001")
	assert.NoError(t, err, "a failed send must not start the cooldown")
}

func TestMemoryOTPStore_Cleanup(t *testing.T) {
	clock := &fakeClock{now: t0}
	store := NewMemoryOTPStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", &OTPEntry{Code: "1"}, time.Minute))
	require.NoError(t, store.Put(ctx, "b", &OTPEntry{Code: "2"}, time.Hour))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Cleanup())

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.Code)
}
