package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestOTPValidateRejectsReplay(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "alice@example.com", true)

	code := env.code(t, u)
	require.NoError(t, env.otp.Validate(ctx, u.User, code))
	require.ErrorIs(t, env.otp.Validate(ctx, u.User, code), ErrInvalidAuth)

	env.clock.Advance(20 * time.Second)
	require.ErrorIs(t, env.otp.Validate(ctx, u.User, code), ErrInvalidAuth, "still inside the marker window")
}

func TestOTPValidateFailureDoesNotBurnCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "alice@example.com", true)

	require.ErrorIs(t, env.otp.Validate(ctx, u.User, ""), ErrInvalidAuth)
	require.ErrorIs(t, env.otp.Validate(ctx, u.User, "12345"), ErrInvalidAuth)

	code := env.code(t, u)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	require.ErrorIs(t, env.otp.Validate(ctx, u.User, wrong), ErrInvalidAuth)
	require.NoError(t, env.otp.Validate(ctx, u.User, code))
}

func TestOTPSetup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "alice@example.com", false)

	require.ErrorIs(t, env.otp.Setup(ctx, u.ID, "000000"), ErrInvalidAuth)
	require.NoError(t, env.otp.Setup(ctx, u.ID, env.code(t, u)))

	env.clock.Advance(otpPeriod * time.Second)
	require.ErrorIs(t, env.otp.Setup(ctx, u.ID, env.code(t, u)), ErrOTPCompleted)

	me, err := env.accounts.Me(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, me.OTPCompleted)
	require.Empty(t, me.OTPSecret)
}

func TestOTPResetRevokesEverySession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "alice@example.com", true)

	var tokens []string
	for range 3 {
		tokens = append(tokens, env.login(t, u).Token)
	}
	for _, tok := range tokens {
		_, err := env.sessions.Authenticate(ctx, tok)
		require.NoError(t, err, "warms the cache with a live verdict")
	}

	reset, err := env.otp.Reset(ctx, u.ID, env.code(t, u))
	require.NoError(t, err)
	require.NotEqual(t, u.OTPSecret, reset.Secret)
	require.Contains(t, reset.URI, reset.Secret)

	for _, tok := range tokens {
		_, err := env.sessions.Authenticate(ctx, tok)
		require.ErrorIs(t, err, ErrNotAuthenticated)
	}

	sessions, err := env.sessions.List(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, sessions)

	// The new secret has to be confirmed again through setup.
	env.clock.Advance(otpPeriod * time.Second)
	code, err := totp.GenerateCode(reset.Secret, env.clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.otp.Setup(ctx, u.ID, code))
}
