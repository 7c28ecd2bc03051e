package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and mails verification", func(t *testing.T) {
		env := newTestEnv(t)
		creds, _ := testCredentials(t)

		res, err := env.accounts.Register(ctx, RegisterParams{Email: " Alice@Example.com ", Credentials: creds, Captcha: "ok"})
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", res.User.Email)
		require.NotEmpty(t, res.User.OTPSecret)
		require.False(t, res.User.OTPCompleted)
		require.Contains(t, res.OTPURI, "otpauth://totp/")
		require.Equal(t, domain.DefaultNotifications().Email, res.User.Notifications.Email)

		emails := env.notifier.Emails()
		require.Len(t, emails, 1)
		require.Equal(t, "alice@example.com", emails[0].To)
		require.Contains(t, emails[0].Body, "https://purplix.test/verify-email/alice@example.com/")
	})

	t.Run("email is unique regardless of case", func(t *testing.T) {
		env := newTestEnv(t)
		env.newUser(t, "bob@example.com", false)

		creds, _ := testCredentials(t)
		_, err := env.accounts.Register(ctx, RegisterParams{Email: "BOB@example.com", Credentials: creds, Captcha: "ok"})
		require.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("registration switch", func(t *testing.T) {
		env := newTestEnv(t)
		env.accounts.RegistrationDisabled = true
		creds, _ := testCredentials(t)

		_, err := env.accounts.Register(ctx, RegisterParams{Email: "c@example.com", Credentials: creds, Captcha: "ok"})
		require.ErrorIs(t, err, ErrRegistrationOff)
	})

	t.Run("captcha", func(t *testing.T) {
		env := newTestEnv(t)
		env.captcha.ok = false
		creds, _ := testCredentials(t)

		_, err := env.accounts.Register(ctx, RegisterParams{Email: "c@example.com", Credentials: creds, Captcha: "bad"})
		require.ErrorIs(t, err, ErrInvalidCaptcha)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		env := newTestEnv(t)
		creds, _ := testCredentials(t)

		_, err := env.accounts.Register(ctx, RegisterParams{Email: "not-an-email", Credentials: creds, Captcha: "ok"})
		require.ErrorIs(t, err, ErrInvalidRequest)

		creds.SignPublicKey = "c2hvcnQ="
		_, err = env.accounts.Register(ctx, RegisterParams{Email: "d@example.com", Credentials: creds, Captcha: "ok"})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.accounts.RequestChallenge(ctx, "nobody@example.com")
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("issues a token for a live session", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		res := env.login(t, u)
		require.NotEmpty(t, res.Token)
		require.Equal(t, u.ID, res.User.ID)

		p, err := env.sessions.Authenticate(ctx, res.Token)
		require.NoError(t, err)
		require.Equal(t, u.ID, p.UserID)
		require.Equal(t, res.Session.ID, p.SessionID)

		require.Equal(t, 7*24*time.Hour, res.Session.ExpiresAt.Sub(res.Session.CreatedAt))
		require.Equal(t, 21*24*time.Hour, res.Session.RecordKeptTill.Sub(res.Session.CreatedAt))
	})

	t.Run("challenge is single use", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)
		p := LoginParams{Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign), Captcha: "ok"}

		_, err = env.accounts.Login(ctx, p)
		require.NoError(t, err)

		_, err = env.accounts.Login(ctx, p)
		require.ErrorIs(t, err, ErrInvalidAuth)
	})

	t.Run("failed signature burns the challenge", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)

		_, err = env.accounts.Login(ctx, LoginParams{
			Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, "something else"), Captcha: "ok",
		})
		require.ErrorIs(t, err, ErrInvalidAuth)

		_, err = env.accounts.Login(ctx, LoginParams{
			Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign), Captcha: "ok",
		})
		require.ErrorIs(t, err, ErrInvalidAuth)
	})

	t.Run("failed captcha burns the challenge", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)
		p := LoginParams{Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign), Captcha: "bad"}

		env.captcha.ok = false
		_, err = env.accounts.Login(ctx, p)
		require.ErrorIs(t, err, ErrInvalidCaptcha)

		env.captcha.ok = true
		_, err = env.accounts.Login(ctx, p)
		require.ErrorIs(t, err, ErrInvalidAuth)
	})

	t.Run("concurrent attempts consume once", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)
		p := LoginParams{Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign), Captcha: "ok"}

		const attempts = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.accounts.Login(ctx, p)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, ErrInvalidAuth)
			}()
		}
		wg.Wait()
		require.Equal(t, 1, wins)
	})

	t.Run("expired challenge", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)
		env.clock.Advance(ProofTTL + time.Second)

		_, err = env.accounts.Login(ctx, LoginParams{
			Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign), Captcha: "ok",
		})
		require.ErrorIs(t, err, ErrInvalidAuth)
	})

	t.Run("requires otp once set up", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", true)

		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)
		_, err = env.accounts.Login(ctx, LoginParams{
			Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign), Captcha: "ok",
		})
		require.ErrorIs(t, err, ErrInvalidAuth)

		res := env.login(t, u)
		require.Empty(t, res.User.OTPSecret)
	})

	t.Run("one day session", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)
		res, err := env.accounts.Login(ctx, LoginParams{
			Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign), Captcha: "ok", OneDay: true,
		})
		require.NoError(t, err)
		require.Equal(t, 24*time.Hour, res.Session.ExpiresAt.Sub(res.Session.CreatedAt))
	})
}

func TestLoginSessionMetadata(t *testing.T) {
	ctx := context.Background()

	loginFrom := func(t *testing.T, env *testEnv, u testUser) LoginResult {
		t.Helper()
		proof, err := env.accounts.RequestChallenge(ctx, u.Email)
		require.NoError(t, err)
		res, err := env.accounts.Login(ctx, LoginParams{
			Email: u.Email, ChallengeID: proof.ID, Signature: sign(u.priv, proof.ToSign),
			Captcha: "ok", ClientIP: "203.0.113.9", UserAgent: "Firefox",
		})
		require.NoError(t, err)
		return res
	}

	t.Run("no lookup without consent", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)

		res := loginFrom(t, env, u)
		require.Zero(t, env.geo.calls)
		require.Empty(t, res.Session.Location)
		require.NotEmpty(t, res.Session.Device)
		require.NotContains(t, res.Session.Device, "Firefox")
	})

	t.Run("sealed location with consent", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)
		require.NoError(t, env.accounts.SetIPLookupConsent(ctx, u.ID, true))

		res := loginFrom(t, env, u)
		require.Equal(t, 1, env.geo.calls)
		require.NotEmpty(t, res.Session.Location.Region)
		require.NotEmpty(t, res.Session.Location.Country)
		require.NotEmpty(t, res.Session.Location.IP)
		require.NotEqual(t, "Germany", res.Session.Location.Country)
	})

	t.Run("lookup failure does not fail login", func(t *testing.T) {
		env := newTestEnv(t)
		env.geo.err = errors.New("upstream down")
		u := env.newUser(t, "alice@example.com", false)
		require.NoError(t, env.accounts.SetIPLookupConsent(ctx, u.ID, true))

		res := loginFrom(t, env, u)
		require.Empty(t, res.Session.Location)
	})
}

func TestEmailVerification(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "alice@example.com", false)

	pending, err := env.store.EmailVerifications().GetEmailVerification(ctx, u.Email, env.clock.Now())
	require.NoError(t, err)

	require.NoError(t, env.accounts.ResendVerification(ctx, u.ID))
	emails := env.notifier.Emails()
	require.Len(t, emails, 2)
	require.True(t, strings.HasSuffix(emails[1].Body, pending.Secret), "resend reuses the live secret")

	require.ErrorIs(t, env.accounts.VerifyEmail(ctx, u.Email, "wrong"), ErrInvalidAuth)
	require.NoError(t, env.accounts.VerifyEmail(ctx, "ALICE@example.com", pending.Secret))
	require.ErrorIs(t, env.accounts.VerifyEmail(ctx, u.Email, pending.Secret), ErrInvalidAuth)

	me, err := env.accounts.Me(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, me.EmailVerified)

	require.NoError(t, env.accounts.ResendVerification(ctx, u.ID))
	require.Len(t, env.notifier.Emails(), 2, "verified accounts get no more mail")
}

func TestResetCredentials(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "alice@example.com", true)

	first := env.login(t, u)
	second := env.login(t, u)

	creds, priv := testCredentials(t)
	require.ErrorIs(t, env.accounts.ResetCredentials(ctx, u.ID, "000000", creds), ErrInvalidAuth)
	require.NoError(t, env.accounts.ResetCredentials(ctx, u.ID, env.code(t, u), creds))

	for _, tok := range []string{first.Token, second.Token} {
		_, err := env.sessions.Authenticate(ctx, tok)
		require.ErrorIs(t, err, ErrNotAuthenticated)
	}

	env.clock.Advance(otpPeriod * time.Second)
	u.priv = priv
	res := env.login(t, u)
	require.NotEmpty(t, res.Token)

	kdf, err := env.accounts.PublicKDF(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, creds.KDF, kdf)
}

func TestNotificationPreferences(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.newUser(t, "alice@example.com", false)

	load := func() domain.Notifications {
		me, err := env.accounts.Me(ctx, u.ID)
		require.NoError(t, err)
		return me.Notifications
	}

	t.Run("email kinds", func(t *testing.T) {
		require.NoError(t, env.accounts.DisableEmail(ctx, u.ID, domain.NotifySurveySubmissions))
		require.False(t, load().WantsEmail(domain.NotifySurveySubmissions))

		require.NoError(t, env.accounts.EnableEmail(ctx, u.ID, domain.NotifySurveySubmissions))
		require.NoError(t, env.accounts.EnableEmail(ctx, u.ID, domain.NotifySurveySubmissions))
		n := load()
		require.True(t, n.WantsEmail(domain.NotifySurveySubmissions))
		require.Len(t, n.Email, 3)

		require.ErrorIs(t, env.accounts.EnableEmail(ctx, u.ID, "marketing"), ErrInvalidRequest)
	})

	t.Run("push topics", func(t *testing.T) {
		require.NoError(t, env.accounts.SetPush(ctx, u.ID, domain.NotifyCanaryRenewals, "alice-renewals"))
		require.Equal(t, "alice-renewals", load().Push[domain.NotifyCanaryRenewals])

		require.ErrorIs(t, env.accounts.SetPush(ctx, u.ID, domain.NotifyCanaryRenewals, "a/b"), ErrInvalidRequest)

		require.NoError(t, env.accounts.RemovePush(ctx, u.ID, domain.NotifyCanaryRenewals))
		require.Empty(t, load().Push)
	})

	t.Run("webhooks", func(t *testing.T) {
		kind := domain.NotifyCanarySubscriptions
		for _, h := range []string{"https://hooks.example.com/a", "https://hooks.example.com/b", "https://hooks.example.com/c"} {
			require.NoError(t, env.accounts.AddWebhook(ctx, u.ID, kind, h))
		}
		require.NoError(t, env.accounts.AddWebhook(ctx, u.ID, kind, "https://hooks.example.com/a"))
		require.ErrorIs(t, env.accounts.AddWebhook(ctx, u.ID, kind, "https://hooks.example.com/d"), ErrTooManyWebhooks)
		require.ErrorIs(t, env.accounts.AddWebhook(ctx, u.ID, kind, "https://127.0.0.1/hook"), ErrUnsafeWebhook)

		require.NoError(t, env.accounts.RemoveWebhook(ctx, u.ID, kind, "https://hooks.example.com/b"))
		require.Equal(t, []string{"https://hooks.example.com/a", "https://hooks.example.com/c"}, load().Webhooks[kind])
	})
}
