package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/purplixsdk"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	live, err := srv.client().GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := srv.client().GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)

	require.NoError(t, srv.store.Close())
	_, err = srv.client().GetReadiness(ctx)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := srv.client()

	creds, _ := credentials(t)
	reg, err := client.Register(ctx, purplixsdk.RegisterRequest{Email: "Alice@Example.com", Credentials: creds})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", reg.User.Email)
	require.False(t, reg.User.EmailVerified)
	require.True(t, strings.HasPrefix(reg.OTPProvisioningURI, "otpauth://totp/"))
	require.ElementsMatch(t, []string{"canary_renewals", "canary_subscriptions", "survey_submissions"}, reg.User.Notifications.Email)

	_, err = client.Register(ctx, purplixsdk.RegisterRequest{Email: "alice@example.com", Credentials: creds})
	require.ErrorIs(t, err, apierr.ErrEmailTaken)

	kdf, err := client.PublicKDF(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, creds.KDF, *kdf)

	_, err = client.PublicKDF(ctx, "nobody@example.com")
	require.ErrorIs(t, err, apierr.ErrUserNotFound)

	t.Run("unknown fields are rejected", func(t *testing.T) {
		resp, err := http.Post(srv.url+"/v1/account", "application/json",
			strings.NewReader(`{"email":"bob@example.com","admin":true}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		var body apierr.Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, apierr.CodeInvalidRequest, body.Code)
	})
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice := srv.signUp(t, "alice@example.com")

	t.Run("cookie and body token", func(t *testing.T) {
		client := srv.client()
		challenge, err := client.RequestChallenge(ctx, alice.email)
		require.NoError(t, err)

		body, _ := json.Marshal(purplixsdk.LoginRequest{
			ID:        challenge.ID,
			Signature: purplixsdk.SignChallenge(alice.priv, challenge.ToSign),
		})
		resp, err := http.Post(srv.url+"/v1/account/"+alice.email+"/login", "application/json", strings.NewReader(string(body)))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out purplixsdk.LoginResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

		var cookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "session" {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		require.Equal(t, out.Token, cookie.Value)
		require.True(t, cookie.HttpOnly)
		require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		require.NotEmpty(t, out.User.OTPSecret, "secret stays visible until OTP is set up")
	})

	t.Run("challenge is single use", func(t *testing.T) {
		client := srv.client()
		challenge, err := client.RequestChallenge(ctx, alice.email)
		require.NoError(t, err)

		req := purplixsdk.LoginRequest{ID: challenge.ID, Signature: purplixsdk.SignChallenge(alice.priv, challenge.ToSign)}
		_, err = client.SubmitLogin(ctx, alice.email, req)
		require.NoError(t, err)
		_, err = client.SubmitLogin(ctx, alice.email, req)
		require.ErrorIs(t, err, apierr.ErrInvalidAuth)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, other := credentials(t)
		_, err := srv.client().Login(ctx, purplixsdk.LoginInput{Email: alice.email, SigningKey: other})
		require.ErrorIs(t, err, apierr.ErrInvalidAuth)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := srv.client().RequestChallenge(ctx, "nobody@example.com")
		require.ErrorIs(t, err, apierr.ErrUserNotFound)
	})
}

func TestSessionRequired(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.client().NewSession("").Me(ctx)
	require.ErrorIs(t, err, apierr.ErrNotAuthenticated)

	_, err = srv.client().NewSession("not-a-token").Me(ctx)
	require.ErrorIs(t, err, apierr.ErrNotAuthenticated)

	alice := srv.signUp(t, "alice@example.com")
	me, err := alice.session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, alice.email, me.Email)

	require.NoError(t, alice.session.Logout(ctx))
	_, err = srv.client().NewSession(alice.session.Token()).Me(ctx)
	require.ErrorIs(t, err, apierr.ErrNotAuthenticated)
}

func TestSessionCheckOutageIsInternal(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice := srv.signUp(t, "alice@example.com")

	srv.cache.down.Store(true)
	_, err := alice.session.Me(ctx)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.ErrorIs(t, err, apierr.ErrInternal, "a cache outage is not a revoked session")

	srv.cache.down.Store(false)
	_, err = alice.session.Me(ctx)
	require.NoError(t, err)
}

func TestOTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice := srv.signUp(t, "alice@example.com")

	require.ErrorIs(t, alice.session.SetupOTP(ctx, "000000"), apierr.ErrInvalidAuth)
	require.NoError(t, alice.session.SetupOTP(ctx, alice.code(t, 0)))
	require.ErrorIs(t, alice.session.SetupOTP(ctx, alice.code(t, 1)), apierr.ErrOTPCompleted)

	me, err := alice.session.Me(ctx)
	require.NoError(t, err)
	require.True(t, me.OTPCompleted)
	require.Empty(t, me.OTPSecret)

	// Login now needs a code, and the one used for setup is spent.
	_, err = srv.client().Login(ctx, purplixsdk.LoginInput{Email: alice.email, SigningKey: alice.priv})
	require.ErrorIs(t, err, apierr.ErrInvalidAuth)
	_, err = srv.client().Login(ctx, purplixsdk.LoginInput{Email: alice.email, SigningKey: alice.priv, OTP: alice.code(t, 0)})
	require.ErrorIs(t, err, apierr.ErrInvalidAuth)

	second, err := srv.client().Login(ctx, purplixsdk.LoginInput{Email: alice.email, SigningKey: alice.priv, OTP: alice.code(t, 1)})
	require.NoError(t, err)

	sessions, err := second.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, sess := range sessions {
		require.Equal(t, sess.ID == second.ID(), sess.Current)
	}

	// Ending the first session from the second.
	require.NoError(t, second.InvalidateSession(ctx, alice.session.ID()))
	_, err = alice.session.Me(ctx)
	require.ErrorIs(t, err, apierr.ErrNotAuthenticated)
	require.ErrorIs(t, second.InvalidateSession(ctx, alice.session.ID()), apierr.ErrSessionNotFound)
}

func TestNotificationPreferences(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice := srv.signUp(t, "alice@example.com")

	require.NoError(t, alice.session.DisableEmail(ctx, "survey_submissions"))
	require.NoError(t, alice.session.SetPush(ctx, "canary_renewals", "alice-topic"))
	require.ErrorIs(t, alice.session.SetPush(ctx, "canary_renewals", "bad/topic"), apierr.ErrInvalidRequest)
	require.ErrorIs(t, alice.session.EnableEmail(ctx, "birthdays"), apierr.ErrInvalidRequest)
	require.NoError(t, alice.session.SetIPLookup(ctx, true))

	me, err := alice.session.Me(ctx)
	require.NoError(t, err)
	require.NotContains(t, me.Notifications.Email, "survey_submissions")
	require.Equal(t, "alice-topic", me.Notifications.Push["canary_renewals"])
	require.True(t, me.IPLookupConsent)

	require.NoError(t, alice.session.RemovePush(ctx, "canary_renewals"))
	require.NoError(t, alice.session.SetIPLookup(ctx, false))

	me, err = alice.session.Me(ctx)
	require.NoError(t, err)
	require.Empty(t, me.Notifications.Push)
	require.False(t, me.IPLookupConsent)
}
