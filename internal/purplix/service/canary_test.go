package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/purplix/backend/internal/purplix/doh"
	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
	"github.com/purplix/backend/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) newCanary(t *testing.T, u testUser, name string) domain.Canary {
	t.Helper()
	c, err := e.canaries.Create(context.Background(), u.ID, CreateCanaryParams{
		Domain:     name,
		About:      "about",
		Signature:  "sig",
		Algorithms: "ed25519",
		PublicKey:  "cHVibGlj",
		PrivateKey: domain.Sealed{IV: "iv", CipherText: "priv"},
	})
	require.NoError(t, err)
	return c
}

func (e *testEnv) publishTXT(name string, records ...string) {
	e.dns.set(name, doh.Response{Status: 0, TXT: records})
}

func (e *testEnv) verifiedCanary(t *testing.T, u testUser, name string) domain.Canary {
	t.Helper()
	c := e.newCanary(t, u, name)
	e.publishTXT(name, DefaultVerifyPrefix+c.VerifyCode)
	require.NoError(t, e.canaries.AttemptVerify(context.Background(), u.ID, name))
	c.Verified = true
	return c
}

func TestCanaryCreate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", false)
	bob := env.newUser(t, "bob@example.com", false)

	c := env.newCanary(t, alice, "https://Example.com/")
	require.Equal(t, "example.com", c.Domain)
	require.False(t, c.Verified)
	require.NotEmpty(t, c.VerifyCode)

	_, err := env.canaries.Create(ctx, alice.ID, CreateCanaryParams{Domain: "example.com"})
	require.ErrorIs(t, err, ErrCanaryTaken, "same user twice")

	// Unverified claims by different users may coexist.
	env.newCanary(t, bob, "example.com")

	for _, bad := range []string{"", "localhost", "www.example.com", "exa mple.com"} {
		_, err := env.canaries.Create(ctx, alice.ID, CreateCanaryParams{Domain: bad})
		require.ErrorIs(t, err, ErrDomainValidation, bad)
	}

	list, err := env.canaries.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCanaryVerifyFirstClaimWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", false)
	bob := env.newUser(t, "bob@example.com", false)
	carol := env.newUser(t, "carol@example.com", false)

	ca := env.newCanary(t, alice, "example.com")
	cb := env.newCanary(t, bob, "example.com")

	env.publishTXT("example.com", "v=spf1 -all", DefaultVerifyPrefix+cb.VerifyCode)

	require.ErrorIs(t, env.canaries.AttemptVerify(ctx, alice.ID, "example.com"), ErrDomainValidation)
	require.NoError(t, env.canaries.AttemptVerify(ctx, bob.ID, "example.com"))
	require.NoError(t, env.canaries.AttemptVerify(ctx, bob.ID, "example.com"), "re-running is a no-op")

	got, err := env.canaries.Get(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, cb.ID, got.ID)
	require.True(t, got.Verified)

	_, err = env.store.Canaries().GetCanaryByID(ctx, ca.ID)
	require.ErrorIs(t, err, store.ErrNotFound, "losing claim is purged")

	// Now that it is verified nobody else can claim it.
	_, err = env.canaries.Create(ctx, carol.ID, CreateCanaryParams{Domain: "example.com"})
	require.ErrorIs(t, err, ErrCanaryTaken)
}

func TestCanaryVerifyFailsClosed(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(env *testEnv, c domain.Canary)
	}{
		{"dns error", func(env *testEnv, c domain.Canary) {
			env.dns.err = errors.New("timeout")
		}},
		{"nxdomain", func(env *testEnv, c domain.Canary) {
			env.dns.set(c.Domain, doh.Response{Status: 3, TXT: []string{DefaultVerifyPrefix + c.VerifyCode}})
		}},
		{"checking disabled", func(env *testEnv, c domain.Canary) {
			env.dns.set(c.Domain, doh.Response{CD: true, TXT: []string{DefaultVerifyPrefix + c.VerifyCode}})
		}},
		{"no record", func(env *testEnv, c domain.Canary) {
			env.publishTXT(c.Domain, "google-site-verification=abc")
		}},
		{"empty code", func(env *testEnv, c domain.Canary) {
			env.publishTXT(c.Domain, DefaultVerifyPrefix+"   ")
		}},
		{"wrong code", func(env *testEnv, c domain.Canary) {
			env.publishTXT(c.Domain, DefaultVerifyPrefix+"nope")
		}},
		{"record past the scan limit", func(env *testEnv, c domain.Canary) {
			records := make([]string, 0, maxTXTRecords+1)
			for i := range maxTXTRecords {
				records = append(records, fmt.Sprintf("filler-%d", i))
			}
			env.publishTXT(c.Domain, append(records, DefaultVerifyPrefix+c.VerifyCode)...)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			u := env.newUser(t, "alice@example.com", false)
			c := env.newCanary(t, u, "example.com")
			tt.setup(env, c)

			require.ErrorIs(t, env.canaries.AttemptVerify(ctx, u.ID, c.Domain), ErrDomainValidation)

			_, err := env.canaries.Get(ctx, c.Domain)
			require.ErrorIs(t, err, ErrCanaryNotFound)
		})
	}

	t.Run("empty record before the real one", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)
		c := env.newCanary(t, u, "example.com")
		env.publishTXT(c.Domain, DefaultVerifyPrefix, DefaultVerifyPrefix+c.VerifyCode)

		require.NoError(t, env.canaries.AttemptVerify(ctx, u.ID, c.Domain))
	})

	t.Run("quoted record with padding", func(t *testing.T) {
		env := newTestEnv(t)
		u := env.newUser(t, "alice@example.com", false)
		c := env.newCanary(t, u, "example.com")
		env.publishTXT(c.Domain, `"`+DefaultVerifyPrefix+" "+c.VerifyCode+` "`)

		require.NoError(t, env.canaries.AttemptVerify(ctx, u.ID, c.Domain))
	})
}

func TestCanaryDeleteBlacklistsVerifiedDomain(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", true)
	bob := env.newUser(t, "bob@example.com", false)

	env.verifiedCanary(t, alice, "example.com")
	w, err := env.canaries.CreateWarrant(ctx, alice.ID, "example.com", domain.NextWeek, env.code(t, alice))
	require.NoError(t, err)
	env.clock.Advance(otpPeriod * time.Second)

	require.ErrorIs(t, env.canaries.Delete(ctx, alice.ID, "example.com", "000000"), ErrInvalidAuth)
	require.NoError(t, env.canaries.Delete(ctx, alice.ID, "example.com", env.code(t, alice)))

	_, err = env.canaries.Get(ctx, "example.com")
	require.ErrorIs(t, err, ErrCanaryNotFound)
	_, err = env.store.Warrants().GetUnpublishedWarrant(ctx, w.ID, alice.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	for _, u := range []testUser{alice, bob} {
		_, err := env.canaries.Create(ctx, u.ID, CreateCanaryParams{Domain: "EXAMPLE.com"})
		require.ErrorIs(t, err, ErrCanaryTaken)
	}
}

func TestCanaryDeleteUnknownDomainKeepsCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", true)
	env.newCanary(t, alice, "example.com")

	code := env.code(t, alice)
	require.ErrorIs(t, env.canaries.Delete(ctx, alice.ID, "exmaple.com", code), ErrCanaryNotFound)
	require.NoError(t, env.canaries.Delete(ctx, alice.ID, "example.com", code))
}

func TestCanaryDeleteUnverifiedDoesNotBlacklist(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", true)

	env.newCanary(t, alice, "example.com")
	require.NoError(t, env.canaries.Delete(ctx, alice.ID, "example.com", env.code(t, alice)))

	env.newCanary(t, alice, "example.com")
}

func TestWarrants(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", true)
	bob := env.newUser(t, "bob@example.com", false)

	unverified := env.newCanary(t, alice, "unverified.com")
	_, err := env.canaries.CreateWarrant(ctx, alice.ID, unverified.Domain, domain.NextWeek, env.code(t, alice))
	require.ErrorIs(t, err, ErrDomainValidation)

	env.verifiedCanary(t, alice, "example.com")
	require.NoError(t, env.canaries.Subscribe(ctx, bob.ID, "example.com"))
	require.ErrorIs(t, env.canaries.Subscribe(ctx, bob.ID, "example.com"), ErrAlreadySubscribed)

	_, err = env.canaries.CreateWarrant(ctx, alice.ID, "example.com", "decade", env.code(t, alice))
	require.ErrorIs(t, err, ErrInvalidRequest)

	first, err := env.canaries.CreateWarrant(ctx, alice.ID, "example.com", domain.NextFortnight, env.code(t, alice))
	require.NoError(t, err)
	require.Equal(t, 14*24*time.Hour, first.NextCanary.Sub(first.IssuedAt))
	env.clock.Advance(otpPeriod * time.Second)

	_, err = env.canaries.PublishedWarrant(ctx, "example.com", 0)
	require.ErrorIs(t, err, ErrWarrantNotFound, "drafts are not public")

	pub := domain.WarrantPublication{Signature: "sig", BTCLatestBlock: "000abc", Statement: "all good", Concern: domain.ConcernNone}
	require.ErrorIs(t, env.canaries.PublishWarrant(ctx, bob.ID, first.ID, pub), ErrWarrantNotFound)
	require.NoError(t, env.canaries.PublishWarrant(ctx, alice.ID, first.ID, pub))
	require.ErrorIs(t, env.canaries.PublishWarrant(ctx, alice.ID, first.ID, pub), ErrWarrantNotFound)

	notes := env.notifier.Notes()
	require.Len(t, notes, 1)
	require.Equal(t, bob.ID, notes[0].UserID)
	require.Equal(t, domain.NotifyCanarySubscriptions, notes[0].Kind)

	env.clock.Advance(time.Second)
	second, err := env.canaries.CreateWarrant(ctx, alice.ID, "example.com", domain.NextMonth, env.code(t, alice))
	require.NoError(t, err)
	pub.Concern = domain.ConcernMild
	require.NoError(t, env.canaries.PublishWarrant(ctx, alice.ID, second.ID, pub))

	latest, err := env.canaries.PublishedWarrant(ctx, "example.com", 0)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
	require.True(t, latest.Active)

	older, err := env.canaries.PublishedWarrant(ctx, "example.com", 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, older.ID)
	require.False(t, older.Active, "only the newest warrant stays active")

	_, err = env.canaries.PublishedWarrant(ctx, "example.com", 2)
	require.ErrorIs(t, err, ErrWarrantNotFound)
}

func TestSubscriptionsAndTrust(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", false)
	bob := env.newUser(t, "bob@example.com", false)

	env.newCanary(t, alice, "pending.com")
	require.ErrorIs(t, env.canaries.Subscribe(ctx, bob.ID, "pending.com"), ErrCanaryNotFound)
	require.ErrorIs(t, env.canaries.Trust(ctx, bob.ID, "pending.com", "hash", "sig"), ErrCanaryNotFound)

	env.verifiedCanary(t, alice, "example.com")

	ok, err := env.canaries.IsSubscribed(ctx, bob.ID, "example.com")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, env.canaries.Subscribe(ctx, bob.ID, "example.com"))
	ok, err = env.canaries.IsSubscribed(ctx, bob.ID, "example.com")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.canaries.Unsubscribe(ctx, bob.ID, "example.com"))
	require.NoError(t, env.canaries.Unsubscribe(ctx, bob.ID, "example.com"))

	require.NoError(t, env.canaries.Trust(ctx, bob.ID, "example.com", "hash", "sig"))
	require.ErrorIs(t, env.canaries.Trust(ctx, bob.ID, "example.com", "hash", "sig"), ErrAlreadyTrusted)

	trusted, err := env.canaries.GetTrusted(ctx, bob.ID, "Example.com")
	require.NoError(t, err)
	require.Equal(t, "hash", trusted.PublicKeyHash)

	all, err := env.canaries.ListTrusted(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = env.canaries.GetTrusted(ctx, alice.ID, "example.com")
	require.ErrorIs(t, err, ErrCanaryNotFound)
}

func TestUploadLogo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.canaries.LogoMaxSize = 1024
	u := env.newUser(t, "alice@example.com", false)
	c := env.newCanary(t, u, "example.com")

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

	url, err := env.canaries.UploadLogo(ctx, u.ID, "example.com", bytes.NewReader(png))
	require.NoError(t, err)
	key := "canary/logos/" + c.ID + ".png"
	require.Equal(t, "https://cdn.test/"+key, url)
	require.Equal(t, png, env.objects.puts[key])

	own, err := env.canaries.Own(ctx, u.ID, "example.com")
	require.NoError(t, err)
	require.Equal(t, url, env.canaries.LogoURL(own))

	_, err = env.canaries.UploadLogo(ctx, u.ID, "example.com", bytes.NewReader([]byte("GIF89a.........")))
	require.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = env.canaries.UploadLogo(ctx, u.ID, "example.com", bytes.NewReader(bytes.Repeat(png, 32)))
	require.ErrorIs(t, err, ErrUploadTooBig)

	_, err = env.canaries.UploadLogo(ctx, u.ID, "other.com", bytes.NewReader(png))
	require.ErrorIs(t, err, ErrCanaryNotFound)
}

func TestSchedulerAlertsDueWarrants(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", true)
	env.verifiedCanary(t, alice, "example.com")

	w, err := env.canaries.CreateWarrant(ctx, alice.ID, "example.com", domain.NextTomorrow, env.code(t, alice))
	require.NoError(t, err)
	require.NoError(t, env.canaries.PublishWarrant(ctx, alice.ID, w.ID,
		domain.WarrantPublication{Signature: "sig", Statement: "ok", Concern: domain.ConcernNone}))

	sched := NewScheduler(env.canaries, env.notifier, slogx.Discard())

	sent, err := sched.AlertDueWarrants(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	notes := env.notifier.Notes()
	require.Len(t, notes, 1)
	require.Equal(t, domain.NotifyCanaryRenewals, notes[0].Kind)
	require.Equal(t, alice.ID, notes[0].UserID)

	sent, err = sched.AlertDueWarrants(ctx)
	require.NoError(t, err)
	require.Zero(t, sent, "owners are alerted once")
}

func TestSchedulerReverifiesPendingCanaries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.newUser(t, "alice@example.com", false)
	c := env.newCanary(t, alice, "example.com")
	env.newCanary(t, alice, "elsewhere.com")

	sched := NewScheduler(env.canaries, env.notifier, slogx.Discard())

	verified, err := sched.ReverifyPending(ctx)
	require.NoError(t, err)
	require.Zero(t, verified)

	env.publishTXT("example.com", DefaultVerifyPrefix+c.VerifyCode)
	verified, err = sched.ReverifyPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, verified)

	emails := env.notifier.Emails()
	require.Equal(t, "example.com is verified", emails[len(emails)-1].Subject)

	env.clock.Advance(25 * time.Hour)
	pending, err := env.canaries.PendingVerifications(ctx, env.clock.Now().Add(-reverifyLookback))
	require.NoError(t, err)
	require.Empty(t, pending, "old claims are no longer retried")
}
