package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/purplix/backend/internal/purplix/cache"
	"github.com/purplix/backend/internal/purplix/doh"
	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/events"
	"github.com/purplix/backend/internal/purplix/geoip"
	"github.com/purplix/backend/internal/purplix/notify"
	"github.com/purplix/backend/internal/purplix/store/drivers/sqlite"
	"github.com/purplix/backend/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeCaptcha struct{ ok bool }

func (f *fakeCaptcha) Verify(_ context.Context, token string) bool { return f.ok && token != "" }

type fakeGeo struct {
	loc   geoip.Location
	err   error
	calls int
}

func (f *fakeGeo) Lookup(context.Context, string) (geoip.Location, error) {
	f.calls++
	return f.loc, f.err
}

type fakeDNS struct {
	mu      sync.Mutex
	answers map[string]doh.Response
	err     error
}

func (f *fakeDNS) set(name string, resp doh.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[name] = resp
}

func (f *fakeDNS) QueryTXT(_ context.Context, name string) (doh.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return doh.Response{}, f.err
	}
	resp, ok := f.answers[name]
	if !ok {
		return doh.Response{Status: 3}, nil
	}
	return resp, nil
}

type fakeObjects struct {
	puts map[string][]byte
}

func (f *fakeObjects) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.puts[key] = b
	return nil
}

func (f *fakeObjects) URL(key string) string { return "https://cdn.test/" + key }

type notified struct {
	UserID string
	Kind   domain.NotificationKind
	Msg    notify.Message
}

type sentEmail struct {
	To, Subject, Body string
}

type recordingNotifier struct {
	mu     sync.Mutex
	notes  []notified
	emails []sentEmail
}

func (r *recordingNotifier) Notify(_ context.Context, u domain.User, kind domain.NotificationKind, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notified{UserID: u.ID, Kind: kind, Msg: msg})
}

func (r *recordingNotifier) Email(_ context.Context, to, subject, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, sentEmail{To: to, Subject: subject, Body: body})
}

func (r *recordingNotifier) Notes() []notified {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notified(nil), r.notes...)
}

func (r *recordingNotifier) Emails() []sentEmail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentEmail(nil), r.emails...)
}

type refuseLocal struct{}

func (refuseLocal) ValidateURL(_ context.Context, raw string) error {
	if raw == "https://hooks.example.com/a" || raw == "https://hooks.example.com/b" ||
		raw == "https://hooks.example.com/c" || raw == "https://hooks.example.com/d" {
		return nil
	}
	return errors.New("refused")
}

type testEnv struct {
	store    *sqlite.Store
	clock    *testClock
	cache    *cache.Memory
	tokens   *jwtx.KeyManager
	captcha  *fakeCaptcha
	geo      *fakeGeo
	dns      *fakeDNS
	objects  *fakeObjects
	notifier *recordingNotifier
	hub      *events.Hub[domain.SubmissionEvent]

	sessions *SessionService
	otp      *OTPService
	accounts *AccountService
	canaries *CanaryService
	surveys  *SurveyService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "purplix-test", NumKeys: 1})
	require.NoError(t, err)

	clk := &testClock{t: time.Now().UTC().Truncate(time.Millisecond)}
	tokens := clockedTokens{KeyManager: km, verifier: km.Verifier().WithClock(clk.Now)}

	env := &testEnv{
		store:    st,
		clock:    clk,
		cache:    cache.NewMemory().WithClock(clk.Now),
		tokens:   km,
		captcha:  &fakeCaptcha{ok: true},
		geo:      &fakeGeo{loc: geoip.Location{Region: "Bavaria", Country: "Germany"}},
		dns:      &fakeDNS{answers: map[string]doh.Response{}},
		objects:  &fakeObjects{puts: map[string][]byte{}},
		notifier: &recordingNotifier{},
		hub:      events.NewHub[domain.SubmissionEvent](4),
	}

	env.sessions = &SessionService{Store: st, Cache: env.cache, Tokens: tokens, Now: clk.Now}
	env.otp = &OTPService{Store: st, Sessions: env.sessions, Issuer: "purplix-test", Now: clk.Now}
	env.accounts = &AccountService{
		Store:       st,
		OTP:         env.otp,
		Sessions:    env.sessions,
		Captcha:     env.captcha,
		Geo:         env.geo,
		Notifier:    env.notifier,
		Webhooks:    refuseLocal{},
		FrontendURL: "https://purplix.test",
		Now:         clk.Now,
	}
	env.canaries = &CanaryService{
		Store:    st,
		OTP:      env.otp,
		DNS:      env.dns,
		Objects:  env.objects,
		Notifier: env.notifier,
		Now:      clk.Now,
	}
	env.surveys = &SurveyService{
		Store:    st,
		Sessions: env.sessions,
		Captcha:  env.captcha,
		Geo:      env.geo,
		Notifier: env.notifier,
		Events:   env.hub,
		Now:      clk.Now,
	}
	return env
}

// clockedTokens verifies against the test clock instead of the wall clock.
type clockedTokens struct {
	*jwtx.KeyManager
	verifier *jwtx.Verifier
}

func (c clockedTokens) Verify(token string) (*jwtx.Claims, error) { return c.verifier.Verify(token) }

type testUser struct {
	domain.User
	priv ed25519.PrivateKey
}

func testCredentials(t *testing.T) (domain.Credentials, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	box := make([]byte, 32)
	_, err = rand.Read(box)
	require.NoError(t, err)

	return domain.Credentials{
		KDF:           domain.KDF{Salt: "c2FsdHNhbHRzYWx0", TimeCost: 3, MemoryCost: 65536},
		SignPublicKey: base64.StdEncoding.EncodeToString(pub),
		BoxPublicKey:  base64.StdEncoding.EncodeToString(box),
		BoxPrivateKey: domain.Sealed{IV: "iv", CipherText: "box"},
		Keychain:      domain.Sealed{IV: "iv", CipherText: "keychain"},
		Signature:     "sig",
		Algorithms:    "ed25519+x25519",
	}, priv
}

// newUser registers an account. With otp set, OTP setup is already done.
func (e *testEnv) newUser(t *testing.T, email string, otp bool) testUser {
	t.Helper()
	ctx := context.Background()

	creds, priv := testCredentials(t)
	res, err := e.accounts.Register(ctx, RegisterParams{Email: email, Credentials: creds, Captcha: "ok"})
	require.NoError(t, err)

	if otp {
		require.NoError(t, e.store.Users().SetOTP(ctx, res.User.ID, res.User.OTPSecret, true))
	}
	u, err := e.store.Users().GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	return testUser{User: u, priv: priv}
}

func sign(priv ed25519.PrivateKey, msg string) string {
	sig := ed25519.Sign(priv, []byte(msg))
	return base64.StdEncoding.EncodeToString(append(sig, msg...))
}

func (e *testEnv) code(t *testing.T, u testUser) string {
	t.Helper()
	c, err := totp.GenerateCode(u.OTPSecret, e.clock.Now())
	require.NoError(t, err)
	return c
}

// login runs a full challenge-response login.
func (e *testEnv) login(t *testing.T, u testUser) LoginResult {
	t.Helper()
	ctx := context.Background()

	proof, err := e.accounts.RequestChallenge(ctx, u.Email)
	require.NoError(t, err)

	p := LoginParams{
		Email:       u.Email,
		ChallengeID: proof.ID,
		Signature:   sign(u.priv, proof.ToSign),
		Captcha:     "ok",
	}
	if u.OTPCompleted {
		p.OTP = e.code(t, u)
		// Move to the next TOTP step so later logins get a fresh code.
		defer e.clock.Advance(otpPeriod * time.Second)
	}
	res, err := e.accounts.Login(ctx, p)
	require.NoError(t, err)
	return res
}
