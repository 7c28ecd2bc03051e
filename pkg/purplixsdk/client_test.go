package purplixsdk_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/purplix/backend/pkg/apierr"
	"github.com/purplix/backend/pkg/cryptox"
	"github.com/purplix/backend/pkg/purplixsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignChallenge(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sig := purplixsdk.SignChallenge(priv, "challenge-text")
	pubB64 := base64.StdEncoding.EncodeToString(pub)

	require.NoError(t, cryptox.VerifySignedMessage(pubB64, sig, []byte("challenge-text")))
	require.Error(t, cryptox.VerifySignedMessage(pubB64, sig, []byte("challenge-tex")))
}

func TestLogin(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubB64 := base64.StdEncoding.EncodeToString(pub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/account/{email}/to-sign", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice@example.com", r.PathValue("email"))
		_ = json.NewEncoder(w).Encode(purplixsdk.ChallengeResponse{ID: "c1", ToSign: "sign-me"})
	})
	mux.HandleFunc("POST /v1/account/{email}/login", func(w http.ResponseWriter, r *http.Request) {
		var req purplixsdk.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "c1", req.ID)
		assert.Equal(t, "123456", req.OTP)
		if cryptox.VerifySignedMessage(pubB64, req.Signature, []byte("sign-me")) != nil {
			apierr.ErrInvalidAuth.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(purplixsdk.LoginResponse{
			Token:     "tok",
			SessionID: "s1",
			ExpiresAt: time.Unix(1_900_000_000, 0).UTC(),
			User:      purplixsdk.User{Email: "alice@example.com"},
		})
	})
	mux.HandleFunc("GET /v1/account/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			apierr.ErrNotAuthenticated.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(purplixsdk.User{ID: "u1", Email: "alice@example.com"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client := purplixsdk.NewClient(srv.URL + "/")

	session, err := client.Login(ctx, purplixsdk.LoginInput{
		Email:      "alice@example.com",
		SigningKey: priv,
		OTP:        "123456",
	})
	require.NoError(t, err)
	require.Equal(t, "tok", session.Token())
	require.Equal(t, "s1", session.ID())

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", me.ID)

	_, err = client.NewSession("wrong").Me(ctx)
	require.ErrorIs(t, err, apierr.ErrNotAuthenticated)

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, err = client.Login(ctx, purplixsdk.LoginInput{Email: "alice@example.com", SigningKey: otherPriv, OTP: "123456"})
	require.ErrorIs(t, err, apierr.ErrInvalidAuth)
}

func TestErrorResponses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/survey/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "gateway" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
			return
		}
		apierr.ErrSurveyNotFound.WriteError(w)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := purplixsdk.NewClient(srv.URL)

	_, err := client.Survey(context.Background(), "missing")
	require.ErrorIs(t, err, apierr.ErrSurveyNotFound)

	_, err = client.Survey(context.Background(), "gateway")
	var apiErr *apierr.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.Status)
	require.Contains(t, apiErr.Detail, "upstream down")
}

func TestSubmitKeepsCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/survey/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("survey_submitted"); err == nil {
			apierr.ErrSurveySubmitted.WriteError(w)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:  "survey_submitted",
			Value: "true",
			Path:  "/v1/survey/" + r.PathValue("id") + "/submit",
		})
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(purplixsdk.SubmitSurveyResponse{ID: "a1", Responses: 1})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	req := purplixsdk.SubmitSurveyRequest{Answers: map[int]purplixsdk.Sealed{1: {IV: "iv", CipherText: "ct"}}}

	client := purplixsdk.NewClient(srv.URL)
	out, err := client.SubmitSurvey(ctx, "s1", req)
	require.NoError(t, err)
	require.Equal(t, 1, out.Responses)

	_, err = client.SubmitSurvey(ctx, "s1", req)
	require.ErrorIs(t, err, apierr.ErrSurveySubmitted)

	// The cookie is scoped to one survey.
	_, err = client.SubmitSurvey(ctx, "s2", req)
	require.NoError(t, err)

	// A fresh client is a fresh browser.
	_, err = purplixsdk.NewClient(srv.URL).SubmitSurvey(ctx, "s1", req)
	require.NoError(t, err)
}
