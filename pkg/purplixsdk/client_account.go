package purplixsdk

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
)

// LoginInput carries what Login needs to answer a challenge.
type LoginInput struct {
	Email      string
	SigningKey ed25519.PrivateKey
	OTP        string // required once OTP setup is completed
	Captcha    string
	OneDay     bool // shorter session
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/account", "", req)
	if err != nil {
		return nil, err
	}

	var out RegisterResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublicKDF returns the key derivation parameters of an account.
func (c *Client) PublicKDF(ctx context.Context, email string) (*KDF, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/account/"+url.PathEscape(email)+"/public", "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out KDF
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestChallenge asks for a one-time login challenge.
func (c *Client) RequestChallenge(ctx context.Context, email string) (*ChallengeResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/account/"+url.PathEscape(email)+"/to-sign", "", nil, nil)
	if err != nil {
		return nil, err
	}

	var out ChallengeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitLogin answers a challenge obtained with RequestChallenge.
func (c *Client) SubmitLogin(ctx context.Context, email string, req LoginRequest) (*LoginResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/account/"+url.PathEscape(email)+"/login", "", req)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login runs the whole challenge-response handshake and returns a Session.
func (c *Client) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if len(in.SigningKey) != ed25519.PrivateKeySize {
		return nil, errors.New("purplixsdk: signing key is required")
	}

	challenge, err := c.RequestChallenge(ctx, in.Email)
	if err != nil {
		return nil, err
	}

	out, err := c.SubmitLogin(ctx, in.Email, LoginRequest{
		ID:        challenge.ID,
		Signature: SignChallenge(in.SigningKey, challenge.ToSign),
		OTP:       in.OTP,
		Captcha:   in.Captcha,
		OneDay:    in.OneDay,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		client:    c,
		token:     out.Token,
		sessionID: out.SessionID,
		expiresAt: out.ExpiresAt,
		User:      out.User,
	}, nil
}

// VerifyEmail confirms address ownership with the secret from the
// verification mail.
func (c *Client) VerifyEmail(ctx context.Context, email, secret string) error {
	path := "/v1/account/" + url.PathEscape(email) + "/email/verify/" + url.PathEscape(secret)
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// SignChallenge produces the login signature: standard base64 of the
// 64-byte Ed25519 signature followed by the challenge text.
func SignChallenge(key ed25519.PrivateKey, toSign string) string {
	msg := []byte(toSign)
	signed := append(ed25519.Sign(key, msg), msg...)
	return base64.StdEncoding.EncodeToString(signed)
}
