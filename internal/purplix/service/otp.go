package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/store"
)

const (
	otpPeriod = 30
	otpSkew   = 1

	// A marker must outlive every step a code stays valid for.
	otpMarkerTTL = 60 * time.Second
)

var otpValidateOpts = totp.ValidateOpts{
	Period:    otpPeriod,
	Skew:      otpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// OTPReset is returned after rotating a user's TOTP secret.
type OTPReset struct {
	Secret string `json:"secret"`
	URI    string `json:"provisioning_uri"`
}

// OTPService guards actions with single-use TOTP codes.
type OTPService struct {
	Store    store.Store
	Sessions *SessionService
	Issuer   string // shown in authenticator apps
	Now      func() time.Time
}

// Validate accepts code for u exactly once. The replay marker is written
// only after the code checks out, so a failed guess never burns a code the
// user has not tried yet.
func (s *OTPService) Validate(ctx context.Context, u domain.User, code string) error {
	if code == "" {
		return ErrInvalidAuth
	}
	now := clock(s.Now)

	seen, err := s.Store.OTPMarkers().MarkerExists(ctx, u.ID, code, now)
	if err != nil {
		return fmt.Errorf("check otp marker: %w", err)
	}
	if seen {
		return ErrInvalidAuth
	}

	if u.OTPSecret == "" {
		return ErrInvalidAuth
	}

	ok, err := totp.ValidateCustom(code, u.OTPSecret, now, otpValidateOpts)
	if err != nil || !ok {
		return ErrInvalidAuth
	}

	err = s.Store.OTPMarkers().InsertMarker(ctx, domain.OTPMarker{
		UserID:    u.ID,
		Code:      code,
		ExpiresAt: now.Add(otpMarkerTTL),
	}, now)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent use of the same code.
		return ErrInvalidAuth
	}
	if err != nil {
		return fmt.Errorf("insert otp marker: %w", err)
	}
	return nil
}

// Setup confirms the secret issued at registration (or by the last reset)
// and turns OTP on. It is one-shot; rotate with Reset.
func (s *OTPService) Setup(ctx context.Context, userID, code string) error {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.OTPCompleted {
		return ErrOTPCompleted
	}

	if err := s.Validate(ctx, u, code); err != nil {
		return err
	}

	err = s.Store.Users().CompleteOTP(ctx, userID)
	if errors.Is(err, store.ErrAlreadyExists) {
		return ErrOTPCompleted
	}
	return err
}

// Reset checks the current code, rotates to a fresh secret, and revokes
// every session so the user must sign in again with the new factor.
func (s *OTPService) Reset(ctx context.Context, userID, code string) (OTPReset, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return OTPReset{}, err
	}
	if err := s.Validate(ctx, u, code); err != nil {
		return OTPReset{}, err
	}

	key, err := s.NewKey(u.Email)
	if err != nil {
		return OTPReset{}, err
	}
	if err := s.Store.Users().SetOTP(ctx, userID, key.Secret(), false); err != nil {
		return OTPReset{}, fmt.Errorf("store otp secret: %w", err)
	}

	if s.Sessions != nil {
		if err := s.Sessions.RevokeAll(ctx, userID); err != nil {
			return OTPReset{}, err
		}
	}
	return OTPReset{Secret: key.Secret(), URI: key.URL()}, nil
}

// NewKey generates a TOTP key for account.
func (s *OTPService) NewKey(account string) (*otp.Key, error) {
	issuer := s.Issuer
	if issuer == "" {
		issuer = "purplix"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      otpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return key, nil
}

func (s *OTPService) getUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}
