package domain

import (
	"slices"
	"time"
)

// Sealed is a value encrypted client-side. The server stores it opaquely.
type Sealed struct {
	IV         string `json:"iv"`
	CipherText string `json:"cipher_text"`
}

// KDF holds the argon2 parameters the client uses to derive its account key.
type KDF struct {
	Salt       string `json:"salt"`
	TimeCost   int    `json:"time_cost"`
	MemoryCost int    `json:"memory_cost"`
}

// Credentials is everything a client supplies to (re)key an account.
type Credentials struct {
	KDF           KDF    // client-side key derivation
	SignPublicKey string // base64 Ed25519, verifies login challenges
	BoxPublicKey  string // base64 X25519, sessions metadata is sealed to it
	BoxPrivateKey Sealed // X25519 private key sealed with the keychain
	Keychain      Sealed // keychain key sealed with the derived account key
	Signature     string // client signature over the account data
	Algorithms    string
}

type User struct {
	ID              string
	Email           string // always lowercase
	EmailVerified   bool
	Credentials     Credentials
	OTPSecret       string // base32
	OTPCompleted    bool
	IPLookupConsent bool
	Notifications   Notifications
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Redacted returns a copy safe to hand back to the account owner. Once OTP
// setup is complete the secret is never returned again.
func (u User) Redacted() User {
	if u.OTPCompleted {
		u.OTPSecret = ""
	}
	return u
}

// NotificationKind names an event a user can subscribe to.
type NotificationKind string

const (
	NotifyCanaryRenewals      NotificationKind = "canary_renewals"
	NotifyCanarySubscriptions NotificationKind = "canary_subscriptions"
	NotifySurveySubmissions   NotificationKind = "survey_submissions"
)

// MaxWebhooksPerKind caps the webhooks registered for a single kind.
const MaxWebhooksPerKind = 3

// Valid reports whether k is a known kind.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotifyCanaryRenewals, NotifyCanarySubscriptions, NotifySurveySubmissions:
		return true
	}
	return false
}

// Notifications are the per-user delivery preferences.
type Notifications struct {
	Email    []NotificationKind            `json:"email"`
	Push     map[NotificationKind]string   `json:"push"`
	Webhooks map[NotificationKind][]string `json:"webhooks"`
}

// DefaultNotifications is what a fresh account starts with.
func DefaultNotifications() Notifications {
	return Notifications{
		Email:    []NotificationKind{NotifyCanaryRenewals, NotifyCanarySubscriptions, NotifySurveySubmissions},
		Push:     map[NotificationKind]string{},
		Webhooks: map[NotificationKind][]string{},
	}
}

// WantsEmail reports whether kind is enabled for email.
func (n Notifications) WantsEmail(kind NotificationKind) bool {
	return slices.Contains(n.Email, kind)
}

// EmailVerification is a pending email ownership check.
type EmailVerification struct {
	Email     string
	Secret    string
	ExpiresAt time.Time
}
