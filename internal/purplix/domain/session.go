package domain

import "time"

// Proof is a one-time login challenge. It is consumed by the first login
// attempt that references it, successful or not.
type Proof struct {
	ID        string
	UserID    string
	ToSign    string
	ExpiresAt time.Time
}

// SessionLocation is sealed to the user's box key; the server cannot read it.
type SessionLocation struct {
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// Session backs a session token. Its ID is the token's jti.
type Session struct {
	ID             string
	UserID         string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RecordKeptTill time.Time // audit retention, always >= ExpiresAt
	Location       SessionLocation
	Device         string // sealed User-Agent
}

// Live reports whether the session still authenticates at now.
func (s Session) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// OTPMarker records a TOTP code that has already been accepted for a user.
type OTPMarker struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
}
