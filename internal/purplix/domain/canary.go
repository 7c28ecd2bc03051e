package domain

import (
	"fmt"
	"time"
)

// Canary is a domain ownership record. It starts unverified and becomes
// verified exactly once, when the owner proves control of the domain via a
// TXT record carrying VerifyCode.
type Canary struct {
	ID         string
	Domain     string // normalised, lowercase
	UserID     string
	About      string
	Signature  string
	Algorithms string
	PublicKey  string // base64 Ed25519 used to sign warrants
	PrivateKey Sealed // client-encrypted private half
	VerifyCode string
	Verified   bool
	Logo       string // object key, empty when unset
	CreatedAt  time.Time
}

// NextCanary is the cadence the owner commits to for the following warrant.
type NextCanary string

const (
	NextTomorrow  NextCanary = "tomorrow"
	NextWeek      NextCanary = "week"
	NextFortnight NextCanary = "fortnight"
	NextMonth     NextCanary = "month"
	NextQuarter   NextCanary = "quarter"
	NextYear      NextCanary = "year"
)

// Duration returns how far after issue the next warrant is due.
func (n NextCanary) Duration() (time.Duration, error) {
	const day = 24 * time.Hour
	switch n {
	case NextTomorrow:
		return day, nil
	case NextWeek:
		return 7 * day, nil
	case NextFortnight:
		return 14 * day, nil
	case NextMonth:
		return 30 * day, nil
	case NextQuarter:
		return 90 * day, nil
	case NextYear:
		return 365 * day, nil
	}
	return 0, fmt.Errorf("unknown cadence %q", n)
}

// Concern is the owner's self-reported duress level on a published warrant.
type Concern string

const (
	ConcernNone     Concern = "none"
	ConcernMild     Concern = "mild"
	ConcernModerate Concern = "moderate"
	ConcernSevere   Concern = "severe"
)

func (c Concern) Valid() bool {
	switch c {
	case ConcernNone, ConcernMild, ConcernModerate, ConcernSevere:
		return true
	}
	return false
}

// Warrant is a periodic signed statement for a canary. It is created
// unpublished and inactive; publishing it makes it the single active warrant
// of its canary.
type Warrant struct {
	ID             string
	CanaryID       string
	UserID         string
	NextCanary     time.Time
	IssuedAt       time.Time
	Active         bool
	Published      bool
	Signature      string
	BTCLatestBlock string
	Statement      string
	Concern        Concern
	Alerted        bool
}

// WarrantPublication is what the owner supplies to publish a warrant.
type WarrantPublication struct {
	Signature      string
	BTCLatestBlock string
	Statement      string
	Concern        Concern
}

// TrustedCanary is a user's pinned signature over a canary's public key.
type TrustedCanary struct {
	UserID        string
	Domain        string
	PublicKeyHash string
	Signature     string
	CreatedAt     time.Time
}
