package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// DomainHash is the one-way key recorded when a verified canary domain is
// deleted.
func DomainHash(domain string) string {
	sum := sha256.Sum256([]byte(domain))
	return hex.EncodeToString(sum[:])
}

// IPHMAC keys an address with a respondent supplied secret. Without the
// secret the stored value cannot be linked back to an address.
func IPHMAC(key []byte, ip string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
