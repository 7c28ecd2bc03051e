package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// Sizes in bytes before encoding.
const (
	TokenSize128 = 16 // signing key ids
	TokenSize256 = 32 // login challenges, TXT verification codes, email secrets
)

var ErrTokenSize = errors.New("cryptox: token size must be positive")

// GenerateToken reads size bytes from crypto/rand and encodes them as
// unpadded base64url, which is safe in URL paths and DNS TXT records alike.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", ErrTokenSize
	}
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
