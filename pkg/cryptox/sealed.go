package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

// ErrInvalidBoxKey reports a public key that is not 32 bytes of base64.
var ErrInvalidBoxKey = errors.New("cryptox: invalid x25519 public key")

// SealTo encrypts plaintext to the holder of the X25519 public key using an
// anonymous sealed box and returns it as standard base64. Only the key owner
// can open it; the server keeps nothing that could.
func SealTo(publicKeyB64 string, plaintext []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil || len(raw) != 32 {
		return "", ErrInvalidBoxKey
	}

	var pub [32]byte
	copy(pub[:], raw)

	sealed, err := box.SealAnonymous(nil, plaintext, &pub, rand.Reader)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
