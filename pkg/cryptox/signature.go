package cryptox

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
)

var (
	ErrInvalidPublicKey = errors.New("cryptox: invalid ed25519 public key")
	ErrInvalidSignature = errors.New("cryptox: invalid signature")
)

// OpenSignedMessage verifies a NaCl-style signed message (64-byte signature
// followed by the message), both arguments standard base64, and returns the
// embedded message.
func OpenSignedMessage(publicKeyB64, signedB64 string) ([]byte, error) {
	pub, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}

	signed, err := base64.StdEncoding.DecodeString(signedB64)
	if err != nil || len(signed) < ed25519.SignatureSize {
		return nil, ErrInvalidSignature
	}

	sig, msg := signed[:ed25519.SignatureSize], signed[ed25519.SignatureSize:]
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		return nil, ErrInvalidSignature
	}
	return msg, nil
}

// VerifySignedMessage checks that signedB64 is a valid signature by
// publicKeyB64 over exactly expected. Prefixes and suffixes do not count.
func VerifySignedMessage(publicKeyB64, signedB64 string, expected []byte) error {
	msg, err := OpenSignedMessage(publicKeyB64, signedB64)
	if err != nil {
		return err
	}
	if string(msg) != string(expected) {
		return ErrInvalidSignature
	}
	return nil
}
