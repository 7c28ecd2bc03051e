package cryptox_test

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/purplix/backend/pkg/cryptox"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

func TestSealTo(t *testing.T) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sealed, err := cryptox.SealTo(base64.StdEncoding.EncodeToString(pub[:]), []byte("Melbourne, AU"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)

	opened, ok := box.OpenAnonymous(nil, raw, pub, priv)
	require.True(t, ok)
	require.Equal(t, "Melbourne, AU", string(opened))
}

func TestSealToBadKey(t *testing.T) {
	_, err := cryptox.SealTo("not base64!", []byte("x"))
	require.ErrorIs(t, err, cryptox.ErrInvalidBoxKey)

	_, err = cryptox.SealTo(base64.StdEncoding.EncodeToString([]byte("too short")), []byte("x"))
	require.ErrorIs(t, err, cryptox.ErrInvalidBoxKey)
}
