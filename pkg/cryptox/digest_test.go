package cryptox_test

import (
	"testing"

	"github.com/purplix/backend/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestDomainHash(t *testing.T) {
	// sha256("example.com")
	require.Equal(t, "a379a6f6eeafb9a55e378c118034e2751e682fab9f2d30ab13d2125586ce1947", cryptox.DomainHash("example.com"))
}

func TestIPHMAC(t *testing.T) {
	a := cryptox.IPHMAC([]byte("key-1"), "203.0.113.7")
	require.Len(t, a, 64)
	require.Equal(t, a, cryptox.IPHMAC([]byte("key-1"), "203.0.113.7"))
	require.NotEqual(t, a, cryptox.IPHMAC([]byte("key-2"), "203.0.113.7"))
	require.NotEqual(t, a, cryptox.IPHMAC([]byte("key-1"), "203.0.113.8"))
}
