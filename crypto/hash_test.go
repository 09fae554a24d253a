package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/sigma/crypto"
)

func TestHashRegistry(t *testing.T) {
	tests := []struct {
		name   string
		id     crypto.HashFunction
		block  int
		digest int
	}{
		{"blake2b", crypto.Blake2b, 128, 64},
		{"sha3-256", crypto.SHA3_256, 136, 32},
		{"blake2s", crypto.Blake2s, 64, 32},
		{"sha256", crypto.SHA256, 64, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := crypto.HashFromName(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.id, id)
			require.Equal(t, tt.name, id.String())
			require.Equal(t, tt.block, id.BlockLen())
			require.Equal(t, tt.digest, id.DigestLen())

			h, err := id.New()
			require.NoError(t, err)
			require.Equal(t, tt.block, h.BlockSize())
			require.Equal(t, tt.digest, h.Size())
			require.Equal(t, tt.digest, id.Func()().Size())
			require.Contains(t, crypto.ListHashes(), tt.name)
		})
	}
}

func TestHashUnknown(t *testing.T) {
	_, err := crypto.HashFromName("md5")
	require.Error(t, err)

	var unknown crypto.HashFunction
	require.False(t, unknown.Available())
	require.Nil(t, unknown.Func())
	_, err = unknown.New()
	require.Error(t, err)

	id, err := crypto.GetHashByNameWithDefault("")
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultHash, id)
}

func TestGroupRegistry(t *testing.T) {
	for _, name := range crypto.ListGroups() {
		t.Run(name, func(t *testing.T) {
			g, err := crypto.GroupFromName(name)
			require.NoError(t, err)
			require.Equal(t, 32, g.ScalarLen())
			base := g.Point().Base()
			require.True(t, base.Equal(g.Point().Mul(g.Scalar().One(), nil)))
		})
	}

	_, err := crypto.GroupFromName("secp256k1")
	require.Error(t, err)

	g, err := crypto.GetGroupByNameWithDefault("")
	require.NoError(t, err)
	require.Equal(t, crypto.DefaultGroupID, g.String())
}
