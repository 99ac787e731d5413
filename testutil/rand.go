package testutil

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/dnt-protocol/dnt-staking-engine/pkg"
)

// PrincipalPrefix is the bech32 prefix used by test principals.
const PrincipalPrefix = "dnt"

// RandomPrincipal returns a valid bech32 principal backed by 20 random bytes.
func RandomPrincipal(t *testing.T) string {
	t.Helper()

	bz := make([]byte, 20)
	for i := range bz {
		bz[i] = gofakeit.Uint8()
	}
	principal, err := pkg.NewPrincipal(PrincipalPrefix, bz)
	require.NoError(t, err)
	return principal
}

// RandomAmount returns a positive amount not greater than limit.
func RandomAmount(limit uint64) uint64 {
	return gofakeit.Uint64()%limit + 1
}
