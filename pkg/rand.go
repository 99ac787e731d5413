package pkg

import (
	"math/rand/v2"
	"strings"
)

// nameAlphabet is valid in docker container names and in the host names a
// replica set advertises.
const nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func RandString(n int) string {
	var builder strings.Builder
	builder.Grow(n)

	for range n {
		builder.WriteByte(nameAlphabet[rand.IntN(len(nameAlphabet))]) //nolint:gosec
	}

	return builder.String()
}

// UniqueName joins parts with dashes and appends a random suffix of n
// characters, so concurrent or aborted test runs never reuse a name.
func UniqueName(n int, parts ...string) string {
	return strings.Join(append(parts[:len(parts):len(parts)], RandString(n)), "-")
}
