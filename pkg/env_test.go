package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetenv(t *testing.T) {
	const defaultValue = "default"

	t.Run("non existing key", func(t *testing.T) {
		value := Getenv("DNT_NON_EXISTING_KEY", defaultValue)
		assert.Equal(t, defaultValue, value)
	})
	t.Run("empty value used instead of default", func(t *testing.T) {
		const key = "DNT_EMPTY_KEY"
		t.Setenv(key, "")
		assert.Empty(t, Getenv(key, defaultValue))
	})
	t.Run("ok", func(t *testing.T) {
		const (
			key   = "DNT_KEY"
			value = "value"
		)
		t.Setenv(key, value)
		assert.Equal(t, value, Getenv(key, defaultValue))
	})
}
