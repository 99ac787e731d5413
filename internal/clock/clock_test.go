package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewManual(start)
	assert.Equal(t, start, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Advance(-time.Hour)
	assert.Equal(t, start.Add(time.Minute), c.Now())
}

func TestSystemClockMonotonic(t *testing.T) {
	c := NewSystemClock()
	prev := c.Now()
	for range 100 {
		now := c.Now()
		assert.False(t, now.Before(prev))
		prev = now
	}
}
