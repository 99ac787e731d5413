package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoller(t *testing.T) {
	t.Run("timer", func(t *testing.T) {
		var calls atomic.Int32
		p := NewPoller("test", 5*time.Millisecond, func(ctx context.Context) error {
			calls.Add(1)
			return nil
		})

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		go p.Start(ctx)

		assert.Eventually(t, func() bool {
			return calls.Load() >= 2
		}, time.Second, time.Millisecond)
	})
	t.Run("trigger without timer", func(t *testing.T) {
		calls := make(chan struct{}, 10)
		p := NewPoller("test", 0, func(ctx context.Context) error {
			calls <- struct{}{}
			return nil
		})

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		go p.Start(ctx)

		p.Trigger()
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("triggered poll did not run")
		}
	})
	t.Run("triggers are coalesced", func(t *testing.T) {
		release := make(chan struct{})
		var calls atomic.Int32
		p := NewPoller("test", 0, func(ctx context.Context) error {
			calls.Add(1)
			<-release
			return nil
		})

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		go p.Start(ctx)

		p.Trigger()
		assert.Eventually(t, func() bool {
			return calls.Load() == 1
		}, time.Second, time.Millisecond)

		// first run is blocked, these collapse into one pending run
		for range 5 {
			p.Trigger()
		}
		close(release)

		assert.Eventually(t, func() bool {
			return calls.Load() == 2
		}, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.EqualValues(t, 2, calls.Load())
	})
	t.Run("stop", func(t *testing.T) {
		p := NewPoller("test", time.Hour, func(ctx context.Context) error { return nil })
		done := make(chan struct{})
		go func() {
			p.Start(t.Context())
			close(done)
		}()

		p.Stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
	})
}
