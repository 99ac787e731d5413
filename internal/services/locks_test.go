package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		counter = map[string]int{}
		mu      sync.Mutex
	)
	for i := range 50 {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()

			mu.Lock()
			counter[key]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, counter["a"])
	assert.Equal(t, 25, counter["b"])
	assert.Zero(t, locks.size())
}

func TestKeyedMutexExcludesSameKey(t *testing.T) {
	locks := newKeyedMutex()

	unlock := locks.Lock("a")
	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		locks.Lock("a")()
	}()

	// a different key is not blocked
	locks.Lock("b")()

	select {
	case <-acquired:
		t.Fatal("same key acquired twice")
	default:
	}
	assert.Equal(t, 1, locks.size())

	unlock()
	<-acquired
	assert.Zero(t, locks.size())
}
