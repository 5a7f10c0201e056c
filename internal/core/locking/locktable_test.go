package locking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLock_SerializesSameProduct(t *testing.T) {
	table := NewTable()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = table.WithLock("p-1", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 1, table.Size())
}

func TestWithLocks_DeduplicatesIDs(t *testing.T) {
	table := NewTable()

	// A duplicated id must not self-deadlock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = table.WithLocks([]string{"p-1", "p-2", "p-1"}, func() error {
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WithLocks deadlocked on duplicate product ids")
	}
	assert.Equal(t, 2, table.Size())
}

func TestWithLocks_OverlappingSetsNeverDeadlock(t *testing.T) {
	table := NewTable()

	// Two goroutines repeatedly locking overlapping sets in opposite
	// request order. Sorted acquisition makes this safe.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		order := []string{"p-a", "p-b", "p-c"}
		if i == 1 {
			order = []string{"p-c", "p-b", "p-a"}
		}
		wg.Add(1)
		go func(ids []string) {
			defer wg.Done()
			for n := 0; n < 200; n++ {
				_ = table.WithLocks(ids, func() error { return nil })
			}
		}(order)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("overlapping lock sets deadlocked")
	}
}

func TestWithLocks_ErrorPropagates(t *testing.T) {
	table := NewTable()

	err := table.WithLocks([]string{"p-1"}, func() error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// Lock must be released after the error.
	require.NoError(t, table.WithLock("p-1", func() error { return nil }))
}
