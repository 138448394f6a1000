//go:build unit

package lock_test

import (
	"sync"
	"testing"

	"github.com/beligro/smart-carwash-sub000/internal/infra/lock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("serializes one key", func(t *testing.T) {
		km := lock.NewKeyedMutex()
		key := uuid.New()

		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.Lock(key)
				defer unlock()
				counter++
			}()
		}
		wg.Wait()

		assert.Equal(t, 100, counter)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		km := lock.NewKeyedMutex()
		a, b := uuid.New(), uuid.New()

		unlockA := km.Lock(a)
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlockB := km.Lock(b)
			unlockB()
			close(done)
		}()
		<-done
	})

	t.Run("lock is reacquirable after unlock", func(t *testing.T) {
		km := lock.NewKeyedMutex()
		key := uuid.New()

		unlock := km.Lock(key)
		unlock()

		unlock = km.Lock(key)
		unlock()
	})
}
