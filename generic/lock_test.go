package generic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accrual-engine/generic"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	locker := generic.NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "loan:1")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	locker := generic.NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "loan:a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "loan:b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	locker := generic.NewKeyedMutex()

	unlock, err := locker.Lock(context.Background(), "loan:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "loan:1")
	assert.True(t, errors.Is(err, generic.ErrLockUnavailable))
	assert.True(t, generic.IsRetryable(err))

	// Double unlock is harmless and the key is usable again.
	unlock()
	unlock()
	again, err := locker.Lock(context.Background(), "loan:1")
	require.NoError(t, err)
	again()
}
