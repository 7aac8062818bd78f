package locksvc_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casbytes/lms-sub000/core"
	locksvc "github.com/casbytes/lms-sub000/services/lock"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	locker := locksvc.NewMemoryLocker()

	release, err := locker.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "k", time.Minute)
	assert.True(t, core.IsConflict(err))

	other, err := locker.Obtain(ctx, "other", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release, err = locker.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)
	release()
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	locker := locksvc.NewMemoryLocker()

	stale, err := locker.Obtain(ctx, "k", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	fresh, err := locker.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)

	// releasing the expired lock must not free the new holder
	stale()
	_, err = locker.Obtain(ctx, "k", time.Minute)
	assert.True(t, core.IsConflict(err))
	fresh()
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	ctx := context.Background()
	locker := locksvc.NewMemoryLocker()

	var obtained int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Obtain(ctx, "k", time.Minute); err == nil {
				atomic.AddInt32(&obtained, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), obtained)
}
