package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

func TestLockManager_AcquireRelease(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	ok, err := s.locks.Acquire(ctx, "T1", "B1", "", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	lease, err := s.locks.Inspect(ctx, "T1", config.DefaultLockKind)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "B1", lease.BatchID)
	assert.Equal(t, "test-host", lease.Holder)
	assert.True(t, lease.ExpiresAt.Equal(s.clock.Now().Add(time.Hour)))

	ok, err = s.locks.Acquire(ctx, "T1", "B2", config.DefaultLockKind, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second batch must not be admitted while the lease is live")

	released, err := s.locks.Release(ctx, "T1", "B1", "")
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = s.locks.Acquire(ctx, "T1", "B2", "", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "acquire right after release must succeed")
}

func TestLockManager_ReleaseNotHeld(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	released, err := s.locks.Release(ctx, "T1", "B1", "")
	require.NoError(t, err)
	assert.False(t, released)

	ok, err := s.locks.Acquire(ctx, "T1", "B1", "", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	// Another batch cannot release a lease it does not hold.
	released, err = s.locks.Release(ctx, "T1", "B2", "")
	require.NoError(t, err)
	assert.False(t, released)

	lease, err := s.locks.Inspect(ctx, "T1", "")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "B1", lease.BatchID)

	// Releasing twice reports false the second time.
	released, err = s.locks.Release(ctx, "T1", "B1", "")
	require.NoError(t, err)
	assert.True(t, released)
	released, err = s.locks.Release(ctx, "T1", "B1", "")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestLockManager_ExpirySelfHeals(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	ok, err := s.locks.Acquire(ctx, "S2", "B3", "", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	s.clock.Advance(59 * time.Minute)
	ok, err = s.locks.Acquire(ctx, "S2", "B4", "", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// Expiry is inclusive: at exactly ttl the lease is gone.
	s.clock.Advance(time.Minute)
	lease, err := s.locks.Inspect(ctx, "S2", "")
	require.NoError(t, err)
	assert.Nil(t, lease)

	ok, err = s.locks.Acquire(ctx, "S2", "B4", "", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	lease, err = s.locks.Inspect(ctx, "S2", "")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "B4", lease.BatchID)

	// The expired holder's late release does not remove the new lease.
	released, err := s.locks.Release(ctx, "S2", "B3", "")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestLockManager_DefaultTTL(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	ok, err := s.locks.Acquire(ctx, "T1", "B1", "", 0)
	require.NoError(t, err)
	require.True(t, ok)

	lease, err := s.locks.Inspect(ctx, "T1", "")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, s.store.Cfg.Sheetflow.Lock.DefaultTTL(), lease.ExpiresAt.Sub(lease.CreatedAt))
}

func TestLockManager_KindsAndTenantsAreIndependent(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	for _, tc := range []struct{ tenant, batch, kind string }{
		{"T1", "B1", "processing"},
		{"T1", "B2", "export"},
		{"T2", "B3", "processing"},
	} {
		ok, err := s.locks.Acquire(ctx, tc.tenant, tc.batch, tc.kind, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok, "%s/%s", tc.tenant, tc.kind)
	}
}

func TestLockManager_Sweep(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.locks.Acquire(ctx, fmt.Sprintf("T%d", i), "B", "", time.Duration(i+1)*time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
	}

	s.clock.Advance(2 * time.Hour)
	removed, err := s.locks.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = s.locks.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	lease, err := s.locks.Inspect(ctx, "T2", "")
	require.NoError(t, err)
	assert.NotNil(t, lease)
}

func TestLockManager_ConcurrentAcquire(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	const callers = 16
	var (
		wg      sync.WaitGroup
		winners int32
		errs    = make(chan error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.locks.Acquire(ctx, "T1", fmt.Sprintf("B%d", i), "", time.Hour)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				atomic.AddInt32(&winners, 1)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), winners)
}

func TestLockManager_RequiresIdentifiers(t *testing.T) {
	s := newServices(t)
	_, err := s.locks.Acquire(context.Background(), "", "B1", "", time.Hour)
	assert.Error(t, err)
	_, err = s.locks.Acquire(context.Background(), "T1", "", "", time.Hour)
	assert.Error(t, err)
}
