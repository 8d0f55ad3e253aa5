package scenario

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/sqlperf/pkg/store"
)

func TestLocalLockerSerializesPerKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "missing-index")
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())

	// Different keys do not block each other.
	unlockA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
	unlockA()
}

func TestLeaseLocker(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sqlperf.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	l := NewLeaseLocker(st, 60*time.Millisecond)
	l.Poll = 5 * time.Millisecond

	unlock, err := l.Lock(ctx, "missing-index")
	require.NoError(t, err)

	lease, err := st.Get(ctx, "run:missing-index")
	require.NoError(t, err)
	require.NotNil(t, lease)

	// Same process, second caller: must wait, then time out.
	_, err = l.Lock(ctx, "missing-index")
	assert.True(t, errors.Is(err, ErrLockTimeout))

	unlock()

	lease, err = st.Get(ctx, "run:missing-index")
	require.NoError(t, err)
	assert.Nil(t, lease)

	unlock, err = l.Lock(ctx, "missing-index")
	require.NoError(t, err)
	unlock()
}

func TestLeaseLockerContextCancel(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sqlperf.db"))
	require.NoError(t, err)
	defer st.Close()

	l := NewLeaseLocker(st, time.Minute)
	l.Poll = 5 * time.Millisecond

	unlock, err := l.Lock(context.Background(), "cursor")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "cursor")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLeaseLockerRenewsHeldLease(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sqlperf.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	l := NewLeaseLocker(st, time.Second)
	l.TTL = 40 * time.Millisecond
	l.Poll = 5 * time.Millisecond

	unlock, err := l.Lock(ctx, "missing-index")
	require.NoError(t, err)

	// Outlive the TTL several times over; renewal keeps others out.
	time.Sleep(150 * time.Millisecond)
	ok, err := st.Acquire(ctx, "run:missing-index", "other-daemon", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "a held run lock must not expire while the run is in progress")

	unlock()

	lease, err := st.Get(ctx, "run:missing-index")
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestLeaseLockerStopsRenewingLostLease(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sqlperf.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	l := NewLeaseLocker(st, time.Second)
	l.TTL = 40 * time.Millisecond

	unlock, err := l.Lock(ctx, "cursor")
	require.NoError(t, err)

	lease, err := st.Get(ctx, "run:cursor")
	require.NoError(t, err)
	require.NotNil(t, lease)
	require.NoError(t, st.Release(ctx, "run:cursor", lease.HolderID))
	ok, err := st.Acquire(ctx, "run:cursor", "other-daemon", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	unlock()

	// The other holder keeps its lease; unlock only releases our own.
	lease, err = st.Get(ctx, "run:cursor")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "other-daemon", lease.HolderID)
}
