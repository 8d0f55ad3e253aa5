package scenario

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rmax-ai/sqlperf/pkg/store"
)

// Locker serializes runs that share a key. Setup statements mutate shared
// database objects, so without a Locker two concurrent runs of the same
// scenario with different variants can invalidate each other's measurement.
type Locker interface {
	// Lock blocks until key is held and returns the release func.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker serializes runs inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// LeaseLocker serializes runs across processes through a lease store, so
// several daemons sharing one database do not race on its indexes.
type LeaseLocker struct {
	leases   store.LeaseStore
	holderID string
	seq      atomic.Uint64

	// TTL bounds how long a crashed holder blocks others. Held leases are
	// renewed every TTL/2.
	TTL time.Duration
	// Wait is how long Lock polls before giving up with ErrLockTimeout.
	Wait time.Duration
	// Poll is the retry interval while the lease is held elsewhere.
	Poll time.Duration
}

func NewLeaseLocker(leases store.LeaseStore, wait time.Duration) *LeaseLocker {
	return &LeaseLocker{
		leases:   leases,
		holderID: newHolderID(),
		TTL:      2 * time.Minute,
		Wait:     wait,
		Poll:     25 * time.Millisecond,
	}
}

func (l *LeaseLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := "run:" + key
	// Each attempt gets its own holder id; reusing one would make
	// Acquire re-entrant across goroutines.
	holder := fmt.Sprintf("%s-%d", l.holderID, l.seq.Add(1))
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.leases.Acquire(ctx, name, holder, l.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.keepAlive(name, holder, stop, done)

			return func() {
				close(stop)
				<-done
				if err := l.leases.Release(context.Background(), name, holder); err != nil {
					fmt.Printf(`{"level":"error","msg":"run_lock_release_failed","lock":%q,"error":%q}`+"\n", name, err.Error())
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Poll):
		}
	}
}

// keepAlive renews the lease every TTL/2 until stop is closed or the lease
// is lost to another holder.
func (l *LeaseLocker) keepAlive(name, holder string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.TTL / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := l.leases.Renew(context.Background(), name, holder, l.TTL)
			if err == nil {
				continue
			}
			fmt.Printf(`{"level":"error","msg":"run_lock_renew_failed","lock":%q,"error":%q}`+"\n", name, err.Error())
			if errors.Is(err, store.ErrLeaseLost) {
				return
			}
		}
	}
}

func newHolderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "sqlperf"
	}
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), hex.EncodeToString(b))
}
