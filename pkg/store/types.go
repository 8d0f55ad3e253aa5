package store

import (
	"context"
	"time"
)

// Lease represents an exclusive claim on a named resource, such as the
// right to mutate the database objects a scenario depends on.
type Lease struct {
	Name      string    `json:"name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Version   int64     `json:"version"` // bumped on every write
	Epoch     int64     `json:"epoch"`   // bumped when the holder changes
}

// LeaseStore defines the interface for acquiring and renewing leases.
type LeaseStore interface {
	// Acquire tries to acquire the lease. Returns true if successful.
	// If the lease is already held by holderID, it renews it.
	Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error)

	// Renew updates the expiry of an existing lease held by holderID.
	// Returns error if the lease is lost or stolen.
	Renew(ctx context.Context, name, holderID string, ttl time.Duration) error

	// Release releases the lease if held by holderID.
	Release(ctx context.Context, name, holderID string) error

	// Get returns the current lease state, or nil if nobody holds it.
	Get(ctx context.Context, name string) (*Lease, error)
}

var _ LeaseStore = (*Store)(nil)
