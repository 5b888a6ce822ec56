package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Lease serializes producers of one fingerprint across processes, so two
// racing runs never invoke the same external command for the same inputs at
// the same time.
type Lease struct {
	lock *flock.Flock
}

// leaseRetryInterval is the polling interval for blocking acquisition.
const leaseRetryInterval = 50 * time.Millisecond

// NewLease creates a lease for the fingerprint under the lease directory.
func NewLease(dir, fingerprint string) (*Lease, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lease dir %s: %w", dir, err)
	}
	return &Lease{
		lock: flock.New(filepath.Join(dir, fingerprint+".lock")),
	}, nil
}

// TryAcquire attempts to take the lease without blocking.
func (l *Lease) TryAcquire() (bool, error) {
	return l.lock.TryLock()
}

// Acquire blocks until the lease is held or the context is done.
func (l *Lease) Acquire(ctx context.Context) error {
	ok, err := l.lock.TryLockContext(ctx, leaseRetryInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire lease %s: %w", l.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("failed to acquire lease %s", l.lock.Path())
	}
	return nil
}

// Release gives up the lease. Releasing an unheld lease is a no-op.
func (l *Lease) Release() error {
	return l.lock.Unlock()
}
