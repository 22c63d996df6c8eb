// Package verifycache remembers verified payments and serializes concurrent
// verification of the same payment reference.
package verifycache

import (
	"context"
	"errors"
	"time"

	"github.com/chainsafe/qtx-rewards/pkg/oracle"
)

var (
	// ErrLocked is returned when another request holds the reference.
	ErrLocked = errors.New("payment verification already in progress")
	// ErrMiss is returned when no verification is remembered for the reference.
	ErrMiss = errors.New("verification not cached")
)

// ReleaseFunc drops a lock taken with Acquire.
type ReleaseFunc func()

// Cache stores verification results keyed by external payment reference.
type Cache interface {
	Acquire(ctx context.Context, ref string, ttl time.Duration) (ReleaseFunc, error)
	Remember(ctx context.Context, ref string, p *oracle.Payment, ttl time.Duration) error
	Lookup(ctx context.Context, ref string) (*oracle.Payment, error)
}
