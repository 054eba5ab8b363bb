// Package storage holds the tiered key/value and counter stores behind the
// login guard. A Coordinator walks an ordered list of tiers and absorbs their
// failures so callers never see a storage error.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// ErrTierUnavailable marks a tier that could not answer (timeout, connection
// refused, missing table). The coordinator moves on to the next tier.
var ErrTierUnavailable = errors.New("storage tier unavailable")

// Tier is one backend in the fallback chain.
type Tier interface {
	Name() string

	// IncrementWithExpiry bumps the counter at key. A missing or expired
	// counter starts a new window of length ttl. In sliding mode every hit
	// re-arms the expiry.
	IncrementWithExpiry(ctx context.Context, key string, now time.Time, ttl time.Duration, mode models.WindowMode) (models.WindowCounter, error)

	Get(ctx context.Context, key string, now time.Time) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, now time.Time, ttl time.Duration) error

	// GetAndDelete reads and removes a record in one step. Of several
	// concurrent callers at most one sees found == true.
	GetAndDelete(ctx context.Context, key string, now time.Time) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
