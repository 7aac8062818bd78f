package core

import (
	"context"
	"time"
)

// Locker hands out short-lived exclusive locks keyed by name.
// Obtain returns a *ConflictError when the key is already held.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
