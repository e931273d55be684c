package internal

import (
	"context"
	"time"
)

// DefaultLockTimeout bounds how long an approval action waits for another
// action on the same expense to finish.
const DefaultLockTimeout = 3 * time.Second

// WithTimeout derives a bounded context. A non-positive d falls back to
// DefaultLockTimeout.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultLockTimeout
	}
	return context.WithTimeout(ctx, d)
}
