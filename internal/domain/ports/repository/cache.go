package repository

import (
	"context"
	"fmt"
	"time"
)

// PendingOrdersCacheKey holds the cached pending-orders view.
const PendingOrdersCacheKey = "pending_orders"

// UserCacheKeys lists every cache entry derived from one user document.
func UserCacheKeys(userID, phone string) []string {
	keys := []string{fmt.Sprintf("user:id:%s", userID)}
	if phone != "" {
		keys = append(keys, fmt.Sprintf("user:phone:%s", phone))
	}
	return keys
}

// CacheInvalidator drops cached views after a committed write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Locker is a best-effort distributed mutex.
type Locker interface {
	// TryLock returns a token on success or domain.ErrSyncInProgress when held elsewhere.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
