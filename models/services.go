// nexchan/models/services.go
package models

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// --- Stateful Services ---

// ObjectStore abstracts the external object storage: issuing signed
// upload URLs, resolving public fetch URLs and best-effort removal.
// Buckets are referred to by their logical names ("posts", "avatars").
type ObjectStore interface {
	PresignedUpload(ctx context.Context, bucket, objectPath string, expiry time.Duration) (string, error)
	PublicURL(bucket, objectPath string) string
	Fetch(ctx context.Context, bucket, objectPath string) (io.ReadCloser, error)
	Remove(ctx context.Context, bucket, objectPath string) error
}

// BurstLimiter is a transport-level token bucket per client IP. It sits in
// front of the policy-driven admission controller and only absorbs abusive
// bursts; the authoritative per-action quota lives in the database.
type BurstLimiter struct {
	mu       sync.Mutex
	every    time.Duration
	burst    int
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
}

// NewBurstLimiter creates and starts a new burst limiter.
func NewBurstLimiter(every time.Duration, burst int) *BurstLimiter {
	bl := &BurstLimiter{
		every:    every,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
	go bl.cleanup()
	return bl
}

// Allow reports whether the given IP may proceed right now.
func (bl *BurstLimiter) Allow(ip string) bool {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	limiter, exists := bl.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(bl.every), bl.burst)
		bl.limiters[ip] = limiter
	}
	bl.lastSeen[ip] = time.Now()
	return limiter.Allow()
}

// cleanup periodically removes entries for IPs not seen in a day.
func (bl *BurstLimiter) cleanup() {
	for range time.Tick(1 * time.Hour) {
		bl.mu.Lock()
		cutoff := time.Now().Add(-24 * time.Hour)
		for ip, seen := range bl.lastSeen {
			if seen.Before(cutoff) {
				delete(bl.limiters, ip)
				delete(bl.lastSeen, ip)
			}
		}
		bl.mu.Unlock()
	}
}
