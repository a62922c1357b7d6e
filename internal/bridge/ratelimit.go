package bridge

import (
	"sync"
	"time"
)

// rateLimiter implements a sliding window rate limiter with per-sender
// per-channel and global limits. Counters are keyed "senderID:channel" and
// reset as their timestamps age out of the window.
type rateLimiter struct {
	mu        sync.Mutex
	perSender map[string][]time.Time
	global    []time.Time
	senderMax int
	globalMax int
	window    time.Duration

	now func() time.Time // test hook
}

func newRateLimiter(perSenderPerWindow, globalPerWindow int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		perSender: make(map[string][]time.Time),
		senderMax: perSenderPerWindow,
		globalMax: globalPerWindow,
		window:    window,
		now:       time.Now,
	}
}

// Allow records one message for senderID on channel and reports whether it
// fits within the current window. Once a counter is full all further
// messages are rejected until enough old entries expire.
func (r *rateLimiter) Allow(senderID, channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	r.global = pruneOld(r.global, cutoff)
	if r.globalMax > 0 && len(r.global) >= r.globalMax {
		return false
	}

	key := senderID + ":" + channel
	r.perSender[key] = pruneOld(r.perSender[key], cutoff)
	if r.senderMax > 0 && len(r.perSender[key]) >= r.senderMax {
		return false
	}

	r.global = append(r.global, now)
	r.perSender[key] = append(r.perSender[key], now)
	return true
}

// Forget drops all counters for senderID (e.g. when its surface closes) so
// the map does not grow with every short-lived picker window.
func (r *rateLimiter) Forget(senderID string) {
	prefix := senderID + ":"
	r.mu.Lock()
	for key := range r.perSender {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(r.perSender, key)
		}
	}
	r.mu.Unlock()
}

func pruneOld(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0:0], ts[i:]...)
}
