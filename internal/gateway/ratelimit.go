package gateway

import (
	"sync"
	"time"
)

// rateLimiter is a sliding one-minute window per user plus a global window.
type rateLimiter struct {
	mu        sync.Mutex
	perUser   map[string][]time.Time
	global    []time.Time
	userMax   int
	globalMax int
	window    time.Duration
	lastPrune time.Time
}

func newRateLimiter(perUserPerMin, globalPerMin int) *rateLimiter {
	return &rateLimiter{
		perUser:   make(map[string][]time.Time),
		userMax:   perUserPerMin,
		globalMax: globalPerMin,
		window:    time.Minute,
	}
}

// SetLimits changes both limits; <= 0 disables that limit.
func (r *rateLimiter) SetLimits(perUserPerMin, globalPerMin int) {
	r.mu.Lock()
	r.userMax = perUserPerMin
	r.globalMax = globalPerMin
	r.mu.Unlock()
}

// Allow records one event for userID if both windows have room.
func (r *rateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	if r.globalMax > 0 {
		r.global = pruneOld(r.global, cutoff)
		if len(r.global) >= r.globalMax {
			return false
		}
	}
	if r.userMax > 0 {
		r.perUser[userID] = pruneOld(r.perUser[userID], cutoff)
		if len(r.perUser[userID]) >= r.userMax {
			return false
		}
	}

	if r.globalMax > 0 {
		r.global = append(r.global, now)
	}
	if r.userMax > 0 {
		r.perUser[userID] = append(r.perUser[userID], now)
	}

	// Drop idle users once per window so the map does not grow forever.
	if now.Sub(r.lastPrune) > r.window {
		for id, ts := range r.perUser {
			if ts = pruneOld(ts, cutoff); len(ts) == 0 {
				delete(r.perUser, id)
			} else {
				r.perUser[id] = ts
			}
		}
		r.lastPrune = now
	}
	return true
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
