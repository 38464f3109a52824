package core

import (
	"sync"
	"time"

	"github.com/xiaopang/profilebot/internal/model"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// RateLimiter 按用户的滑动窗口频率限制器
type RateLimiter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time // userID -> request timestamps within the trailing hour
	perMinute int
	perHour   int
	now       func() time.Time
}

// NewRateLimiter 创建频率限制器
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	return &RateLimiter{
		windows:   make(map[string][]time.Time),
		perMinute: perMinute,
		perHour:   perHour,
		now:       time.Now,
	}
}

// Limits returns the configured ceilings.
func (r *RateLimiter) Limits() (perMinute, perHour int) {
	return r.perMinute, r.perHour
}

// IsRateLimited records the request and reports whether it exceeds either
// window. Recording happens unconditionally, so a rejected request still
// consumes quota.
func (r *RateLimiter) IsRateLimited(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := prune(r.windows[userID], now.Add(-hourWindow))
	minuteCount := countSince(valid, now.Add(-minuteWindow))
	hourCount := len(valid)

	r.windows[userID] = append(valid, now)

	return minuteCount >= r.perMinute || hourCount >= r.perHour
}

// Remaining reports how many requests the user may still make. It does not
// modify any state.
func (r *RateLimiter) Remaining(userID string) model.RateLimitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	timestamps := r.windows[userID]
	minuteCount := countSince(timestamps, now.Add(-minuteWindow))
	hourCount := countSince(timestamps, now.Add(-hourWindow))

	return model.RateLimitInfo{
		Minute: max(0, r.perMinute-minuteCount),
		Hour:   max(0, r.perHour-hourCount),
	}
}

// Cleanup drops timestamps older than an hour and forgets idle users.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-hourWindow)
	removed := 0
	for k, timestamps := range r.windows {
		valid := prune(timestamps, cutoff)
		if len(valid) == 0 {
			delete(r.windows, k)
			removed++
		} else {
			r.windows[k] = valid
		}
	}
	return removed
}

// Users returns the number of tracked users.
func (r *RateLimiter) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

// prune keeps timestamps strictly after cutoff. The input slice is reused.
func prune(timestamps []time.Time, cutoff time.Time) []time.Time {
	valid := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

func countSince(timestamps []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range timestamps {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
