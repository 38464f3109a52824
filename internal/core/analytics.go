package core

import (
	"sort"
	"sync"
	"time"

	"github.com/xiaopang/profilebot/internal/model"
)

const (
	analyticsRetention = 24 * time.Hour
	errorRateWindow    = time.Hour
)

// Analytics 内存中的使用统计
type Analytics struct {
	mu         sync.RWMutex
	events     []model.AnalyticsEvent
	users      map[string]struct{}
	messages   int
	avgRespMs  float64
	categories map[model.Category]int
	errorRate  float64
	now        func() time.Time
}

// NewAnalytics 创建统计服务
func NewAnalytics() *Analytics {
	return &Analytics{
		users:      make(map[string]struct{}),
		categories: make(map[model.Category]int),
		now:        time.Now,
	}
}

// Track records an event and updates the aggregates.
func (a *Analytics) Track(ev model.AnalyticsEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.events = append(a.events, ev)
	a.users[ev.UserID] = struct{}{}

	if ev.Action == model.ActionMessageReceived {
		a.messages++
		if ev.Category != "" {
			a.categories[ev.Category]++
		}
	}

	if ev.ResponseTime > 0 {
		n := a.messages
		if n < 1 {
			n = 1
		}
		ms := float64(ev.ResponseTime) / float64(time.Millisecond)
		a.avgRespMs = (a.avgRespMs*float64(n-1) + ms) / float64(n)
	}

	a.errorRate = a.recentErrorRate()
}

// recentErrorRate is the failed fraction of events in the trailing hour.
func (a *Analytics) recentErrorRate() float64 {
	cutoff := a.now().Add(-errorRateWindow)
	total, failed := 0, 0
	for _, e := range a.events {
		if e.Timestamp.After(cutoff) {
			total++
			if !e.Success {
				failed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

// Stats returns a snapshot of the aggregates.
func (a *Analytics) Stats() model.AnalyticsStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	popular := make(map[model.Category]int, len(a.categories))
	for k, v := range a.categories {
		popular[k] = v
	}
	return model.AnalyticsStats{
		TotalUsers:          len(a.users),
		TotalMessages:       a.messages,
		AverageResponseTime: a.avgRespMs,
		PopularQuestions:    popular,
		ErrorRate:           a.errorRate,
	}
}

// PopularCategories returns the most asked categories, most frequent first.
func (a *Analytics) PopularCategories(limit int) []model.CategoryCount {
	a.mu.RLock()
	out := make([]model.CategoryCount, 0, len(a.categories))
	for c, n := range a.categories {
		out = append(out, model.CategoryCount{Category: c, Count: n})
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RecentActivity returns events newer than d.
func (a *Analytics) RecentActivity(d time.Duration) []model.AnalyticsEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cutoff := a.now().Add(-d)
	var out []model.AnalyticsEvent
	for _, e := range a.events {
		if e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// UserActivity returns every retained event of userID.
func (a *Analytics) UserActivity(userID string) []model.AnalyticsEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []model.AnalyticsEvent
	for _, e := range a.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// Performance summarizes latency and success over retained events.
func (a *Analytics) Performance() model.PerformanceMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	success := 0
	for _, e := range a.events {
		if e.Success {
			success++
		}
	}
	rate := 1.0
	if len(a.events) > 0 {
		rate = float64(success) / float64(len(a.events))
	}
	return model.PerformanceMetrics{
		AverageResponseTime: a.avgRespMs,
		ErrorRate:           a.errorRate,
		TotalRequests:       len(a.events),
		SuccessRate:         rate,
	}
}

// Cleanup keeps only the trailing 24 hours of events. Aggregates are
// cumulative and are not rewound.
func (a *Analytics) Cleanup() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-analyticsRetention)
	kept := a.events[:0]
	for _, e := range a.events {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(a.events) - len(kept)
	a.events = kept
	a.errorRate = a.recentErrorRate()
	return removed
}
