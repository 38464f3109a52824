package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/model"
)

const (
	defaultActivityCapacity = 1000
	activityRetention       = 24 * time.Hour
)

// LogStore is the table behind ActivityLog.
type LogStore interface {
	SaveLog(e model.LogEntry) error
	TrimLogs(keep int) (int64, error)
	QueryLogs(q model.LogQuery) ([]model.LogEntry, error)
	LogStats() (model.LogStats, error)
	CleanOldLogs(before time.Time) (int64, error)
}

// ActivityLog keeps the most recent user activity in a LogStore. Every entry
// is also written to the process logger.
type ActivityLog struct {
	mu       sync.Mutex
	store    LogStore
	capacity int
	out      *logger.Logger
	now      func() time.Time
}

// NewActivityLog 创建活动日志。capacity <= 0 时使用 1000。
func NewActivityLog(store LogStore, capacity int, out *logger.Logger) *ActivityLog {
	if capacity <= 0 {
		capacity = defaultActivityCapacity
	}
	if out == nil {
		out = logger.Default()
	}
	return &ActivityLog{
		store:    store,
		capacity: capacity,
		out:      out.With("component", "activity"),
		now:      time.Now,
	}
}

// Log appends an entry, dropping the oldest once capacity is reached. A store
// failure is logged; the entry still reaches the process logger.
func (a *ActivityLog) Log(userID, action, details string, level model.LogLevel) {
	if level == "" {
		level = model.LogLevelInfo
	}
	entry := model.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: a.now(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		Level:     level,
	}

	a.mu.Lock()
	err := a.store.SaveLog(entry)
	if err == nil {
		_, err = a.store.TrimLogs(a.capacity)
	}
	a.mu.Unlock()
	if err != nil {
		a.out.Warn("failed to store activity", "error", err)
	}

	kvs := []any{"user", userID, "action", action}
	if details != "" {
		kvs = append(kvs, "details", details)
	}
	switch level {
	case model.LogLevelError:
		a.out.Error("activity", kvs...)
	case model.LogLevelWarn:
		a.out.Warn("activity", kvs...)
	default:
		a.out.Info("activity", kvs...)
	}
}

func (a *ActivityLog) Info(userID, action, details string) {
	a.Log(userID, action, details, model.LogLevelInfo)
}

func (a *ActivityLog) Warn(userID, action, details string) {
	a.Log(userID, action, details, model.LogLevelWarn)
}

func (a *ActivityLog) Error(userID, action, details string) {
	a.Log(userID, action, details, model.LogLevelError)
}

// Recent returns up to limit of the newest entries, oldest first.
func (a *ActivityLog) Recent(limit int) []model.LogEntry {
	return a.query(model.LogQuery{Limit: limit})
}

// ByUser returns up to limit of the newest entries for userID.
func (a *ActivityLog) ByUser(userID string, limit int) []model.LogEntry {
	return a.query(model.LogQuery{UserID: userID, Limit: limit})
}

// ByAction returns up to limit of the newest entries for action.
func (a *ActivityLog) ByAction(action string, limit int) []model.LogEntry {
	return a.query(model.LogQuery{Action: action, Limit: limit})
}

// Query applies the optional user/action filters of q.
func (a *ActivityLog) Query(q model.LogQuery) []model.LogEntry {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return a.query(q)
}

func (a *ActivityLog) query(q model.LogQuery) []model.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := a.store.QueryLogs(q)
	if err != nil {
		a.out.Warn("failed to query activity", "error", err)
		return nil
	}
	return entries
}

// Stats summarizes the stored entries.
func (a *ActivityLog) Stats() model.LogStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats, err := a.store.LogStats()
	if err != nil {
		a.out.Warn("failed to summarize activity", "error", err)
	}
	return stats
}

// Cleanup drops entries older than 24 hours.
func (a *ActivityLog) Cleanup() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed, err := a.store.CleanOldLogs(a.now().Add(-activityRetention))
	if err != nil {
		a.out.Warn("failed to clean activity", "error", err)
		return 0
	}
	return int(removed)
}
