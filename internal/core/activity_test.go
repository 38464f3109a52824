package core

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/model"
	"github.com/xiaopang/profilebot/internal/store"
)

func newTestActivityLog(t *testing.T, capacity int) (*ActivityLog, *fakeClock, *bytes.Buffer) {
	t.Helper()
	st, err := store.New(store.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var buf bytes.Buffer
	clock := newFakeClock()
	a := NewActivityLog(st, capacity, logger.New(&buf))
	a.now = clock.Now
	return a, clock, &buf
}

func TestActivityLog_Capacity(t *testing.T) {
	a, _, _ := newTestActivityLog(t, 5)

	for i := 0; i < 8; i++ {
		a.Info("u", fmt.Sprintf("a%d", i), "")
	}
	entries := a.Recent(0)
	require.Len(t, entries, 5)
	assert.Equal(t, "a3", entries[0].Action)
	assert.Equal(t, "a7", entries[4].Action)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestActivityLog_Filters(t *testing.T) {
	a, _, _ := newTestActivityLog(t, 0)

	a.Info("u1", model.ActionMessageReceived, "hi")
	a.Warn("u1", model.ActionRateLimited, "")
	a.Error("u2", model.ActionError, "boom")
	a.Info("u2", model.ActionMessageReceived, "yo")

	assert.Len(t, a.ByUser("u1", 10), 2)
	assert.Len(t, a.ByAction(model.ActionMessageReceived, 10), 2)
	assert.Len(t, a.Recent(3), 3)

	got := a.Query(model.LogQuery{UserID: "u2", Action: model.ActionError})
	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0].Details)
	assert.Equal(t, model.LogLevelError, got[0].Level)
}

func TestActivityLog_Stats(t *testing.T) {
	a, _, _ := newTestActivityLog(t, 0)

	a.Info("u1", "x", "")
	a.Warn("u1", "x", "")
	a.Error("u2", "x", "")
	a.Error("u3", "x", "")

	assert.Equal(t, model.LogStats{TotalLogs: 4, ErrorCount: 2, WarnCount: 1, UniqueUsers: 3}, a.Stats())
}

func TestActivityLog_MirrorsToLogger(t *testing.T) {
	a, _, buf := newTestActivityLog(t, 0)

	a.Warn("42", model.ActionRateLimited, "minute")
	assert.Contains(t, buf.String(), "rate_limited")
	assert.Contains(t, buf.String(), "user=42")
}

func TestActivityLog_Cleanup(t *testing.T) {
	a, clock, _ := newTestActivityLog(t, 0)

	a.Info("u", "old", "")
	clock.Advance(23 * time.Hour)
	a.Info("u", "new", "")
	clock.Advance(2 * time.Hour)

	assert.Equal(t, 1, a.Cleanup())
	entries := a.Recent(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Action)
}

func TestActivityLog_DefaultCapacity(t *testing.T) {
	a, _, _ := newTestActivityLog(t, 0)

	for i := 0; i < defaultActivityCapacity+5; i++ {
		a.Info("u", fmt.Sprintf("a%d", i), "")
	}
	assert.Equal(t, defaultActivityCapacity, a.Stats().TotalLogs)
	assert.Equal(t, "a5", a.Recent(0)[0].Action)
	assert.Len(t, a.Query(model.LogQuery{}), 50)
}

type brokenStore struct{}

func (brokenStore) SaveLog(model.LogEntry) error { return errors.New("disk I/O error") }
func (brokenStore) TrimLogs(int) (int64, error)  { return 0, errors.New("disk I/O error") }
func (brokenStore) QueryLogs(model.LogQuery) ([]model.LogEntry, error) {
	return nil, errors.New("disk I/O error")
}
func (brokenStore) LogStats() (model.LogStats, error) { return model.LogStats{}, errors.New("disk I/O error") }
func (brokenStore) CleanOldLogs(time.Time) (int64, error) {
	return 0, errors.New("disk I/O error")
}

func TestActivityLog_StoreFailure(t *testing.T) {
	var buf bytes.Buffer
	a := NewActivityLog(brokenStore{}, 0, logger.New(&buf))

	a.Info("42", model.ActionMessageReceived, "hi")
	assert.Contains(t, buf.String(), "failed to store activity")
	assert.Contains(t, buf.String(), "message_received")
	assert.Nil(t, a.Recent(10))
	assert.Equal(t, model.LogStats{}, a.Stats())
	assert.Zero(t, a.Cleanup())
}
