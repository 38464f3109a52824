package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaopang/profilebot/internal/logger"
)

// DefaultPriority is the priority of an ordinary user question.
const DefaultPriority = 1

// QueueItem 排队中的请求
type QueueItem struct {
	ID         string
	UserID     string
	Message    string
	Replier    Replier
	EnqueuedAt time.Time
	Priority   int
}

// QueueHandler processes one dequeued item.
type QueueHandler func(ctx context.Context, item *QueueItem) error

// Queue bounds the number of in-flight requests system-wide. Items are served
// by priority (higher first), FIFO among equal priorities.
type Queue struct {
	mu            sync.Mutex
	items         []*QueueItem
	active        int
	maxConcurrent int
	staleAfter    time.Duration
	handle        QueueHandler
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	now           func() time.Time
	metrics       *Metrics
}

// NewQueue 创建准入队列
func NewQueue(maxConcurrent int, staleAfter time.Duration, handle QueueHandler) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		maxConcurrent: maxConcurrent,
		staleAfter:    staleAfter,
		handle:        handle,
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
	}
}

// SetMetrics attaches instrumentation; nil disables it.
func (q *Queue) SetMetrics(m *Metrics) {
	q.metrics = m
}

// Enqueue inserts a request and starts workers if capacity allows.
func (q *Queue) Enqueue(userID, message string, replier Replier, priority int) string {
	item := &QueueItem{
		ID:         uuid.NewString(),
		UserID:     userID,
		Message:    message,
		Replier:    replier,
		EnqueuedAt: q.now(),
		Priority:   priority,
	}

	q.mu.Lock()
	idx := len(q.items)
	for i, it := range q.items {
		if it.Priority < priority {
			idx = i
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = item
	q.mu.Unlock()

	q.drain()
	return item.ID
}

// drain dispatches queued items until the concurrency ceiling is reached.
func (q *Queue) drain() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) > 0 && q.active < q.maxConcurrent {
		if q.ctx.Err() != nil {
			return
		}
		item := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.active++
		q.wg.Add(1)
		go q.process(item)
	}
	q.observe()
}

func (q *Queue) process(item *QueueItem) {
	var once sync.Once
	release := func() {
		once.Do(func() {
			q.mu.Lock()
			q.active--
			q.mu.Unlock()
			// drain before Done so a concurrent Close never sees a zero counter mid-Add
			q.drain()
			q.wg.Done()
		})
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("queue item panicked", "item", item.ID, "user", item.UserID, "panic", fmt.Sprint(r))
			q.notify(item, MsgGeneralError)
		}
	}()

	if q.staleAfter > 0 && q.now().Sub(item.EnqueuedAt) > q.staleAfter {
		logger.Warn("queue item expired before processing", "item", item.ID, "user", item.UserID)
		q.notify(item, MsgQueueTimeout)
		return
	}

	if err := q.handle(q.ctx, item); err != nil {
		logger.Error("queue item failed", "item", item.ID, "user", item.UserID, "error", err)
		q.notify(item, MsgGeneralError)
	}
}

func (q *Queue) notify(item *QueueItem, text string) {
	if item.Replier == nil {
		return
	}
	if _, err := item.Replier.Reply(q.ctx, text, ReplyOptions{}); err != nil {
		logger.Warn("failed to notify queued user", "user", item.UserID, "error", err)
	}
}

func (q *Queue) observe() {
	if q.metrics == nil {
		return
	}
	q.metrics.QueueLength.Set(float64(len(q.items)))
	q.metrics.QueueActive.Set(float64(q.active))
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns copies of the waiting items in service order.
func (q *Queue) Pending() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueItem, len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	return out
}

// Active returns the number of items currently being processed.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Clear drops every waiting item without notifying anyone.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.observe()
}

// Close stops dispatching, cancels running handlers' context and waits for
// them to return.
func (q *Queue) Close() {
	// cancel under the lock so no drain can Add after Wait starts
	q.mu.Lock()
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
}
