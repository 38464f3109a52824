package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/xiaopang/profilebot/internal/logger"
)

// Cleaner is one periodic housekeeping step. Run reports how many items it
// removed.
type Cleaner struct {
	Name string
	Run  func() int
}

// Janitor 定时清理过期的限流窗口、缓存、会话与日志
type Janitor struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	interval  time.Duration
	cleaners  []Cleaner
	started   bool
}

// NewJanitor 创建清理器
func NewJanitor(interval time.Duration, cleaners ...Cleaner) (*Janitor, error) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Janitor{scheduler: s, interval: interval, cleaners: cleaners}, nil
}

// Start 注册清理任务并启动调度
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		return nil
	}

	_, err := j.scheduler.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() { j.RunOnce() }),
		gocron.WithName("cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	j.scheduler.Start()
	j.started = true
	logger.Info("cleanup scheduled", "interval", j.interval)
	return nil
}

// Stop 停止调度并等待正在执行的任务
func (j *Janitor) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.started {
		return nil
	}
	j.started = false
	return j.scheduler.Shutdown()
}

// RunOnce runs every cleaner immediately. A panicking cleaner is logged and
// does not stop the rest.
func (j *Janitor) RunOnce() map[string]int {
	removed := make(map[string]int, len(j.cleaners))
	for _, c := range j.cleaners {
		removed[c.Name] = j.run(c)
	}
	logger.Info("cleanup completed", "removed", removed)
	return removed
}

func (j *Janitor) run(c Cleaner) (n int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cleanup step panicked", "step", c.Name, "panic", r)
			n = 0
		}
	}()
	return c.Run()
}
