package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xiaopang/profilebot/internal/model"
)

const sessionIdleTimeout = time.Hour

// CompletionRequest 补全请求
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
	Model       string
}

// Completer is the generative text provider.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AIOptions 补全调用参数
type AIOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	BotName     string
}

// UserSession 用户会话
type UserSession struct {
	MessageCount    int       `json:"message_count"`
	LastInteraction time.Time `json:"last_interaction"`
}

// AIService 构建提示词并调用补全服务，同时维护用户会话计数
type AIService struct {
	mu       sync.Mutex
	sessions map[string]*UserSession
	provider Completer
	opts     AIOptions
	now      func() time.Time
	metrics  *Metrics
}

// NewAIService 创建 AI 服务
func NewAIService(provider Completer, opts AIOptions) *AIService {
	return &AIService{
		sessions: make(map[string]*UserSession),
		provider: provider,
		opts:     opts,
		now:      time.Now,
	}
}

// SetMetrics attaches instrumentation; nil disables it.
func (s *AIService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// GenerateResponse asks the provider to answer message about info. The call
// is abandoned after the configured timeout with ErrRequestTimeout; other
// failures come back as ErrQuotaExceeded or ErrUnknown.
func (s *AIService) GenerateResponse(ctx context.Context, message, userID string, info *model.PersonalInfo) (string, error) {
	count := s.touchSession(userID)

	req := CompletionRequest{
		Prompt:      BuildPrompt(s.opts.BotName, info, message, count),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
		Model:       s.opts.Model,
	}

	type result struct {
		text string
		err  error
	}

	// The provider sees the same deadline, but the wait below is what
	// enforces it; a provider that ignores ctx keeps running and its
	// result is dropped.
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	done := make(chan result, 1)
	start := s.now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		text, err := s.provider.Complete(callCtx, req)
		done <- result{text: text, err: err}
	}()

	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		s.observe(start, r.err)
		if r.err != nil {
			if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return "", ErrRequestTimeout
			}
			return "", classifyProviderError(r.err)
		}
		if strings.TrimSpace(r.text) == "" {
			return MsgNoResponse, nil
		}
		return r.text, nil
	case <-timer.C:
		s.observe(start, ErrRequestTimeout)
		return "", ErrRequestTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *AIService) touchSession(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &UserSession{}
		s.sessions[userID] = sess
	}
	sess.MessageCount++
	sess.LastInteraction = s.now()
	if s.metrics != nil {
		s.metrics.Sessions.Set(float64(len(s.sessions)))
	}
	return sess.MessageCount
}

func (s *AIService) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.AILatency.Observe(s.now().Sub(start).Seconds())
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case errors.Is(classifyProviderError(err), ErrQuotaExceeded):
		outcome = "quota"
	default:
		outcome = "error"
	}
	s.metrics.AIRequests.WithLabelValues(outcome).Inc()
}

// classifyProviderError folds provider failures into the service taxonomy.
func classifyProviderError(err error) error {
	switch {
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrRequestTimeout):
		return err
	case strings.Contains(strings.ToLower(err.Error()), "quota"):
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnknown, err)
	}
}

// Session returns a copy of the user's session.
func (s *AIService) Session(userID string) (UserSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return UserSession{}, false
	}
	return *sess, true
}

// SessionCount returns the number of tracked sessions.
func (s *AIService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CleanupOldSessions drops sessions idle for more than an hour.
func (s *AIService) CleanupOldSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-sessionIdleTimeout)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastInteraction.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if s.metrics != nil {
		s.metrics.Sessions.Set(float64(len(s.sessions)))
	}
	return removed
}
