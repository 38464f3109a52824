package model

import "time"

// Analytics actions that feed the aggregate counters.
const (
	ActionMessageReceived = "message_received"
	ActionResponseSent    = "response_sent"
	ActionCacheHit        = "cache_hit"
	ActionRateLimited     = "rate_limited"
	ActionValidationError = "validation_error"
	ActionError           = "error"
	ActionStartCommand    = "start_command"
	ActionHelpCommand     = "help_command"
	ActionCallback        = "callback"
)

// AnalyticsEvent 分析事件
type AnalyticsEvent struct {
	Timestamp    time.Time     `json:"timestamp"`
	UserID       string        `json:"user_id"`
	Action       string        `json:"action"`
	Category     Category      `json:"category,omitempty"`
	ResponseTime time.Duration `json:"response_time,omitempty"`
	Success      bool          `json:"success"`
}

// AnalyticsStats 聚合统计
type AnalyticsStats struct {
	TotalUsers          int              `json:"total_users"`
	TotalMessages       int              `json:"total_messages"`
	AverageResponseTime float64          `json:"average_response_time_ms"`
	PopularQuestions    map[Category]int `json:"popular_questions"`
	ErrorRate           float64          `json:"error_rate"`
}

// CategoryCount 分类计数
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// PerformanceMetrics 性能指标
type PerformanceMetrics struct {
	AverageResponseTime float64 `json:"average_response_time_ms"`
	ErrorRate           float64 `json:"error_rate"`
	TotalRequests       int     `json:"total_requests"`
	SuccessRate         float64 `json:"success_rate"`
}
