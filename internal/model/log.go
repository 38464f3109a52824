package model

import "time"

// LogLevel 活动日志级别
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry 活动日志条目
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Level     LogLevel  `json:"level"`
}

// LogStats 活动日志汇总
type LogStats struct {
	TotalLogs   int `json:"total_logs"`
	ErrorCount  int `json:"error_count"`
	WarnCount   int `json:"warn_count"`
	UniqueUsers int `json:"unique_users"`
}

// LogQuery 日志查询参数
type LogQuery struct {
	UserID string `form:"user_id"`
	Action string `form:"action"`
	Limit  int    `form:"limit"`
}
