package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiaopang/profilebot/internal/bot"
	"github.com/xiaopang/profilebot/internal/config"
	"github.com/xiaopang/profilebot/internal/model"
)

// Version is reported by the health endpoint.
const Version = "2.0.0"

// StatsSource exposes the bot's runtime state.
type StatsSource interface {
	Stats() bot.Stats
	Logs(q model.LogQuery) []model.LogEntry
}

// AdminHandler 管理与健康检查 API
type AdminHandler struct {
	source  StatsSource
	cfg     *config.Config
	started time.Time
	now     func() time.Time
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(source StatsSource, cfg *config.Config) *AdminHandler {
	return &AdminHandler{source: source, cfg: cfg, started: time.Now(), now: time.Now}
}

// Health always answers 200 while the process is up.
func (h *AdminHandler) Health(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := h.now()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(h.started).Seconds(),
		"memory": gin.H{
			"alloc":      mem.Alloc,
			"heap_inuse": mem.HeapInuse,
			"sys":        mem.Sys,
			"num_gc":     mem.NumGC,
			"goroutines": runtime.NumGoroutine(),
		},
		"version":     Version,
		"environment": h.cfg.Server.Environment,
		"services": gin.H{
			"gemini":   h.cfg.AI.APIKey != "",
			"telegram": h.cfg.Telegram.BotToken != "",
			"webhook":  h.cfg.Telegram.WebhookURL != "",
		},
	})
}

// Stats 获取运行统计
func (h *AdminHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.source.Stats()})
}

// Logs 获取活动日志
func (h *AdminHandler) Logs(c *gin.Context) {
	var query model.LogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid query", Details: err.Error()})
		return
	}
	if query.Limit > 1000 {
		query.Limit = 1000
	}
	c.JSON(http.StatusOK, gin.H{"data": h.source.Logs(query)})
}
