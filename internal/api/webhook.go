package api

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xiaopang/profilebot/internal/config"
	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/model"
	"github.com/xiaopang/profilebot/internal/telegram"
)

// UpdateHandler processes one inbound update.
type UpdateHandler func(ctx context.Context, upd model.Update)

// WebhookSetter registers the public webhook URL with Telegram.
type WebhookSetter interface {
	SetWebhook(url, secret string) error
}

// WebhookHandler Telegram webhook 入口
type WebhookHandler struct {
	handle UpdateHandler
	setter WebhookSetter
	cfg    *config.Config
	ctx    context.Context
	wg     sync.WaitGroup
}

// NewWebhookHandler 创建 webhook 处理器。ctx bounds the background handling
// of accepted updates.
func NewWebhookHandler(ctx context.Context, handle UpdateHandler, setter WebhookSetter, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{handle: handle, setter: setter, cfg: cfg, ctx: ctx}
}

// Webhook acknowledges the update immediately and processes it in the
// background so Telegram never retries a slow answer.
func (h *WebhookHandler) Webhook(c *gin.Context) {
	var raw tgbotapi.Update
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid update", Details: err.Error()})
		return
	}

	if upd, ok := telegram.ToUpdate(raw); ok {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.handle(h.ctx, upd)
		}()
	} else {
		logger.Debug("ignoring webhook update", "update_id", raw.UpdateID)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Wait blocks until every accepted update has been handled.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}

// SetWebhook registers this deployment's webhook URL with Telegram.
func (h *WebhookHandler) SetWebhook(c *gin.Context) {
	url := WebhookURL(h.cfg.Telegram.WebhookURL, forwardedHost(c), h.cfg.Telegram.WebhookPath)
	if url == "" {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to set webhook", Details: "no public host known"})
		return
	}

	if err := h.setter.SetWebhook(url, h.cfg.Telegram.WebhookSecret); err != nil {
		logger.Error("set webhook failed", "url", url, "error", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Failed to set webhook", Details: err.Error()})
		return
	}

	logger.Info("webhook registered", "url", url)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Webhook set successfully",
		"webhookUrl": url,
	})
}

func forwardedHost(c *gin.Context) string {
	if h := c.GetHeader("X-Forwarded-Host"); h != "" {
		return h
	}
	return c.Request.Host
}

// WebhookURL builds the public webhook URL. A configured URL wins over the
// request host; a missing scheme becomes https, and a bare host gets path
// appended.
func WebhookURL(configured, host, path string) string {
	base := strings.TrimSpace(configured)
	if base == "" {
		base = strings.TrimSpace(host)
	}
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	base = strings.TrimRight(base, "/")
	rest := base[strings.Index(base, "://")+3:]
	if !strings.Contains(rest, "/") {
		base += path
	}
	return base
}
