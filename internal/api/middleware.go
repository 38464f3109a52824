package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiaopang/profilebot/internal/config"
	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/model"
)

// SecretTokenHeader carries the webhook secret registered with Telegram.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// AuthMiddleware Bearer API Key 认证中间件
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 未设置 API Key 时跳过认证
		if apiKey == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Missing Authorization header"})
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid API key"})
			return
		}
		c.Next()
	}
}

// WebhookSecretMiddleware rejects webhook calls that do not carry the
// secret token. An empty secret disables the check.
func WebhookSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logger.Warn("webhook secret mismatch", "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Unauthorized"})
			return
		}
		c.Next()
	}
}

// RecoveryMiddleware 恢复中间件
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("http handler panicked", "path", c.Request.URL.Path, "panic", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "Internal server error"})
			}
		}()
		c.Next()
	}
}

// LoggerMiddleware 请求日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debug("http request",
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"method", c.Request.Method,
			"path", path)
	}
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, model.ErrorResponse{Error: "Method not allowed"})
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, webhook *WebhookHandler, admin *AdminHandler, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(methodNotAllowed)
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())

	r.POST(cfg.Telegram.WebhookPath, WebhookSecretMiddleware(cfg.Telegram.WebhookSecret), webhook.Webhook)

	api := r.Group("/api")
	{
		api.GET("/health", admin.Health)
		api.POST("/set-webhook", AuthMiddleware(cfg.Server.AdminAPIKey), webhook.SetWebhook)

		protected := api.Group("")
		protected.Use(AuthMiddleware(cfg.Server.AdminAPIKey))
		protected.GET("/stats", admin.Stats)
		protected.GET("/logs", admin.Logs)
	}

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
