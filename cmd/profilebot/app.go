package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xiaopang/profilebot/internal/bot"
	"github.com/xiaopang/profilebot/internal/config"
	"github.com/xiaopang/profilebot/internal/core"
	"github.com/xiaopang/profilebot/internal/llm"
	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/store"
	"github.com/xiaopang/profilebot/internal/telegram"
)

// app 组装好的运行时组件
type app struct {
	cfg      *config.Config
	client   *telegram.Client
	bot      *bot.Bot
	janitor  *core.Janitor
	store    *store.Store
	registry *prometheus.Registry
}

func newApp(cfg *config.Config) (*app, error) {
	info, err := bot.LoadPersonalInfo(cfg.PersonalInfo.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("personal info loaded", "name", info.Name, "path", cfg.PersonalInfo.Path)

	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.SendsPerSec)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("telegram connected", "username", client.Username())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := core.NewMetrics(registry)

	completer := llm.NewClient(llm.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout(),
	})
	ai := core.NewAIService(completer, core.AIOptions{
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout(),
		BotName:     cfg.AI.BotName,
	})
	ai.SetMetrics(metrics)

	delivery := core.NewDelivery(core.DeliveryOptions{
		MaxResponseLength: cfg.Delivery.MaxResponseLength,
		ChunkSize:         cfg.Delivery.ChunkSize,
		ChunkDelay:        cfg.Delivery.ChunkDelay(),
		MaxThinking:       cfg.Delivery.MaxThinking(),
		Placeholder:       bot.ThinkingText(cfg.AI.BotName),
		SplitOnNewline:    cfg.Delivery.SplitOnNewline,
	})
	delivery.SetMetrics(metrics)

	st, err := store.New(cfg.Logging.ActivityDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity store: %w", err)
	}

	b, err := bot.New(bot.Deps{
		Info:      info,
		Validator: core.NewValidator(),
		Limiter:   core.NewRateLimiter(cfg.Limits.RequestsPerMinute, cfg.Limits.RequestsPerHour),
		Cache:     core.NewResponseCache(cfg.Cache.TTL(), cfg.Cache.MaxEntries),
		AI:        ai,
		Delivery:  delivery,
		Activity:  core.NewActivityLog(st, 0, logger.Default()),
		Analytics: core.NewAnalytics(),
		Metrics:   metrics,
		Replier:   func(chatID int64) core.Replier { return client.Replier(chatID) },
		Callbacks: client,
	}, bot.Options{
		BotName:       cfg.AI.BotName,
		Animated:      cfg.Delivery.Animated,
		QueueEnabled:  cfg.Queue.Enabled,
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		StaleAfter:    cfg.Queue.StaleAfter(),
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	cleaners := append(b.Cleaners(), core.Cleaner{Name: "chat_limiters", Run: client.CleanupLimiters})
	janitor, err := core.NewJanitor(cfg.Cleanup.Interval(), cleaners...)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, client: client, bot: b, janitor: janitor, store: st, registry: registry}, nil
}

// close 停止定时清理并等待排队中的回答
func (a *app) close() {
	if err := a.janitor.Stop(); err != nil {
		logger.Warn("failed to stop cleanup scheduler", "error", err)
	}
	a.bot.Close()
	if err := a.store.Close(); err != nil {
		logger.Warn("failed to close activity store", "error", err)
	}
}
