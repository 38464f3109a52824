package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/xiaopang/profilebot/internal/core"
	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/model"
)

// CallbackAnswerer acknowledges inline keyboard presses.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// ReplierFunc binds a chat id to its outbound transport.
type ReplierFunc func(chatID int64) core.Replier

// Options 机器人行为参数
type Options struct {
	BotName       string
	Animated      bool // placeholder + typing before each AI reply
	QueueEnabled  bool
	MaxConcurrent int
	StaleAfter    time.Duration
}

// Deps are the collaborators the bot is built from. Metrics and Callbacks
// may be nil.
type Deps struct {
	Info      *model.PersonalInfo
	Validator *core.Validator
	Limiter   *core.RateLimiter
	Cache     *core.ResponseCache
	AI        *core.AIService
	Delivery  *core.Delivery
	Activity  *core.ActivityLog
	Analytics *core.Analytics
	Metrics   *core.Metrics
	Replier   ReplierFunc
	Callbacks CallbackAnswerer
}

// Bot 编排一次对话请求：校验、限流、缓存、AI、投递、记录
type Bot struct {
	deps  Deps
	opts  Options
	queue *core.Queue
	now   func() time.Time
}

// New 创建机器人
func New(deps Deps, opts Options) (*Bot, error) {
	switch {
	case deps.Info == nil:
		return nil, errors.New("bot: personal info is required")
	case deps.Limiter == nil, deps.Cache == nil, deps.AI == nil, deps.Delivery == nil, deps.Activity == nil:
		return nil, errors.New("bot: limiter, cache, ai, delivery and activity log are required")
	case deps.Replier == nil:
		return nil, errors.New("bot: replier is required")
	}
	if deps.Validator == nil {
		deps.Validator = core.NewValidator()
	}
	if deps.Analytics == nil {
		deps.Analytics = core.NewAnalytics()
	}
	if opts.BotName == "" {
		opts.BotName = "Profile Bot"
	}

	b := &Bot{deps: deps, opts: opts, now: time.Now}
	if opts.QueueEnabled {
		b.queue = core.NewQueue(opts.MaxConcurrent, opts.StaleAfter, b.handleQueued)
		b.queue.SetMetrics(deps.Metrics)
	}
	return b, nil
}

// Handle processes one inbound update. It never panics; an unexpected
// failure is reported to the user with a generic message.
func (b *Bot) Handle(ctx context.Context, upd model.Update) {
	userID := strconv.FormatInt(upd.UserID, 10)
	replier := b.deps.Replier(upd.ChatID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("update handler panicked", "user", userID, "panic", r, "stack", string(debug.Stack()))
			b.deps.Activity.Error(userID, model.ActionError, fmt.Sprint(r))
			func() {
				defer func() { _ = recover() }()
				b.reply(ctx, replier, core.MsgUnexpectedError, core.ReplyOptions{})
			}()
		}
	}()

	if upd.UserID == 0 || !b.deps.Validator.ValidateUserID(userID) {
		logger.Warn("dropping update with invalid sender", "user", userID, "update_id", upd.UpdateID)
		b.deps.Activity.Warn(userID, model.ActionValidationError, "invalid user id")
		return
	}

	perMinute, perHour := b.limits()
	switch {
	case upd.IsCallback():
		b.handleCallback(ctx, userID, upd, replier)
	case upd.Command == "start":
		b.reply(ctx, replier, WelcomeText(b.opts.BotName, b.deps.Info, perMinute, perHour), core.ReplyOptions{Keyboard: MainKeyboard()})
		b.deps.Activity.Info(userID, model.ActionStartCommand, "")
		b.track(userID, model.ActionStartCommand, "", 0, true)
	case upd.Command == "help":
		b.reply(ctx, replier, HelpText(b.opts.BotName, b.deps.Info, perMinute, perHour), core.ReplyOptions{})
		b.deps.Activity.Info(userID, model.ActionHelpCommand, "")
		b.track(userID, model.ActionHelpCommand, "", 0, true)
	case upd.Text != "":
		b.handleText(ctx, userID, upd.Text, replier)
	}
}

func (b *Bot) limits() (int, int) {
	return b.deps.Limiter.Limits()
}

func (b *Bot) handleCallback(ctx context.Context, userID string, upd model.Update, replier core.Replier) {
	if b.deps.Callbacks != nil {
		if err := b.deps.Callbacks.AnswerCallback(ctx, upd.CallbackID, ""); err != nil {
			logger.Warn("failed to answer callback", "user", userID, "error", err)
		}
	}
	text := RenderCallback(upd.CallbackData, b.opts.BotName, b.deps.Info)
	b.reply(ctx, replier, text, core.ReplyOptions{HTML: true})
	b.deps.Activity.Info(userID, model.ActionCallback, upd.CallbackData)
	b.track(userID, model.ActionCallback, model.Category(upd.CallbackData), 0, true)
}

// handleText runs the question pipeline up to the AI call; the AI call and
// delivery run inline or on the admission queue.
func (b *Bot) handleText(ctx context.Context, userID, text string, replier core.Replier) {
	start := b.now()
	b.deps.Activity.Info(userID, model.ActionMessageReceived, core.Preview(text, 100))

	if err := b.deps.Validator.Validate(text); err != nil {
		b.reply(ctx, replier, core.UserMessage(err), core.ReplyOptions{})
		b.deps.Activity.Warn(userID, model.ActionValidationError, err.Error())
		b.track(userID, model.ActionValidationError, "", 0, false)
		return
	}

	message := b.deps.Validator.Sanitize(text)
	category := b.deps.Validator.Categorize(message)
	b.track(userID, model.ActionMessageReceived, category, 0, true)
	if b.deps.Metrics != nil {
		b.deps.Metrics.Messages.WithLabelValues(string(category)).Inc()
	}

	if b.deps.Limiter.IsRateLimited(userID) {
		b.reply(ctx, replier, RateLimitText(b.limits()), core.ReplyOptions{})
		b.deps.Activity.Warn(userID, model.ActionRateLimited, "")
		b.track(userID, model.ActionRateLimited, category, 0, false)
		if b.deps.Metrics != nil {
			b.deps.Metrics.RateLimited.Inc()
		}
		return
	}

	if cached, ok := b.deps.Cache.Get(message); ok {
		if b.deps.Metrics != nil {
			b.deps.Metrics.CacheHits.Inc()
		}
		if err := b.deliver(ctx, replier, cached); err != nil {
			b.fail(ctx, userID, replier, err)
			return
		}
		b.deps.Activity.Info(userID, model.ActionCacheHit, "")
		b.track(userID, model.ActionCacheHit, category, b.now().Sub(start), true)
		return
	}
	if b.deps.Metrics != nil {
		b.deps.Metrics.CacheMisses.Inc()
	}

	if b.queue != nil {
		b.queue.Enqueue(userID, message, replier, core.DefaultPriority)
		return
	}
	b.answer(ctx, userID, message, replier, start)
}

func (b *Bot) handleQueued(ctx context.Context, item *core.QueueItem) error {
	b.answer(ctx, item.UserID, item.Message, item.Replier, item.EnqueuedAt)
	return nil
}

// answer asks the AI service, caches the reply and delivers it.
func (b *Bot) answer(ctx context.Context, userID, message string, replier core.Replier, start time.Time) {
	response, err := b.deps.AI.GenerateResponse(ctx, message, userID, b.deps.Info)
	if err != nil {
		b.fail(ctx, userID, replier, err)
		return
	}

	b.deps.Cache.Set(message, response)

	if err := b.deliver(ctx, replier, response); err != nil {
		b.fail(ctx, userID, replier, err)
		return
	}
	b.deps.Activity.Info(userID, model.ActionResponseSent, core.Preview(response, 100))
	b.track(userID, model.ActionResponseSent, "", b.now().Sub(start), true)
}

func (b *Bot) deliver(ctx context.Context, replier core.Replier, text string) error {
	if b.opts.Animated {
		return b.deps.Delivery.DeliverWithLoading(ctx, replier, text)
	}
	return b.deps.Delivery.DeliverWithTyping(ctx, replier, text)
}

// fail reports err to the user with its canned text and records it.
func (b *Bot) fail(ctx context.Context, userID string, replier core.Replier, err error) {
	b.deps.Activity.Error(userID, model.ActionError, err.Error())
	b.track(userID, model.ActionError, "", 0, false)
	if errors.Is(err, core.ErrTransportDelivery) {
		// the chat is unreachable; a second send would fail the same way
		return
	}
	b.reply(ctx, replier, core.UserMessage(err), core.ReplyOptions{})
}

func (b *Bot) reply(ctx context.Context, replier core.Replier, text string, opts core.ReplyOptions) {
	if _, err := replier.Reply(ctx, text, opts); err != nil {
		logger.Warn("failed to send reply", "error", err)
		if b.deps.Metrics != nil {
			b.deps.Metrics.DeliveryErrors.Inc()
		}
	}
}

func (b *Bot) track(userID, action string, category model.Category, rt time.Duration, success bool) {
	b.deps.Analytics.Track(model.AnalyticsEvent{
		UserID:       userID,
		Action:       action,
		Category:     category,
		ResponseTime: rt,
		Success:      success,
	})
}

// Cleaners returns the periodic housekeeping steps of the bot's state.
func (b *Bot) Cleaners() []core.Cleaner {
	return []core.Cleaner{
		{Name: "rate_limiter", Run: b.deps.Limiter.Cleanup},
		{Name: "cache", Run: b.deps.Cache.Cleanup},
		{Name: "sessions", Run: b.deps.AI.CleanupOldSessions},
		{Name: "activity", Run: b.deps.Activity.Cleanup},
		{Name: "analytics", Run: b.deps.Analytics.Cleanup},
	}
}

// Stats 运行状态快照
type Stats struct {
	Logs        model.LogStats           `json:"logs"`
	Analytics   model.AnalyticsStats     `json:"analytics"`
	Performance model.PerformanceMetrics `json:"performance"`
	Popular     []model.CategoryCount    `json:"popular_categories"`
	CacheSize   int                      `json:"cache_size"`
	Sessions    int                      `json:"sessions"`
	TrackedUser int                      `json:"rate_limited_users_tracked"`
	QueueLength int                      `json:"queue_length"`
	QueueActive int                      `json:"queue_active"`
}

// Stats collects a snapshot for the admin endpoint.
func (b *Bot) Stats() Stats {
	s := Stats{
		Logs:        b.deps.Activity.Stats(),
		Analytics:   b.deps.Analytics.Stats(),
		Performance: b.deps.Analytics.Performance(),
		Popular:     b.deps.Analytics.PopularCategories(5),
		CacheSize:   b.deps.Cache.Len(),
		Sessions:    b.deps.AI.SessionCount(),
		TrackedUser: b.deps.Limiter.Users(),
	}
	if b.queue != nil {
		s.QueueLength = b.queue.Len()
		s.QueueActive = b.queue.Active()
	}
	return s
}

// Logs returns activity entries matching q.
func (b *Bot) Logs(q model.LogQuery) []model.LogEntry {
	return b.deps.Activity.Query(q)
}

// Close stops the admission queue and waits for in-flight answers.
func (b *Bot) Close() {
	if b.queue != nil {
		b.queue.Close()
	}
}
