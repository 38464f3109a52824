package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaopang/profilebot/internal/core"
	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/model"
	"github.com/xiaopang/profilebot/internal/store"
)

type sent struct {
	ChatID int64
	Text   string
	Opts   core.ReplyOptions
}

// fakeTransport records every outbound message across chats.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []sent
	deleted  int
	typing   int
	answered []string
	panicCB  bool
}

func (f *fakeTransport) Replier(chatID int64) core.Replier {
	return &chatReplier{t: f, chatID: chatID}
}

func (f *fakeTransport) AnswerCallback(_ context.Context, id, _ string) error {
	if f.panicCB {
		panic("callback exploded")
	}
	f.mu.Lock()
	f.answered = append(f.answered, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

func (f *fakeTransport) Last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sent{}
	}
	return f.sent[len(f.sent)-1]
}

type chatReplier struct {
	t      *fakeTransport
	chatID int64
}

func (r *chatReplier) Reply(_ context.Context, text string, opts core.ReplyOptions) (int, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	r.t.sent = append(r.t.sent, sent{ChatID: r.chatID, Text: text, Opts: opts})
	return len(r.t.sent), nil
}

func (r *chatReplier) SendTyping(context.Context) error {
	r.t.mu.Lock()
	r.t.typing++
	r.t.mu.Unlock()
	return nil
}

func (r *chatReplier) DeleteMessage(context.Context, int) error {
	r.t.mu.Lock()
	r.t.deleted++
	r.t.mu.Unlock()
	return nil
}

type stubCompleter struct {
	mu    sync.Mutex
	calls int
	reply func(req core.CompletionRequest) (string, error)
}

func (s *stubCompleter) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.reply(req)
}

func (s *stubCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testInfo() *model.PersonalInfo {
	return &model.PersonalInfo{
		Name:    "Heng Bunkheang",
		Contact: model.Contact{Email: "kheang@example.com", Phone: "+855 12 345 678", Location: "Phnom Penh", Profiles: []string{"github.com/kheang"}},
		Skills:  []string{"JavaScript", "ReactJS", "Python", "Docker", "Postgres", "Cooking"},
		Projects: []model.Project{
			{Name: "Profile Bot", Status: "Live", Description: "Telegram bot", Link: "https://example.com/bot"},
			{Name: "Notes <beta>", Description: "Note app"},
		},
		Education:          []model.Education{{Degree: "BSc Computer Science", Institution: "RUPP"}},
		AwardsCompetitions: []string{"Hackathon winner"},
	}
}

type testEnv struct {
	bot       *Bot
	transport *fakeTransport
	provider  *stubCompleter
	activity  *core.ActivityLog
	analytics *core.Analytics
}

func newTestEnv(t *testing.T, perMinute int, opts Options, reply func(core.CompletionRequest) (string, error)) *testEnv {
	t.Helper()
	if reply == nil {
		reply = func(req core.CompletionRequest) (string, error) { return "He knows <b>Go</b>.", nil }
	}
	st, err := store.New(store.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		transport: &fakeTransport{},
		provider:  &stubCompleter{reply: reply},
		activity:  core.NewActivityLog(st, 0, logger.New(io.Discard)),
		analytics: core.NewAnalytics(),
	}
	if opts.BotName == "" {
		opts.BotName = "Kheang Bot"
	}
	b, err := New(Deps{
		Info:      testInfo(),
		Limiter:   core.NewRateLimiter(perMinute, 100),
		Cache:     core.NewResponseCache(5*time.Minute, 100),
		AI:        core.NewAIService(env.provider, core.AIOptions{Model: "m", MaxTokens: 800, Temperature: 0.7, Timeout: 50 * time.Millisecond, BotName: opts.BotName}),
		Delivery:  core.NewDelivery(core.DeliveryOptions{MaxThinking: time.Millisecond, MaxTyping: time.Millisecond, Placeholder: ThinkingText(opts.BotName)}),
		Activity:  env.activity,
		Analytics: env.analytics,
		Metrics:   core.NewMetrics(nil),
		Replier:   env.transport.Replier,
		Callbacks: env.transport,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	env.bot = b
	return env
}

func textUpdate(userID int64, text string) model.Update {
	return model.Update{UserID: userID, ChatID: userID, Text: text}
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}

func TestHandle_Start(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)

	env.bot.Handle(context.Background(), model.Update{UserID: 1, ChatID: 1, Text: "/start", Command: "start"})

	last := env.transport.Last()
	assert.Contains(t, last.Text, "Welcome to Kheang Bot")
	assert.Contains(t, last.Text, "Heng Bunkheang")
	assert.Contains(t, last.Text, "10/min, 100/hour")
	assert.Len(t, last.Opts.Keyboard, 4)
	assert.Len(t, env.activity.ByAction(model.ActionStartCommand, 0), 1)
	assert.Zero(t, env.provider.Calls())
}

func TestHandle_Help(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)

	env.bot.Handle(context.Background(), model.Update{UserID: 1, ChatID: 1, Text: "/help", Command: "help"})

	last := env.transport.Last()
	assert.Contains(t, last.Text, "10 requests/minute, 100/hour")
	assert.Contains(t, last.Text, "kheang@example.com")
}

func TestHandle_QuestionAndCacheHit(t *testing.T) {
	env := newTestEnv(t, 10, Options{Animated: true}, nil)
	ctx := context.Background()

	env.bot.Handle(ctx, textUpdate(42, "What are his skills?"))
	require.Equal(t, 1, env.provider.Calls())
	assert.Equal(t, []string{ThinkingText("Kheang Bot"), "He knows <b>Go</b>."}, env.transport.Texts())
	assert.True(t, env.transport.Last().Opts.HTML)
	assert.Equal(t, 1, env.transport.deleted)

	env.bot.Handle(ctx, textUpdate(43, "What are his skills?"))
	assert.Equal(t, 1, env.provider.Calls(), "second identical question is served from cache")
	assert.Equal(t, "He knows <b>Go</b>.", env.transport.Last().Text)

	assert.Len(t, env.activity.ByAction(model.ActionCacheHit, 0), 1)
	assert.Len(t, env.activity.ByAction(model.ActionResponseSent, 0), 1)
	stats := env.analytics.Stats()
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 2, stats.PopularQuestions[model.CategorySkills])
}

func TestHandle_PlainDeliveryShowsTyping(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)

	env.bot.Handle(context.Background(), textUpdate(42, "What are his skills?"))
	assert.Equal(t, []string{"He knows <b>Go</b>."}, env.transport.Texts())
	assert.Equal(t, 1, env.transport.typing)
	assert.Zero(t, env.transport.deleted)
}

func TestHandle_DropsUnknownSender(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)

	env.bot.Handle(context.Background(), model.Update{ChatID: 5, Text: "What are his skills?"})
	assert.Empty(t, env.transport.Texts())
	assert.Zero(t, env.provider.Calls())
	require.Len(t, env.activity.ByAction(model.ActionValidationError, 0), 1)
	assert.Equal(t, "invalid user id", env.activity.ByAction(model.ActionValidationError, 0)[0].Details)
}

func TestHandle_RateLimited(t *testing.T) {
	env := newTestEnv(t, 2, Options{}, nil)
	ctx := context.Background()

	env.bot.Handle(ctx, textUpdate(42, "question one"))
	env.bot.Handle(ctx, textUpdate(42, "question two"))
	env.bot.Handle(ctx, textUpdate(42, "question three"))

	assert.Equal(t, 2, env.provider.Calls())
	assert.Equal(t, RateLimitText(2, 100), env.transport.Last().Text)
	assert.Len(t, env.activity.ByAction(model.ActionRateLimited, 0), 1)

	// another user is unaffected
	env.bot.Handle(ctx, textUpdate(7, "question four"))
	assert.Equal(t, 3, env.provider.Calls())
}

func TestHandle_InvalidInput(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)
	ctx := context.Background()

	env.bot.Handle(ctx, textUpdate(42, "<script>alert(1)</script>"))
	assert.Equal(t, "⚠️ Message contains invalid content", env.transport.Last().Text)

	env.bot.Handle(ctx, textUpdate(42, strings.Repeat("a", 1001)))
	assert.Equal(t, "⚠️ Message too long (max 1000 characters)", env.transport.Last().Text)

	assert.Zero(t, env.provider.Calls())
	assert.Equal(t, 10, env.bot.deps.Limiter.Remaining("42").Minute, "invalid input does not consume quota")
}

func TestHandle_SanitizesBeforeAsking(t *testing.T) {
	var prompt string
	env := newTestEnv(t, 10, Options{}, func(req core.CompletionRequest) (string, error) {
		prompt = req.Prompt
		return "ok", nil
	})

	env.bot.Handle(context.Background(), textUpdate(42, "  <b>Where</b> did he study?  "))
	assert.Contains(t, prompt, "User Question: Where did he study?")
}

func TestHandle_ProviderErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply func(core.CompletionRequest) (string, error)
		want  string
	}{
		{"timeout", func(core.CompletionRequest) (string, error) {
			time.Sleep(200 * time.Millisecond)
			return "late", nil
		}, core.MsgTimeout},
		{"quota", func(core.CompletionRequest) (string, error) {
			return "", errors.New("You exceeded your current quota")
		}, core.MsgQuotaError},
		{"other", func(core.CompletionRequest) (string, error) {
			return "", errors.New("upstream 500: secret internal detail")
		}, core.MsgNoResponse},
		{"panic", func(core.CompletionRequest) (string, error) {
			panic("provider bug")
		}, core.MsgNoResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 10, Options{}, tt.reply)
			env.bot.Handle(context.Background(), textUpdate(42, "hello"))

			assert.Equal(t, tt.want, env.transport.Last().Text)
			assert.Len(t, env.activity.ByAction(model.ActionError, 0), 1)
			assert.Zero(t, env.bot.deps.Cache.Len(), "failures are not cached")
		})
	}
}

func TestHandle_Callback(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)

	env.bot.Handle(context.Background(), model.Update{UserID: 1, ChatID: 1, CallbackID: "cb-1", CallbackData: "projects"})

	assert.Equal(t, []string{"cb-1"}, env.transport.answered)
	last := env.transport.Last()
	assert.True(t, last.Opts.HTML)
	assert.Contains(t, last.Text, "<b>Profile Bot</b> [Live]")
	assert.Zero(t, env.provider.Calls())
}

func TestHandle_RecoversPanic(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)
	env.transport.panicCB = true

	assert.NotPanics(t, func() {
		env.bot.Handle(context.Background(), model.Update{UserID: 1, ChatID: 1, CallbackID: "cb", CallbackData: "skills"})
	})
	assert.Equal(t, core.MsgUnexpectedError, env.transport.Last().Text)
}

func TestHandle_Queued(t *testing.T) {
	env := newTestEnv(t, 10, Options{QueueEnabled: true, MaxConcurrent: 2, StaleAfter: time.Minute}, nil)

	for i := int64(1); i <= 4; i++ {
		env.bot.Handle(context.Background(), textUpdate(i, "question "+string(rune('a'+i))))
	}

	assert.Eventually(t, func() bool { return len(env.transport.Texts()) == 4 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, env.provider.Calls())
}

func TestHandle_QueuedWithDefaultPriority(t *testing.T) {
	release := make(chan struct{})
	env := newTestEnv(t, 10, Options{QueueEnabled: true, MaxConcurrent: 1, StaleAfter: time.Minute}, func(core.CompletionRequest) (string, error) {
		<-release
		return "ok", nil
	})
	defer close(release)

	env.bot.Handle(context.Background(), textUpdate(1, "first question"))
	env.bot.Handle(context.Background(), textUpdate(2, "second question"))

	pending := env.bot.queue.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "second question", pending[0].Message)
	assert.Equal(t, core.DefaultPriority, pending[0].Priority)
	assert.Equal(t, 1, pending[0].Priority)
}

func TestStatsAndCleaners(t *testing.T) {
	env := newTestEnv(t, 10, Options{}, nil)
	env.bot.Handle(context.Background(), textUpdate(42, "What projects has he built?"))

	s := env.bot.Stats()
	assert.Equal(t, 1, s.CacheSize)
	assert.Equal(t, 1, s.Sessions)
	assert.Equal(t, 1, s.Analytics.TotalMessages)
	require.NotEmpty(t, s.Popular)
	assert.Equal(t, model.CategoryProjects, s.Popular[0].Category)

	names := make([]string, 0)
	for _, c := range env.bot.Cleaners() {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"rate_limiter", "cache", "sessions", "activity", "analytics"}, names)

	logs := env.bot.Logs(model.LogQuery{UserID: "42"})
	assert.NotEmpty(t, logs)
}
