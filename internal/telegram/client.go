package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/xiaopang/profilebot/internal/core"
	"github.com/xiaopang/profilebot/internal/logger"
	"github.com/xiaopang/profilebot/internal/model"
)

const (
	perChatRate  = rate.Limit(1)
	perChatBurst = 20
	chatIdleTTL  = 30 * time.Minute
)

// API is the subset of *tgbotapi.BotAPI the client uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type chatLimiter struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Client Telegram Bot API 客户端，带全局与按会话的发送限速
type Client struct {
	api      API
	username string
	global   *rate.Limiter

	mu    sync.Mutex
	chats map[int64]*chatLimiter
	now   func() time.Time
}

// NewClient 使用 token 连接 Telegram
func NewClient(token string, sendsPerSec int) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)
	return NewClientWithAPI(api, api.Self.UserName, sendsPerSec), nil
}

// NewClientWithAPI wraps an existing API implementation.
func NewClientWithAPI(api API, username string, sendsPerSec int) *Client {
	if sendsPerSec <= 0 {
		sendsPerSec = 30
	}
	return &Client{
		api:      api,
		username: username,
		global:   rate.NewLimiter(rate.Limit(sendsPerSec), sendsPerSec),
		chats:    make(map[int64]*chatLimiter),
		now:      time.Now,
	}
}

// Username returns the bot's username, empty when unknown.
func (c *Client) Username() string {
	return c.username
}

func (c *Client) wait(ctx context.Context, chatID int64) error {
	if err := c.global.Wait(ctx); err != nil {
		return fmt.Errorf("%w: global rate limiter: %w", core.ErrTransportDelivery, err)
	}
	if err := c.chatLimiter(chatID).Wait(ctx); err != nil {
		return fmt.Errorf("%w: chat rate limiter: %w", core.ErrTransportDelivery, err)
	}
	return nil
}

func (c *Client) chatLimiter(chatID int64) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.chats[chatID]
	if !ok {
		cl = &chatLimiter{limiter: rate.NewLimiter(perChatRate, perChatBurst)}
		c.chats[chatID] = cl
	}
	cl.lastUsed = c.now()
	return cl.limiter
}

// CleanupLimiters forgets per-chat limiters idle for 30 minutes.
func (c *Client) CleanupLimiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-chatIdleTTL)
	removed := 0
	for id, cl := range c.chats {
		if cl.lastUsed.Before(cutoff) {
			delete(c.chats, id)
			removed++
		}
	}
	return removed
}

// Send posts a text message and returns its id.
func (c *Client) Send(ctx context.Context, chatID int64, text string, opts core.ReplyOptions) (int, error) {
	if err := c.wait(ctx, chatID); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if opts.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if len(opts.Keyboard) > 0 {
		msg.ReplyMarkup = InlineKeyboard(opts.Keyboard)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrTransportDelivery, err)
	}
	return sent.MessageID, nil
}

// SendTyping shows the typing indicator in chatID.
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	if err := c.wait(ctx, chatID); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransportDelivery, err)
	}
	return nil
}

// Delete removes a message previously sent by the bot.
func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := c.wait(ctx, chatID); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransportDelivery, err)
	}
	return nil
}

// AnswerCallback acknowledges an inline keyboard press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := c.global.Wait(ctx); err != nil {
		return fmt.Errorf("%w: global rate limiter: %w", core.ErrTransportDelivery, err)
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransportDelivery, err)
	}
	return nil
}

// SetWebhook registers url with Telegram. A non-empty secret is echoed back
// by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	resp, err := c.api.MakeRequest("setWebhook", params)
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("setWebhook rejected: %s", resp.Description)
	}
	return nil
}

// DeleteWebhook switches the bot back to long polling.
func (c *Client) DeleteWebhook() error {
	_, err := c.api.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}

// Poll long-polls for updates and hands each one to handle until ctx ends.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, model.Update)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := c.api.GetUpdatesChan(u)
	defer c.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			upd, ok := ToUpdate(raw)
			if !ok {
				logger.Debug("ignoring update", "update_id", raw.UpdateID)
				continue
			}
			handle(ctx, upd)
		}
	}
}

// ToUpdate reduces a Telegram update to the fields the bot handles. Updates
// without a sender (channel posts, service messages) are rejected.
func ToUpdate(u tgbotapi.Update) (model.Update, bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.From == nil {
			return model.Update{}, false
		}
		out := model.Update{
			UpdateID:     u.UpdateID,
			UserID:       cq.From.ID,
			ChatID:       cq.From.ID,
			Username:     cq.From.UserName,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			out.ChatID = cq.Message.Chat.ID
		}
		return out, true
	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil {
			return model.Update{}, false
		}
		out := model.Update{
			UpdateID: u.UpdateID,
			UserID:   m.From.ID,
			ChatID:   m.Chat.ID,
			Username: m.From.UserName,
			Text:     m.Text,
		}
		if m.IsCommand() {
			out.Command = m.Command()
		}
		return out, true
	}
	return model.Update{}, false
}

// InlineKeyboard converts a keyboard layout to Telegram markup.
func InlineKeyboard(kb model.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ChatReplier binds the client to one chat.
type ChatReplier struct {
	client *Client
	chatID int64
}

// Replier returns a core.Replier answering chatID.
func (c *Client) Replier(chatID int64) *ChatReplier {
	return &ChatReplier{client: c, chatID: chatID}
}

func (r *ChatReplier) Reply(ctx context.Context, text string, opts core.ReplyOptions) (int, error) {
	return r.client.Send(ctx, r.chatID, text, opts)
}

func (r *ChatReplier) SendTyping(ctx context.Context) error {
	return r.client.SendTyping(ctx, r.chatID)
}

func (r *ChatReplier) DeleteMessage(ctx context.Context, messageID int) error {
	return r.client.Delete(ctx, r.chatID, messageID)
}
