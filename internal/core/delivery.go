package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xiaopang/profilebot/internal/logger"
)

// ThinkingPlaceholder is shown while a reply is being prepared.
const ThinkingPlaceholder = "🤔 <b>Thinking...</b>"

// DeliveryOptions 投递参数
type DeliveryOptions struct {
	MaxResponseLength int           // single-message limit, in code points
	ChunkSize         int           // chunk length when over the limit
	ChunkDelay        time.Duration // pause between chunk sends
	MaxThinking       time.Duration // cap of the loading animation
	MaxTyping         time.Duration // cap of the typing-only pause
	Placeholder       string
	// SplitOnNewline moves each cut back to a newline in the second half of
	// the window. Off by default: chunks are fixed positional slices.
	SplitOnNewline bool
}

// Delivery 分块发送回复并驱动加载动画
type Delivery struct {
	opts    DeliveryOptions
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *Metrics
}

// NewDelivery 创建投递器
func NewDelivery(opts DeliveryOptions) *Delivery {
	if opts.MaxResponseLength <= 0 {
		opts.MaxResponseLength = 4096
	}
	if opts.ChunkSize <= 0 || opts.ChunkSize > opts.MaxResponseLength {
		opts.ChunkSize = opts.MaxResponseLength
	}
	if opts.MaxTyping <= 0 {
		opts.MaxTyping = 1500 * time.Millisecond
	}
	if opts.Placeholder == "" {
		opts.Placeholder = ThinkingPlaceholder
	}
	return &Delivery{opts: opts, sleep: sleepContext}
}

// SetMetrics attaches instrumentation; nil disables it.
func (d *Delivery) SetMetrics(m *Metrics) {
	d.metrics = m
}

// Deliver sends text as one HTML message, or as sequential chunks when it is
// longer than the single-message limit.
func (d *Delivery) Deliver(ctx context.Context, r Replier, text string) error {
	if utf8.RuneCountInString(text) <= d.opts.MaxResponseLength {
		_, err := r.Reply(ctx, text, ReplyOptions{HTML: true})
		return err
	}

	chunks := SplitChunks(text, d.opts.ChunkSize)
	if d.opts.SplitOnNewline {
		chunks = SplitChunksAtNewline(text, d.opts.ChunkSize)
	}
	for i, chunk := range chunks {
		if _, err := r.Reply(ctx, chunk, ReplyOptions{HTML: true}); err != nil {
			return err
		}
		if i < len(chunks)-1 {
			if err := d.sleep(ctx, d.opts.ChunkDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeliverWithLoading shows a placeholder and a typing indicator for a time
// proportional to the reply length, removes the placeholder, then delivers.
func (d *Delivery) DeliverWithLoading(ctx context.Context, r Replier, text string) error {
	placeholderID, err := r.Reply(ctx, d.opts.Placeholder, ReplyOptions{HTML: true})
	if err != nil {
		d.transportFailed("send placeholder", err)
		placeholderID = 0
	}
	if err := r.SendTyping(ctx); err != nil {
		d.transportFailed("send typing", err)
	}

	if err := d.sleep(ctx, thinkingTime(text, 15*time.Millisecond, d.opts.MaxThinking)); err != nil {
		return err
	}

	if placeholderID != 0 {
		if err := r.DeleteMessage(ctx, placeholderID); err != nil {
			d.transportFailed("delete placeholder", err)
		}
	}
	return d.Deliver(ctx, r, text)
}

// DeliverWithTyping is the lighter variant used when the loading animation is
// off: typing indicator only.
func (d *Delivery) DeliverWithTyping(ctx context.Context, r Replier, text string) error {
	if err := r.SendTyping(ctx); err != nil {
		d.transportFailed("send typing", err)
	}
	if err := d.sleep(ctx, thinkingTime(text, 10*time.Millisecond, d.opts.MaxTyping)); err != nil {
		return err
	}
	return d.Deliver(ctx, r, text)
}

func (d *Delivery) transportFailed(op string, err error) {
	logger.Warn("transport operation failed", "op", op, "error", err)
	if d.metrics != nil {
		d.metrics.DeliveryErrors.Inc()
	}
}

func thinkingTime(text string, perRune, limit time.Duration) time.Duration {
	t := time.Duration(utf8.RuneCountInString(text)) * perRune
	if t > limit {
		return limit
	}
	return t
}

// SplitChunks cuts text into consecutive slices of size code points; only
// the last one may be shorter.
func SplitChunks(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for len(runes) > size {
		chunks = append(chunks, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// SplitChunksAtNewline is like SplitChunks, but a cut falls on the last
// newline in the second half of the window when there is one. It can yield
// more chunks than SplitChunks.
func SplitChunksAtNewline(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > size {
		cut := size
		for i := size - 1; i >= size/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Preview shortens s to at most n code points for log details.
func Preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
