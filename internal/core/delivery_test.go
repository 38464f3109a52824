package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ID   int
	Text string
	Opts ReplyOptions
}

// fakeReplier records everything sent to one chat.
type fakeReplier struct {
	mu        sync.Mutex
	sent      []sentMessage
	deleted   []int
	typing    int
	nextID    int
	replyErr  error
	deleteErr error
}

func (f *fakeReplier) Reply(_ context.Context, text string, opts ReplyOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return 0, f.replyErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ID: f.nextID, Text: text, Opts: opts})
	return f.nextID, nil
}

func (f *fakeReplier) SendTyping(context.Context) error {
	f.mu.Lock()
	f.typing++
	f.mu.Unlock()
	return nil
}

func (f *fakeReplier) DeleteMessage(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReplier) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

// newTestDelivery returns a Delivery whose sleeps are recorded, not taken.
func newTestDelivery() (*Delivery, *[]time.Duration) {
	d := NewDelivery(DeliveryOptions{
		MaxResponseLength: 4096,
		ChunkSize:         4000,
		ChunkDelay:        100 * time.Millisecond,
		MaxThinking:       2 * time.Second,
	})
	var slept []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) error {
		slept = append(slept, dur)
		return nil
	}
	return d, &slept
}

func TestDeliver_SingleMessage(t *testing.T) {
	d, slept := newTestDelivery()
	r := &fakeReplier{}

	text := strings.Repeat("x", 4096)
	require.NoError(t, d.Deliver(context.Background(), r, text))

	require.Len(t, r.sent, 1)
	assert.Equal(t, text, r.sent[0].Text)
	assert.True(t, r.sent[0].Opts.HTML)
	assert.Empty(t, *slept)
}

func TestDeliver_Chunks(t *testing.T) {
	d, slept := newTestDelivery()
	r := &fakeReplier{}

	text := strings.Repeat("x", 9000)
	require.NoError(t, d.Deliver(context.Background(), r, text))

	texts := r.Texts()
	require.Len(t, texts, 3)
	assert.Equal(t, text, strings.Join(texts, ""))
	for _, chunk := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 4000)
	}
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, *slept)
}

func TestDeliver_ChunkCountIgnoresNewlines(t *testing.T) {
	d, _ := newTestDelivery()
	r := &fakeReplier{}

	paragraph := strings.Repeat("p", 2099) + "\n"
	text := strings.Repeat(paragraph, 4) + strings.Repeat("t", 600)
	require.Equal(t, 9000, utf8.RuneCountInString(text))
	require.NoError(t, d.Deliver(context.Background(), r, text))

	texts := r.Texts()
	require.Len(t, texts, 3)
	assert.Equal(t, 4000, utf8.RuneCountInString(texts[0]))
	assert.Equal(t, 4000, utf8.RuneCountInString(texts[1]))
	assert.Equal(t, text, strings.Join(texts, ""))
}

func TestDeliver_SplitOnNewline(t *testing.T) {
	d, _ := newTestDelivery()
	d.opts.SplitOnNewline = true
	r := &fakeReplier{}

	paragraph := strings.Repeat("p", 2099) + "\n"
	text := strings.Repeat(paragraph, 4) + strings.Repeat("t", 600)
	require.NoError(t, d.Deliver(context.Background(), r, text))

	texts := r.Texts()
	require.Len(t, texts, 4)
	for _, chunk := range texts[:3] {
		assert.True(t, strings.HasSuffix(chunk, "\n"))
	}
	assert.Equal(t, text, strings.Join(texts, ""))
}

func TestDeliver_StopsOnSendError(t *testing.T) {
	d, _ := newTestDelivery()
	r := &fakeReplier{replyErr: errors.New("chat not found")}

	err := d.Deliver(context.Background(), r, strings.Repeat("x", 9000))
	assert.Error(t, err)
}

func TestDeliverWithLoading(t *testing.T) {
	d, slept := newTestDelivery()
	r := &fakeReplier{}

	require.NoError(t, d.DeliverWithLoading(context.Background(), r, "short answer"))

	require.Len(t, r.sent, 2)
	assert.Equal(t, ThinkingPlaceholder, r.sent[0].Text)
	assert.Equal(t, "short answer", r.sent[1].Text)
	assert.Equal(t, []int{r.sent[0].ID}, r.deleted)
	assert.Equal(t, 1, r.typing)
	assert.Equal(t, []time.Duration{12 * 15 * time.Millisecond}, *slept)
}

func TestDeliverWithLoading_ThinkingCapped(t *testing.T) {
	d, slept := newTestDelivery()
	r := &fakeReplier{}

	require.NoError(t, d.DeliverWithLoading(context.Background(), r, strings.Repeat("y", 1000)))
	assert.Equal(t, 2*time.Second, (*slept)[0])
}

func TestDeliverWithLoading_DeleteFailureIgnored(t *testing.T) {
	d, _ := newTestDelivery()
	m := NewMetrics(nil)
	d.SetMetrics(m)
	r := &fakeReplier{deleteErr: errors.New("message to delete not found")}

	require.NoError(t, d.DeliverWithLoading(context.Background(), r, "answer"))
	assert.Equal(t, []string{ThinkingPlaceholder, "answer"}, r.Texts())
}

func TestDeliverWithTyping(t *testing.T) {
	d, slept := newTestDelivery()
	r := &fakeReplier{}

	require.NoError(t, d.DeliverWithTyping(context.Background(), r, strings.Repeat("z", 500)))
	assert.Equal(t, []string{strings.Repeat("z", 500)}, r.Texts())
	assert.Equal(t, 1500*time.Millisecond, (*slept)[0])
}

func TestSplitChunks(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"abc"}, SplitChunks("abc", 10))
	})

	t.Run("hard cut without newlines", func(t *testing.T) {
		chunks := SplitChunks(strings.Repeat("a", 25), 10)
		assert.Equal(t, []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)}, chunks)
	})

	t.Run("newlines do not move the cut", func(t *testing.T) {
		text := "aaaaaaa\nbbbbbbbbbb"
		assert.Equal(t, []string{"aaaaaaa\nbb", "bbbbbbbb"}, SplitChunks(text, 10))
	})

	t.Run("counts code points", func(t *testing.T) {
		chunks := SplitChunks(strings.Repeat("é", 15), 10)
		require.Len(t, chunks, 2)
		assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
	})
}

func TestSplitChunksAtNewline(t *testing.T) {
	t.Run("prefers newline in second half", func(t *testing.T) {
		text := "aaaaaaa\nbbbbbbbbbb"
		chunks := SplitChunksAtNewline(text, 10)
		assert.Equal(t, "aaaaaaa\n", chunks[0])
		assert.Equal(t, text, strings.Join(chunks, ""))
	})

	t.Run("ignores newline in first half", func(t *testing.T) {
		chunks := SplitChunksAtNewline("a\nbbbbbbbbbbbb", 10)
		assert.Equal(t, "a\nbbbbbbbb", chunks[0])
	})
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", Preview("  hello ", 10))
	assert.Equal(t, "hel…", Preview("hello", 3))
}
