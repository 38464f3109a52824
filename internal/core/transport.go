package core

import (
	"context"

	"github.com/xiaopang/profilebot/internal/model"
)

// ReplyOptions 回复参数
type ReplyOptions struct {
	HTML     bool
	Keyboard model.Keyboard
}

// Replier is the transport context of a single inbound message: everything
// needed to answer the chat it came from.
type Replier interface {
	Reply(ctx context.Context, text string, opts ReplyOptions) (messageID int, err error)
	SendTyping(ctx context.Context) error
	DeleteMessage(ctx context.Context, messageID int) error
}
