package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xiaopang/profilebot/internal/core"
	"github.com/xiaopang/profilebot/internal/logger"
)

// Config 模型服务配置
type Config struct {
	APIKey  string
	BaseURL string // OpenAI 兼容端点，例如 Gemini 的 /v1beta/openai/
	Model   string
	Timeout time.Duration
}

// Client OpenAI 兼容的补全客户端，实现 core.Completer
type Client struct {
	config Config
	client *openai.Client
}

// NewClient 创建补全客户端
func NewClient(config Config) *Client {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// the service layer enforces the user-facing deadline; this is only a backstop
	clientConfig.HTTPClient = &http.Client{Timeout: timeout + 5*time.Second}

	logger.Info("llm client initialized", "model", config.Model, "base_url", clientConfig.BaseURL)
	return &Client{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Complete sends the prompt as a single user message and returns the first
// choice's text.
func (c *Client) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// classify marks throttling responses as quota errors so they reach the user
// as the "high demand" message.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", core.ErrQuotaExceeded, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", core.ErrQuotaExceeded, reqErr.Err)
	}
	return err
}
