package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// TokenSink receives streamed completion tokens as they arrive.
type TokenSink func(token string)

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// Stream switches to the streaming endpoint; Sink then sees every token.
	Stream bool
	Sink   TokenSink
}

// Client is a core.Completer backed by the OpenAI chat completions API.
type Client struct {
	api    *openai.Client
	opts   Options
	logger *zap.Logger
}

// NewClient builds a Client. An empty API key is an error because every
// request would be rejected.
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key not set (llm.api_key or OPENAI_API_KEY)")
	}
	if opts.Model == "" {
		return nil, errors.New("openai model not set")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: openai.NewClientWithConfig(cfg), opts: opts, logger: logger.Named("openai")}, nil
}

var _ core.Completer = (*Client)(nil)

// Complete sends messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []core.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    toChatMessages(messages),
		Temperature: requestTemperature(c.opts.Temperature),
		MaxTokens:   c.opts.MaxTokens,
	}
	started := time.Now()
	if c.opts.Stream {
		out, err := c.stream(ctx, req)
		if err != nil {
			return "", err
		}
		c.logger.Debug("streamed completion", zap.Duration("took", time.Since(started)), zap.Int("chars", len(out)))
		return out, nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	c.logger.Debug("completion",
		zap.Duration("took", time.Since(started)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) stream(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Stream = true
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion stream: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("chat completion stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		b.WriteString(token)
		if c.opts.Sink != nil {
			c.opts.Sink(token)
		}
	}
}

// requestTemperature keeps an explicit zero on the wire; go-openai drops
// zero-valued temperatures and the API would fall back to its default of 1.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func toChatMessages(messages []core.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == core.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
