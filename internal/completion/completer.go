package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/aithernet/airelay/config"
	"github.com/aithernet/airelay/internal/domain"
)

// Client calls an OpenAI-compatible chat completions endpoint (OpenAI or
// Groq, selected by base URL). The call is bounded by the configured timeout;
// an empty reply counts as a failure.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(cfg config.CompletionConfig) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout(),
	}
}

func (c *Client) Complete(ctx context.Context, systemPrompt string, turns []domain.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &domain.UpstreamError{Timeout: true, Err: err}
		}
		return "", &domain.UpstreamError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &domain.UpstreamError{Err: fmt.Errorf("completion returned no choices")}
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", &domain.UpstreamError{Err: fmt.Errorf("completion returned empty reply")}
	}
	return reply, nil
}
