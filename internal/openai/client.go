package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/azure"
	"github.com/openai/openai-go/v2/option"
	"github.com/sethvargo/go-retry"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	APITypeAzure  = "azure"
	APITypeOpenAI = "openai"

	DefaultAPIVersion = "2023-03-15-preview"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	APIType    string
	BaseURL    string
	APIKey     string
	APIVersion string
	// Model é o nome do deployment quando APIType == azure
	Model string

	MaxAttempts int
	RetryBase   time.Duration
	Timeout     time.Duration
}

type Client struct {
	api       sdk.Client
	model     string
	attempts  uint64
	retryBase time.Duration
}

var ErrEmptyResponse = errors.New("openai: empty completion")

// ErrCompletion marca falhas que já passaram pela política de retry do cliente
var ErrCompletion = errors.New("chat completion")

// NewClient monta o cliente oficial com middleware Azure ou endpoint OpenAI
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("openai: model/deployment name is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 300 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	switch strings.ToLower(cfg.APIType) {
	case "", APITypeAzure:
		if cfg.BaseURL == "" {
			return nil, errors.New("openai: azure endpoint is required")
		}
		version := cfg.APIVersion
		if version == "" {
			version = DefaultAPIVersion
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.BaseURL, version),
			azure.WithAPIKey(cfg.APIKey),
		)
	case APITypeOpenAI:
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	default:
		return nil, fmt.Errorf("openai: unknown api type %q", cfg.APIType)
	}

	return &Client{
		api:       sdk.NewClient(opts...),
		model:     cfg.Model,
		attempts:  uint64(cfg.MaxAttempts),
		retryBase: cfg.RetryBase,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Complete envia a conversa para o chat completion. Com onToken != nil a
// resposta é transmitida em stream e cada delta é repassado ao callback.
func (c *Client) Complete(ctx context.Context, msgs []Message, onToken func(string)) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: toParams(msgs),
	}

	// Retry para erros de rede, 429 e 5xx
	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewExponential(c.retryBase))

	var (
		out     string
		emitted bool
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		if onToken == nil {
			out, err = c.complete(ctx, params)
		} else {
			out, err = c.stream(ctx, params, func(tok string) {
				emitted = true
				onToken(tok)
			})
		}
		if err == nil {
			return nil
		}
		// tokens já entregues não podem ser repetidos
		if !emitted && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, params sdk.ChatCompletionNewParams) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) stream(ctx context.Context, params sdk.ChatCompletionNewParams, onToken func(string)) (string, error) {
	stream := c.api.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		// Azure manda chunks sem choices com os resultados do filtro de conteúdo
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		onToken(delta)
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func toParams(msgs []Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
