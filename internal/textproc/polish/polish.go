// Package polish rewrites cleaned dictation text with an LLM while
// preserving the speaker's words. It talks to any endpoint speaking the
// OpenAI chat-completions protocol; the default deployment points it at
// OpenRouter.
//
// Polish is strictly best-effort: every failure mode (timeout, API error,
// empty completion) yields the input text unchanged.
package polish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Tone steers phrasing of the polished output.
type Tone string

const (
	ToneFormal    Tone = "formal"
	ToneCasual    Tone = "casual"
	ToneTechnical Tone = "technical"
)

// AppContext tells the model what surface the text is destined for.
type AppContext string

const (
	ContextEmail    AppContext = "email"
	ContextChat     AppContext = "chat"
	ContextCode     AppContext = "code"
	ContextDocument AppContext = "document"
	ContextGeneral  AppContext = "general"
)

// Request is one polish invocation.
type Request struct {
	Text       string
	Tone       Tone
	AppContext AppContext

	// Model overrides the client default when non-empty.
	Model string

	// CustomInstructions is the dictation mode's system prompt addendum.
	CustomInstructions string
}

// Client is an LLM-backed text polisher.
type Client struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the client.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the completion endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 6s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a polish Client. model is the default completion model used
// when a request does not name one.
func New(apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("polish: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("polish: model must not be empty")
	}

	cfg := &config{timeout: 6 * time.Second}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Client{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Polish rewrites req.Text according to tone and context. On any error the
// caller should fall back to the unpolished text; the error is informational.
func (c *Client) Polish(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return req.Text, nil
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt(req.Tone, req.AppContext, req.CustomInstructions)),
			oai.UserMessage("Polish this transcribed text:\n\n" + req.Text),
		},
		MaxTokens:   oai.Int(1024),
		Temperature: oai.Float(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("polish: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("polish: completion returned no choices")
	}

	out := ScrubResponse(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("polish: completion was empty after scrubbing")
	}
	return out, nil
}
