// Package genai answers free-form user questions using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned is returned when the completion API responds without choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// systemPrompt frames every answer: the assistant speaks for the gym, in
// Spanish, and stays on fitness topics.
const systemPrompt = "Eres el asistente virtual de GymBro, un gimnasio en Zarzal, Colombia. " +
	"Responde siempre en español, de forma breve, amable y motivadora. " +
	"Responde preguntas sobre entrenamiento, nutrición, hábitos saludables y los servicios del gimnasio. " +
	"Si la pregunta no tiene relación con el gimnasio o el fitness, indícalo cortésmente y sugiere contactar a un asesor."

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the real OpenAI client to chatService.
type openaiChatService struct {
	client openai.Client
}

func (s openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client. The API key comes from options or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	slog.Debug("GenAI client created", "model", cfg.Model)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: openaiChatService{client: cli}, model: cfg.Model}, nil
}

// Answer produces an answer for a user question under the gym system prompt.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(question),
		},
	})
	if err != nil {
		slog.Error("GenAI Answer completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}
