// Package ollama wraps the OpenAI-compatible chat endpoint a local Ollama
// server exposes. The pipeline only uses it to phrase report prose; it is
// optional and the engine never interprets the returned text.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	BaseURL     string        `envconfig:"BASE_URL" split_words:"true" default:"http://localhost:11434/v1"`
	APIKey      string        `envconfig:"API_KEY" split_words:"true" default:"ollama"`
	Model       string        `envconfig:"MODEL" split_words:"true"`
	Temperature float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
}

// Enabled reports whether a model was configured at all.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Model) != ""
}

// Client generates report prose through a local model.
type Client struct {
	api         openaisdk.Client
	model       string
	temperature float64
}

func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("ollama model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		api:         openaisdk.NewClient(opts...),
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
	}, nil
}

// Narrate asks the model to phrase a findings digest as short report
// prose.
func (c *Client) Narrate(ctx context.Context, findings string) (string, error) {
	findings = strings.TrimSpace(findings)
	if findings == "" {
		return "", fmt.Errorf("findings digest is empty")
	}

	resp, err := c.api.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.model),
		Temperature: openaisdk.Float(c.temperature),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage("Rewrite the given dataset findings as two or three plain sentences for a report. Do not invent numbers."),
			openaisdk.UserMessage(findings),
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
