package answer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"bookrag/internal/domain"
)

var _ domain.AnswerGenerator = (*OllamaGenerator)(nil)

// errStopStream aborts the chat callback when the consumer stops ranging.
var errStopStream = errors.New("stream stopped by consumer")

// OllamaConfig points the generator at a local Ollama server.
type OllamaConfig struct {
	Host        string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OllamaGenerator answers with a locally served chat model.
type OllamaGenerator struct {
	client      *api.Client
	model       string
	temperature float32
}

func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		return nil, errors.New("ollama chat model is required")
	}
	base, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &OllamaGenerator{
		client:      api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

func (g *OllamaGenerator) Name() string { return "ollama:" + g.model }

func (g *OllamaGenerator) request(systemPrompt, userPrompt string, stream bool) *api.ChatRequest {
	return &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Options: map[string]any{"temperature": g.temperature},
		Stream:  &stream,
	}
}

func (g *OllamaGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var b strings.Builder
	err := g.client.Chat(ctx, g.request(systemPrompt, userPrompt, false), func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return b.String(), nil
}

// CompleteStream yields fragments from inside the client's callback, which
// runs synchronously on the ranging goroutine.
func (g *OllamaGenerator) CompleteStream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := g.client.Chat(ctx, g.request(systemPrompt, userPrompt, true), func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if !yield(resp.Message.Content, nil) {
				return errStopStream
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopStream) {
			yield("", fmt.Errorf("ollama chat: %w", err))
		}
	}
}
