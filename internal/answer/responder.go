package answer

import (
	"context"
	"iter"
	"strings"

	"github.com/charmbracelet/log"

	"bookrag/internal/domain"
	"bookrag/internal/logging"
)

// Responder drives the answer generator for processed queries.
type Responder struct {
	gen           domain.AnswerGenerator
	promptResults int
	logger        *log.Logger
}

func NewResponder(gen domain.AnswerGenerator, promptResults int, logger *log.Logger) *Responder {
	if promptResults <= 0 {
		promptResults = DefaultPromptResults
	}
	return &Responder{gen: gen, promptResults: promptResults, logger: logging.Component(logger, "answer").With("generator", gen.Name())}
}

// Generator returns the underlying answer generator.
func (r *Responder) Generator() domain.AnswerGenerator { return r.gen }

// Prompt renders the user prompt for qr.
func (r *Responder) Prompt(qr domain.QueryResult) string {
	return BuildContextPrompt(qr.Query, qr.Results, r.promptResults)
}

// Respond returns the generated answer. When generation fails the apology
// fallback is returned together with the error, so callers can always show text.
func (r *Responder) Respond(ctx context.Context, qr domain.QueryResult) (string, error) {
	text, err := r.gen.Complete(ctx, SystemPrompt, r.Prompt(qr))
	if err != nil {
		r.logger.Error("error generating response", "err", err)
		return FallbackAnswer(qr), err
	}
	text = strings.TrimSpace(text)
	r.logger.Info("generated response", "chars", len(text))
	return text, nil
}

// Stream yields answer fragments as the generator produces them. The
// sequence is finite, stops when ctx is cancelled and may be ranged once.
func (r *Responder) Stream(ctx context.Context, qr domain.QueryResult) iter.Seq2[string, error] {
	inner := r.gen.CompleteStream(ctx, SystemPrompt, r.Prompt(qr))
	return Once(func(yield func(string, error) bool) {
		for frag, err := range inner {
			if err != nil {
				r.logger.Error("error in streaming response", "err", err)
				yield("", err)
				return
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield("", ctxErr)
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
	})
}
