// Package answer turns retrieved passages into a cited answer.
package answer

import (
	"fmt"
	"strings"

	"bookrag/internal/domain"
)

// DefaultPromptResults is how many top results are quoted in the prompt.
const DefaultPromptResults = 5

// SystemPrompt instructs the model to answer from context and cite sources.
const SystemPrompt = "You are a knowledgeable research assistant. Provide accurate, well-structured answers based on the given context. Always cite sources and be clear about the scope of your knowledge."

const contextTemplate = `Based on the following information, answer the question comprehensively:

CONTEXT:
%s

QUESTION: %s

Please provide a detailed answer based on the provided context. If the context doesn't fully answer the question, acknowledge what information is available and what might be missing. Always cite your sources using the format [Source X].`

// BuildContextPrompt quotes the top n results as numbered sources around the question.
func BuildContextPrompt(query string, results []domain.SearchResult, n int) string {
	if len(results) == 0 {
		return fmt.Sprintf("Question: %s\n\nNo relevant information found. Please provide a general response.", query)
	}
	if n <= 0 {
		n = DefaultPromptResults
	}
	parts := make([]string, 0, min(n, len(results)))
	for i, r := range results {
		if i == n {
			break
		}
		parts = append(parts, fmt.Sprintf("Source %d [%s by %s, p.%d]:\n%s\n", i+1, r.Title, r.Author, r.PageNumber, r.Text))
	}
	return fmt.Sprintf(contextTemplate, strings.Join(parts, "\n"), query)
}

// FallbackAnswer is returned when generation fails.
func FallbackAnswer(qr domain.QueryResult) string {
	return fmt.Sprintf("I apologize, but I encountered an error generating a response. However, I found %d relevant sources that might help answer your question about: %s",
		len(qr.Results), qr.Query)
}
