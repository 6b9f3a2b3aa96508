package answer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookrag/internal/domain"
)

func TestParsePrompt(t *testing.T) {
	prompt := BuildContextPrompt("What are photons?", []domain.SearchResult{
		result("Physics", "Feynman", 1, "Photons are quanta of light. They carry energy!"),
		result("Biology", "Darwin", 9, "Finches vary by island"),
	}, 5)

	q, sents := parsePrompt(prompt)
	assert.Equal(t, "What are photons?", q)
	require.Len(t, sents, 3)
	assert.Equal(t, sourcedSentence{"Photons are quanta of light.", 1}, sents[0])
	assert.Equal(t, sourcedSentence{"They carry energy!", 1}, sents[1])
	assert.Equal(t, sourcedSentence{"Finches vary by island", 2}, sents[2])
}

func TestExtractive_NoResults(t *testing.T) {
	e := NewExtractive(3)
	out, err := e.Complete(context.Background(), SystemPrompt, BuildContextPrompt("What is cats?", nil, 5))
	require.NoError(t, err)
	assert.Equal(t, "No passages in the library address: What is cats?", out)
}

func TestExtractive_PrefersQuestionTerms(t *testing.T) {
	prompt := BuildContextPrompt("What are photons?", []domain.SearchResult{
		result("Biology", "Darwin", 9, "Finches vary by island. Beaks adapt to seeds."),
		result("Physics", "Feynman", 1, "Photons are quanta of light."),
	}, 5)

	e := NewExtractive(1)
	out, err := e.Complete(context.Background(), SystemPrompt, prompt)
	require.NoError(t, err)
	assert.Equal(t, "Photons are quanta of light. [Source 2]", out)
}

func TestExtractive_KeepsSourceOrderAndLimit(t *testing.T) {
	prompt := BuildContextPrompt("energy", []domain.SearchResult{
		result("A", "X", 1, "Energy is conserved. Cats sleep."),
		result("B", "Y", 2, "Energy changes form. Dogs bark. Energy flows."),
	}, 5)

	e := NewExtractive(3)
	out, err := e.Complete(context.Background(), SystemPrompt, prompt)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "[Source"))
	assert.Less(t, strings.Index(out, "Energy is conserved."), strings.Index(out, "Energy flows."))
	assert.NotContains(t, out, "Dogs bark")
}

func TestExtractive_StreamCancelled(t *testing.T) {
	prompt := BuildContextPrompt("energy", []domain.SearchResult{result("A", "X", 1, "Energy is conserved.")}, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(NewExtractive(3).CompleteStream(ctx, SystemPrompt, prompt))
	assert.ErrorIs(t, err, context.Canceled)
}
