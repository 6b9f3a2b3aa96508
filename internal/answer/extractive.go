package answer

import (
	"context"
	"fmt"
	"iter"
	"math"
	"regexp"
	"sort"
	"strings"

	"bookrag/internal/domain"
	"bookrag/internal/textutil"
)

var _ domain.AnswerGenerator = (*Extractive)(nil)

var (
	sourceHeader = regexp.MustCompile(`(?m)^Source (\d+) \[[^\n]*\]:\n`)
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// Extractive answers offline by ranking the quoted source sentences by word
// frequency and overlap with the question, citing the source of each.
type Extractive struct {
	maxSentences int
}

// NewExtractive creates a frequency-based sentence ranker.
func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Extractive{maxSentences: maxSentences}
}

func (s *Extractive) Name() string { return "extractive" }

func (s *Extractive) Complete(ctx context.Context, _ string, userPrompt string) (string, error) {
	return Collect(s.CompleteStream(ctx, "", userPrompt))
}

// CompleteStream yields the selected sentences one at a time.
func (s *Extractive) CompleteStream(ctx context.Context, _ string, userPrompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		question, sentences := parsePrompt(userPrompt)
		if len(sentences) == 0 {
			yield(fmt.Sprintf("No passages in the library address: %s", question), nil)
			return
		}
		for i, sent := range s.rank(question, sentences) {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			frag := fmt.Sprintf("%s [Source %d]", sent.text, sent.source)
			if i > 0 {
				frag = " " + frag
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

type sourcedSentence struct {
	text   string
	source int
}

// parsePrompt recovers the question and the per-source sentences from a
// prompt built by BuildContextPrompt.
func parsePrompt(prompt string) (string, []sourcedSentence) {
	if strings.HasPrefix(prompt, "Question: ") {
		q, _, _ := strings.Cut(strings.TrimPrefix(prompt, "Question: "), "\n\n")
		return q, nil
	}
	body, rest, found := strings.Cut(prompt, "\n\nQUESTION: ")
	if !found {
		return strings.TrimSpace(prompt), nil
	}
	question, _, _ := strings.Cut(rest, "\n\n")
	_, body, _ = strings.Cut(body, "CONTEXT:\n")

	var out []sourcedSentence
	headers := sourceHeader.FindAllStringSubmatchIndex(body, -1)
	for i, h := range headers {
		end := len(body)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		var src int
		_, _ = fmt.Sscanf(body[h[2]:h[3]], "%d", &src)
		text := strings.TrimSpace(body[h[1]:end])
		sents := sentenceRe.FindAllString(text, -1)
		if len(sents) == 0 && text != "" {
			sents = []string{text}
		}
		for _, sent := range sents {
			if t := strings.TrimSpace(sent); t != "" {
				out = append(out, sourcedSentence{text: t, source: src})
			}
		}
	}
	return question, out
}

func (s *Extractive) rank(question string, sentences []sourcedSentence) []sourcedSentence {
	// Compute word frequencies
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range textutil.ContentTokens(sent.text) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	asked := map[string]struct{}{}
	for _, tok := range textutil.ContentTokens(question) {
		asked[tok] = struct{}{}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := textutil.ContentTokens(sent.text)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
			if _, ok := asked[tok]; ok {
				score++
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := min(s.maxSentences, len(scores))
	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]sourcedSentence, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return out
}
