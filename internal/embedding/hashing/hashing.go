package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"

	"bookrag/internal/domain"
	"bookrag/internal/textutil"
)

var _ domain.Embedder = (*Embedder)(nil)

// Embedder implements a signed feature-hashing vectorizer over unigrams and
// bigrams. It needs no corpus preparation, so vectors written at ingestion
// time stay comparable with query vectors in later processes.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, errors.New("hashing embedder dimension must be positive")
	}
	return &Embedder{dimension: dimension}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedOne computes the hashed embedding for the given text.
// Text without any content token maps to the zero vector.
func (e *Embedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	acc := make([]float64, e.dimension)
	tokens := textutil.ContentTokens(text)
	for i, tok := range tokens {
		e.add(acc, tok, 1.0)
		if i > 0 {
			e.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}
	// sublinear term frequency damping
	norm := 0.0
	for i, v := range acc {
		if v != 0 {
			acc[i] = math.Copysign(1+math.Log(math.Abs(v)+1), v)
		}
		norm += acc[i] * acc[i]
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

// EmbedMany embeds each text in order.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}
