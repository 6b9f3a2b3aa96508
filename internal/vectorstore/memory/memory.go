package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"bookrag/internal/domain"
	"bookrag/internal/vectorstore"
)

var _ domain.VectorIndex = (*Storage)(nil)

// Storage is a simple in-memory vector index using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	ids       []string
	byID      map[string]int
	vectors   [][]float32
	payloads  []domain.ChunkPayload
	closed    bool
}

func NewStorage() *Storage { return &Storage{byID: make(map[string]int)} }

// EnsureCollection fixes the dimension on first use and rejects a different one afterwards.
func (s *Storage) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = dimension
		return nil
	}
	if s.dimension != dimension {
		return fmt.Errorf("%w: collection has %d, requested %d", domain.ErrDimensionMismatch, s.dimension, dimension)
	}
	return nil
}

// Upsert inserts records, replacing any with an existing ID in place.
func (s *Storage) Upsert(_ context.Context, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("memory index is closed")
	}
	for _, r := range records {
		if s.dimension == 0 {
			s.dimension = len(r.Vector)
		}
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: collection has %d, record %s has %d", domain.ErrDimensionMismatch, s.dimension, r.ID, len(r.Vector))
		}
	}
	for _, r := range records {
		v := slices.Clone(r.Vector)
		if i, ok := s.byID[r.ID]; ok {
			s.vectors[i] = v
			s.payloads[i] = r.Payload
			continue
		}
		s.byID[r.ID] = len(s.ids)
		s.ids = append(s.ids, r.ID)
		s.vectors = append(s.vectors, v)
		s.payloads = append(s.payloads, r.Payload)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, opts domain.SearchOptions) ([]domain.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("memory index is closed")
	}
	cands := make([]vectorstore.Candidate, len(s.vectors))
	for i := range s.vectors {
		cands[i] = vectorstore.Candidate{Vector: s.vectors[i], Payload: s.payloads[i]}
	}
	return vectorstore.Rank(vector, cands, opts)
}

// Enumerate pages through records in insertion order; the cursor is an offset.
func (s *Storage) Enumerate(_ context.Context, limit int, cursor string) ([]domain.Record, string, error) {
	if limit <= 0 {
		return nil, "", errors.New("limit must be positive")
	}
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
		start = n
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if start >= len(s.ids) {
		return []domain.Record{}, "", nil
	}
	end := min(start+limit, len(s.ids))
	out := make([]domain.Record, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, domain.Record{ID: s.ids[i], Vector: slices.Clone(s.vectors[i]), Payload: s.payloads[i]})
	}
	next := ""
	if end < len(s.ids) {
		next = strconv.Itoa(end)
	}
	return out, next, nil
}

func (s *Storage) Describe(_ context.Context) (domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CollectionInfo{Status: "green", RecordCount: len(s.ids)}, nil
}

// Clear drops all records and forgets the dimension.
func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.ids = nil
	s.byID = make(map[string]int)
	s.vectors = nil
	s.payloads = nil
	return nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
