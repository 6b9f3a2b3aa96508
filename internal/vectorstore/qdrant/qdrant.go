package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"bookrag/internal/domain"
	"bookrag/internal/logging"
)

var _ domain.VectorIndex = (*Storage)(nil)

// pointNamespace derives stable point UUIDs for record IDs that are not UUIDs.
var pointNamespace = uuid.MustParse("6f0c1d8e-3f7a-4b55-9a0e-2f1d3c4b5a69")

// Storage is a Qdrant-backed vector index using the gRPC client.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	client     *qdrant.Client
	collection string
	logger     *log.Logger
}

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

func NewStorage(cfg Config, logger *log.Logger) (*Storage, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection name is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Storage{
		client:     client,
		collection: cfg.Collection,
		logger:     logging.Component(logger, "qdrant").With("collection", cfg.Collection),
	}, nil
}

// Ping checks the server is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return err
}

func (s *Storage) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("collection info: %w", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && size != uint64(dimension) {
			return fmt.Errorf("%w: collection has %d, requested %d", domain.ErrDimensionMismatch, size, dimension)
		}
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.logger.Info("created collection", "dimension", dimension)
	return nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointUUID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: toPayload(r.Payload),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.ScoredRecord, error) {
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Limit > 0 {
		req.Limit = qdrant.PtrOf(uint64(opts.Limit))
	}
	if opts.ScoreThreshold != nil {
		req.ScoreThreshold = qdrant.PtrOf(float32(*opts.ScoreThreshold))
	}
	if opts.Filter != nil {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(string(opts.Filter.Field), opts.Filter.Value)},
		}
	}
	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	out := make([]domain.ScoredRecord, len(points))
	for i, p := range points {
		out[i] = domain.ScoredRecord{Payload: fromPayload(p.GetPayload()), Score: float64(p.GetScore())}
	}
	return out, nil
}

// Enumerate scrolls through the collection. Returned records carry payloads only.
// One extra point is requested to learn the next page's offset.
func (s *Storage) Enumerate(ctx context.Context, limit int, cursor string) ([]domain.Record, string, error) {
	if limit <= 0 {
		return nil, "", errors.New("limit must be positive")
	}
	req := &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(limit + 1)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if cursor != "" {
		req.Offset = qdrant.NewID(cursor)
	}
	points, err := s.client.Scroll(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("scroll: %w", err)
	}
	next := ""
	if len(points) > limit {
		next = points[limit].GetId().GetUuid()
		points = points[:limit]
	}
	out := make([]domain.Record, len(points))
	for i, p := range points {
		out[i] = domain.Record{ID: p.GetId().GetUuid(), Payload: fromPayload(p.GetPayload())}
	}
	return out, next, nil
}

func (s *Storage) Describe(ctx context.Context) (domain.CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("collection info: %w", err)
	}
	return domain.CollectionInfo{
		Status:      strings.ToLower(info.GetStatus().String()),
		RecordCount: int(info.GetPointsCount()),
	}, nil
}

// Clear drops the collection; the next EnsureCollection recreates it.
func (s *Storage) Clear(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

func (s *Storage) Close() error { return s.client.Close() }

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

func toPayload(p domain.ChunkPayload) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"chunk_id":    qdrant.NewValueString(p.ChunkID),
		"book_id":     qdrant.NewValueString(p.BookID),
		"title":       qdrant.NewValueString(p.Title),
		"author":      qdrant.NewValueString(p.Author),
		"page_number": qdrant.NewValueInt(int64(p.PageNumber)),
		"chunk_index": qdrant.NewValueInt(int64(p.ChunkIndex)),
		"text":        qdrant.NewValueString(p.Text),
	}
}

func fromPayload(m map[string]*qdrant.Value) domain.ChunkPayload {
	return domain.ChunkPayload{
		ChunkID:    m["chunk_id"].GetStringValue(),
		BookID:     m["book_id"].GetStringValue(),
		Title:      m["title"].GetStringValue(),
		Author:     m["author"].GetStringValue(),
		PageNumber: int(m["page_number"].GetIntegerValue()),
		ChunkIndex: int(m["chunk_index"].GetIntegerValue()),
		Text:       m["text"].GetStringValue(),
	}
}
