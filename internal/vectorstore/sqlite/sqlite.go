package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"bookrag/internal/domain"
	"bookrag/internal/vectorstore"
)

var _ domain.VectorIndex = (*Storage)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL,
	vector     BLOB NOT NULL,
	payload    TEXT NOT NULL,
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_title ON records (collection, title);
CREATE INDEX IF NOT EXISTS idx_records_author ON records (collection, author);
`

// Storage is an embedded vector index kept in a single SQLite file.
// Search is a brute-force cosine scan over the collection's rows.
type Storage struct {
	db         *sql.DB
	path       string
	collection string
}

// Open opens or creates the index database at path.
func Open(path, collection string) (*Storage, error) {
	if collection == "" {
		return nil, errors.New("sqlite collection name is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Storage{db: db, path: path, collection: collection}, nil
}

// Path returns the database file location.
func (s *Storage) Path() string { return s.path }

func (s *Storage) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	current, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO collections (name, dimension) VALUES (?, ?)`, s.collection, dimension)
		if err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
		return nil
	}
	if current != dimension {
		return fmt.Errorf("%w: collection has %d, requested %d", domain.ErrDimensionMismatch, current, dimension)
	}
	return nil
}

func (s *Storage) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection: %w", err)
	}
	return dim, nil
}

func (s *Storage) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if dim == 0 {
		if err := s.EnsureCollection(ctx, len(records[0].Vector)); err != nil {
			return err
		}
		dim = len(records[0].Vector)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, title, author, vector, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			vector = excluded.vector,
			payload = excluded.payload`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: collection has %d, record %s has %d", domain.ErrDimensionMismatch, dim, r.ID, len(r.Vector))
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, r.ID, r.Payload.Title, r.Payload.Author,
			vectorToBlob(r.Vector), string(payload)); err != nil {
			return fmt.Errorf("upserting record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, vector []float32, opts domain.SearchOptions) ([]domain.ScoredRecord, error) {
	query := `SELECT vector, payload FROM records WHERE collection = ?`
	args := []any{s.collection}
	if opts.Filter != nil {
		switch opts.Filter.Field {
		case domain.FilterTitle:
			query += ` AND title = ?`
		case domain.FilterAuthor:
			query += ` AND author = ?`
		default:
			return nil, fmt.Errorf("unsupported filter field %q", opts.Filter.Field)
		}
		args = append(args, opts.Filter.Value)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var cands []vectorstore.Candidate
	for rows.Next() {
		var (
			blob    []byte
			payload string
		)
		if err := rows.Scan(&blob, &payload); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var p domain.ChunkPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		cands = append(cands, vectorstore.Candidate{Vector: blobToVector(blob), Payload: p})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.Rank(vector, cands, opts)
}

// Enumerate pages through records in insertion order; the cursor is the last seen row sequence.
func (s *Storage) Enumerate(ctx context.Context, limit int, cursor string) ([]domain.Record, string, error) {
	if limit <= 0 {
		return nil, "", errors.New("limit must be positive")
	}
	var after int64
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
		after = n
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, vector, payload FROM records
		WHERE collection = ? AND seq > ?
		ORDER BY seq LIMIT ?`, s.collection, after, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Record, 0, limit)
	var lastSeq int64
	more := false
	for rows.Next() {
		if len(out) == limit {
			more = true
			break
		}
		var (
			seq     int64
			r       domain.Record
			blob    []byte
			payload string
		)
		if err := rows.Scan(&seq, &r.ID, &blob, &payload); err != nil {
			return nil, "", fmt.Errorf("scanning record: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
			return nil, "", fmt.Errorf("decoding payload: %w", err)
		}
		r.Vector = blobToVector(blob)
		out = append(out, r)
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if more {
		next = strconv.FormatInt(lastSeq, 10)
	}
	return out, next, nil
}

func (s *Storage) Describe(ctx context.Context) (domain.CollectionInfo, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, s.collection).Scan(&n); err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("counting records: %w", err)
	}
	return domain.CollectionInfo{Status: "green", RecordCount: n}, nil
}

// Clear deletes the collection's records and its recorded dimension.
func (s *Storage) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, s.collection); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, s.collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return tx.Commit()
}

func (s *Storage) Close() error { return s.db.Close() }

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) []float32 {
	count := len(blob) / 4
	vector := make([]float32, count)
	for i := 0; i < count; i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
