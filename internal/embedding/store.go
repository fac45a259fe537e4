package embedding

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
)

// Record is a stored commerce embedding. Exactly one record exists per
// commerce; the vector is a derived artifact regenerated on every commerce
// write, never authoritative data.
type Record struct {
	ID           int64     `json:"id"`
	CommerceID   int64     `json:"commerce_id"`
	Vector       string    `json:"vector"`
	ModelVersion int       `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store persists one versioned vector per commerce.
type Store interface {
	// Upsert creates or overwrites the embedding for a commerce.
	Upsert(ctx context.Context, commerceID int64, vector string, modelVersion int) (*Record, error)

	// GetByCommerceID retrieves the embedding for a single commerce.
	// Returns (nil, nil) when no embedding exists.
	GetByCommerceID(ctx context.Context, commerceID int64) (*Record, error)

	// GetByCommerceIDs batch-fetches embeddings for an id set in one round
	// trip. Missing ids are simply absent from the result map.
	GetByCommerceIDs(ctx context.Context, commerceIDs []int64) (map[int64]*Record, error)
}

// PostgresStore implements Store against the commerce_embeddings table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed embedding store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert creates or overwrites the embedding for a commerce. The unique key
// on commerce_id makes concurrent writers last-write-wins.
func (s *PostgresStore) Upsert(ctx context.Context, commerceID int64, vector string, modelVersion int) (*Record, error) {
	query := `INSERT INTO commerce_embeddings (commerce_id, vector, model_version, created_at, updated_at)
	          VALUES ($1, $2, $3, NOW(), NOW())
	          ON CONFLICT (commerce_id) DO UPDATE
	          SET vector = EXCLUDED.vector,
	              model_version = EXCLUDED.model_version,
	              updated_at = NOW()
	          RETURNING id, commerce_id, vector, model_version, created_at, updated_at`

	var rec Record
	err := s.db.QueryRowContext(ctx, query, commerceID, vector, modelVersion).Scan(
		&rec.ID, &rec.CommerceID, &rec.Vector, &rec.ModelVersion, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert embedding for commerce %d: %w", commerceID, err)
	}
	return &rec, nil
}

// GetByCommerceID retrieves the embedding for a single commerce.
func (s *PostgresStore) GetByCommerceID(ctx context.Context, commerceID int64) (*Record, error) {
	query := `SELECT id, commerce_id, vector, model_version, created_at, updated_at
	          FROM commerce_embeddings WHERE commerce_id = $1`

	var rec Record
	err := s.db.QueryRowContext(ctx, query, commerceID).Scan(
		&rec.ID, &rec.CommerceID, &rec.Vector, &rec.ModelVersion, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get embedding for commerce %d: %w", commerceID, err)
	}
	return &rec, nil
}

// GetByCommerceIDs batch-fetches embeddings for an id set in one round trip.
func (s *PostgresStore) GetByCommerceIDs(ctx context.Context, commerceIDs []int64) (map[int64]*Record, error) {
	result := make(map[int64]*Record, len(commerceIDs))
	if len(commerceIDs) == 0 {
		return result, nil
	}

	query := `SELECT id, commerce_id, vector, model_version, created_at, updated_at
	          FROM commerce_embeddings WHERE commerce_id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(commerceIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to batch-get embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.CommerceID, &rec.Vector, &rec.ModelVersion, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		result[rec.CommerceID] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embedding rows: %w", err)
	}

	return result, nil
}

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*Record // commerce id -> record
}

// NewInMemoryStore creates a new in-memory embedding store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[int64]*Record)}
}

// Upsert creates or overwrites the embedding for a commerce.
func (s *InMemoryStore) Upsert(ctx context.Context, commerceID int64, vector string, modelVersion int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.records[commerceID]; ok {
		existing.Vector = vector
		existing.ModelVersion = modelVersion
		existing.UpdatedAt = now
		recCopy := *existing
		return &recCopy, nil
	}

	s.nextID++
	rec := &Record{
		ID:           s.nextID,
		CommerceID:   commerceID,
		Vector:       vector,
		ModelVersion: modelVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.records[commerceID] = rec

	recCopy := *rec
	return &recCopy, nil
}

// GetByCommerceID retrieves the embedding for a single commerce.
func (s *InMemoryStore) GetByCommerceID(ctx context.Context, commerceID int64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[commerceID]
	if !ok {
		return nil, nil
	}
	recCopy := *rec
	return &recCopy, nil
}

// GetByCommerceIDs batch-fetches embeddings for an id set.
func (s *InMemoryStore) GetByCommerceIDs(ctx context.Context, commerceIDs []int64) (map[int64]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]*Record, len(commerceIDs))
	for _, id := range commerceIDs {
		if rec, ok := s.records[id]; ok {
			recCopy := *rec
			result[id] = &recCopy
		}
	}
	return result, nil
}
