// Package section manages the catalog of business categories a commerce can
// belong to. Section names feed the keyword scorer's category signal.
package section

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrSectionNotFound is returned when a section does not exist.
var ErrSectionNotFound = errors.New("section not found")

// Section is a business category.
type Section struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Repository defines the interface for section data operations.
type Repository interface {
	// List retrieves all sections ordered by name.
	List(ctx context.Context) ([]*Section, error)

	// GetByID retrieves a section by id.
	GetByID(ctx context.Context, id int64) (*Section, error)
}

// PostgresRepository implements Repository against the sections table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed section repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List retrieves all sections ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*Section, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM sections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sections []*Section
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan section row: %w", err)
		}
		sections = append(sections, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate section rows: %w", err)
	}
	return sections, nil
}

// GetByID retrieves a section by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Section, error) {
	var s Section
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM sections WHERE id = $1`, id).Scan(&s.ID, &s.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSectionNotFound
		}
		return nil, fmt.Errorf("failed to get section %d: %w", id, err)
	}
	return &s, nil
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	sections map[int64]*Section
}

// NewInMemoryRepository creates a new in-memory section repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sections: make(map[int64]*Section)}
}

// Add inserts a section, assigning an id. Test helper.
func (r *InMemoryRepository) Add(name string) *Section {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := &Section{ID: r.nextID, Name: name}
	r.sections[s.ID] = s

	sectionCopy := *s
	return &sectionCopy
}

// List retrieves all sections ordered by name.
func (r *InMemoryRepository) List(ctx context.Context) ([]*Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sections []*Section
	for _, s := range r.sections {
		sectionCopy := *s
		sections = append(sections, &sectionCopy)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Name < sections[j].Name })
	return sections, nil
}

// GetByID retrieves a section by id.
func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Section, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sections[id]
	if !ok {
		return nil, ErrSectionNotFound
	}
	sectionCopy := *s
	return &sectionCopy, nil
}
