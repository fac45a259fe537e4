package commerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/miplaza/backend/internal/tracing"
)

// Common errors for commerce operations.
var (
	ErrCommerceNotFound = errors.New("commerce not found")
	ErrNotOwner         = errors.New("commerce does not belong to this user")
)

// Repository defines the interface for commerce data operations.
// Discovery methods only ever see active rows.
type Repository interface {
	// Create inserts a new commerce and populates its generated fields.
	Create(ctx context.Context, c *Commerce) error

	// Update persists the mutable fields of an existing commerce.
	Update(ctx context.Context, c *Commerce) error

	// GetActiveByID retrieves an active commerce. Returns ErrCommerceNotFound
	// for unknown or inactive ids.
	GetActiveByID(ctx context.Context, id int64) (*Commerce, error)

	// GetByID retrieves a commerce regardless of its active flag. Used by
	// owner/admin paths such as reactivation.
	GetByID(ctx context.Context, id int64) (*Commerce, error)

	// ListByOwner retrieves all commerces of one owner, newest first.
	ListByOwner(ctx context.Context, userID int64) ([]*Commerce, error)

	// ListActiveClassic lists active commerces in the classic discovery
	// order: has-active-stories DESC, has-active-posts DESC, id DESC, with
	// ordering and pagination pushed down to storage. A non-empty query
	// filters by name substring, case-insensitively.
	ListActiveClassic(ctx context.Context, query string, limit, offset int) ([]*Commerce, error)

	// ListActiveFiltered fetches a candidate window for keyword ranking:
	// active commerces whose name, description, city or province contains
	// the query case-insensitively, ordered id DESC, at most fetchSize rows.
	ListActiveFiltered(ctx context.Context, query string, fetchSize int) ([]*Commerce, error)

	// ListActiveRecent fetches a candidate window for semantic ranking:
	// active commerces ordered id DESC with no text pre-filter, at most
	// fetchSize rows.
	ListActiveRecent(ctx context.Context, fetchSize int) ([]*Commerce, error)
}

// PostgresRepository implements Repository against the commerces table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed commerce repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// commerceColumns is the select list shared by all read queries. Section
// name is resolved in the same round trip so the scorer never goes back to
// storage per row.
const commerceColumns = `c.id, c.user_id, c.name, c.description, c.cover_url,
	c.section_id, COALESCE(s.name, ''), c.province, c.city, c.address,
	c.whatsapp, c.instagram, c.maps_url, c.active, c.created_at, c.updated_at`

func scanCommerce(scanner interface{ Scan(...any) error }) (*Commerce, error) {
	var c Commerce
	var sectionID sql.NullInt64
	err := scanner.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.CoverURL,
		&sectionID, &c.SectionName, &c.Province, &c.City, &c.Address,
		&c.Whatsapp, &c.Instagram, &c.MapsURL, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sectionID.Valid {
		c.SectionID = &sectionID.Int64
	}
	return &c, nil
}

// Create inserts a new commerce and populates its generated fields.
func (r *PostgresRepository) Create(ctx context.Context, c *Commerce) error {
	query := `INSERT INTO commerces
	          (user_id, name, description, cover_url, section_id, province, city,
	           address, whatsapp, instagram, maps_url, active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE, NOW(), NOW())
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.UserID, c.Name, c.Description, c.CoverURL, c.SectionID, c.Province,
		c.City, c.Address, c.Whatsapp, c.Instagram, c.MapsURL,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create commerce: %w", err)
	}
	c.Active = true
	return nil
}

// Update persists the mutable fields of an existing commerce.
func (r *PostgresRepository) Update(ctx context.Context, c *Commerce) error {
	query := `UPDATE commerces
	          SET name = $2, description = $3, cover_url = $4, section_id = $5,
	              province = $6, city = $7, address = $8, whatsapp = $9,
	              instagram = $10, maps_url = $11, active = $12, updated_at = NOW()
	          WHERE id = $1
	          RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Description, c.CoverURL, c.SectionID, c.Province,
		c.City, c.Address, c.Whatsapp, c.Instagram, c.MapsURL, c.Active,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrCommerceNotFound
		}
		return fmt.Errorf("failed to update commerce %d: %w", c.ID, err)
	}
	return nil
}

// GetActiveByID retrieves an active commerce.
func (r *PostgresRepository) GetActiveByID(ctx context.Context, id int64) (*Commerce, error) {
	query := `SELECT ` + commerceColumns + `
	          FROM commerces c LEFT JOIN sections s ON s.id = c.section_id
	          WHERE c.id = $1 AND c.active = TRUE`

	c, err := scanCommerce(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCommerceNotFound
		}
		return nil, fmt.Errorf("failed to get commerce %d: %w", id, err)
	}
	return c, nil
}

// GetByID retrieves a commerce regardless of its active flag.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Commerce, error) {
	query := `SELECT ` + commerceColumns + `
	          FROM commerces c LEFT JOIN sections s ON s.id = c.section_id
	          WHERE c.id = $1`

	c, err := scanCommerce(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCommerceNotFound
		}
		return nil, fmt.Errorf("failed to get commerce %d: %w", id, err)
	}
	return c, nil
}

// ListByOwner retrieves all commerces of one owner, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, userID int64) ([]*Commerce, error) {
	query := `SELECT ` + commerceColumns + `
	          FROM commerces c LEFT JOIN sections s ON s.id = c.section_id
	          WHERE c.user_id = $1
	          ORDER BY c.id DESC`

	return r.queryCommerces(ctx, query, userID)
}

// ListActiveClassic lists active commerces in the classic discovery order.
// The engagement signals are EXISTS subqueries restricted to active,
// non-expired stories and active posts, so ordering happens entirely in SQL.
func (r *PostgresRepository) ListActiveClassic(ctx context.Context, query string, limit, offset int) ([]*Commerce, error) {
	q := `SELECT ` + commerceColumns + `
	      FROM commerces c LEFT JOIN sections s ON s.id = c.section_id
	      WHERE c.active = TRUE`

	args := []any{}
	if query != "" {
		args = append(args, "%"+query+"%")
		q += fmt.Sprintf(" AND c.name ILIKE $%d", len(args))
	}

	args = append(args, limit, offset)
	q += fmt.Sprintf(`
	      ORDER BY
	        EXISTS (SELECT 1 FROM stories st
	                WHERE st.commerce_id = c.id AND st.active = TRUE AND st.expires_at > NOW()) DESC,
	        EXISTS (SELECT 1 FROM posts p
	                WHERE p.commerce_id = c.id AND p.active = TRUE) DESC,
	        c.id DESC
	      LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryCommerces(ctx, q, args...)
}

// ListActiveFiltered fetches a candidate window for keyword ranking.
func (r *PostgresRepository) ListActiveFiltered(ctx context.Context, query string, fetchSize int) ([]*Commerce, error) {
	q := `SELECT ` + commerceColumns + `
	      FROM commerces c LEFT JOIN sections s ON s.id = c.section_id
	      WHERE c.active = TRUE
	        AND (c.name ILIKE $1 OR c.description ILIKE $1
	             OR c.city ILIKE $1 OR c.province ILIKE $1)
	      ORDER BY c.id DESC
	      LIMIT $2`

	return r.queryCommerces(ctx, q, "%"+query+"%", fetchSize)
}

// ListActiveRecent fetches a candidate window for semantic ranking.
func (r *PostgresRepository) ListActiveRecent(ctx context.Context, fetchSize int) ([]*Commerce, error) {
	q := `SELECT ` + commerceColumns + `
	      FROM commerces c LEFT JOIN sections s ON s.id = c.section_id
	      WHERE c.active = TRUE
	      ORDER BY c.id DESC
	      LIMIT $1`

	return r.queryCommerces(ctx, q, fetchSize)
}

func (r *PostgresRepository) queryCommerces(ctx context.Context, query string, args ...any) (_ []*Commerce, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "commerces", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commerces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var commerces []*Commerce
	for rows.Next() {
		c, err := scanCommerce(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commerce row: %w", err)
		}
		commerces = append(commerces, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commerce rows: %w", err)
	}
	return commerces, nil
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development. Engagement
// signals that Postgres resolves with EXISTS subqueries are mirrored here via
// SetEngagementSignals.
type InMemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	commerces  map[int64]*Commerce
	hasStories map[int64]bool
	hasPosts   map[int64]bool
}

// NewInMemoryRepository creates a new in-memory commerce repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		commerces:  make(map[int64]*Commerce),
		hasStories: make(map[int64]bool),
		hasPosts:   make(map[int64]bool),
	}
}

// SetEngagementSignals records whether a commerce currently has active
// stories and active posts, mirroring the SQL EXISTS signals.
func (r *InMemoryRepository) SetEngagementSignals(commerceID int64, hasStories, hasPosts bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hasStories[commerceID] = hasStories
	r.hasPosts[commerceID] = hasPosts
}

// Create inserts a new commerce with a generated id.
func (r *InMemoryRepository) Create(ctx context.Context, c *Commerce) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now()
	c.ID = r.nextID
	c.Active = true
	c.CreatedAt = now
	c.UpdatedAt = now

	commerceCopy := *c
	r.commerces[c.ID] = &commerceCopy
	return nil
}

// Update persists the mutable fields of an existing commerce.
func (r *InMemoryRepository) Update(ctx context.Context, c *Commerce) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.commerces[c.ID]
	if !ok {
		return ErrCommerceNotFound
	}

	now := time.Now()
	updated := *c
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = now
	r.commerces[c.ID] = &updated
	c.UpdatedAt = now
	return nil
}

// GetActiveByID retrieves an active commerce.
func (r *InMemoryRepository) GetActiveByID(ctx context.Context, id int64) (*Commerce, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.commerces[id]
	if !ok || !c.Active {
		return nil, ErrCommerceNotFound
	}
	commerceCopy := *c
	return &commerceCopy, nil
}

// GetByID retrieves a commerce regardless of its active flag.
func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Commerce, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.commerces[id]
	if !ok {
		return nil, ErrCommerceNotFound
	}
	commerceCopy := *c
	return &commerceCopy, nil
}

// ListByOwner retrieves all commerces of one owner, newest first.
func (r *InMemoryRepository) ListByOwner(ctx context.Context, userID int64) ([]*Commerce, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Commerce
	for _, c := range r.commerces {
		if c.UserID == userID {
			commerceCopy := *c
			result = append(result, &commerceCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// ListActiveClassic lists active commerces in the classic discovery order.
func (r *InMemoryRepository) ListActiveClassic(ctx context.Context, query string, limit, offset int) ([]*Commerce, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := normalizeText(query)

	var candidates []*Commerce
	for _, c := range r.commerces {
		if !c.Active {
			continue
		}
		if normalized != "" && !contains(c.Name, normalized) {
			continue
		}
		commerceCopy := *c
		candidates = append(candidates, &commerceCopy)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if r.hasStories[a.ID] != r.hasStories[b.ID] {
			return r.hasStories[a.ID]
		}
		if r.hasPosts[a.ID] != r.hasPosts[b.ID] {
			return r.hasPosts[a.ID]
		}
		return a.ID > b.ID
	})

	return paginate(candidates, limit, offset), nil
}

// ListActiveFiltered fetches a candidate window for keyword ranking.
func (r *InMemoryRepository) ListActiveFiltered(ctx context.Context, query string, fetchSize int) ([]*Commerce, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := normalizeText(query)

	var candidates []*Commerce
	for _, c := range r.commerces {
		if !c.Active {
			continue
		}
		if !contains(c.Name, normalized) && !contains(c.Description, normalized) &&
			!contains(c.City, normalized) && !contains(c.Province, normalized) {
			continue
		}
		commerceCopy := *c
		candidates = append(candidates, &commerceCopy)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID > candidates[j].ID })
	if len(candidates) > fetchSize {
		candidates = candidates[:fetchSize]
	}
	return candidates, nil
}

// ListActiveRecent fetches a candidate window for semantic ranking.
func (r *InMemoryRepository) ListActiveRecent(ctx context.Context, fetchSize int) ([]*Commerce, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*Commerce
	for _, c := range r.commerces {
		if !c.Active {
			continue
		}
		commerceCopy := *c
		candidates = append(candidates, &commerceCopy)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID > candidates[j].ID })
	if len(candidates) > fetchSize {
		candidates = candidates[:fetchSize]
	}
	return candidates, nil
}

// paginate applies offset/limit slicing with bounds checks.
func paginate(commerces []*Commerce, limit, offset int) []*Commerce {
	if offset >= len(commerces) {
		return []*Commerce{}
	}
	end := offset + limit
	if end > len(commerces) {
		end = len(commerces)
	}
	return commerces[offset:end]
}
