package story

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
)

// ErrStoryNotFound is returned when a story does not exist.
var ErrStoryNotFound = errors.New("story not found")

// Repository defines the interface for story data operations.
type Repository interface {
	// Create inserts a new story and populates its generated fields. A zero
	// ExpiresAt gets the default TTL.
	Create(ctx context.Context, s *Story) error

	// ListActiveByCommerce retrieves the visible stories of a commerce,
	// newest first. Expired or deactivated stories are excluded. ViewedByMe
	// is resolved for viewerID in the same round trip; a viewerID of 0
	// means anonymous and leaves it false everywhere.
	ListActiveByCommerce(ctx context.Context, commerceID, viewerID int64) ([]*Story, error)

	// CommerceIDsWithActiveStories resolves which of an id set currently
	// have a visible story, in a single round trip.
	CommerceIDsWithActiveStories(ctx context.Context, commerceIDs []int64) (map[int64]bool, error)

	// MarkViewed records that a user has seen a story. Repeated calls for
	// the same pair return the original view row. Unknown stories return
	// ErrStoryNotFound.
	MarkViewed(ctx context.Context, userID, storyID int64) (*View, error)

	// Deactivate hides a story before its natural expiry.
	Deactivate(ctx context.Context, id int64) error

	// DeactivateExpired flips active off for every story past its expiry.
	// Returns the number of stories swept. Reads already exclude expired
	// rows; the sweep keeps the partial index on visible stories small.
	DeactivateExpired(ctx context.Context) (int64, error)
}

// PostgresRepository implements Repository against the stories tables.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed story repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new story and populates its generated fields.
func (r *PostgresRepository) Create(ctx context.Context, s *Story) error {
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = time.Now().Add(DefaultTTL)
	}
	s.Active = true

	query := `INSERT INTO stories (commerce_id, post_id, media_url, caption, active, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
	          RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		s.CommerceID, s.PostID, s.MediaURL, s.Caption, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// ListActiveByCommerce retrieves the visible stories of a commerce, with
// views_count and the viewer's own view flag resolved in the same query.
func (r *PostgresRepository) ListActiveByCommerce(ctx context.Context, commerceID, viewerID int64) ([]*Story, error) {
	query := `SELECT s.id, s.commerce_id, s.post_id, s.media_url, s.caption, s.active, s.expires_at, s.created_at,
	            (SELECT COUNT(*) FROM story_views v WHERE v.story_id = s.id) AS views_count,
	            EXISTS (SELECT 1 FROM story_views v WHERE v.story_id = s.id AND v.user_id = $2) AS viewed_by_me
	          FROM stories s
	          WHERE s.commerce_id = $1 AND s.active = TRUE AND s.expires_at > NOW()
	          ORDER BY s.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, commerceID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories for commerce %d: %w", commerceID, err)
	}
	defer func() { _ = rows.Close() }()

	var stories []*Story
	for rows.Next() {
		var s Story
		err := rows.Scan(&s.ID, &s.CommerceID, &s.PostID, &s.MediaURL, &s.Caption,
			&s.Active, &s.ExpiresAt, &s.CreatedAt, &s.ViewsCount, &s.ViewedByMe)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		stories = append(stories, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate story rows: %w", err)
	}
	return stories, nil
}

// CommerceIDsWithActiveStories resolves the active-story signal for an id set.
func (r *PostgresRepository) CommerceIDsWithActiveStories(ctx context.Context, commerceIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(commerceIDs))
	if len(commerceIDs) == 0 {
		return result, nil
	}

	query := `SELECT DISTINCT commerce_id FROM stories
	          WHERE commerce_id = ANY($1) AND active = TRUE AND expires_at > NOW()`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(commerceIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active-story signals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate signal rows: %w", err)
	}
	return result, nil
}

// MarkViewed records that a user has seen a story. The unique constraint on
// (user_id, story_id) absorbs duplicates; the re-select returns whichever
// row won, so repeated and concurrent calls all see the same view.
func (r *PostgresRepository) MarkViewed(ctx context.Context, userID, storyID int64) (*View, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stories WHERE id = $1)`, storyID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check story %d: %w", storyID, err)
	}
	if !exists {
		return nil, ErrStoryNotFound
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO story_views (user_id, story_id, viewed_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, story_id) DO NOTHING`, userID, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to record story view: %w", err)
	}

	var v View
	err = r.db.QueryRowContext(ctx,
		`SELECT id, user_id, story_id, viewed_at FROM story_views
		 WHERE user_id = $1 AND story_id = $2`, userID, storyID,
	).Scan(&v.ID, &v.UserID, &v.StoryID, &v.ViewedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read story view: %w", err)
	}
	return &v, nil
}

// Deactivate hides a story before its natural expiry.
func (r *PostgresRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stories SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate story %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deactivate result: %w", err)
	}
	if affected == 0 {
		return ErrStoryNotFound
	}
	return nil
}

// DeactivateExpired flips active off for every story past its expiry.
func (r *PostgresRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stories SET active = FALSE WHERE active AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired stories: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read sweep result: %w", err)
	}
	return affected, nil
}

type viewKey struct {
	userID  int64
	storyID int64
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	nextViewID int64
	stories    map[int64]*Story
	views      map[viewKey]*View
	now        func() time.Time
}

// NewInMemoryRepository creates a new in-memory story repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		stories: make(map[int64]*Story),
		views:   make(map[viewKey]*View),
		now:     time.Now,
	}
}

// Create inserts a new story with a generated id.
func (r *InMemoryRepository) Create(ctx context.Context, s *Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s.ID = r.nextID
	s.Active = true
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(DefaultTTL)
	}

	storyCopy := *s
	r.stories[s.ID] = &storyCopy
	return nil
}

// ListActiveByCommerce retrieves the visible stories of a commerce, with
// views_count and the viewer's own view flag resolved per row.
func (r *InMemoryRepository) ListActiveByCommerce(ctx context.Context, commerceID, viewerID int64) ([]*Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var stories []*Story
	for _, s := range r.stories {
		if s.CommerceID != commerceID || !s.Visible(now) {
			continue
		}
		storyCopy := *s
		storyCopy.ViewsCount = r.countViewsLocked(s.ID)
		if viewerID != 0 {
			_, storyCopy.ViewedByMe = r.views[viewKey{userID: viewerID, storyID: s.ID}]
		}
		stories = append(stories, &storyCopy)
	}
	sort.Slice(stories, func(i, j int) bool { return stories[i].CreatedAt.After(stories[j].CreatedAt) })
	return stories, nil
}

// CommerceIDsWithActiveStories resolves the active-story signal for an id set.
func (r *InMemoryRepository) CommerceIDsWithActiveStories(ctx context.Context, commerceIDs []int64) (map[int64]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[int64]bool, len(commerceIDs))
	for _, id := range commerceIDs {
		wanted[id] = true
	}

	now := r.now()
	result := make(map[int64]bool)
	for _, s := range r.stories {
		if s.Visible(now) && wanted[s.CommerceID] {
			result[s.CommerceID] = true
		}
	}
	return result, nil
}

// MarkViewed records that a user has seen a story.
func (r *InMemoryRepository) MarkViewed(ctx context.Context, userID, storyID int64) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stories[storyID]; !ok {
		return nil, ErrStoryNotFound
	}

	key := viewKey{userID: userID, storyID: storyID}
	if existing, ok := r.views[key]; ok {
		viewCopy := *existing
		return &viewCopy, nil
	}

	r.nextViewID++
	v := &View{
		ID:       r.nextViewID,
		UserID:   userID,
		StoryID:  storyID,
		ViewedAt: r.now(),
	}
	r.views[key] = v

	viewCopy := *v
	return &viewCopy, nil
}

// Deactivate hides a story before its natural expiry.
func (r *InMemoryRepository) Deactivate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stories[id]
	if !ok {
		return ErrStoryNotFound
	}
	s.Active = false
	return nil
}

// DeactivateExpired flips active off for every story past its expiry.
func (r *InMemoryRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var swept int64
	for _, s := range r.stories {
		if s.Active && !s.ExpiresAt.After(now) {
			s.Active = false
			swept++
		}
	}
	return swept, nil
}

func (r *InMemoryRepository) countViewsLocked(storyID int64) int {
	count := 0
	for key := range r.views {
		if key.storyID == storyID {
			count++
		}
	}
	return count
}
