package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/miplaza/backend/internal/tracing"
)

// Common errors for post and engagement operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrAlreadySaved = errors.New("post is already saved")
	ErrNotSaved     = errors.New("post is not saved")
)

// Repository defines the interface for post data operations, including the
// idempotent engagement mutations.
type Repository interface {
	// Create inserts a new post and populates its generated fields.
	Create(ctx context.Context, p *Post) error

	// ListByCommerce retrieves all posts of a commerce, newest first.
	ListByCommerce(ctx context.Context, commerceID int64) ([]*Post, error)

	// GetActiveAndCountView retrieves an active post and increments its view
	// counter. Every detail fetch counts as a view; this is deliberately not
	// idempotent. Unknown or inactive posts return ErrPostNotFound.
	GetActiveAndCountView(ctx context.Context, id int64) (*Post, error)

	// ListActiveEnriched retrieves all active posts with likes_count,
	// saves_count and liked_by_me resolved via aggregation (no row
	// duplication). A nil viewerID means anonymous: liked_by_me is false.
	ListActiveEnriched(ctx context.Context, viewerID *int64) ([]*Post, error)

	// CommerceIDsWithActivePosts resolves which of an id set have at least
	// one active post, in a single round trip.
	CommerceIDsWithActivePosts(ctx context.Context, commerceIDs []int64) (map[int64]bool, error)

	// ToggleLike flips the (user, post) like. Returns true when the like was
	// created, false when it was removed. Concurrent duplicate inserts
	// resolve to the current state via the unique constraint, never error.
	ToggleLike(ctx context.Context, userID, postID int64) (bool, error)

	// Save bookmarks a post for a user. A duplicate save returns
	// ErrAlreadySaved; an unknown post returns ErrPostNotFound.
	Save(ctx context.Context, userID, postID int64) (*SavedPost, error)

	// Unsave removes a bookmark. Returns ErrNotSaved when none exists.
	Unsave(ctx context.Context, userID, postID int64) error

	// ListSavedByUser retrieves the user's saved posts, most recently saved
	// first.
	ListSavedByUser(ctx context.Context, userID int64) ([]*Post, error)
}

// PostgresRepository implements Repository against the posts and engagement
// tables.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed post repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const postColumns = `p.id, p.commerce_id, p.section_id, p.title, p.description,
	p.active, p.views_count, p.created_at, p.updated_at`

func scanPost(scanner interface{ Scan(...any) error }) (*Post, error) {
	var p Post
	var sectionID sql.NullInt64
	err := scanner.Scan(&p.ID, &p.CommerceID, &sectionID, &p.Title, &p.Description,
		&p.Active, &p.ViewsCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sectionID.Valid {
		p.SectionID = &sectionID.Int64
	}
	return &p, nil
}

// Create inserts a new post and populates its generated fields.
func (r *PostgresRepository) Create(ctx context.Context, p *Post) error {
	query := `INSERT INTO posts (commerce_id, section_id, title, description, active, views_count, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW())
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		p.CommerceID, p.SectionID, p.Title, p.Description, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// ListByCommerce retrieves all posts of a commerce, newest first.
func (r *PostgresRepository) ListByCommerce(ctx context.Context, commerceID int64) ([]*Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p
	          WHERE p.commerce_id = $1
	          ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, commerceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts for commerce %d: %w", commerceID, err)
	}
	defer func() { _ = rows.Close() }()

	return collectPosts(rows)
}

// GetActiveAndCountView retrieves an active post and increments its view
// counter in the same statement, so concurrent fetches never lose a view.
func (r *PostgresRepository) GetActiveAndCountView(ctx context.Context, id int64) (*Post, error) {
	query := `UPDATE posts p SET views_count = views_count + 1
	          WHERE p.id = $1 AND p.active = TRUE
	          RETURNING ` + postColumns

	p, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to fetch post %d: %w", id, err)
	}

	if err := r.fillCounts(ctx, p, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// ListActiveEnriched retrieves all active posts with engagement counts.
// Likes and saves are counted in scalar subqueries, so a post with both can
// never produce duplicate rows, and liked_by_me compares the caller against
// the aggregated like set rather than multiplying rows through a join.
func (r *PostgresRepository) ListActiveEnriched(ctx context.Context, viewerID *int64) ([]*Post, error) {
	query := `SELECT ` + postColumns + `,
	            (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS likes_count,
	            (SELECT COUNT(*) FROM saved_posts sp WHERE sp.post_id = p.id) AS saves_count,
	            CASE WHEN $1::BIGINT IS NULL THEN FALSE
	                 ELSE EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1)
	            END AS liked_by_me
	          FROM posts p
	          WHERE p.active = TRUE`

	var viewer sql.NullInt64
	if viewerID != nil {
		viewer = sql.NullInt64{Int64: *viewerID, Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, query, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to list enriched posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []*Post
	for rows.Next() {
		var p Post
		var sectionID sql.NullInt64
		err := rows.Scan(&p.ID, &p.CommerceID, &sectionID, &p.Title, &p.Description,
			&p.Active, &p.ViewsCount, &p.CreatedAt, &p.UpdatedAt,
			&p.LikesCount, &p.SavesCount, &p.LikedByMe)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enriched post row: %w", err)
		}
		if sectionID.Valid {
			p.SectionID = &sectionID.Int64
		}
		p.InteractionsCount = p.LikesCount + p.SavesCount
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enriched post rows: %w", err)
	}
	return posts, nil
}

// CommerceIDsWithActivePosts resolves the active-post signal for an id set.
func (r *PostgresRepository) CommerceIDsWithActivePosts(ctx context.Context, commerceIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(commerceIDs))
	if len(commerceIDs) == 0 {
		return result, nil
	}

	query := `SELECT DISTINCT commerce_id FROM posts
	          WHERE commerce_id = ANY($1) AND active = TRUE`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(commerceIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active-post signals: %w", err)
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

// ToggleLike flips the (user, post) like.
func (r *PostgresRepository) ToggleLike(ctx context.Context, userID, postID int64) (_ bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_likes", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM post_likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read toggle result: %w", err)
	}
	if deleted > 0 {
		return false, nil
	}

	// No like existed. Insert one; a concurrent request may have inserted
	// first, in which case the unique constraint absorbs ours and the like
	// exists either way.
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO post_likes (user_id, post_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, post_id) DO NOTHING`, userID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to create like: %w", err)
	}
	return true, nil
}

// Save bookmarks a post for a user.
func (r *PostgresRepository) Save(ctx context.Context, userID, postID int64) (*SavedPost, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check post %d: %w", postID, err)
	}
	if !exists {
		return nil, ErrPostNotFound
	}

	query := `INSERT INTO saved_posts (user_id, post_id, created_at)
	          VALUES ($1, $2, NOW())
	          ON CONFLICT (user_id, post_id) DO NOTHING
	          RETURNING id, user_id, post_id, created_at`

	var saved SavedPost
	err = r.db.QueryRowContext(ctx, query, userID, postID).Scan(
		&saved.ID, &saved.UserID, &saved.PostID, &saved.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			// The conflict path: the pair already exists.
			return nil, ErrAlreadySaved
		}
		return nil, fmt.Errorf("failed to save post %d: %w", postID, err)
	}
	return &saved, nil
}

// Unsave removes a bookmark.
func (r *PostgresRepository) Unsave(ctx context.Context, userID, postID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM saved_posts WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return fmt.Errorf("failed to unsave post %d: %w", postID, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read unsave result: %w", err)
	}
	if deleted == 0 {
		return ErrNotSaved
	}
	return nil
}

// ListSavedByUser retrieves the user's saved posts, most recently saved first.
func (r *PostgresRepository) ListSavedByUser(ctx context.Context, userID int64) ([]*Post, error) {
	query := `SELECT ` + postColumns + `
	          FROM saved_posts sp JOIN posts p ON p.id = sp.post_id
	          WHERE sp.user_id = $1
	          ORDER BY sp.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPosts(rows)
}

// fillCounts resolves the engagement counters for a single post.
func (r *PostgresRepository) fillCounts(ctx context.Context, p *Post, viewerID *int64) error {
	query := `SELECT
	            (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = $1),
	            (SELECT COUNT(*) FROM saved_posts sp WHERE sp.post_id = $1),
	            CASE WHEN $2::BIGINT IS NULL THEN FALSE
	                 ELSE EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = $1 AND l.user_id = $2)
	            END`

	var viewer sql.NullInt64
	if viewerID != nil {
		viewer = sql.NullInt64{Int64: *viewerID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, p.ID, viewer).Scan(&p.LikesCount, &p.SavesCount, &p.LikedByMe)
	if err != nil {
		return fmt.Errorf("failed to resolve counts for post %d: %w", p.ID, err)
	}
	p.InteractionsCount = p.LikesCount + p.SavesCount
	return nil
}

func collectPosts(rows *sql.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}
	return posts, nil
}

// pairKey identifies a (user, post) engagement row.
type pairKey struct {
	userID int64
	postID int64
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu          sync.RWMutex
	nextID      int64
	nextSavedID int64
	posts       map[int64]*Post
	likes       map[pairKey]time.Time
	saved       map[pairKey]*SavedPost
}

// NewInMemoryRepository creates a new in-memory post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		posts: make(map[int64]*Post),
		likes: make(map[pairKey]time.Time),
		saved: make(map[pairKey]*SavedPost),
	}
}

// Create inserts a new post with a generated id. A caller-provided
// CreatedAt is kept so tests can build posts of known ages.
func (r *InMemoryRepository) Create(ctx context.Context, p *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now()
	p.ID = r.nextID
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	postCopy := *p
	r.posts[p.ID] = &postCopy
	return nil
}

// ListByCommerce retrieves all posts of a commerce, newest first.
func (r *InMemoryRepository) ListByCommerce(ctx context.Context, commerceID int64) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*Post
	for _, p := range r.posts {
		if p.CommerceID == commerceID {
			postCopy := *p
			posts = append(posts, &postCopy)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

// GetActiveAndCountView retrieves an active post and increments its views.
func (r *InMemoryRepository) GetActiveAndCountView(ctx context.Context, id int64) (*Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok || !p.Active {
		return nil, ErrPostNotFound
	}
	p.ViewsCount++

	postCopy := *p
	r.enrichLocked(&postCopy, nil)
	return &postCopy, nil
}

// ListActiveEnriched retrieves all active posts with engagement counts.
func (r *InMemoryRepository) ListActiveEnriched(ctx context.Context, viewerID *int64) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*Post
	for _, p := range r.posts {
		if !p.Active {
			continue
		}
		postCopy := *p
		r.enrichLocked(&postCopy, viewerID)
		posts = append(posts, &postCopy)
	}
	return posts, nil
}

// CommerceIDsWithActivePosts resolves the active-post signal for an id set.
func (r *InMemoryRepository) CommerceIDsWithActivePosts(ctx context.Context, commerceIDs []int64) (map[int64]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[int64]bool, len(commerceIDs))
	for _, id := range commerceIDs {
		wanted[id] = true
	}

	result := make(map[int64]bool)
	for _, p := range r.posts {
		if p.Active && wanted[p.CommerceID] {
			result[p.CommerceID] = true
		}
	}
	return result, nil
}

// ToggleLike flips the (user, post) like.
func (r *InMemoryRepository) ToggleLike(ctx context.Context, userID, postID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{userID: userID, postID: postID}
	if _, ok := r.likes[key]; ok {
		delete(r.likes, key)
		return false, nil
	}
	r.likes[key] = time.Now()
	return true, nil
}

// Save bookmarks a post for a user.
func (r *InMemoryRepository) Save(ctx context.Context, userID, postID int64) (*SavedPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[postID]; !ok {
		return nil, ErrPostNotFound
	}

	key := pairKey{userID: userID, postID: postID}
	if _, ok := r.saved[key]; ok {
		return nil, ErrAlreadySaved
	}

	r.nextSavedID++
	saved := &SavedPost{
		ID:        r.nextSavedID,
		UserID:    userID,
		PostID:    postID,
		CreatedAt: time.Now(),
	}
	r.saved[key] = saved

	savedCopy := *saved
	return &savedCopy, nil
}

// Unsave removes a bookmark.
func (r *InMemoryRepository) Unsave(ctx context.Context, userID, postID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{userID: userID, postID: postID}
	if _, ok := r.saved[key]; !ok {
		return ErrNotSaved
	}
	delete(r.saved, key)
	return nil
}

// ListSavedByUser retrieves the user's saved posts, most recently saved first.
func (r *InMemoryRepository) ListSavedByUser(ctx context.Context, userID int64) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*SavedPost
	for _, saved := range r.saved {
		if saved.UserID == userID {
			entries = append(entries, saved)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })

	var posts []*Post
	for _, saved := range entries {
		if p, ok := r.posts[saved.PostID]; ok {
			postCopy := *p
			posts = append(posts, &postCopy)
		}
	}
	return posts, nil
}

// enrichLocked fills the computed engagement counters. Caller holds the lock.
func (r *InMemoryRepository) enrichLocked(p *Post, viewerID *int64) {
	likes, saves := 0, 0
	likedByMe := false
	for key := range r.likes {
		if key.postID == p.ID {
			likes++
			if viewerID != nil && key.userID == *viewerID {
				likedByMe = true
			}
		}
	}
	for key := range r.saved {
		if key.postID == p.ID {
			saves++
		}
	}
	p.LikesCount = likes
	p.SavesCount = saves
	p.InteractionsCount = likes + saves
	p.LikedByMe = likedByMe
}
