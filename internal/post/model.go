// Package post provides models, repository and feed ranking for commerce
// posts, together with the idempotent engagement signals (likes, saves,
// views) that feed the ranking.
package post

import "time"

// Post represents a content item belonging to exactly one commerce.
// The engagement counters are computed on read, never stored.
type Post struct {
	ID          int64  `json:"id"`
	CommerceID  int64  `json:"commerce_id"`
	SectionID   *int64 `json:"section_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Active bool `json:"active"`

	// ViewsCount is a monotonic, server-incremented view counter.
	ViewsCount int64 `json:"views_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Computed enrichment for feed/ranking responses.
	LikesCount        int  `json:"likes_count"`
	SavesCount        int  `json:"saves_count"`
	InteractionsCount int  `json:"interactions_count"`
	LikedByMe         bool `json:"liked_by_me"`
}

// SavedPost is a user's bookmark of a post. The (user, post) pair is unique;
// duplicate saves are rejected at the domain level.
type SavedPost struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	PostID    int64     `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
