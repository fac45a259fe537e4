package story

import "time"

// Story is a short-lived promotional item attached to a commerce. It is
// visible while active and not yet expired.
type Story struct {
	ID         int64     `json:"id"`
	CommerceID int64     `json:"commerce_id"`
	PostID     *int64    `json:"post_id,omitempty"`
	MediaURL   string    `json:"media_url"`
	Caption    string    `json:"caption,omitempty"`
	Active     bool      `json:"active"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	ViewsCount int       `json:"views_count"`

	// ViewedByMe is resolved per viewer on listings; always false for
	// anonymous requests. The wire name follows the mobile client's field.
	ViewedByMe bool `json:"vista_by_me"`
}

// Visible reports whether the story should be shown at the given instant.
func (s *Story) Visible(now time.Time) bool {
	return s.Active && s.ExpiresAt.After(now)
}

// View records that a user has seen a story. At most one row exists per
// (user, story) pair.
type View struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	StoryID  int64     `json:"story_id"`
	ViewedAt time.Time `json:"viewed_at"`
}

// DefaultTTL is how long a new story stays visible when the caller does not
// choose an expiry.
const DefaultTTL = 24 * time.Hour
