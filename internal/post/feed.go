package post

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Recency bonus tiers, in hours since publication.
const (
	recencyDayHours   = 24
	recencyShortHours = 72
	recencyWeekHours  = 168

	bonusDay   = 3
	bonusShort = 2
	bonusWeek  = 1
)

// RecencyBonus returns the freshness contribution of a post published at
// createdAt, evaluated at now. Boundaries are inclusive, so a post exactly
// one day old still earns the full bonus.
func RecencyBonus(createdAt, now time.Time) int {
	age := now.Sub(createdAt)
	switch {
	case age <= recencyDayHours*time.Hour:
		return bonusDay
	case age <= recencyShortHours*time.Hour:
		return bonusShort
	case age <= recencyWeekHours*time.Hour:
		return bonusWeek
	default:
		return 0
	}
}

// Score computes the feed score of an enriched post. Saves weigh double
// because a save is a stronger intent signal than a like.
func Score(p *Post, now time.Time) int {
	return p.LikesCount + 2*p.SavesCount + RecencyBonus(p.CreatedAt, now)
}

// Feed ranks active posts by engagement and freshness.
type Feed struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewFeed creates a feed ranker over the given repository.
func NewFeed(repo Repository, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{repo: repo, logger: logger, now: time.Now}
}

// Personalized returns the ranked feed for a viewer. A nil viewerID yields
// the same ordering with liked_by_me false on every post.
func (f *Feed) Personalized(ctx context.Context, viewerID *int64) ([]*Post, error) {
	posts, err := f.repo.ListActiveEnriched(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	f.rank(posts)
	return posts, nil
}

// GlobalRanking returns the anonymous feed. The ordering is identical to a
// personalized feed over the same data.
func (f *Feed) GlobalRanking(ctx context.Context) ([]*Post, error) {
	return f.Personalized(ctx, nil)
}

// rank sorts posts by score descending, breaking ties by publication time
// so newer posts surface first within a score band.
func (f *Feed) rank(posts []*Post) {
	now := f.now()
	scores := make(map[int64]int, len(posts))
	for _, p := range posts {
		scores[p.ID] = Score(p, now)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		si, sj := scores[posts[i].ID], scores[posts[j].ID]
		if si != sj {
			return si > sj
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
