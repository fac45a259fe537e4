package story

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMarkViewedIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	s := &Story{CommerceID: 1, MediaURL: "https://cdn.example/s1.jpg"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, err := repo.MarkViewed(ctx, 7, s.ID)
	if err != nil {
		t.Fatalf("first MarkViewed() error = %v", err)
	}

	second, err := repo.MarkViewed(ctx, 7, s.ID)
	if err != nil {
		t.Fatalf("repeated MarkViewed() error = %v", err)
	}
	if second.ID != first.ID || !second.ViewedAt.Equal(first.ViewedAt) {
		t.Errorf("repeated view = %+v, want the original row %+v", second, first)
	}

	// A different user produces a distinct view.
	other, err := repo.MarkViewed(ctx, 8, s.ID)
	if err != nil {
		t.Fatalf("MarkViewed() for other user error = %v", err)
	}
	if other.ID == first.ID {
		t.Error("views of different users must be distinct rows")
	}

	stories, err := repo.ListActiveByCommerce(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListActiveByCommerce() error = %v", err)
	}
	if stories[0].ViewsCount != 2 {
		t.Errorf("views_count = %d, want 2", stories[0].ViewsCount)
	}
}

func TestMarkViewedUnknownStory(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	if _, err := repo.MarkViewed(ctx, 7, 999); !errors.Is(err, ErrStoryNotFound) {
		t.Errorf("MarkViewed() error = %v, want ErrStoryNotFound", err)
	}
}

func TestListActiveExcludesExpiredAndInactive(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now()

	visible := &Story{CommerceID: 1, MediaURL: "v", ExpiresAt: now.Add(time.Hour)}
	expired := &Story{CommerceID: 1, MediaURL: "e", ExpiresAt: now.Add(-time.Hour)}
	deactivated := &Story{CommerceID: 1, MediaURL: "d", ExpiresAt: now.Add(time.Hour)}
	for _, s := range []*Story{visible, expired, deactivated} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := repo.Deactivate(ctx, deactivated.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	stories, err := repo.ListActiveByCommerce(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListActiveByCommerce() error = %v", err)
	}
	if len(stories) != 1 || stories[0].MediaURL != "v" {
		t.Errorf("visible stories = %v, want just the unexpired active one", stories)
	}
}

func TestCommerceIDsWithActiveStories(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now()

	live := &Story{CommerceID: 1, MediaURL: "a", ExpiresAt: now.Add(time.Hour)}
	expired := &Story{CommerceID: 2, MediaURL: "b", ExpiresAt: now.Add(-time.Minute)}
	for _, s := range []*Story{live, expired} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	signals, err := repo.CommerceIDsWithActiveStories(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("CommerceIDsWithActiveStories() error = %v", err)
	}
	if !signals[1] {
		t.Error("commerce 1 has a live story, signal missing")
	}
	if signals[2] {
		t.Error("commerce 2 only has an expired story, signal should be absent")
	}
	if signals[3] {
		t.Error("commerce 3 has no stories, signal should be absent")
	}
}

func TestCreateAppliesDefaultTTL(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	s := &Story{CommerceID: 1, MediaURL: "m"}
	before := time.Now()
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	want := before.Add(DefaultTTL)
	if s.ExpiresAt.Before(want.Add(-time.Minute)) || s.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about %v", s.ExpiresAt, want)
	}
	if !s.Active {
		t.Error("new stories start active")
	}
}

func TestDeactivateExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	expired := &Story{CommerceID: 1, MediaURL: "a", ExpiresAt: time.Now().Add(-time.Hour)}
	fresh := &Story{CommerceID: 1, MediaURL: "b", ExpiresAt: time.Now().Add(time.Hour)}
	for _, s := range []*Story{expired, fresh} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	swept, err := repo.DeactivateExpired(ctx)
	if err != nil {
		t.Fatalf("DeactivateExpired() error = %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}

	// A second sweep finds nothing left to flip.
	swept, err = repo.DeactivateExpired(ctx)
	if err != nil {
		t.Fatalf("repeated DeactivateExpired() error = %v", err)
	}
	if swept != 0 {
		t.Errorf("repeated sweep = %d, want 0", swept)
	}

	stories, err := repo.ListActiveByCommerce(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListActiveByCommerce() error = %v", err)
	}
	if len(stories) != 1 || stories[0].ID != fresh.ID {
		t.Errorf("visible stories = %+v, want only the unexpired one", stories)
	}
}

func TestListActiveResolvesViewedByMe(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	s := &Story{CommerceID: 1, MediaURL: "https://cdn.example/s1.jpg"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.MarkViewed(ctx, 42, s.ID); err != nil {
		t.Fatalf("MarkViewed() error = %v", err)
	}

	tests := []struct {
		name     string
		viewerID int64
		want     bool
	}{
		{"viewer who saw it", 42, true},
		{"viewer who did not", 7, false},
		{"anonymous", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stories, err := repo.ListActiveByCommerce(ctx, 1, tt.viewerID)
			if err != nil {
				t.Fatalf("ListActiveByCommerce() error = %v", err)
			}
			if len(stories) != 1 {
				t.Fatalf("len(stories) = %d, want 1", len(stories))
			}
			if stories[0].ViewedByMe != tt.want {
				t.Errorf("ViewedByMe = %v, want %v", stories[0].ViewedByMe, tt.want)
			}
			if stories[0].ViewsCount != 1 {
				t.Errorf("ViewsCount = %d, want 1", stories[0].ViewsCount)
			}
		})
	}
}

func TestCreateKeepsPostAssociation(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	postID := int64(9)
	s := &Story{CommerceID: 1, PostID: &postID, MediaURL: "m"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	stories, err := repo.ListActiveByCommerce(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ListActiveByCommerce() error = %v", err)
	}
	if stories[0].PostID == nil || *stories[0].PostID != postID {
		t.Errorf("PostID = %v, want %d", stories[0].PostID, postID)
	}
}
