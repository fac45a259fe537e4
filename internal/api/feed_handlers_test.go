package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miplaza/backend/internal/post"
)

func newFeedFixture(t *testing.T) (*FeedHandlers, post.Repository) {
	t.Helper()
	posts := post.NewInMemoryRepository()
	return NewFeedHandlers(post.NewFeed(posts, nil)), posts
}

func seedFeedPost(t *testing.T, posts post.Repository, title string) *post.Post {
	t.Helper()
	p := &post.Post{CommerceID: 1, Title: title, Active: true}
	if err := posts.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	return p
}

func TestGetFeedOrdersByEngagement(t *testing.T) {
	handlers, posts := newFeedFixture(t)
	ctx := context.Background()

	seedFeedPost(t, posts, "Sin likes")
	popular := seedFeedPost(t, posts, "Con likes")
	for userID := int64(10); userID < 13; userID++ {
		if _, err := posts.ToggleLike(ctx, userID, popular.ID); err != nil {
			t.Fatalf("failed to like post: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rec := httptest.NewRecorder()
	handlers.GetFeed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp PostListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 posts, got %d", resp.Count)
	}
	if resp.Results[0].Title != "Con likes" {
		t.Errorf("expected the liked post first, got %s", resp.Results[0].Title)
	}
}

func TestGetFeedPersonalization(t *testing.T) {
	handlers, posts := newFeedFixture(t)
	ctx := context.Background()

	p := seedFeedPost(t, posts, "Me gusta")
	if _, err := posts.ToggleLike(ctx, 7, p.ID); err != nil {
		t.Fatalf("failed to like post: %v", err)
	}

	// Anonymous viewers never see liked_by_me set.
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rec := httptest.NewRecorder()
	handlers.GetFeed(rec, req)

	var resp PostListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Results[0].LikedByMe {
		t.Error("expected liked_by_me false for anonymous viewer")
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/feed", nil), 7)
	rec = httptest.NewRecorder()
	handlers.GetFeed(rec, req)

	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Results[0].LikedByMe {
		t.Error("expected liked_by_me true for the liking viewer")
	}
}

func TestGetRanking(t *testing.T) {
	handlers, posts := newFeedFixture(t)
	ctx := context.Background()

	seedFeedPost(t, posts, "Guardado")
	if _, err := posts.Save(ctx, 7, 1); err != nil {
		t.Fatalf("failed to save post: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/ranking", nil)
	rec := httptest.NewRecorder()
	handlers.GetRanking(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp PostListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 post, got %d", resp.Count)
	}
	if resp.Results[0].SavesCount != 1 {
		t.Errorf("expected saves_count 1, got %d", resp.Results[0].SavesCount)
	}
}
