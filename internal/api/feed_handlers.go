// Package api provides HTTP handlers for the MiPlaza API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/miplaza/backend/internal/middleware"
	"github.com/miplaza/backend/internal/post"
)

// FeedHandlers holds dependencies for the feed and global ranking endpoints.
type FeedHandlers struct {
	feed *post.Feed
}

// NewFeedHandlers creates a new FeedHandlers instance.
func NewFeedHandlers(feed *post.Feed) *FeedHandlers {
	return &FeedHandlers{feed: feed}
}

// GetFeed handles GET /feed - the engagement-ranked post feed.
// When the caller is authenticated, posts carry liked_by_me for them;
// anonymous callers get the same ordering without personalization.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	var viewerID *int64
	if id, ok := middleware.GetUserID(r.Context()); ok {
		viewerID = &id
	}

	posts, err := h.feed.Personalized(r.Context(), viewerID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build feed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build feed")
		return
	}

	writeJSON(w, r, http.StatusOK, PostListResponse{Results: posts, Count: len(posts)})
}

// GetRanking handles GET /ranking - the global post ranking without personalization.
func (h *FeedHandlers) GetRanking(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feed.GlobalRanking(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build ranking", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build ranking")
		return
	}

	writeJSON(w, r, http.StatusOK, PostListResponse{Results: posts, Count: len(posts)})
}
