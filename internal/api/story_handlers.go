// Package api provides HTTP handlers for the MiPlaza API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/miplaza/backend/internal/commerce"
	"github.com/miplaza/backend/internal/middleware"
	"github.com/miplaza/backend/internal/post"
	"github.com/miplaza/backend/internal/story"
	"github.com/miplaza/backend/internal/validate"
)

// CreateStoryRequest represents the request body for creating a story.
// PostID optionally links the story to one of the commerce's posts.
type CreateStoryRequest struct {
	CommerceID int64  `json:"commerce_id"`
	PostID     *int64 `json:"post_id,omitempty"`
	MediaURL   string `json:"media_url"`
	Caption    string `json:"caption,omitempty"`
}

// StoryListResponse represents the response for story listings.
type StoryListResponse struct {
	Results []*story.Story `json:"results"`
	Count   int            `json:"count"`
}

// StoryHandlers holds dependencies for story HTTP handlers.
type StoryHandlers struct {
	stories   story.Repository
	commerces commerce.Repository
	posts     post.Repository
}

// NewStoryHandlers creates a new StoryHandlers instance.
func NewStoryHandlers(stories story.Repository, commerces commerce.Repository, posts post.Repository) *StoryHandlers {
	return &StoryHandlers{
		stories:   stories,
		commerces: commerces,
		posts:     posts,
	}
}

// extractStoryID extracts the story ID from the URL path.
func extractStoryID(r *http.Request) (int64, error) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/stories/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		return 0, fmt.Errorf("story ID is required")
	}
	id, err := strconv.ParseInt(pathParts[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("story ID must be a positive integer")
	}
	return id, nil
}

// CreateStory handles POST /stories - publishes an ephemeral story.
// Stories expire automatically; the default lifetime is 24 hours.
func (h *StoryHandlers) CreateStory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.CommerceID < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "commerce_id is required")
		return
	}
	mediaURL, err := validate.MediaURL(req.MediaURL)
	if err != nil {
		msg := "media_url must be a valid http or https URL"
		if errors.Is(err, validate.ErrEmpty) {
			msg = "media_url is required"
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, msg)
		return
	}
	caption, err := validate.Caption(req.Caption)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("caption must be at most %d characters", validate.MaxCaptionLength))
		return
	}

	owner, err := h.commerces.GetByID(r.Context(), req.CommerceID)
	if err != nil {
		if errors.Is(err, commerce.ErrCommerceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Commerce not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve commerce", "error", err, "commerce_id", req.CommerceID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create story")
		return
	}
	if owner.UserID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotOwner)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeNotOwner, "Commerce belongs to a different user")
		return
	}

	if req.PostID != nil {
		ok, err := h.postBelongsToCommerce(r, *req.PostID, req.CommerceID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to resolve post", "error", err, "post_id", *req.PostID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create story")
			return
		}
		if !ok {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
				"post_id must reference a post of the same commerce")
			return
		}
	}

	newStory := &story.Story{
		CommerceID: req.CommerceID,
		PostID:     req.PostID,
		MediaURL:   mediaURL,
		Caption:    caption,
	}

	if err := h.stories.Create(r.Context(), newStory); err != nil {
		slog.ErrorContext(r.Context(), "failed to create story", "error", err, "commerce_id", req.CommerceID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create story")
		return
	}

	writeJSON(w, r, http.StatusCreated, newStory)
}

// postBelongsToCommerce reports whether the post exists under the commerce.
func (h *StoryHandlers) postBelongsToCommerce(r *http.Request, postID, commerceID int64) (bool, error) {
	posts, err := h.posts.ListByCommerce(r.Context(), commerceID)
	if err != nil {
		return false, err
	}
	for _, p := range posts {
		if p.ID == postID {
			return true, nil
		}
	}
	return false, nil
}

// ListCommerceStories handles GET /commerces/{id}/stories - visible stories
// only. Identity is optional: an authenticated caller gets vista_by_me
// resolved against their own views, anonymous callers get false.
func (h *StoryHandlers) ListCommerceStories(w http.ResponseWriter, r *http.Request) {
	commerceID, err := extractCommerceID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var viewerID int64
	if id, ok := middleware.GetUserID(r.Context()); ok {
		viewerID = id
	}

	stories, err := h.stories.ListActiveByCommerce(r.Context(), commerceID, viewerID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list commerce stories", "error", err, "commerce_id", commerceID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve stories")
		return
	}

	writeJSON(w, r, http.StatusOK, StoryListResponse{Results: stories, Count: len(stories)})
}

// MarkStoryViewed handles POST /stories/{id}/view - records that the caller
// has seen a story. Repeated calls return the original view unchanged.
func (h *StoryHandlers) MarkStoryViewed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	storyID, err := extractStoryID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	view, err := h.stories.MarkViewed(r.Context(), userID, storyID)
	if err != nil {
		if errors.Is(err, story.ErrStoryNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Story not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to mark story viewed", "error", err, "story_id", storyID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record story view")
		return
	}

	writeJSON(w, r, http.StatusOK, view)
}
