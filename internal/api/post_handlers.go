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
	"github.com/miplaza/backend/internal/validate"
)

// Post text validation constraints.
const (
	MaxPostTitleLength       = validate.MaxPostTitleLength
	MaxPostDescriptionLength = validate.MaxDescriptionLength
)

// CreatePostRequest represents the request body for creating a post.
type CreatePostRequest struct {
	CommerceID  int64  `json:"commerce_id"`
	SectionID   *int64 `json:"section_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// LikeResponse represents the response for the like toggle.
// Status is "created" when the like was added and "removed" when the
// same call deleted an existing like.
type LikeResponse struct {
	Status string `json:"status"`
	PostID int64  `json:"post_id"`
}

// PostListResponse represents the response for post listings.
type PostListResponse struct {
	Results []*post.Post `json:"results"`
	Count   int          `json:"count"`
}

// PostHandlers holds dependencies for post HTTP handlers.
type PostHandlers struct {
	posts     post.Repository
	commerces commerce.Repository
}

// NewPostHandlers creates a new PostHandlers instance.
func NewPostHandlers(posts post.Repository, commerces commerce.Repository) *PostHandlers {
	return &PostHandlers{
		posts:     posts,
		commerces: commerces,
	}
}

// validatePostContent validates post title and description.
// Returns an error message if validation fails, empty string if valid.
func validatePostContent(title, description string) string {
	if _, err := validate.PostTitle(title); err != nil {
		if errors.Is(err, validate.ErrEmpty) {
			return "title is required"
		}
		return fmt.Sprintf("title must not exceed %d characters", MaxPostTitleLength)
	}
	if _, err := validate.Description(description); err != nil {
		return fmt.Sprintf("description must not exceed %d characters", MaxPostDescriptionLength)
	}
	return ""
}

// extractPostID extracts the post ID from the URL path.
func extractPostID(r *http.Request) (int64, error) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/posts/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		return 0, fmt.Errorf("post ID is required")
	}
	id, err := strconv.ParseInt(pathParts[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("post ID must be a positive integer")
	}
	return id, nil
}

// CreatePost handles POST /posts - publishes a post under one of the caller's commerces.
func (h *PostHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req CreatePostRequest
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

	if errMsg := validatePostContent(req.Title, req.Description); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	// The post must belong to a commerce owned by the caller.
	owner, err := h.commerces.GetByID(r.Context(), req.CommerceID)
	if err != nil {
		if errors.Is(err, commerce.ErrCommerceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Commerce not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to resolve commerce", "error", err, "commerce_id", req.CommerceID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create post")
		return
	}
	if owner.UserID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotOwner)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeNotOwner, "Commerce belongs to a different user")
		return
	}

	newPost := &post.Post{
		CommerceID:  req.CommerceID,
		SectionID:   req.SectionID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Active:      true,
	}

	if err := h.posts.Create(r.Context(), newPost); err != nil {
		slog.ErrorContext(r.Context(), "failed to create post", "error", err, "commerce_id", req.CommerceID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create post")
		return
	}

	writeJSON(w, r, http.StatusCreated, newPost)
}

// ListCommercePosts handles GET /commerces/{id}/posts.
func (h *PostHandlers) ListCommercePosts(w http.ResponseWriter, r *http.Request) {
	commerceID, err := extractCommerceID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	posts, err := h.posts.ListByCommerce(r.Context(), commerceID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list commerce posts", "error", err, "commerce_id", commerceID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve posts")
		return
	}

	writeJSON(w, r, http.StatusOK, PostListResponse{Results: posts, Count: len(posts)})
}

// GetPost handles GET /posts/{id} - returns an active post and counts the view.
// Every successful detail fetch increments the view counter.
func (h *PostHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	p, err := h.posts.GetActiveAndCountView(r.Context(), postID)
	if err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get post", "error", err, "post_id", postID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve post")
		return
	}

	writeJSON(w, r, http.StatusOK, p)
}

// ToggleLike handles POST /posts/{id}/like - likes or unlikes in a single call.
func (h *PostHandlers) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	created, err := h.posts.ToggleLike(r.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, post.ErrPostNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to toggle like", "error", err, "post_id", postID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to toggle like")
		return
	}

	status := "removed"
	statusCode := http.StatusOK
	if created {
		status = "created"
		statusCode = http.StatusCreated
	}

	writeJSON(w, r, statusCode, LikeResponse{Status: status, PostID: postID})
}

// SavePost handles POST /posts/{id}/save - bookmarks a post for the caller.
func (h *PostHandlers) SavePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	saved, err := h.posts.Save(r.Context(), userID, postID)
	if err != nil {
		switch {
		case errors.Is(err, post.ErrAlreadySaved):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAlreadySaved)
			WriteError(w, ctx, http.StatusConflict, ErrCodeAlreadySaved, "Post is already saved")
		case errors.Is(err, post.ErrPostNotFound):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Post not found")
		default:
			slog.ErrorContext(r.Context(), "failed to save post", "error", err, "post_id", postID)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to save post")
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, saved)
}

// UnsavePost handles DELETE /posts/{id}/save - removes a bookmark.
func (h *PostHandlers) UnsavePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	postID, err := extractPostID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if err := h.posts.Unsave(r.Context(), userID, postID); err != nil {
		if errors.Is(err, post.ErrNotSaved) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotSaved)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeNotSaved, "Post is not saved")
			return
		}
		slog.ErrorContext(r.Context(), "failed to unsave post", "error", err, "post_id", postID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to unsave post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSavedPosts handles GET /saved-posts - returns the caller's bookmarks.
func (h *PostHandlers) ListSavedPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	posts, err := h.posts.ListSavedByUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list saved posts", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve saved posts")
		return
	}

	writeJSON(w, r, http.StatusOK, PostListResponse{Results: posts, Count: len(posts)})
}
