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
	"github.com/miplaza/backend/internal/validate"
)

// Commerce listing pagination bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// CreateCommerceRequest represents the request body for creating a commerce.
type CreateCommerceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url,omitempty"`
	SectionID   *int64 `json:"section_id,omitempty"`
	Province    string `json:"province"`
	City        string `json:"city"`
	Address     string `json:"address,omitempty"`
	Whatsapp    string `json:"whatsapp,omitempty"`
	Instagram   string `json:"instagram,omitempty"`
	MapsURL     string `json:"maps_url,omitempty"`
}

// UpdateCommerceRequest represents the request body for updating a commerce.
// All fields are required; the update replaces the owner-mutable profile.
type UpdateCommerceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url,omitempty"`
	SectionID   *int64 `json:"section_id,omitempty"`
	Province    string `json:"province"`
	City        string `json:"city"`
	Address     string `json:"address,omitempty"`
	Whatsapp    string `json:"whatsapp,omitempty"`
	Instagram   string `json:"instagram,omitempty"`
	MapsURL     string `json:"maps_url,omitempty"`
}

// CommerceListResponse represents the response for commerce listings.
type CommerceListResponse struct {
	Results []*commerce.Commerce `json:"results"`
	Count   int                  `json:"count"`
}

// CommerceHandlers holds dependencies for commerce HTTP handlers.
type CommerceHandlers struct {
	service *commerce.Service
	ranker  *commerce.Ranker
}

// NewCommerceHandlers creates a new CommerceHandlers instance.
func NewCommerceHandlers(service *commerce.Service, ranker *commerce.Ranker) *CommerceHandlers {
	return &CommerceHandlers{
		service: service,
		ranker:  ranker,
	}
}

// validateCommerceProfile validates the commerce profile fields.
// Returns an error message if validation fails, empty string if valid.
func validateCommerceProfile(name, description, coverURL, province, city string) string {
	if _, err := validate.CommerceName(name); err != nil {
		if errors.Is(err, validate.ErrEmpty) {
			return "name is required"
		}
		return fmt.Sprintf("name must be at most %d characters", validate.MaxCommerceNameLength)
	}
	if _, err := validate.Description(description); err != nil {
		return fmt.Sprintf("description must be at most %d characters", validate.MaxDescriptionLength)
	}
	if coverURL != "" {
		if _, err := validate.CoverURL(coverURL); err != nil {
			return "cover_url must be a valid https URL"
		}
	}
	if strings.TrimSpace(province) == "" {
		return "province is required"
	}
	if strings.TrimSpace(city) == "" {
		return "city is required"
	}
	return ""
}

// extractCommerceID extracts the commerce ID from the URL path.
func extractCommerceID(r *http.Request) (int64, error) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/commerces/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		return 0, fmt.Errorf("commerce ID is required")
	}
	id, err := strconv.ParseInt(pathParts[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("commerce ID must be a positive integer")
	}
	return id, nil
}

// parsePagination parses limit and offset query parameters with defaults.
// Returns an error message when a parameter is malformed.
func parsePagination(r *http.Request) (limit, offset int, errMsg string) {
	limit = DefaultListLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return 0, 0, "limit must be a positive integer"
		}
		if parsed > MaxListLimit {
			parsed = MaxListLimit
		}
		limit = parsed
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return 0, 0, "offset must be a non-negative integer"
		}
		offset = parsed
	}

	return limit, offset, ""
}

// CreateCommerce handles POST /commerces - registers a new commerce for the caller.
func (h *CommerceHandlers) CreateCommerce(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req CreateCommerceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if errMsg := validateCommerceProfile(req.Name, req.Description, req.CoverURL, req.Province, req.City); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	created, err := h.service.Create(r.Context(), &commerce.Commerce{
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CoverURL:    req.CoverURL,
		SectionID:   req.SectionID,
		Province:    strings.TrimSpace(req.Province),
		City:        strings.TrimSpace(req.City),
		Address:     req.Address,
		Whatsapp:    req.Whatsapp,
		Instagram:   req.Instagram,
		MapsURL:     req.MapsURL,
		Active:      true,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create commerce", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create commerce")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		return
	}
}

// ListMyCommerces handles GET /commerces - lists the caller's own commerces.
func (h *CommerceHandlers) ListMyCommerces(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	results, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list commerces", "error", err, "user_id", userID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list commerces")
		return
	}

	writeJSON(w, r, http.StatusOK, CommerceListResponse{Results: results, Count: len(results)})
}

// ListActiveCommerces handles GET /commerces/active - the public discovery listing.
// Ranking mode is selected by the q, smart and smart_semantic query parameters.
func (h *CommerceHandlers) ListActiveCommerces(w http.ResponseWriter, r *http.Request) {
	limit, offset, errMsg := parsePagination(r)
	if errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	query := r.URL.Query()
	params := commerce.SearchParams{
		Query:    query.Get("q"),
		Smart:    parseBoolParam(query.Get("smart")),
		Semantic: parseBoolParam(query.Get("smart_semantic")),
		Limit:    limit,
		Offset:   offset,
	}

	results, err := h.ranker.ListActive(r.Context(), params)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list active commerces", "error", err, "q", params.Query)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list commerces")
		return
	}

	writeJSON(w, r, http.StatusOK, CommerceListResponse{Results: results, Count: len(results)})
}

// GetCommerce handles GET /commerces/{id} - returns an active commerce.
func (h *CommerceHandlers) GetCommerce(w http.ResponseWriter, r *http.Request) {
	id, err := extractCommerceID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	c, err := h.service.GetActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, commerce.ErrCommerceNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Commerce not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get commerce", "error", err, "commerce_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve commerce")
		return
	}

	writeJSON(w, r, http.StatusOK, c)
}

// UpdateCommerce handles PUT /commerces/{id} - replaces the owner-mutable profile.
func (h *CommerceHandlers) UpdateCommerce(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	id, err := extractCommerceID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var req UpdateCommerceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if errMsg := validateCommerceProfile(req.Name, req.Description, req.CoverURL, req.Province, req.City); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, id, commerce.UpdateParams{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CoverURL:    req.CoverURL,
		SectionID:   req.SectionID,
		Province:    strings.TrimSpace(req.Province),
		City:        strings.TrimSpace(req.City),
		Address:     req.Address,
		Whatsapp:    req.Whatsapp,
		Instagram:   req.Instagram,
		MapsURL:     req.MapsURL,
	})
	if err != nil {
		h.writeOwnershipError(w, r, err, id)
		return
	}

	writeJSON(w, r, http.StatusOK, updated)
}

// DeactivateCommerce handles POST /commerces/{id}/deactivate.
func (h *CommerceHandlers) DeactivateCommerce(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// ReactivateCommerce handles POST /commerces/{id}/reactivate.
func (h *CommerceHandlers) ReactivateCommerce(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *CommerceHandlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	id, err := extractCommerceID(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	var c *commerce.Commerce
	if active {
		c, err = h.service.Reactivate(r.Context(), userID, id)
	} else {
		c, err = h.service.Deactivate(r.Context(), userID, id)
	}
	if err != nil {
		h.writeOwnershipError(w, r, err, id)
		return
	}

	writeJSON(w, r, http.StatusOK, c)
}

// writeOwnershipError maps service errors from owner-scoped mutations.
func (h *CommerceHandlers) writeOwnershipError(w http.ResponseWriter, r *http.Request, err error, id int64) {
	switch {
	case errors.Is(err, commerce.ErrCommerceNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Commerce not found")
	case errors.Is(err, commerce.ErrNotOwner):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotOwner)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeNotOwner, "Commerce belongs to a different user")
	default:
		slog.ErrorContext(r.Context(), "commerce mutation failed", "error", err, "commerce_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to update commerce")
	}
}

// parseBoolParam treats "true" and "1" as true, anything else as false.
func parseBoolParam(value string) bool {
	return value == "true" || value == "1"
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
