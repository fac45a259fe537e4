// Package api provides HTTP handlers for the MiPlaza API.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/miplaza/backend/internal/middleware"
	"github.com/miplaza/backend/internal/section"
)

// SectionListResponse represents the response for the section catalog.
type SectionListResponse struct {
	Results []*section.Section `json:"results"`
	Count   int                `json:"count"`
}

// SectionHandlers holds dependencies for section HTTP handlers.
type SectionHandlers struct {
	sections section.Repository
}

// NewSectionHandlers creates a new SectionHandlers instance.
func NewSectionHandlers(sections section.Repository) *SectionHandlers {
	return &SectionHandlers{sections: sections}
}

// ListSections handles GET /sections - returns the category catalog.
func (h *SectionHandlers) ListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.sections.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list sections", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve sections")
		return
	}

	writeJSON(w, r, http.StatusOK, SectionListResponse{Results: sections, Count: len(sections)})
}

// GetSection handles GET /sections/{id}.
func (h *SectionHandlers) GetSection(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/sections/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Section ID is required")
		return
	}
	id, err := strconv.ParseInt(pathParts[0], 10, 64)
	if err != nil || id < 1 {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("Invalid section ID %q", pathParts[0]))
		return
	}

	s, err := h.sections.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, section.ErrSectionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Section not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get section", "error", err, "section_id", id)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve section")
		return
	}

	writeJSON(w, r, http.StatusOK, s)
}
