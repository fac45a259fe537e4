package commerce

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/miplaza/backend/internal/embedding"
	"github.com/miplaza/backend/internal/tracing"
)

// Service implements the commerce lifecycle. Every create or update
// regenerates the commerce embedding synchronously: the stored vector is a
// derived cache of the textual profile and must never lag behind it.
type Service struct {
	repo         Repository
	embeddings   embedding.Store
	provider     embedding.Provider
	modelVersion int
	logger       *slog.Logger
}

// NewService creates a commerce service.
func NewService(
	repo Repository,
	embeddings embedding.Store,
	provider embedding.Provider,
	modelVersion int,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		embeddings:   embeddings,
		provider:     provider,
		modelVersion: modelVersion,
		logger:       logger,
	}
}

// UpdateParams carries the owner-mutable fields of a commerce.
type UpdateParams struct {
	Name        string
	Description string
	CoverURL    string
	SectionID   *int64
	Province    string
	City        string
	Address     string
	Whatsapp    string
	Instagram   string
	MapsURL     string
}

// Create inserts a new commerce for its owner and computes its embedding.
func (s *Service) Create(ctx context.Context, c *Commerce) (*Commerce, error) {
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	if err := s.refreshEmbedding(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("commerce created",
		slog.Int64("commerce_id", c.ID),
		slog.Int64("user_id", c.UserID))
	return c, nil
}

// GetActive retrieves an active commerce by id.
func (s *Service) GetActive(ctx context.Context, id int64) (*Commerce, error) {
	return s.repo.GetActiveByID(ctx, id)
}

// ListMine retrieves the caller's commerces, newest first, regardless of
// their active flag.
func (s *Service) ListMine(ctx context.Context, userID int64) ([]*Commerce, error) {
	return s.repo.ListByOwner(ctx, userID)
}

// Update applies owner-mutable fields and recomputes the embedding.
// Only the owner may update.
func (s *Service) Update(ctx context.Context, userID, id int64, params UpdateParams) (*Commerce, error) {
	c, err := s.repo.GetActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}

	c.Name = params.Name
	c.Description = params.Description
	c.CoverURL = params.CoverURL
	c.SectionID = params.SectionID
	c.Province = params.Province
	c.City = params.City
	c.Address = params.Address
	c.Whatsapp = params.Whatsapp
	c.Instagram = params.Instagram
	c.MapsURL = params.MapsURL

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	if err := s.refreshEmbedding(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// Deactivate soft-deletes a commerce: the active flag flips, the row stays.
// Only the owner may deactivate.
func (s *Service) Deactivate(ctx context.Context, userID, id int64) (*Commerce, error) {
	c, err := s.repo.GetActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}

	c.Active = false
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("commerce deactivated", slog.Int64("commerce_id", id))
	return c, nil
}

// Reactivate reverts a soft delete. The lookup deliberately ignores the
// active flag, otherwise a deactivated commerce could never be found.
func (s *Service) Reactivate(ctx context.Context, userID, id int64) (*Commerce, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrNotOwner
	}

	c.Active = true
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("commerce reactivated", slog.Int64("commerce_id", id))
	return c, nil
}

// refreshEmbedding recomputes and stores the vector for the commerce's
// current textual profile.
func (s *Service) refreshEmbedding(ctx context.Context, c *Commerce) error {
	vector, err := s.provider.Embed(c.ProfileText())
	if err != nil {
		return fmt.Errorf("failed to embed commerce %d profile: %w", c.ID, err)
	}

	encoded, err := embedding.EncodeVector(vector)
	if err != nil {
		return fmt.Errorf("failed to encode commerce %d vector: %w", c.ID, err)
	}

	if _, err := s.embeddings.Upsert(ctx, c.ID, encoded, s.modelVersion); err != nil {
		return fmt.Errorf("failed to store commerce %d embedding: %w", c.ID, err)
	}

	tracing.AddEvent(ctx, "embedding_refreshed",
		attribute.Int64("commerce_id", c.ID),
		attribute.Int("model_version", s.modelVersion),
	)
	return nil
}
