package commerce

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/miplaza/backend/internal/embedding"
	"github.com/miplaza/backend/internal/tracing"
)

// Candidate window bounds. The window is an over-fetch of the requested page
// so re-ranking cost stays a constant multiple of the page size regardless of
// corpus size; results beyond the window are an accepted approximation.
const (
	windowFactor = 5
	windowMin    = 50
	windowMax    = 500
)

// Ranking mode labels, used for logging and metrics.
const (
	ModeClassic  = "classic"
	ModeKeyword  = "keyword"
	ModeSemantic = "semantic"
)

// SearchParams selects a ranking mode and page for one discovery request.
// Mode selection is a pure function of these flags; no process state is
// involved.
type SearchParams struct {
	Query    string
	Smart    bool
	Semantic bool
	Limit    int
	Offset   int
}

// StorySignal resolves which of a candidate id set currently have at least
// one active, non-expired story, in a single round trip.
type StorySignal interface {
	CommerceIDsWithActiveStories(ctx context.Context, commerceIDs []int64) (map[int64]bool, error)
}

// PostSignal resolves which of a candidate id set currently have at least one
// active post, in a single round trip.
type PostSignal interface {
	CommerceIDsWithActivePosts(ctx context.Context, commerceIDs []int64) (map[int64]bool, error)
}

// Ranker orchestrates commerce discovery across the three ranking modes.
type Ranker struct {
	repo       Repository
	stories    StorySignal
	posts      PostSignal
	embeddings embedding.Store
	provider   embedding.Provider
	metrics    *Metrics
	logger     *slog.Logger
}

// NewRanker creates a Ranker. metrics may be nil.
func NewRanker(
	repo Repository,
	stories StorySignal,
	posts PostSignal,
	embeddings embedding.Store,
	provider embedding.Provider,
	metrics *Metrics,
	logger *slog.Logger,
) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		repo:       repo,
		stories:    stories,
		posts:      posts,
		embeddings: embeddings,
		provider:   provider,
		metrics:    metrics,
		logger:     logger,
	}
}

// windowSize computes the candidate window for a final page:
// clamp(5 * (offset + limit), 50, 500).
func windowSize(limit, offset int) int {
	size := windowFactor * (offset + limit)
	if size < windowMin {
		return windowMin
	}
	if size > windowMax {
		return windowMax
	}
	return size
}

// ListActive returns the ordered, paginated discovery listing for the
// requested mode. A ranking flag without a non-empty query falls back to the
// classic order: ranking without a query is meaningless and must not change
// behavior.
func (r *Ranker) ListActive(ctx context.Context, params SearchParams) (results []*Commerce, err error) {
	query := strings.TrimSpace(params.Query)
	start := time.Now()

	ctx, endSpan := tracing.StartSpan(ctx, "rank_commerces")
	defer func() { endSpan(err) }()

	var mode string
	switch {
	case params.Semantic && query != "":
		mode = ModeSemantic
		results, err = r.listSemantic(ctx, query, params.Limit, params.Offset)
	case params.Smart && query != "":
		mode = ModeKeyword
		results, err = r.listKeyword(ctx, query, params.Limit, params.Offset)
	default:
		mode = ModeClassic
		results, err = r.repo.ListActiveClassic(ctx, query, params.Limit, params.Offset)
	}

	tracing.SetAttributes(ctx,
		attribute.String("rank.mode", mode),
		attribute.Int("rank.results", len(results)),
	)
	r.metrics.ObserveSearch(mode, time.Since(start).Seconds())
	return results, err
}

// scoredCommerce pairs a candidate with its computed score for the in-memory
// re-rank.
type scoredCommerce struct {
	commerce *Commerce
	score    float64
}

// listKeyword ranks a pre-filtered candidate window by lexical score.
func (r *Ranker) listKeyword(ctx context.Context, query string, limit, offset int) ([]*Commerce, error) {
	fetchSize := windowSize(limit, offset)
	r.metrics.ObserveWindow(fetchSize)

	candidates, err := r.repo.ListActiveFiltered(ctx, query, fetchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch keyword candidates: %w", err)
	}
	if len(candidates) == 0 {
		return []*Commerce{}, nil
	}

	ids := commerceIDs(candidates)
	withStories, err := r.stories.CommerceIDsWithActiveStories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve story signals: %w", err)
	}
	withPosts, err := r.posts.CommerceIDsWithActivePosts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve post signals: %w", err)
	}

	normalized := normalizeText(query)
	tokens := tokenize(normalized)

	scored := make([]scoredCommerce, 0, len(candidates))
	for _, c := range candidates {
		score := KeywordScore(c, normalized, tokens, withStories[c.ID], withPosts[c.ID])
		scored = append(scored, scoredCommerce{commerce: c, score: float64(score)})
	}

	return sliceScored(scored, limit, offset), nil
}

// listSemantic ranks an unfiltered candidate window by cosine similarity
// between the query embedding and each stored commerce embedding. Candidates
// without a usable stored vector receive the sentinel score and sink to the
// bottom; they are never dropped and never abort the request.
func (r *Ranker) listSemantic(ctx context.Context, query string, limit, offset int) ([]*Commerce, error) {
	queryVector, err := r.provider.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	fetchSize := windowSize(limit, offset)
	r.metrics.ObserveWindow(fetchSize)

	candidates, err := r.repo.ListActiveRecent(ctx, fetchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch semantic candidates: %w", err)
	}
	if len(candidates) == 0 {
		return []*Commerce{}, nil
	}

	records, err := r.embeddings.GetByCommerceIDs(ctx, commerceIDs(candidates))
	if err != nil {
		return nil, fmt.Errorf("failed to batch-load embeddings: %w", err)
	}

	scored := make([]scoredCommerce, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scoredCommerce{
			commerce: c,
			score:    r.similarityFor(c.ID, queryVector, records[c.ID]),
		})
	}

	return sliceScored(scored, limit, offset), nil
}

// similarityFor scores one candidate, recovering locally from missing or
// malformed stored vectors.
func (r *Ranker) similarityFor(commerceID int64, queryVector []float64, rec *embedding.Record) float64 {
	if rec == nil {
		r.metrics.RecordMissingEmbedding()
		return embedding.SentinelScore
	}

	stored, err := embedding.DecodeVector(rec.Vector)
	if err != nil {
		r.metrics.RecordMissingEmbedding()
		r.logger.Warn("treating malformed stored embedding as missing",
			slog.Int64("commerce_id", commerceID),
			slog.String("error", err.Error()))
		return embedding.SentinelScore
	}

	return embedding.Cosine(queryVector, stored)
}

// sliceScored orders by (score DESC, id DESC) and slices the requested page.
func sliceScored(scored []scoredCommerce, limit, offset int) []*Commerce {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].commerce.ID > scored[j].commerce.ID
	})

	if offset >= len(scored) {
		return []*Commerce{}
	}
	end := offset + limit
	if end > len(scored) {
		end = len(scored)
	}

	page := make([]*Commerce, 0, end-offset)
	for _, sc := range scored[offset:end] {
		page = append(page, sc.commerce)
	}
	return page
}

func commerceIDs(commerces []*Commerce) []int64 {
	ids := make([]int64, 0, len(commerces))
	for _, c := range commerces {
		ids = append(ids, c.ID)
	}
	return ids
}
