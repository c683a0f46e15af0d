// Package taxonomy implements the centroid-embedding classification engine.
// Each category is represented by the mean embedding of its name and all
// confirmed example texts; matching is cosine similarity against those
// centroids.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ledgersift/ledgersift/internal/ai"
	"github.com/ledgersift/ledgersift/internal/common"
	"github.com/ledgersift/ledgersift/internal/model"
	"github.com/ledgersift/ledgersift/internal/service"
)

// DefaultThreshold splits results into high and low confidence partitions.
const DefaultThreshold = 0.6

// Engine owns the taxonomy and answers best-category queries. The category
// list and centroids are guarded together: Update holds the write lock so a
// reader can never observe a new category with a stale centroid.
type Engine struct {
	store      service.Storage
	embedder   ai.Embedder
	extractor  ai.EntityExtractor
	logger     *slog.Logger
	categories []model.Category
	threshold  float64
	mu         sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold overrides the confidence threshold used for partitioning.
func WithThreshold(threshold float64) Option {
	return func(e *Engine) {
		e.threshold = threshold
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an engine, loads the persisted taxonomy, and computes all
// centroids. A taxonomy persisted without vectors is rebuilt with one batch
// embedding call.
func New(ctx context.Context, store service.Storage, provider ai.Provider, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:     store,
		embedder:  provider.Embedder(),
		extractor: provider.EntityExtractor(),
		logger:    slog.Default().With("component", "taxonomy"),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}

	categories, err := store.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}

	for i := range categories {
		centroid, centroidErr := e.computeCentroid(ctx, &categories[i])
		if centroidErr != nil {
			return nil, fmt.Errorf("failed to compute centroid for %q: %w", categories[i].Name, centroidErr)
		}
		categories[i].Centroid = centroid
	}

	e.categories = categories
	e.logger.Info("taxonomy loaded", "categories", len(categories))
	return e, nil
}

// Threshold returns the configured confidence threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Categories returns a point-in-time copy of the taxonomy.
func (e *Engine) Categories() []model.Category {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.Category, len(e.categories))
	copy(out, e.categories)
	return out
}

// Match classifies a single text. Fails with ErrInvalidInput when the text
// is empty after trimming.
func (e *Engine) Match(ctx context.Context, text string) (model.ClassificationResult, error) {
	if strings.TrimSpace(text) == "" {
		return model.ClassificationResult{}, fmt.Errorf("%w: text is empty", common.ErrInvalidInput)
	}

	results, err := e.matchTexts(ctx, []string{text})
	if err != nil {
		return model.ClassificationResult{}, err
	}
	return results[0], nil
}

// MatchBulk classifies a batch of texts with one embedding call. Results
// are in input order and identical to calling Match once per text. Empty
// strings inside the list are permitted; an empty list is not.
func (e *Engine) MatchBulk(ctx context.Context, texts []string) ([]model.ClassificationResult, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no texts", common.ErrInvalidInput)
	}
	return e.matchTexts(ctx, texts)
}

func (e *Engine) matchTexts(ctx context.Context, texts []string) ([]model.ClassificationResult, error) {
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrClassificationFailed, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts",
			common.ErrClassificationFailed, len(vectors), len(texts))
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.categories) == 0 {
		return nil, common.ErrEmptyTaxonomy
	}

	results := make([]model.ClassificationResult, len(texts))
	for i, text := range texts {
		best := e.bestMatch(vectors[i])

		entities, entErr := e.extractor.ExtractEntities(ctx, text)
		if entErr != nil {
			// Entity extraction is decoration, not a classification failure.
			e.logger.Warn("entity extraction failed", "err", entErr)
			entities = []model.Entity{}
		}

		results[i] = model.ClassificationResult{
			Text:     text,
			Category: e.categories[best].Ref(),
			Score:    NormalizeScore(Cosine(vectors[i], e.categories[best].Centroid)),
			Entities: entities,
		}
	}

	return results, nil
}

// bestMatch returns the index of the closest centroid. The first category
// reaching the maximum similarity in taxonomy order wins.
func (e *Engine) bestMatch(vector []float32) int {
	best := 0
	bestSim := Cosine(vector, e.categories[0].Centroid)
	for i := 1; i < len(e.categories); i++ {
		if sim := Cosine(vector, e.categories[i].Centroid); sim > bestSim {
			best = i
			bestSim = sim
		}
	}
	return best
}

// Update appends an example to the named category, creating the category if
// it does not exist (name matching is case-insensitive). The centroid is
// recomputed and the mutation persisted before returning; readers are
// excluded for the duration so they never see a half-applied update.
// Returns the new total category count.
func (e *Engine) Update(ctx context.Context, categoryName, example string) (int, error) {
	if strings.TrimSpace(categoryName) == "" {
		return 0, fmt.Errorf("%w: missing category", common.ErrInvalidCorrection)
	}
	if strings.TrimSpace(example) == "" {
		return 0, fmt.Errorf("%w: missing example", common.ErrInvalidCorrection)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i := range e.categories {
		if strings.EqualFold(e.categories[i].Name, categoryName) {
			idx = i
			break
		}
	}

	var updated model.Category
	if idx >= 0 {
		updated = e.categories[idx]
		updated.Examples = append(append([]string(nil), updated.Examples...), example)
	} else {
		updated = model.Category{
			Name:      categoryName,
			Examples:  []string{example},
			CreatedAt: time.Now(),
		}
	}

	centroid, err := e.computeCentroid(ctx, &updated)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute centroid for %q: %w", updated.Name, err)
	}
	updated.Centroid = centroid

	// Durability before visibility: only swap in-memory state once the
	// mutation is persisted.
	if err := e.store.SaveCategory(ctx, &updated); err != nil {
		return 0, fmt.Errorf("failed to persist taxonomy: %w", err)
	}

	if idx >= 0 {
		e.categories[idx] = updated
	} else {
		e.categories = append(e.categories, updated)
	}

	e.logger.Info("taxonomy updated",
		"category", updated.Name,
		"examples", len(updated.Examples),
		"total_categories", len(e.categories))

	return len(e.categories), nil
}

// computeCentroid embeds the category name plus all examples in one batch
// call and returns their mean.
func (e *Engine) computeCentroid(ctx context.Context, category *model.Category) ([]float32, error) {
	texts := append([]string{category.Name}, category.Examples...)
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	return Centroid(vectors), nil
}

// Partition splits results into high and low confidence partitions by the
// threshold. Order within each partition follows input order; every result
// lands in exactly one partition. The boundary is exclusive on the low side:
// score < threshold means low confidence.
func Partition(results []model.ClassificationResult, threshold float64) (high, low []model.ClassificationResult) {
	high = make([]model.ClassificationResult, 0, len(results))
	low = make([]model.ClassificationResult, 0)
	for _, r := range results {
		if r.Score < threshold {
			low = append(low, r)
		} else {
			high = append(high, r)
		}
	}
	return high, low
}
