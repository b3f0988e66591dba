package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/cache"
	"github.com/tiketi/apiserver/internal/store"
	"github.com/tiketi/apiserver/internal/validate"
	"github.com/tiketi/apiserver/types"
)

const categoriesCacheKey = "categories"

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	GetByName(ctx context.Context, name string) (types.Category, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
}

var categorySchema = validate.Schema{
	{Name: "name", Required: true, Message: "Category name is required"},
}

// CategoryService encapsulates category use-cases. The listing is cached
// when a cache is configured. Within one process a listing read before an
// invalidation is never left in the cache; writes from other processes can
// leave a stale listing for at most the TTL.
type CategoryService struct {
	repo   CategoryRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	// generation counts invalidations.
	generation atomic.Uint64
}

// NewCategoryService constructs the service. c may be nil.
func NewCategoryService(repo CategoryRepository, c cache.Cache, ttl time.Duration) *CategoryService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CategoryService{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		logger: slog.Default().With("service", "category"),
	}
}

// Create stores a new category. Names are unique; a taken name fails with
// DuplicateCategory whether it is caught by the pre-check or by the
// uq_categories_name constraint.
func (s *CategoryService) Create(ctx context.Context, name string) (types.Category, error) {
	if err := categorySchema.Check(map[string]any{"name": name}); err != nil {
		return types.Category{}, err
	}
	name = strings.TrimSpace(name)

	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return types.Category{}, apperr.DuplicateCategory()
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Category{}, fmt.Errorf("check category: %w", err)
	}

	category, err := s.repo.Create(ctx, types.Category{Name: name})
	if err != nil {
		if store.IsConstraint(err, store.UniqueViolation, store.ConstraintCategoriesName) {
			return types.Category{}, apperr.DuplicateCategory()
		}
		if _, ok := store.AsConstraint(err); ok {
			return types.Category{}, apperr.IntegrityViolation(err)
		}
		return types.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.Invalidate(ctx)
	return category, nil
}

// List returns every category with its event count.
func (s *CategoryService) List(ctx context.Context) ([]types.Category, error) {
	if s.cache != nil {
		var cached []types.Category
		err := s.cache.GetJSON(ctx, categoriesCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.WarnContext(ctx, "category cache read failed", "error", err)
		}
	}

	generation := s.generation.Load()
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, categoriesCacheKey, categories, s.ttl); err != nil {
			s.logger.WarnContext(ctx, "category cache write failed", "error", err)
		}
		if s.generation.Load() != generation {
			s.drop(ctx)
		}
	}
	return categories, nil
}

// Invalidate drops the cached listing. Event creation changes the counts,
// so the event service calls it too.
func (s *CategoryService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.generation.Add(1)
	s.drop(ctx)
}

func (s *CategoryService) drop(ctx context.Context) {
	if err := s.cache.Delete(ctx, categoriesCacheKey); err != nil {
		s.logger.WarnContext(ctx, "category cache invalidation failed", "error", err)
	}
}
