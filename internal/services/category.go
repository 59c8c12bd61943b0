package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"spendlog/internal/cache"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/storage"
)

const (
	categoryCacheSize = 1000
	categoryCacheTTL  = 10 * time.Minute
)

// CategoryService lists and creates an owner's categories. Lists are cached
// per owner and dropped on every write for that owner.
type CategoryService struct {
	store  storage.CategoryStore
	cache  *cache.LRUCache[[]core.Category]
	logger *applog.Logger
}

func NewCategoryService(store storage.CategoryStore, logger *applog.Logger) *CategoryService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &CategoryService{
		store:  store,
		cache:  cache.NewLRUCache[[]core.Category](categoryCacheSize, categoryCacheTTL),
		logger: logger.WithComponent(applog.ComponentCategory),
	}
}

// Cache exposes the underlying cache for registration with a cache.Manager.
func (s *CategoryService) Cache() *cache.LRUCache[[]core.Category] {
	return s.cache
}

func cacheKey(ownerID int64) string {
	return strconv.FormatInt(ownerID, 10)
}

// List returns the owner's categories ordered by name.
func (s *CategoryService) List(ctx context.Context, ownerID int64) ([]core.Category, error) {
	if cats, ok := s.cache.Get(cacheKey(ownerID)); ok {
		return append([]core.Category(nil), cats...), nil
	}
	cats, err := s.store.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey(ownerID), cats)
	return append([]core.Category(nil), cats...), nil
}

func (s *CategoryService) Create(ctx context.Context, ownerID int64, name, color, icon string) (core.Category, error) {
	c := core.Category{Name: name, Color: strings.TrimSpace(color), Icon: strings.TrimSpace(icon)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	// An owner still on the template fallback gets private copies first so
	// the new category joins them instead of hiding them.
	if err := s.ensureOwnCopies(ctx, ownerID); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, ownerID, c)
	s.cache.Delete(cacheKey(ownerID))
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category created",
		applog.FieldOwnerID, ownerID, applog.FieldCategory, created.Name)
	return created, nil
}

func (s *CategoryService) ensureOwnCopies(ctx context.Context, ownerID int64) error {
	cats, err := s.store.ListCategories(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, c := range cats {
		if !c.IsTemplate() {
			return nil
		}
	}
	n, err := s.store.CloneDefaultsFor(ctx, ownerID)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Template categories copied", applog.FieldOwnerID, ownerID, "count", n)
	return nil
}

// Resolve returns the stored spelling of the owner's category matching name
// case-insensitively, or core.ErrUnknownCategory.
func (s *CategoryService) Resolve(ctx context.Context, ownerID int64, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.ErrEmptyCategory
	}
	cats, err := s.List(ctx, ownerID)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, name) {
			return c.Name, nil
		}
	}
	return "", core.ErrUnknownCategory
}
