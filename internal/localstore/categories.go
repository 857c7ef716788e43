package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"moneymanager/internal/core"
)

// ListCategories returns the user's categories, seeding the defaults the first
// time the collection is read. Missing colors are filled from the palette.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	key := Key(KindCategories, userID)
	items, exists, err := ReadList[core.Category](ctx, s.kv, key)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if !exists {
		items, err = s.seed(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("seed categories: %w", err)
		}
	}
	return core.FillColors(items), nil
}

func (s *Store) seed(ctx context.Context, key string) ([]core.Category, error) {
	var items []core.Category
	err := s.kv.Update(ctx, key, func(cur []byte, ok bool) ([]byte, error) {
		if ok {
			// Another writer seeded or created first; keep its data.
			if err := json.Unmarshal(cur, &items); err != nil {
				return nil, err
			}
			return cur, nil
		}
		items = make([]core.Category, 0, len(s.seeds))
		for _, sc := range s.seeds {
			items = append(items, core.Category{
				ID:    s.NewID("category"),
				Name:  sc.Name,
				Type:  sc.Type,
				Color: sc.Color,
			})
		}
		return json.Marshal(items)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Seeded default categories", "key", key, "count", len(items))
	return items, nil
}

// CreateCategory stores c under a local id. A category with the same
// (name, type) pair fails with core.ErrDuplicateCategory.
func (s *Store) CreateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	// Make sure defaults exist before the first user-defined category lands.
	if _, err := s.ListCategories(ctx, userID); err != nil {
		return core.Category{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	err := UpdateList(ctx, s.kv, Key(KindCategories, userID), func(items []core.Category) ([]core.Category, error) {
		for _, existing := range items {
			if existing.SameAs(c) {
				return nil, fmt.Errorf("%s %q: %w", c.Type, c.Name, core.ErrDuplicateCategory)
			}
		}
		c.ID = s.NewID("category")
		if c.Color == "" {
			c.Color = core.FallbackColor(len(items))
		}
		return append(items, c), nil
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, userID, id string, patch core.CategoryPatch) (core.Category, error) {
	var updated core.Category
	err := UpdateList(ctx, s.kv, Key(KindCategories, userID), func(items []core.Category) ([]core.Category, error) {
		idx := -1
		for i := range items {
			if items[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
		}
		next := patch.Apply(items[idx])
		for i, other := range items {
			if i != idx && other.SameAs(next) {
				return nil, fmt.Errorf("%s %q: %w", next.Type, next.Name, core.ErrDuplicateCategory)
			}
		}
		items[idx] = next
		updated = next
		return items, nil
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	err := UpdateList(ctx, s.kv, Key(KindCategories, userID), func(items []core.Category) ([]core.Category, error) {
		for i := range items {
			if items[i].ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
