package tracker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"moneymanager/internal/arbiter"
	"moneymanager/internal/core"
	"moneymanager/internal/normalize"
	"moneymanager/internal/remote"
)

func (t *Tracker) cacheKey(mode core.Mode) string {
	user := t.userID()
	if user == "" {
		user = "offline"
	}
	return string(mode) + "|" + user
}

func (t *Tracker) invalidateCategories() {
	t.categories.Delete(t.cacheKey(core.ModeRemote))
	t.categories.Delete(t.cacheKey(core.ModeLocal))
}

// remoteCategories returns the remote category list, cached per user.
func (t *Tracker) remoteCategories(ctx context.Context) ([]core.Category, error) {
	key := t.cacheKey(core.ModeRemote)
	if cats, ok := t.categories.Get(key); ok {
		return cats, nil
	}
	raw, err := t.remote.Do(ctx, http.MethodGet, remote.PathCategories, nil)
	if err != nil {
		return nil, err
	}
	cats, err := normalize.Categories(raw)
	if err != nil {
		return nil, err
	}
	t.categories.Set(key, cats)
	return cats, nil
}

func (t *Tracker) localCategories(ctx context.Context) ([]core.Category, error) {
	key := t.cacheKey(core.ModeLocal)
	if cats, ok := t.categories.Get(key); ok {
		return cats, nil
	}
	cats, err := t.local.ListCategories(ctx, t.userID())
	if err != nil {
		return nil, err
	}
	t.categories.Set(key, cats)
	return cats, nil
}

// ListCategories returns the user's categories; missing colors are filled from
// the palette by position.
func (t *Tracker) ListCategories(ctx context.Context) ([]core.Category, error) {
	cats, err := arbiter.Run(ctx, t.arbiter, "list categories", t.remoteCategories, t.localCategories)
	if err != nil {
		return nil, err
	}
	return append([]core.Category(nil), cats...), nil
}

// ListCategoriesByType returns the categories of one kind.
func (t *Tracker) ListCategoriesByType(ctx context.Context, kind core.Kind) ([]core.Category, error) {
	if !kind.Valid() {
		return nil, core.Invalid("type", core.ErrInvalidKind)
	}
	cats, err := t.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(cats))
	for _, c := range cats {
		if c.Type == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateCategory fails with core.ErrDuplicateCategory when the (name, type)
// pair already exists for the user.
func (t *Tracker) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	c.ID = ""

	created, err := arbiter.Run(ctx, t.arbiter, "create category",
		func(ctx context.Context) (core.Category, error) {
			existing, err := t.remoteCategories(ctx)
			if err != nil {
				return core.Category{}, err
			}
			if dup := findSame(existing, c, ""); dup != nil {
				return core.Category{}, fmt.Errorf("%s %q: %w", c.Type, c.Name, core.ErrDuplicateCategory)
			}
			raw, err := t.remote.Do(ctx, http.MethodPost, remote.PathCategories, categoryBody(c.Name, c.Type, c.Color))
			if err != nil {
				return core.Category{}, err
			}
			out, err := normalize.DecodeCategory(raw)
			if err != nil {
				return core.Category{}, err
			}
			if out.Name == "" {
				out.Name = c.Name
			}
			if !out.Type.Valid() {
				out.Type = c.Type
			}
			if out.Color == "" {
				out.Color = c.Color
			}
			if out.Color == "" {
				out.Color = core.FallbackColor(len(existing))
			}
			return out, nil
		},
		func(ctx context.Context) (core.Category, error) {
			return t.local.CreateCategory(ctx, t.userID(), c)
		})
	if err != nil {
		return core.Category{}, err
	}
	t.invalidateCategories()
	t.notify(ctx, core.LedgerEvent{Type: core.EventCategoryCreated, Resource: normalize.KindCategories, ResourceID: created.ID})
	return created, nil
}

// UpdateCategory applies a partial update. Renaming onto an existing
// (name, type) pair fails with core.ErrDuplicateCategory.
func (t *Tracker) UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) (core.Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Category{}, core.Invalid("id", core.ErrMissingID)
	}
	if err := patch.Validate(); err != nil {
		return core.Category{}, err
	}

	updated, err := arbiter.Run(ctx, t.arbiter, "update category",
		func(ctx context.Context) (core.Category, error) {
			existing, err := t.remoteCategories(ctx)
			if err != nil {
				return core.Category{}, err
			}
			current := findID(existing, id)
			if current != nil {
				next := patch.Apply(*current)
				if dup := findSame(existing, next, id); dup != nil {
					return core.Category{}, fmt.Errorf("%s %q: %w", next.Type, next.Name, core.ErrDuplicateCategory)
				}
			}
			body := map[string]any{}
			if patch.Name != nil {
				body["name"] = strings.TrimSpace(*patch.Name)
			}
			if patch.Type != nil {
				body["type"] = string(*patch.Type)
			}
			if patch.Color != nil {
				body["color"] = *patch.Color
			}
			raw, err := t.remote.Do(ctx, http.MethodPut, remote.PathCategories+"/"+url.PathEscape(id), body)
			if err != nil {
				return core.Category{}, err
			}
			out, err := normalize.DecodeCategory(raw)
			if err != nil {
				return core.Category{}, err
			}
			if out.Color == "" && current != nil {
				out.Color = patch.Apply(*current).Color
			}
			return out, nil
		},
		func(ctx context.Context) (core.Category, error) {
			return t.local.UpdateCategory(ctx, t.userID(), id, patch)
		})
	if err != nil {
		return core.Category{}, err
	}
	t.invalidateCategories()
	t.notify(ctx, core.LedgerEvent{Type: core.EventCategoryUpdated, Resource: normalize.KindCategories, ResourceID: id})
	return updated, nil
}

func (t *Tracker) DeleteCategory(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Invalid("id", core.ErrMissingID)
	}
	err := arbiter.Exec(ctx, t.arbiter, "delete category",
		func(ctx context.Context) error {
			_, err := t.remote.Do(ctx, http.MethodDelete, remote.PathCategories+"/"+url.PathEscape(id), nil)
			return err
		},
		func(ctx context.Context) error {
			return t.local.DeleteCategory(ctx, t.userID(), id)
		})
	if err != nil {
		return err
	}
	t.invalidateCategories()
	t.notify(ctx, core.LedgerEvent{Type: core.EventCategoryDeleted, Resource: normalize.KindCategories, ResourceID: id})
	return nil
}

func categoryBody(name string, kind core.Kind, color string) map[string]any {
	body := map[string]any{"name": name, "type": string(kind)}
	if color != "" {
		body["color"] = color
	}
	return body
}

func findSame(cats []core.Category, c core.Category, exceptID string) *core.Category {
	for i := range cats {
		if cats[i].ID != exceptID && cats[i].SameAs(c) {
			return &cats[i]
		}
	}
	return nil
}

func findID(cats []core.Category, id string) *core.Category {
	for i := range cats {
		if cats[i].ID == id {
			return &cats[i]
		}
	}
	return nil
}

// findName returns the category of kind with the given name, compared
// case-insensitively.
func findName(cats []core.Category, kind core.Kind, name string) *core.Category {
	wanted := core.Category{Name: name, Type: kind}
	for i := range cats {
		if cats[i].SameAs(wanted) {
			return &cats[i]
		}
	}
	return nil
}
