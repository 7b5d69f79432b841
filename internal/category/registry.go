package category

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"mangashelf/internal/entry"
	"mangashelf/internal/settings"
	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

// Registry owns the category list and keeps entries and the active
// selection consistent with it. Every operation runs in one transaction.
type Registry struct {
	DB       *sql.DB
	Repo     *Repo
	Entries  *entry.Repo
	Settings *settings.Repo
	Now      func() time.Time
	Log      *slog.Logger
}

func NewRegistry(db *sql.DB, entries *entry.Repo, st *settings.Repo, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		DB:       db,
		Repo:     NewRepo(db),
		Entries:  entries,
		Settings: st,
		Now:      func() time.Time { return time.Now().UTC() },
		Log:      logger,
	}
}

// ValidateName checks a name a user wants to create or rename to.
func ValidateName(name string) error {
	err := validation.Validate(strings.TrimSpace(name),
		validation.Required.Error("category name is required"),
		validation.Length(1, 100),
		validation.NotIn(models.AllCategory).Error(`"All" is reserved`),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}

// List returns "All" followed by every stored category in display order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	cats, err := r.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(cats)+1)
	out = append(out, models.AllCategory)
	for _, c := range cats {
		out = append(out, c.Name)
	}
	return out, nil
}

func (r *Registry) Categories(ctx context.Context) ([]models.Category, error) {
	return r.Repo.List(ctx)
}

// Add creates name with order equal to the current category count. Blank,
// "All" and existing names are ignored.
func (r *Registry) Add(ctx context.Context, name string) error {
	_, err := r.Ensure(ctx, name)
	return err
}

// Ensure creates name when missing and reports whether it did.
func (r *Registry) Ensure(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == models.AllCategory {
		return false, nil
	}

	var created bool
	err := database.ExecTx(ctx, r.DB, func(ctx context.Context) error {
		existing, err := r.Repo.Get(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		n, err := r.Repo.Count(ctx)
		if err != nil {
			return err
		}
		if err := r.Repo.Put(ctx, models.Category{Name: name, CreatedAt: r.Now(), Order: n}); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		r.Log.Debug("category created", "name", name)
	}
	return created, nil
}

// Rename moves oldName to newName, keeping its createdAt and order. Entries
// and the active selection follow.
func (r *Registry) Rename(ctx context.Context, oldName, newName string) error {
	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	if oldName == models.AllCategory {
		return fmt.Errorf("%w: %q cannot be renamed", models.ErrValidation, models.AllCategory)
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	return database.ExecTx(ctx, r.DB, func(ctx context.Context) error {
		cur, err := r.Repo.Get(ctx, oldName)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("%q: %w", oldName, ErrNotFound)
		}
		clash, err := r.Repo.Get(ctx, newName)
		if err != nil {
			return err
		}
		if clash != nil {
			return fmt.Errorf("category %q: %w", newName, models.ErrConflict)
		}

		if err := r.Repo.Put(ctx, models.Category{Name: newName, CreatedAt: cur.CreatedAt, Order: cur.Order}); err != nil {
			return err
		}
		if err := r.Repo.Delete(ctx, oldName); err != nil {
			return err
		}
		n, err := r.Entries.ReassignCategory(ctx, oldName, newName)
		if err != nil {
			return err
		}
		if err := r.replaceSelection(ctx, oldName, newName); err != nil {
			return err
		}
		r.Log.Info("category renamed", "from", oldName, "to", newName, "entries", n)
		return nil
	})
}

// Remove reassigns the entries of name to "All" and deletes it. Removing
// "All" does nothing.
func (r *Registry) Remove(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == models.AllCategory {
		return nil
	}

	return database.ExecTx(ctx, r.DB, func(ctx context.Context) error {
		cur, err := r.Repo.Get(ctx, name)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("%q: %w", name, ErrNotFound)
		}
		n, err := r.Entries.ReassignCategory(ctx, name, models.AllCategory)
		if err != nil {
			return err
		}
		if err := r.Repo.Delete(ctx, name); err != nil {
			return err
		}
		if err := r.replaceSelection(ctx, name, models.AllCategory); err != nil {
			return err
		}
		r.Log.Info("category removed", "name", name, "entries", n)
		return nil
	})
}

// Reorder assigns consecutive orders to names. "All" is skipped; categories
// not named keep their current order.
func (r *Registry) Reorder(ctx context.Context, names []string) error {
	return database.ExecTx(ctx, r.DB, func(ctx context.Context) error {
		order := 0
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == models.AllCategory {
				continue
			}
			cur, err := r.Repo.Get(ctx, name)
			if err != nil {
				return err
			}
			if cur == nil {
				return fmt.Errorf("%q: %w", name, ErrNotFound)
			}
			cur.Order = order
			if err := r.Repo.Put(ctx, *cur); err != nil {
				return err
			}
			order++
		}
		return nil
	})
}

// Selected returns the active category filter, "All" when unset or stale.
func (r *Registry) Selected(ctx context.Context) (string, error) {
	name, err := r.Settings.Get(ctx, settings.KeySelectedCategory, models.AllCategory)
	if err != nil {
		return "", err
	}
	if name == models.AllCategory {
		return name, nil
	}
	cur, err := r.Repo.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if cur == nil {
		return models.AllCategory, nil
	}
	return name, nil
}

func (r *Registry) Select(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.AllCategory
	}
	if name != models.AllCategory {
		cur, err := r.Repo.Get(ctx, name)
		if err != nil {
			return err
		}
		if cur == nil {
			return fmt.Errorf("%q: %w", name, ErrNotFound)
		}
	}
	return r.Settings.Set(ctx, settings.KeySelectedCategory, name)
}

func (r *Registry) replaceSelection(ctx context.Context, from, to string) error {
	sel, err := r.Settings.Get(ctx, settings.KeySelectedCategory, models.AllCategory)
	if err != nil {
		return err
	}
	if sel != from {
		return nil
	}
	return r.Settings.Set(ctx, settings.KeySelectedCategory, to)
}
