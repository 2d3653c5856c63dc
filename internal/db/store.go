package db

import (
	"context"
	"fmt"

	"github.com/codr1/themekit/internal/models"
)

// ThemeStore is the storage collaborator used by the theme service.
type ThemeStore struct {
	db *DB
}

func NewThemeStore(db *DB) *ThemeStore {
	return &ThemeStore{db: db}
}

func (s *ThemeStore) FindTheme(ctx context.Context, key string) (*models.Theme, error) {
	return s.db.Queries.FindTheme(ctx, key)
}

// InsertTheme creates the row for theme.Key and returns it as stored, so column rounding
// (NUMERIC radius on postgres) is reflected in what callers cache.
func (s *ThemeStore) InsertTheme(ctx context.Context, theme models.Theme) (*models.Theme, error) {
	var created *models.Theme
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		if _, err := tx.Queries.InsertTheme(ctx, theme); err != nil {
			return err
		}
		stored, err := tx.Queries.FindTheme(ctx, theme.Key)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("theme %q vanished during insert", theme.Key)
		}
		created = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTheme overwrites the row for theme.Key and returns it as stored, in one transaction.
func (s *ThemeStore) UpdateTheme(ctx context.Context, theme models.Theme) (*models.Theme, error) {
	var updated *models.Theme
	err := s.db.RunInTx(ctx, func(tx *DB) error {
		if err := tx.Queries.UpdateTheme(ctx, theme); err != nil {
			return err
		}
		stored, err := tx.Queries.FindTheme(ctx, theme.Key)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("theme %q vanished during update", theme.Key)
		}
		updated = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListThemeKeys returns every stored identity key.
func (s *ThemeStore) ListThemeKeys(ctx context.Context) ([]string, error) {
	return s.db.Queries.ListThemeKeys(ctx)
}
