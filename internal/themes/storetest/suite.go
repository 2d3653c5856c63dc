// Package storetest is a compliance suite for themes.Store implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codr1/themekit/internal/models"
	"github.com/codr1/themekit/internal/themes"
)

// Run exercises a themes.Store implementation. makeStore should return a clean store.
func Run(t *testing.T, makeStore func(t *testing.T) themes.Store) {
	t.Helper()

	t.Run("find_missing_returns_nil", func(t *testing.T) {
		s := makeStore(t)
		got, err := s.FindTheme(context.Background(), "missing-"+uuid.NewString())
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("insert_then_find_round_trips", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		key := "u-" + uuid.NewString()

		logo := "/uploads/logo.png"
		theme := models.DefaultTheme()
		theme.Key = key
		theme.Radius = 0.875
		theme.Colors["brand"] = "oklch(0.7 0.1 200)"
		theme.Shadows = models.Shadows{Enabled: false, Opacity: 0.12, Blur: 6}
		theme.Fonts.Serif = "Merriweather"
		theme.Logo = &logo

		created, err := s.InsertTheme(ctx, theme)
		require.NoError(t, err)
		require.NotZero(t, created.ID)
		require.False(t, created.CreatedAt.IsZero())
		require.False(t, created.UpdatedAt.IsZero())

		got, err := s.FindTheme(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, key, got.Key)
		require.Equal(t, theme.Name, got.Name)
		require.Equal(t, theme.Colors, got.Colors)
		require.InDelta(t, 0.875, got.Radius, 1e-9)
		require.Equal(t, theme.Shadows, got.Shadows)
		require.Equal(t, theme.Fonts, got.Fonts)
		require.NotNil(t, got.Logo)
		require.Equal(t, logo, *got.Logo)
	})

	t.Run("insert_returns_stored_row", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		theme := models.DefaultTheme()
		theme.Key = "u-" + uuid.NewString()
		theme.Radius = 0.12345

		created, err := s.InsertTheme(ctx, theme)
		require.NoError(t, err)

		got, err := s.FindTheme(ctx, theme.Key)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, got.ID, created.ID)
		require.Equal(t, got.Radius, created.Radius)
		require.True(t, got.CreatedAt.Equal(created.CreatedAt))
		require.True(t, got.UpdatedAt.Equal(created.UpdatedAt))
	})

	t.Run("duplicate_insert_fails", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		theme := models.DefaultTheme()
		theme.Key = "u-" + uuid.NewString()

		_, err := s.InsertTheme(ctx, theme)
		require.NoError(t, err)
		_, err = s.InsertTheme(ctx, theme)
		require.Error(t, err)
	})

	t.Run("update_overwrites_and_keeps_identity", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		theme := models.DefaultTheme()
		theme.Key = "u-" + uuid.NewString()

		created, err := s.InsertTheme(ctx, theme)
		require.NoError(t, err)

		changed := created.Clone()
		changed.Name = "Renamed"
		changed.Radius = 1.5
		changed.Colors["primary"] = "#2563eb"
		changed.Logo = nil

		updated, err := s.UpdateTheme(ctx, changed)
		require.NoError(t, err)
		require.Equal(t, created.ID, updated.ID)
		require.Equal(t, "Renamed", updated.Name)
		require.InDelta(t, 1.5, updated.Radius, 1e-9)
		require.Equal(t, "#2563eb", updated.Colors["primary"])
		require.Nil(t, updated.Logo)
		require.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

		got, err := s.FindTheme(ctx, theme.Key)
		require.NoError(t, err)
		require.Equal(t, "Renamed", got.Name)
	})

	t.Run("update_missing_fails", func(t *testing.T) {
		s := makeStore(t)
		theme := models.DefaultTheme()
		theme.Key = "missing-" + uuid.NewString()
		_, err := s.UpdateTheme(context.Background(), theme)
		require.Error(t, err)
	})
}
