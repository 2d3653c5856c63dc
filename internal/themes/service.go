// Package themes resolves, updates and renders the theme for an identity key.
package themes

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/codr1/themekit/internal/cache"
	"github.com/codr1/themekit/internal/models"
	"github.com/codr1/themekit/internal/stylesheet"
)

type Variant string

const (
	// VariantUser keeps one theme per authenticated identity.
	VariantUser Variant = "user"
	// VariantGlobal keeps exactly one theme, stored under GlobalKey.
	VariantGlobal Variant = "global"
)

// GlobalKey is the identity key of the singleton global theme.
const GlobalKey = "global"

// MergePolicy picks the fallback for fields absent from a patch.
type MergePolicy string

const (
	// MergeDefaults fills absent fields from the hard defaults (full replace).
	MergeDefaults MergePolicy = "defaults"
	// MergePrevious fills absent fields from the stored record, then the defaults.
	MergePrevious MergePolicy = "previous"
)

// Store is the storage collaborator. FindTheme returns (nil, nil) when no record exists.
type Store interface {
	FindTheme(ctx context.Context, key string) (*models.Theme, error)
	InsertTheme(ctx context.Context, theme models.Theme) (*models.Theme, error)
	UpdateTheme(ctx context.Context, theme models.Theme) (*models.Theme, error)
}

// AssetRemover deletes an uploaded asset by its public path.
type AssetRemover interface {
	Delete(ctx context.Context, path string) error
}

type Config struct {
	Variant Variant
	// Empty picks MergeDefaults for the user variant and MergePrevious for the global one.
	MergePolicy MergePolicy
	// Assets is optional. When set, replaced and reset logos are deleted from it.
	Assets AssetRemover
}

// loadTimeout bounds a shared cache-miss load, which no longer follows any single
// caller's deadline.
const loadTimeout = 10 * time.Second

// flightContext detaches a singleflight load from the caller that happened to start it,
// so its cancellation does not fail the callers that joined the flight. Values such as
// the request logger are kept.
func flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
}

func RecordKey(key string) string { return "theme:" + key }
func CSSKey(key string) string    { return "theme-css:" + key }

type Service struct {
	variant Variant
	policy  MergePolicy
	store   Store
	cache   *cache.Cache
	assets  AssetRemover
	loads   singleflight.Group
}

// NewService builds the resolver. A nil cache behaves as a disabled one.
func NewService(cfg Config, store Store, c *cache.Cache) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("theme store is required")
	}
	switch cfg.Variant {
	case VariantUser, VariantGlobal:
	case "":
		cfg.Variant = VariantUser
	default:
		return nil, fmt.Errorf("unsupported theme variant: %s", cfg.Variant)
	}
	switch cfg.MergePolicy {
	case MergeDefaults, MergePrevious:
	case "":
		cfg.MergePolicy = MergeDefaults
		if cfg.Variant == VariantGlobal {
			cfg.MergePolicy = MergePrevious
		}
	default:
		return nil, fmt.Errorf("unsupported merge policy: %s", cfg.MergePolicy)
	}
	if c == nil {
		c = cache.New(cache.Config{Enabled: false})
	}
	return &Service{
		variant: cfg.Variant,
		policy:  cfg.MergePolicy,
		store:   store,
		cache:   c,
		assets:  cfg.Assets,
	}, nil
}

func (s *Service) Variant() Variant         { return s.variant }
func (s *Service) MergePolicy() MergePolicy { return s.policy }
func (s *Service) Cache() *cache.Cache      { return s.cache }

// scopeKey maps a caller identity to the storage key. The global variant ignores identity.
func (s *Service) scopeKey(key string) (string, error) {
	if s.variant == VariantGlobal {
		return GlobalKey, nil
	}
	if key == "" {
		return "", models.NewValidationError("key", "identity key is required")
	}
	return key, nil
}

// Get returns the theme for key. A missing record is created from the defaults and
// persisted, so a first read has a write side effect.
func (s *Service) Get(ctx context.Context, key string) (*models.Theme, error) {
	k, err := s.scopeKey(key)
	if err != nil {
		return nil, err
	}
	theme, err := s.record(ctx, k, true)
	if err != nil {
		return nil, err
	}
	out := theme.Clone()
	return &out, nil
}

// EnsureGlobal creates the global record at startup. It is a no-op for the user variant.
func (s *Service) EnsureGlobal(ctx context.Context) error {
	if s.variant != VariantGlobal {
		return nil
	}
	_, err := s.record(ctx, GlobalKey, true)
	return err
}

// record serves the record cache. Concurrent misses for one key and generation share a
// single storage round trip. With create false a missing record yields ErrNotFound.
func (s *Service) record(ctx context.Context, k string, create bool) (models.Theme, error) {
	cacheKey := RecordKey(k)
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(models.Theme), nil
	}

	gen := s.cache.Generation(cacheKey)
	flightKey := cacheKey + "#" + strconv.FormatUint(gen, 10) + "#" + strconv.FormatBool(create)
	v, err, _ := s.loads.Do(flightKey, func() (any, error) {
		loadCtx, cancel := flightContext(ctx)
		defer cancel()
		theme, err := s.load(loadCtx, k, create)
		if err != nil {
			return nil, err
		}
		s.cache.SetIfCurrent(cacheKey, theme, gen)
		return theme, nil
	})
	if err != nil {
		return models.Theme{}, err
	}
	return v.(models.Theme), nil
}

func (s *Service) load(ctx context.Context, k string, create bool) (models.Theme, error) {
	stored, err := s.store.FindTheme(ctx, k)
	if err != nil {
		return models.Theme{}, storageFailure(ctx, "find", k, err)
	}
	if stored != nil {
		return *stored, nil
	}
	if !create {
		return models.Theme{}, ErrNotFound
	}

	theme := models.DefaultTheme()
	theme.Key = k
	created, err := s.store.InsertTheme(ctx, theme)
	if err != nil {
		// Another request may have created the row first.
		if existing, findErr := s.store.FindTheme(ctx, k); findErr == nil && existing != nil {
			return *existing, nil
		}
		return models.Theme{}, storageFailure(ctx, "insert", k, err)
	}

	log.Ctx(ctx).Info().
		Str("theme_key", k).
		Msg("Created default theme")
	return *created, nil
}

// Upsert validates patch, merges it according to the merge policy and persists the result.
// Validation failures return before storage is touched. The stored logo is kept.
func (s *Service) Upsert(ctx context.Context, key string, patch models.ThemePatch) (*models.Theme, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	k, err := s.scopeKey(key)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindTheme(ctx, k)
	if err != nil {
		return nil, storageFailure(ctx, "find", k, err)
	}

	base := models.DefaultTheme()
	if s.policy == MergePrevious && existing != nil {
		base = existing.Clone()
	}
	updated := patch.ApplyTo(base)
	updated.Key = k
	updated.Logo = nil
	if existing != nil {
		updated.Logo = existing.Clone().Logo
	}

	if warnings := models.ContrastWarnings(updated); len(warnings) > 0 {
		log.Ctx(ctx).Warn().
			Str("theme_key", k).
			Strs("warnings", warnings).
			Msg("Theme has low contrast color pairs")
	}

	saved, err := s.save(ctx, k, existing, updated)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("theme_key", k).
		Str("merge_policy", string(s.policy)).
		Msg("Theme updated")
	return saved, nil
}

// Reset overwrites the record with the defaults. The row is never removed. For the
// global variant the previous logo asset is deleted.
func (s *Service) Reset(ctx context.Context, key string) (*models.Theme, error) {
	k, err := s.scopeKey(key)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindTheme(ctx, k)
	if err != nil {
		return nil, storageFailure(ctx, "find", k, err)
	}

	theme := models.DefaultTheme()
	theme.Key = k
	saved, err := s.save(ctx, k, existing, theme)
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.Logo != nil {
		s.removeAsset(ctx, *existing.Logo)
	}

	log.Ctx(ctx).Info().
		Str("theme_key", k).
		Msg("Theme reset to defaults")
	return saved, nil
}

// SetLogo records path as the global theme logo. The asset itself is stored by the caller.
func (s *Service) SetLogo(ctx context.Context, path string) (*models.Theme, error) {
	if s.variant != VariantGlobal {
		return nil, ErrLogoUnsupported
	}
	if path == "" {
		return nil, models.NewValidationError("logo", "logo path is required")
	}
	k := GlobalKey

	existing, err := s.store.FindTheme(ctx, k)
	if err != nil {
		return nil, storageFailure(ctx, "find", k, err)
	}

	updated := models.DefaultTheme()
	if existing != nil {
		updated = existing.Clone()
	}
	updated.Key = k
	logo := path
	updated.Logo = &logo

	saved, err := s.save(ctx, k, existing, updated)
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.Logo != nil && *existing.Logo != path {
		s.removeAsset(ctx, *existing.Logo)
	}

	log.Ctx(ctx).Info().
		Str("theme_key", k).
		Str("logo", path).
		Msg("Theme logo updated")
	return saved, nil
}

// save writes theme as an update when existing is non-nil, otherwise as an insert, then
// invalidates both cache entries for k.
func (s *Service) save(ctx context.Context, k string, existing *models.Theme, theme models.Theme) (*models.Theme, error) {
	var (
		saved *models.Theme
		err   error
		op    string
	)
	if existing != nil {
		op = "update"
		theme.ID = existing.ID
		theme.CreatedAt = existing.CreatedAt
		saved, err = s.store.UpdateTheme(ctx, theme)
	} else {
		op = "insert"
		saved, err = s.store.InsertTheme(ctx, theme)
	}
	if err != nil {
		return nil, storageFailure(ctx, op, k, err)
	}

	s.invalidate(k)
	out := saved.Clone()
	return &out, nil
}

func (s *Service) invalidate(k string) {
	s.cache.Invalidate(RecordKey(k), CSSKey(k))
}

func (s *Service) removeAsset(ctx context.Context, path string) {
	if s.assets == nil {
		return
	}
	if err := s.assets.Delete(ctx, path); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("logo", path).
			Msg("Failed to delete logo asset")
	}
}

// Stylesheet returns the rendered CSS for key. It never creates a record: a key without one
// yields ErrNotFound.
func (s *Service) Stylesheet(ctx context.Context, key string) (string, error) {
	k, err := s.scopeKey(key)
	if err != nil {
		return "", err
	}

	cacheKey := CSSKey(k)
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(string), nil
	}

	gen := s.cache.Generation(cacheKey)
	v, err, _ := s.loads.Do(cacheKey+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		loadCtx, cancel := flightContext(ctx)
		defer cancel()
		theme, err := s.record(loadCtx, k, false)
		if err != nil {
			return nil, err
		}
		css := stylesheet.Render(theme, stylesheet.Options{Global: s.variant == VariantGlobal})
		s.cache.SetIfCurrent(cacheKey, css, gen)
		return css, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
