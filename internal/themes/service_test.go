package themes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codr1/themekit/internal/cache"
	"github.com/codr1/themekit/internal/models"
)

type mockStore struct {
	mu      sync.Mutex
	themes  map[string]models.Theme
	nextID  int64
	finds   int
	inserts int
	updates int

	findErr   error
	insertErr error
	updateErr error

	// beforeFind runs before the lookup, outside the lock. A non-nil error is returned.
	beforeFind func(ctx context.Context) error
	// afterFind runs after a record has been read, outside the lock.
	afterFind func(key string)
}

func newMockStore() *mockStore {
	return &mockStore{themes: make(map[string]models.Theme)}
}

func (m *mockStore) FindTheme(ctx context.Context, key string) (*models.Theme, error) {
	if m.beforeFind != nil {
		if err := m.beforeFind(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	m.finds++
	if m.findErr != nil {
		m.mu.Unlock()
		return nil, m.findErr
	}
	theme, ok := m.themes[key]
	hook := m.afterFind
	m.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	if !ok {
		return nil, nil
	}
	out := theme.Clone()
	return &out, nil
}

func (m *mockStore) InsertTheme(ctx context.Context, theme models.Theme) (*models.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	if _, exists := m.themes[theme.Key]; exists {
		return nil, fmt.Errorf("UNIQUE constraint failed: themes.scope_key")
	}
	m.inserts++
	m.nextID++
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	stored := theme.Clone()
	stored.ID = m.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.themes[theme.Key] = stored
	out := stored.Clone()
	return &out, nil
}

func (m *mockStore) UpdateTheme(ctx context.Context, theme models.Theme) (*models.Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	previous, exists := m.themes[theme.Key]
	if !exists {
		return nil, errors.New("no rows")
	}
	m.updates++
	stored := theme.Clone()
	stored.ID = previous.ID
	stored.CreatedAt = previous.CreatedAt
	stored.UpdatedAt = previous.UpdatedAt.Add(time.Minute)
	m.themes[theme.Key] = stored
	out := stored.Clone()
	return &out, nil
}

func (m *mockStore) counts() (finds, inserts, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finds, m.inserts, m.updates
}

func (m *mockStore) seed(key string, theme models.Theme) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	theme.ID = m.nextID
	theme.Key = key
	m.themes[key] = theme
}

type mockAssets struct {
	mu      sync.Mutex
	deleted []string
}

func (m *mockAssets) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, path)
	return nil
}

func newService(t *testing.T, cfg Config, store Store, cacheEnabled bool) *Service {
	t.Helper()
	svc, err := NewService(cfg, store, cache.New(cache.Config{Enabled: cacheEnabled}))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func fullColors() map[string]string {
	colors := models.DefaultTheme().Colors
	colors["primary"] = "#2563eb"
	colors["primary-foreground"] = "#eff6ff"
	return colors
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestGet_FirstReadCreatesDefault(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)

	theme, err := svc.Get(context.Background(), "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if theme.Radius != 0.5 {
		t.Fatalf("radius = %v, want 0.5", theme.Radius)
	}
	if len(theme.Colors) != len(models.ColorRoles) {
		t.Fatalf("colors = %d, want %d", len(theme.Colors), len(models.ColorRoles))
	}
	if !theme.Shadows.Enabled {
		t.Fatal("shadows should be enabled by default")
	}
	if theme.Key != "42" || theme.ID == 0 {
		t.Fatalf("identity not stamped: key=%q id=%d", theme.Key, theme.ID)
	}
	if _, inserts, _ := store.counts(); inserts != 1 {
		t.Fatalf("inserts = %d, want 1", inserts)
	}

	if _, err := svc.Get(context.Background(), "42"); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	finds, inserts, _ := store.counts()
	if finds != 1 || inserts != 1 {
		t.Fatalf("cached read touched storage: finds=%d inserts=%d", finds, inserts)
	}
}

func TestGet_ReturnsIsolatedCopies(t *testing.T) {
	svc := newService(t, Config{}, newMockStore(), true)

	first, err := svc.Get(context.Background(), "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	first.Colors["primary"] = "#000000"

	second, err := svc.Get(context.Background(), "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if second.Colors["primary"] == "#000000" {
		t.Fatal("caller mutation leaked into the cache")
	}
}

func TestUpsert_ThenGet(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)
	ctx := context.Background()

	colors := fullColors()
	if _, err := svc.Upsert(ctx, "42", models.ThemePatch{Colors: colors, Radius: floatPtr(0.8)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	theme, err := svc.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if theme.Radius != 0.8 {
		t.Fatalf("radius = %v, want 0.8", theme.Radius)
	}
	for role, value := range colors {
		if theme.Colors[role] != value {
			t.Fatalf("colors[%s] = %q, want %q", role, theme.Colors[role], value)
		}
	}
}

func TestUpsert_MissingRoleLeavesRecordUntouched(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)
	ctx := context.Background()

	before, err := svc.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	findsBefore, insertsBefore, _ := store.counts()

	colors := fullColors()
	delete(colors, "ring")
	_, err = svc.Upsert(ctx, "42", models.ThemePatch{Colors: colors, Radius: floatPtr(1)})
	if err == nil {
		t.Fatal("Upsert() error = nil, want validation error")
	}
	if !models.IsValidationError(err) {
		t.Fatalf("Upsert() error = %v, want ValidationError", err)
	}
	if !strings.Contains(err.Error(), "ring") {
		t.Fatalf("error %q does not mention ring", err)
	}

	finds, inserts, updates := store.counts()
	if finds != findsBefore || inserts != insertsBefore || updates != 0 {
		t.Fatalf("validation failure touched storage: finds=%d inserts=%d updates=%d", finds, inserts, updates)
	}

	after, err := svc.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if after.Radius != before.Radius || after.Colors["ring"] != before.Colors["ring"] {
		t.Fatalf("record changed after rejected upsert: %+v", after)
	}
}

func TestUpsert_MergePolicies(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantRadius float64
		wantColor  string
	}{
		{
			name:       "user_variant_falls_back_to_defaults",
			cfg:        Config{Variant: VariantUser},
			wantRadius: 0.5,
			wantColor:  models.DefaultTheme().Colors["primary"],
		},
		{
			name:       "global_variant_keeps_previous",
			cfg:        Config{Variant: VariantGlobal},
			wantRadius: 0.8,
			wantColor:  "#2563eb",
		},
		{
			name:       "user_variant_with_previous_policy",
			cfg:        Config{Variant: VariantUser, MergePolicy: MergePrevious},
			wantRadius: 0.8,
			wantColor:  "#2563eb",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			svc := newService(t, test.cfg, newMockStore(), true)
			ctx := context.Background()

			if _, err := svc.Upsert(ctx, "42", models.ThemePatch{Colors: fullColors(), Radius: floatPtr(0.8)}); err != nil {
				t.Fatalf("first Upsert() error = %v", err)
			}
			if _, err := svc.Upsert(ctx, "42", models.ThemePatch{Name: strPtr("Renamed")}); err != nil {
				t.Fatalf("second Upsert() error = %v", err)
			}

			theme, err := svc.Get(ctx, "42")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if theme.Name != "Renamed" {
				t.Fatalf("name = %q, want Renamed", theme.Name)
			}
			if theme.Radius != test.wantRadius {
				t.Fatalf("radius = %v, want %v", theme.Radius, test.wantRadius)
			}
			if theme.Colors["primary"] != test.wantColor {
				t.Fatalf("primary = %q, want %q", theme.Colors["primary"], test.wantColor)
			}
			if len(theme.Colors) != len(models.ColorRoles) {
				t.Fatalf("merge left %d colors, want %d", len(theme.Colors), len(models.ColorRoles))
			}
		})
	}
}

func TestCacheCoherence_WriteInvalidatesRecordAndCSS(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "42"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	cssBefore, err := svc.Stylesheet(ctx, "42")
	if err != nil {
		t.Fatalf("Stylesheet() error = %v", err)
	}

	if _, err := svc.Upsert(ctx, "42", models.ThemePatch{Radius: floatPtr(1.25)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	theme, err := svc.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if theme.Radius != 1.25 {
		t.Fatalf("stale record after write: radius = %v", theme.Radius)
	}
	cssAfter, err := svc.Stylesheet(ctx, "42")
	if err != nil {
		t.Fatalf("Stylesheet() error = %v", err)
	}
	if cssAfter == cssBefore || !strings.Contains(cssAfter, "--radius: 1.25rem;") {
		t.Fatalf("stale stylesheet after write:\n%s", cssAfter)
	}

	if _, err := svc.Reset(ctx, "42"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	cssReset, err := svc.Stylesheet(ctx, "42")
	if err != nil {
		t.Fatalf("Stylesheet() error = %v", err)
	}
	if cssReset != cssBefore {
		t.Fatal("stylesheet after reset differs from the default rendering")
	}
}

func TestCacheCoherence_InFlightLoadDoesNotRepopulate(t *testing.T) {
	store := newMockStore()
	store.seed("42", models.DefaultTheme())
	svc := newService(t, Config{Variant: VariantUser}, store, true)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var paused atomic.Bool
	store.afterFind = func(string) {
		if paused.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// This read saw the old record and is paused before publishing it.
		_, _ = svc.Get(ctx, "42")
	}()

	<-entered
	if _, err := svc.Upsert(ctx, "42", models.ThemePatch{Radius: floatPtr(2)}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	close(release)
	<-done

	theme, err := svc.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if theme.Radius != 2 {
		t.Fatalf("read after write returned stale radius %v", theme.Radius)
	}
}

func TestDisabledCache_EveryReadHitsStorage(t *testing.T) {
	store := newMockStore()
	store.seed("42", models.DefaultTheme())
	svc := newService(t, Config{Variant: VariantUser}, store, false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Get(ctx, "42"); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	finds, inserts, _ := store.counts()
	if finds != 2 || inserts != 0 {
		t.Fatalf("finds=%d inserts=%d, want 2 and 0", finds, inserts)
	}
}

func TestNilCache_BehavesDisabled(t *testing.T) {
	store := newMockStore()
	svc, err := NewService(Config{}, store, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Get(ctx, "42"); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if finds, _, _ := store.counts(); finds != 3 {
		t.Fatalf("finds = %d, want 3", finds)
	}
}

func TestGet_ConcurrentFirstReadsCreateOneRecord(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	errs := make([]error, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			theme, err := svc.Get(context.Background(), "7")
			errs[i] = err
			if theme != nil {
				ids[i] = theme.ID
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Get() #%d error = %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Fatalf("Get() #%d id = %d, want %d", i, ids[i], ids[0])
		}
	}
	if _, inserts, _ := store.counts(); inserts != 1 {
		t.Fatalf("inserts = %d, want 1", inserts)
	}
}

func TestGet_CancelledFirstCallerDoesNotFailSharedLoad(t *testing.T) {
	store := newMockStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.beforeFind = func(ctx context.Context) error {
		once.Do(func() {
			close(entered)
			<-release
		})
		return ctx.Err()
	}
	svc := newService(t, Config{Variant: VariantUser}, store, true)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Get(firstCtx, "42")
		firstErr <- err
	}()
	<-entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.Get(context.Background(), "42")
		secondErr <- err
	}()

	cancel()
	close(release)

	if err := <-firstErr; err != nil {
		t.Fatalf("first Get() error = %v, want shared load to finish", err)
	}
	if err := <-secondErr; err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if _, inserts, _ := store.counts(); inserts != 1 {
		t.Fatalf("inserts = %d, want 1", inserts)
	}
}

func TestStylesheet_NeverCreates(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)
	ctx := context.Background()

	if _, err := svc.Stylesheet(ctx, "42"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Stylesheet() error = %v, want ErrNotFound", err)
	}
	if _, inserts, _ := store.counts(); inserts != 0 {
		t.Fatalf("stylesheet read inserted %d records", inserts)
	}

	if _, err := svc.Get(ctx, "42"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	css, err := svc.Stylesheet(ctx, "42")
	if err != nil {
		t.Fatalf("Stylesheet() error = %v", err)
	}
	if !strings.HasPrefix(css, ":root {") {
		t.Fatalf("unexpected css:\n%s", css)
	}
	findsBefore, _, _ := store.counts()
	if _, err := svc.Stylesheet(ctx, "42"); err != nil {
		t.Fatalf("Stylesheet() error = %v", err)
	}
	if finds, _, _ := store.counts(); finds != findsBefore {
		t.Fatal("cached stylesheet read touched storage")
	}
}

func TestStorageFailurePropagates(t *testing.T) {
	store := newMockStore()
	boom := errors.New("disk I/O error")
	store.findErr = boom
	svc := newService(t, Config{Variant: VariantUser}, store, true)

	_, err := svc.Get(context.Background(), "42")
	if err == nil {
		t.Fatal("Get() error = nil, want storage error")
	}
	if !IsStorageError(err) {
		t.Fatalf("Get() error = %T, want *StorageError", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("storage error does not wrap the cause: %v", err)
	}

	store.findErr = nil
	store.insertErr = boom
	if _, err := svc.Upsert(context.Background(), "42", models.ThemePatch{Radius: floatPtr(1)}); !IsStorageError(err) {
		t.Fatalf("Upsert() error = %v, want storage error", err)
	}
}

func TestUserVariant_RequiresKey(t *testing.T) {
	svc := newService(t, Config{Variant: VariantUser}, newMockStore(), true)
	if _, err := svc.Get(context.Background(), ""); !models.IsValidationError(err) {
		t.Fatalf("Get(\"\") error = %v, want validation error", err)
	}
}

func TestGlobalVariant_IgnoresIdentity(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantGlobal}, store, true)
	ctx := context.Background()

	if err := svc.EnsureGlobal(ctx); err != nil {
		t.Fatalf("EnsureGlobal() error = %v", err)
	}
	theme, err := svc.Get(ctx, "anything")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if theme.Key != GlobalKey {
		t.Fatalf("key = %q, want %q", theme.Key, GlobalKey)
	}
	if _, inserts, _ := store.counts(); inserts != 1 {
		t.Fatalf("inserts = %d, want exactly one global row", inserts)
	}
}

func TestEnsureGlobal_NoopForUserVariant(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)
	if err := svc.EnsureGlobal(context.Background()); err != nil {
		t.Fatalf("EnsureGlobal() error = %v", err)
	}
	if finds, inserts, _ := store.counts(); finds != 0 || inserts != 0 {
		t.Fatalf("user variant touched storage: finds=%d inserts=%d", finds, inserts)
	}
}

func TestSetLogo(t *testing.T) {
	t.Run("user_variant_rejected", func(t *testing.T) {
		svc := newService(t, Config{Variant: VariantUser}, newMockStore(), true)
		if _, err := svc.SetLogo(context.Background(), "/uploads/a.png"); !errors.Is(err, ErrLogoUnsupported) {
			t.Fatalf("SetLogo() error = %v, want ErrLogoUnsupported", err)
		}
	})

	t.Run("global_variant", func(t *testing.T) {
		assets := &mockAssets{}
		svc := newService(t, Config{Variant: VariantGlobal, Assets: assets}, newMockStore(), true)
		ctx := context.Background()

		if err := svc.EnsureGlobal(ctx); err != nil {
			t.Fatalf("EnsureGlobal() error = %v", err)
		}
		if _, err := svc.SetLogo(ctx, "/uploads/a.png"); err != nil {
			t.Fatalf("SetLogo() error = %v", err)
		}
		css, err := svc.Stylesheet(ctx, "")
		if err != nil {
			t.Fatalf("Stylesheet() error = %v", err)
		}
		if !strings.Contains(css, "--logo-url: url('/uploads/a.png');") {
			t.Fatalf("logo missing from css:\n%s", css)
		}

		// Upserts keep the logo.
		theme, err := svc.Upsert(ctx, "", models.ThemePatch{Name: strPtr("Club")})
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if theme.Logo == nil || *theme.Logo != "/uploads/a.png" {
			t.Fatalf("upsert dropped the logo: %v", theme.Logo)
		}

		if _, err := svc.SetLogo(ctx, "/uploads/b.png"); err != nil {
			t.Fatalf("SetLogo() error = %v", err)
		}
		if len(assets.deleted) != 1 || assets.deleted[0] != "/uploads/a.png" {
			t.Fatalf("deleted = %v, want replaced logo removed", assets.deleted)
		}

		reset, err := svc.Reset(ctx, "")
		if err != nil {
			t.Fatalf("Reset() error = %v", err)
		}
		if reset.Logo != nil {
			t.Fatalf("reset kept logo %q", *reset.Logo)
		}
		if len(assets.deleted) != 2 || assets.deleted[1] != "/uploads/b.png" {
			t.Fatalf("deleted = %v, want reset to remove current logo", assets.deleted)
		}
	})
}

func TestReset_RestoresDefaultsWithoutRemovingRow(t *testing.T) {
	store := newMockStore()
	svc := newService(t, Config{Variant: VariantUser}, store, true)
	ctx := context.Background()

	saved, err := svc.Upsert(ctx, "42", models.ThemePatch{Colors: fullColors(), Radius: floatPtr(2)})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	reset, err := svc.Reset(ctx, "42")
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if reset.ID != saved.ID {
		t.Fatalf("reset replaced the row: id %d -> %d", saved.ID, reset.ID)
	}
	if reset.Radius != 0.5 || reset.Colors["primary"] != models.DefaultTheme().Colors["primary"] {
		t.Fatalf("reset did not restore defaults: %+v", reset)
	}

	again, err := svc.Reset(ctx, "42")
	if err != nil {
		t.Fatalf("second Reset() error = %v", err)
	}
	if again.Radius != reset.Radius || again.Name != reset.Name {
		t.Fatal("reset is not idempotent")
	}
}

func TestNewService_RejectsUnknownSettings(t *testing.T) {
	if _, err := NewService(Config{Variant: "team"}, newMockStore(), nil); err == nil {
		t.Fatal("NewService() accepted an unknown variant")
	}
	if _, err := NewService(Config{MergePolicy: "newest"}, newMockStore(), nil); err == nil {
		t.Fatal("NewService() accepted an unknown merge policy")
	}
	if _, err := NewService(Config{}, nil, nil); err == nil {
		t.Fatal("NewService() accepted a nil store")
	}
}
