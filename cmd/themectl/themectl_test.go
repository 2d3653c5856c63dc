package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/codr1/themekit/internal/api/auth"
	"github.com/codr1/themekit/internal/db"
	"github.com/codr1/themekit/internal/models"
	"github.com/codr1/themekit/internal/testutil"
	"github.com/codr1/themekit/internal/themes"
)

type fakeMigrator struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	calls      []string
}

func (m *fakeMigrator) Up() error {
	m.calls = append(m.calls, "up")
	return m.upErr
}

func (m *fakeMigrator) Down() error {
	m.calls = append(m.calls, "down")
	return m.downErr
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	m.calls = append(m.calls, "version")
	return m.version, m.dirty, m.versionErr
}

func TestRunMigrate(t *testing.T) {
	tests := []struct {
		name    string
		command string
		m       *fakeMigrator
		wantOut string
		wantErr bool
	}{
		{name: "up", command: "up", m: &fakeMigrator{}, wantOut: "Successfully ran migrations up"},
		{name: "up_no_change", command: "up", m: &fakeMigrator{upErr: migrate.ErrNoChange}, wantOut: "Successfully ran migrations up"},
		{name: "up_failure", command: "up", m: &fakeMigrator{upErr: errors.New("boom")}, wantErr: true},
		{name: "down", command: "down", m: &fakeMigrator{}, wantOut: "Successfully ran migrations down"},
		{name: "version", command: "version", m: &fakeMigrator{version: 2}, wantOut: "Version: 2, Dirty: false"},
		{name: "version_none", command: "version", m: &fakeMigrator{versionErr: migrate.ErrNilVersion}, wantOut: "No migrations applied"},
		{name: "unknown", command: "sideways", m: &fakeMigrator{}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runMigrate(test.m, test.command, &out)
			if test.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("runMigrate: %v", err)
			}
			if !strings.Contains(out.String(), test.wantOut) {
				t.Fatalf("expected output %q, got %q", test.wantOut, out.String())
			}
		})
	}
}

func newCLIService(t *testing.T, variant themes.Variant) (*themes.Service, *db.ThemeStore) {
	t.Helper()
	store := db.NewThemeStore(testutil.NewTestDB(t))
	svc, err := themes.NewService(themes.Config{Variant: variant}, store, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestThemeCommands(t *testing.T) {
	ctx := context.Background()
	svc, store := newCLIService(t, themes.VariantUser)

	var out bytes.Buffer
	if err := runShow(ctx, svc, "user_1", &out); err != nil {
		t.Fatalf("show: %v", err)
	}
	var shown models.Theme
	if err := json.Unmarshal(out.Bytes(), &shown); err != nil {
		t.Fatalf("decode show output: %v", err)
	}
	if shown.Key != "user_1" {
		t.Fatalf("expected key user_1, got %q", shown.Key)
	}

	presets, err := themes.BuiltinPresets()
	if err != nil || len(presets) == 0 {
		t.Fatalf("builtin presets: %v (%d)", err, len(presets))
	}
	out.Reset()
	if err := runApply(ctx, svc, "user_1", presets[0].Name, &out); err != nil {
		t.Fatalf("apply: %v", err)
	}

	out.Reset()
	if err := runCSS(ctx, svc, "user_1", &out); err != nil {
		t.Fatalf("css: %v", err)
	}
	if !strings.Contains(out.String(), ":root") {
		t.Fatalf("expected stylesheet output, got %q", out.String())
	}

	out.Reset()
	if err := runReset(ctx, svc, "user_1", &out); err != nil {
		t.Fatalf("reset: %v", err)
	}
	var reset models.Theme
	if err := json.Unmarshal(out.Bytes(), &reset); err != nil {
		t.Fatalf("decode reset output: %v", err)
	}
	if reset.Name != models.DefaultTheme().Name {
		t.Fatalf("expected default name after reset, got %q", reset.Name)
	}

	if err := runApply(ctx, svc, "user_1", "no-such-preset", &out); !errors.Is(err, themes.ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}

	out.Reset()
	if err := runKeys(ctx, store, &out); err != nil {
		t.Fatalf("keys: %v", err)
	}
	if strings.TrimSpace(out.String()) != "user_1" {
		t.Fatalf("expected single key user_1, got %q", out.String())
	}
}

func TestRunCSSMissingRecord(t *testing.T) {
	svc, _ := newCLIService(t, themes.VariantUser)
	var out bytes.Buffer
	if err := runCSS(context.Background(), svc, "nobody", &out); !errors.Is(err, themes.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunPresets(t *testing.T) {
	var out bytes.Buffer
	if err := runPresets(&out); err != nil {
		t.Fatalf("presets: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Fatalf("expected header row, got %q", lines[0])
	}
	presets, _ := themes.BuiltinPresets()
	if len(lines) != len(presets)+1 {
		t.Fatalf("expected %d rows, got %d", len(presets)+1, len(lines))
	}
}

func TestRunToken(t *testing.T) {
	authenticator := auth.NewAuthenticator("test-secret", time.Hour, false)

	var out bytes.Buffer
	if err := runToken(authenticator, 7, "admin", &out); err != nil {
		t.Fatalf("token: %v", err)
	}
	user, err := authenticator.ParseToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if user.ID != 7 || user.Role != "admin" {
		t.Fatalf("unexpected user %+v", user)
	}

	if err := runToken(authenticator, 0, "admin", &out); err == nil {
		t.Fatal("expected error for non-positive user id")
	}
	if err := runToken(authenticator, 7, "owner", &out); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
