package themes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/codr1/themekit/internal/models"
)

func TestBuiltinPresets(t *testing.T) {
	svc := newService(t, Config{}, newMockStore(), true)

	presets, err := svc.Presets()
	if err != nil {
		t.Fatalf("Presets() error = %v", err)
	}
	if len(presets) < 3 {
		t.Fatalf("presets = %d, want at least 3", len(presets))
	}

	defaults := 0
	for _, preset := range presets {
		if preset.Default {
			defaults++
		}
		patch := preset.Patch()
		if err := patch.Validate(); err != nil {
			t.Fatalf("preset %q does not validate: %v", preset.Name, err)
		}
		if len(patch.Colors) < len(models.ColorRoles) {
			t.Fatalf("preset %q has %d colors", preset.Name, len(patch.Colors))
		}
	}
	if defaults != 1 {
		t.Fatalf("default presets = %d, want 1", defaults)
	}
}

func TestPreset_PatchIsACopy(t *testing.T) {
	svc := newService(t, Config{}, newMockStore(), true)
	preset, err := svc.FindPreset("ocean")
	if err != nil {
		t.Fatalf("FindPreset() error = %v", err)
	}

	patch := preset.Patch()
	patch.Colors["primary"] = "#000000"
	if preset.Patch().Colors["primary"] == "#000000" {
		t.Fatal("Patch() shares the preset colors map")
	}
}

func TestApplyPreset(t *testing.T) {
	svc := newService(t, Config{Variant: VariantUser}, newMockStore(), true)
	ctx := context.Background()

	theme, err := svc.ApplyPreset(ctx, "42", "Ocean")
	if err != nil {
		t.Fatalf("ApplyPreset() error = %v", err)
	}
	if theme.Name != "Ocean" || theme.Colors["primary"] != "#0369a1" || theme.Radius != 0.75 {
		t.Fatalf("preset not applied: %+v", theme)
	}
	if theme.Colors["destructive"] != models.DefaultTheme().Colors["destructive"] {
		t.Fatal("colors missing from the preset should come from the defaults")
	}

	if _, err := svc.ApplyPreset(ctx, "42", "Nope"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("ApplyPreset() error = %v, want ErrPresetNotFound", err)
	}
}

func TestParsePresets_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "not_a_list", yaml: "name: x", wantErr: "parse presets"},
		{name: "missing_name", yaml: "- description: nameless", wantErr: "name missing"},
		{name: "duplicate", yaml: "- name: A\n- name: a", wantErr: "duplicate preset"},
		{name: "two_defaults", yaml: "- name: A\n  default: true\n- name: B\n  default: true", wantErr: "multiple default presets"},
		{name: "bad_color", yaml: "- name: A\n  colors:\n    primary: \"red; }\"", wantErr: "invalid preset"},
		{name: "bad_radius", yaml: "- name: A\n  radius: 9", wantErr: "invalid preset"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParsePresets([]byte(test.yaml))
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("ParsePresets() error = %v, want %q", err, test.wantErr)
			}
		})
	}
}
