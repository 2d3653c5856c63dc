package models

import (
	"strings"
	"testing"
)

func validPatch() ThemePatch {
	defaults := DefaultTheme()
	name := "Ocean Breeze"
	radius := 0.75
	return ThemePatch{
		Name:   &name,
		Colors: defaults.Colors,
		Radius: &radius,
	}
}

func TestDefaultTheme_ReturnsIndependentCopies(t *testing.T) {
	first := DefaultTheme()
	first.Colors["primary"] = "#ff0000"
	first.Name = "Changed"

	second := DefaultTheme()
	if second.Colors["primary"] != "#171717" {
		t.Fatalf("defaults were mutated: primary = %q", second.Colors["primary"])
	}
	if second.Name != DefaultThemeName {
		t.Fatalf("name = %q, want %q", second.Name, DefaultThemeName)
	}
	if len(second.Colors) != len(ColorRoles) {
		t.Fatalf("default colors = %d, want %d", len(second.Colors), len(ColorRoles))
	}
	for _, role := range ColorRoles {
		if second.Colors[role] == "" {
			t.Fatalf("default color %q missing", role)
		}
	}
	if second.Logo != nil {
		t.Fatalf("default logo = %v, want nil", *second.Logo)
	}
}

func TestTheme_CloneIsDeep(t *testing.T) {
	logo := "/uploads/logo.png"
	original := DefaultTheme()
	original.Logo = &logo

	clone := original.Clone()
	clone.Colors["background"] = "#000000"
	*clone.Logo = "/uploads/other.png"

	if original.Colors["background"] != "#ffffff" {
		t.Fatalf("clone shares colors map")
	}
	if *original.Logo != "/uploads/logo.png" {
		t.Fatalf("clone shares logo pointer")
	}
}

func TestTheme_OrderedColorKeys(t *testing.T) {
	theme := DefaultTheme()
	theme.Colors["warning"] = "#f59e0b"
	theme.Colors["brand-2"] = "#123456"

	keys := theme.OrderedColorKeys()
	if len(keys) != len(ColorRoles)+2 {
		t.Fatalf("keys = %d, want %d", len(keys), len(ColorRoles)+2)
	}
	for i, role := range ColorRoles {
		if keys[i] != role {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], role)
		}
	}
	tail := keys[len(ColorRoles):]
	if tail[0] != "brand-2" || tail[1] != "warning" {
		t.Fatalf("extension keys = %v, want [brand-2 warning]", tail)
	}
}

func TestThemePatch_Validate(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	floatPtr := func(f float64) *float64 { return &f }

	tests := []struct {
		name      string
		mutate    func(p *ThemePatch)
		wantField string
	}{
		{name: "valid", mutate: func(p *ThemePatch) {}},
		{name: "empty_patch", mutate: func(p *ThemePatch) { *p = ThemePatch{} }},
		{name: "empty_name", mutate: func(p *ThemePatch) { p.Name = strPtr("") }, wantField: "name"},
		{name: "padded_name", mutate: func(p *ThemePatch) { p.Name = strPtr(" Ocean ") }, wantField: "name"},
		{name: "long_name", mutate: func(p *ThemePatch) { p.Name = strPtr(strings.Repeat("a", 101)) }, wantField: "name"},
		{name: "name_markup", mutate: func(p *ThemePatch) { p.Name = strPtr("<b>Theme</b>") }, wantField: "name"},
		{name: "unicode_name", mutate: func(p *ThemePatch) { p.Name = strPtr("Thème d'été (v2)") }},
		{
			name: "missing_ring",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				delete(colors, "ring")
				p.Colors = colors
			},
			wantField: "colors.ring",
		},
		{
			name: "blank_role",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["primary"] = "  "
				p.Colors = colors
			},
			wantField: "colors.primary",
		},
		{
			name: "bad_extension_key",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["Brand Color"] = "#123456"
				p.Colors = colors
			},
			wantField: "colors.Brand Color",
		},
		{
			name: "css_injection",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["accent"] = "red; } body { display: none"
				p.Colors = colors
			},
			wantField: "colors.accent",
		},
		{
			name: "unparseable_color_allowed",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["accent"] = "var(--brand)"
				p.Colors = colors
			},
		},
		{
			name: "color_comment_opener",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["background"] = "red /*"
				p.Colors = colors
			},
			wantField: "colors.background",
		},
		{
			name: "color_comment_closer",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["background"] = "red */"
				p.Colors = colors
			},
			wantField: "colors.background",
		},
		{
			name: "color_double_quote",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["background"] = `"red"`
				p.Colors = colors
			},
			wantField: "colors.background",
		},
		{
			name: "color_single_quote",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["background"] = "'red'"
				p.Colors = colors
			},
			wantField: "colors.background",
		},
		{
			name: "color_backslash",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["background"] = `red\9`
				p.Colors = colors
			},
			wantField: "colors.background",
		},
		{
			name: "reserved_key_radius",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["radius"] = "#000000"
				p.Colors = colors
			},
			wantField: "colors.radius",
		},
		{
			name: "reserved_key_logo-url",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["logo-url"] = "#000000"
				p.Colors = colors
			},
			wantField: "colors.logo-url",
		},
		{
			name: "reserved_key_sidebar-ring",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["sidebar-ring"] = "#000000"
				p.Colors = colors
			},
			wantField: "colors.sidebar-ring",
		},
		{
			name: "reserved_key_chart-3",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["chart-3"] = "#000000"
				p.Colors = colors
			},
			wantField: "colors.chart-3",
		},
		{
			name: "reserved_key_font-sans",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["font-sans"] = "#000000"
				p.Colors = colors
			},
			wantField: "colors.font-sans",
		},
		{
			name: "reserved_key_shadow-2xl",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["shadow-2xl"] = "#000000"
				p.Colors = colors
			},
			wantField: "colors.shadow-2xl",
		},
		{
			name: "reserved_key_spacing",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["spacing"] = "#000000"
				p.Colors = colors
			},
			wantField: "colors.spacing",
		},
		{
			name: "extension_key_allowed",
			mutate: func(p *ThemePatch) {
				colors := DefaultTheme().Colors
				colors["brand-shade"] = "rgb(0 0 0 / 50%)"
				p.Colors = colors
			},
		},
		{name: "negative_radius", mutate: func(p *ThemePatch) { p.Radius = floatPtr(-0.1) }, wantField: "radius"},
		{name: "huge_radius", mutate: func(p *ThemePatch) { p.Radius = floatPtr(10) }, wantField: "radius"},
		{name: "zero_radius", mutate: func(p *ThemePatch) { p.Radius = floatPtr(0) }},
		{
			name:      "opacity_range",
			mutate:    func(p *ThemePatch) { p.Shadows = &ShadowsPatch{Opacity: floatPtr(1.5)} },
			wantField: "shadows.opacity",
		},
		{
			name:      "blur_range",
			mutate:    func(p *ThemePatch) { p.Shadows = &ShadowsPatch{Blur: floatPtr(-1)} },
			wantField: "shadows.blur",
		},
		{
			name:      "font_quote",
			mutate:    func(p *ThemePatch) { p.Fonts = &FontsPatch{Serif: strPtr(`Georgia"`)} },
			wantField: "fonts.serif",
		},
		{
			name:      "empty_font",
			mutate:    func(p *ThemePatch) { p.Fonts = &FontsPatch{Mono: strPtr("")} },
			wantField: "fonts.mono",
		},
		{name: "font_with_space", mutate: func(p *ThemePatch) { p.Fonts = &FontsPatch{Sans: strPtr("Open Sans")} }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			patch := validPatch()
			test.mutate(&patch)

			err := patch.Validate()
			if test.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error on %s", test.wantField)
			}
			if !IsValidationError(err) {
				t.Fatalf("Validate() error = %T, want ValidationError", err)
			}
			validationErr := err.(ValidationError)
			if validationErr.Field != test.wantField {
				t.Fatalf("Validate() field = %q, want %q", validationErr.Field, test.wantField)
			}
		})
	}
}

func TestThemePatch_ValidateNamesMissingRole(t *testing.T) {
	colors := DefaultTheme().Colors
	delete(colors, "ring")

	err := ThemePatch{Colors: colors}.Validate()
	if err == nil || !strings.Contains(err.Error(), "ring") {
		t.Fatalf("Validate() error = %v, want mention of ring", err)
	}
}

func TestThemePatch_ApplyToPartial(t *testing.T) {
	name := "Sunset"
	enabled := false
	serif := "  Merriweather "
	base := DefaultTheme()
	base.Radius = 1

	patch := ThemePatch{
		Name:    &name,
		Shadows: &ShadowsPatch{Enabled: &enabled},
		Fonts:   &FontsPatch{Serif: &serif},
	}
	got := patch.ApplyTo(base)

	if got.Name != "Sunset" {
		t.Fatalf("name = %q, want Sunset", got.Name)
	}
	if got.Radius != 1 {
		t.Fatalf("radius = %v, want base value 1", got.Radius)
	}
	if got.Shadows.Enabled {
		t.Fatalf("shadows should be disabled")
	}
	if got.Shadows.Opacity != base.Shadows.Opacity || got.Shadows.Blur != base.Shadows.Blur {
		t.Fatalf("untouched shadow fields changed: %+v", got.Shadows)
	}
	if got.Fonts.Serif != "Merriweather" {
		t.Fatalf("serif = %q, want trimmed Merriweather", got.Fonts.Serif)
	}
	if got.Fonts.Sans != base.Fonts.Sans {
		t.Fatalf("sans = %q, want %q", got.Fonts.Sans, base.Fonts.Sans)
	}
	if got.Colors["primary"] != base.Colors["primary"] {
		t.Fatalf("colors changed without a colors patch")
	}

	got.Colors["primary"] = "#000000"
	if base.Colors["primary"] == "#000000" {
		t.Fatalf("ApplyTo shares the base colors map")
	}
}

func TestThemePatch_ApplyToReplacesColors(t *testing.T) {
	colors := DefaultTheme().Colors
	colors["primary"] = " #3b82f6 "
	colors["brand"] = "#ff00ff"

	got := ThemePatch{Colors: colors}.ApplyTo(DefaultTheme())
	if got.Colors["primary"] != "#3b82f6" {
		t.Fatalf("primary = %q, want trimmed #3b82f6", got.Colors["primary"])
	}
	if got.Colors["brand"] != "#ff00ff" {
		t.Fatalf("extension color not applied")
	}
}

func TestContrastWarnings(t *testing.T) {
	theme := DefaultTheme()
	if warnings := ContrastWarnings(theme); len(warnings) != 0 {
		t.Fatalf("default theme warnings = %v, want none", warnings)
	}

	theme.Colors["primary"] = "#eeeeee"
	theme.Colors["primary-foreground"] = "#ffffff"
	theme.Colors["muted"] = "var(--surface)"

	warnings := ContrastWarnings(theme)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
	if !strings.HasPrefix(warnings[0], "primary-foreground on primary") {
		t.Fatalf("warning = %q, want primary pair", warnings[0])
	}
}

func TestIsReservedVariable(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"radius", true},
		{"popover-foreground", true},
		{"sidebar", true},
		{"chart-5", true},
		{"font-mono", true},
		{"shadow", true},
		{"shadow-offset-y", true},
		{"letter-spacing", true},
		{"tracking-normal", true},
		{"logo-url", true},
		{"brand", false},
		{"warning", false},
		{"primary", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsReservedVariable(tt.key); got != tt.want {
				t.Fatalf("IsReservedVariable(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
