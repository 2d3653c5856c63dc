// internal/models/themes.go
package models

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	maxThemeNameLength  = 100
	maxColorValueLength = 128
	maxFontNameLength   = 64
	minRadius           = 0.0
	maxRadius           = 4.0
	maxShadowBlur       = 100.0
)

const (
	DefaultThemeName  = "My Theme"
	defaultRadius     = 0.5
	defaultSansFont   = "Inter"
	defaultSerifFont  = "Source Serif 4"
	defaultMonoFont   = "JetBrains Mono"
	defaultShadowBlur = 2.0
	defaultShadowOpac = 0.05
)

// ColorRoles is the fixed set of semantic color roles, in render order.
var ColorRoles = []string{
	"background",
	"foreground",
	"primary",
	"primary-foreground",
	"secondary",
	"secondary-foreground",
	"accent",
	"accent-foreground",
	"muted",
	"muted-foreground",
	"card",
	"card-foreground",
	"border",
	"input",
	"ring",
	"destructive",
	"destructive-foreground",
}

var defaultColors = map[string]string{
	"background":             "#ffffff",
	"foreground":             "#0a0a0a",
	"primary":                "#171717",
	"primary-foreground":     "#fafafa",
	"secondary":              "#f5f5f5",
	"secondary-foreground":   "#171717",
	"accent":                 "#f5f5f5",
	"accent-foreground":      "#171717",
	"muted":                  "#f5f5f5",
	"muted-foreground":       "#737373",
	"card":                   "#ffffff",
	"card-foreground":        "#0a0a0a",
	"border":                 "#e5e5e5",
	"input":                  "#e5e5e5",
	"ring":                   "#a3a3a3",
	"destructive":            "#dc2626",
	"destructive-foreground": "#fafafa",
}

var (
	themeNameRegex   = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} ()'._-]*$`)
	colorKeyRegex    = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	unsafeColorChars = "\"';{}\\<>\n\r"
	unsafeFontChars  = "\"';{}\\<>\n\r"
	fixedRoleIndex   = buildRoleIndex()
)

// Custom properties the stylesheet declares itself. An extension color with one of these
// names would emit a second declaration that overrides the first.
var (
	reservedVariables = map[string]bool{
		"radius":          true,
		"letter-spacing":  true,
		"spacing":         true,
		"tracking-normal": true,
		"logo-url":        true,
	}
	reservedVariablePrefixes = []string{"popover", "sidebar", "chart-", "font-", "shadow"}
)

// IsReservedVariable reports whether key names a variable the stylesheet emits on its own.
func IsReservedVariable(key string) bool {
	if reservedVariables[key] {
		return true
	}
	for _, prefix := range reservedVariablePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func buildRoleIndex() map[string]int {
	index := make(map[string]int, len(ColorRoles))
	for i, role := range ColorRoles {
		index[role] = i
	}
	return index
}

// IsColorRole reports whether key is one of the fixed color roles.
func IsColorRole(key string) bool {
	_, ok := fixedRoleIndex[key]
	return ok
}

type Shadows struct {
	Enabled bool    `json:"enabled"`
	Opacity float64 `json:"opacity"`
	Blur    float64 `json:"blur"`
}

type Fonts struct {
	Sans  string `json:"sans"`
	Serif string `json:"serif"`
	Mono  string `json:"mono"`
}

// Theme is the persisted visual theme for one identity key.
type Theme struct {
	ID        int64             `json:"id"`
	Key       string            `json:"key"`
	Name      string            `json:"name"`
	Colors    map[string]string `json:"colors"`
	Radius    float64           `json:"radius"`
	Shadows   Shadows           `json:"shadows"`
	Fonts     Fonts             `json:"fonts"`
	Logo      *string           `json:"logo,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// DefaultTheme returns a fresh baseline theme. Identity fields are left empty.
func DefaultTheme() Theme {
	colors := make(map[string]string, len(defaultColors))
	for role, value := range defaultColors {
		colors[role] = value
	}
	return Theme{
		Name:   DefaultThemeName,
		Colors: colors,
		Radius: defaultRadius,
		Shadows: Shadows{
			Enabled: true,
			Opacity: defaultShadowOpac,
			Blur:    defaultShadowBlur,
		},
		Fonts: Fonts{
			Sans:  defaultSansFont,
			Serif: defaultSerifFont,
			Mono:  defaultMonoFont,
		},
	}
}

// Clone returns a deep copy of t.
func (t Theme) Clone() Theme {
	out := t
	if t.Colors != nil {
		out.Colors = make(map[string]string, len(t.Colors))
		for k, v := range t.Colors {
			out.Colors[k] = v
		}
	}
	if t.Logo != nil {
		logo := *t.Logo
		out.Logo = &logo
	}
	return out
}

// OrderedColorKeys returns the fixed roles first, then extension keys sorted ascending.
func (t Theme) OrderedColorKeys() []string {
	keys := make([]string, 0, len(t.Colors))
	for _, role := range ColorRoles {
		if _, ok := t.Colors[role]; ok {
			keys = append(keys, role)
		}
	}
	extensions := make([]string, 0)
	for key := range t.Colors {
		if !IsColorRole(key) {
			extensions = append(extensions, key)
		}
	}
	sort.Strings(extensions)
	return append(keys, extensions...)
}

type ShadowsPatch struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Opacity *float64 `json:"opacity,omitempty"`
	Blur    *float64 `json:"blur,omitempty"`
}

type FontsPatch struct {
	Sans  *string `json:"sans,omitempty"`
	Serif *string `json:"serif,omitempty"`
	Mono  *string `json:"mono,omitempty"`
}

// ThemePatch is a partial theme update. A nil field is absent from the update.
type ThemePatch struct {
	Name    *string           `json:"name,omitempty"`
	Colors  map[string]string `json:"colors,omitempty"`
	Radius  *float64          `json:"radius,omitempty"`
	Shadows *ShadowsPatch     `json:"shadows,omitempty"`
	Fonts   *FontsPatch       `json:"fonts,omitempty"`
}

// Validate checks every field present in the patch. It never touches storage.
func (p ThemePatch) Validate() error {
	if p.Name != nil {
		if err := validateThemeName(*p.Name); err != nil {
			return err
		}
	}

	if p.Colors != nil {
		if err := validateColors(p.Colors); err != nil {
			return err
		}
	}

	if p.Radius != nil {
		r := *p.Radius
		if math.IsNaN(r) || r < minRadius || r > maxRadius {
			return NewValidationError("radius", fmt.Sprintf("must be between %g and %g", minRadius, maxRadius))
		}
	}

	if p.Shadows != nil {
		if o := p.Shadows.Opacity; o != nil && (math.IsNaN(*o) || *o < 0 || *o > 1) {
			return NewValidationError("shadows.opacity", "must be between 0 and 1")
		}
		if b := p.Shadows.Blur; b != nil && (math.IsNaN(*b) || *b < 0 || *b > maxShadowBlur) {
			return NewValidationError("shadows.blur", fmt.Sprintf("must be between 0 and %g", maxShadowBlur))
		}
	}

	if p.Fonts != nil {
		fonts := []struct {
			field string
			value *string
		}{
			{"fonts.sans", p.Fonts.Sans},
			{"fonts.serif", p.Fonts.Serif},
			{"fonts.mono", p.Fonts.Mono},
		}
		for _, font := range fonts {
			if font.value == nil {
				continue
			}
			if err := validateFontName(font.field, *font.value); err != nil {
				return err
			}
		}
	}

	return nil
}

// ApplyTo returns base overridden by every field present in p.
func (p ThemePatch) ApplyTo(base Theme) Theme {
	out := base.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Colors != nil {
		out.Colors = make(map[string]string, len(p.Colors))
		for k, v := range p.Colors {
			out.Colors[k] = strings.TrimSpace(v)
		}
	}
	if p.Radius != nil {
		out.Radius = *p.Radius
	}
	if p.Shadows != nil {
		if p.Shadows.Enabled != nil {
			out.Shadows.Enabled = *p.Shadows.Enabled
		}
		if p.Shadows.Opacity != nil {
			out.Shadows.Opacity = *p.Shadows.Opacity
		}
		if p.Shadows.Blur != nil {
			out.Shadows.Blur = *p.Shadows.Blur
		}
	}
	if p.Fonts != nil {
		if p.Fonts.Sans != nil {
			out.Fonts.Sans = strings.TrimSpace(*p.Fonts.Sans)
		}
		if p.Fonts.Serif != nil {
			out.Fonts.Serif = strings.TrimSpace(*p.Fonts.Serif)
		}
		if p.Fonts.Mono != nil {
			out.Fonts.Mono = strings.TrimSpace(*p.Fonts.Mono)
		}
	}
	return out
}

func validateThemeName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return NewValidationError("name", "name is required")
	}
	if trimmed != name {
		return NewValidationError("name", "name must not have leading or trailing whitespace")
	}
	if len([]rune(trimmed)) > maxThemeNameLength {
		return NewValidationError("name", fmt.Sprintf("name must be %d characters or fewer", maxThemeNameLength))
	}
	if !themeNameRegex.MatchString(trimmed) {
		return NewValidationError("name", "name may only contain letters, numbers, spaces and -()'._")
	}
	return nil
}

func validateColors(colors map[string]string) error {
	for _, role := range ColorRoles {
		if strings.TrimSpace(colors[role]) == "" {
			return NewValidationError("colors."+role, "missing required color role "+role)
		}
	}

	keys := make([]string, 0, len(colors))
	for key := range colors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !IsColorRole(key) && !colorKeyRegex.MatchString(key) {
			return NewValidationError("colors."+key, "color key must be lowercase letters, digits and hyphens")
		}
		if !IsColorRole(key) && IsReservedVariable(key) {
			return NewValidationError("colors."+key, "color key "+key+" is reserved by the stylesheet")
		}
		value := strings.TrimSpace(colors[key])
		if value == "" {
			return NewValidationError("colors."+key, "color value is required")
		}
		if len(value) > maxColorValueLength {
			return NewValidationError("colors."+key, fmt.Sprintf("color value must be %d characters or fewer", maxColorValueLength))
		}
		if strings.ContainsAny(value, unsafeColorChars) || strings.Contains(value, "/*") || strings.Contains(value, "*/") {
			return NewValidationError("colors."+key, "color value contains forbidden characters")
		}
	}
	return nil
}

func validateFontName(field, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return NewValidationError(field, "font family is required")
	}
	if len(trimmed) > maxFontNameLength {
		return NewValidationError(field, fmt.Sprintf("font family must be %d characters or fewer", maxFontNameLength))
	}
	if strings.ContainsAny(trimmed, unsafeFontChars) {
		return NewValidationError(field, "font family contains forbidden characters")
	}
	return nil
}
