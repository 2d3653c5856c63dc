package themes

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/codr1/themekit/internal/models"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a named starting point applied through the normal upsert path.
type Preset struct {
	Name        string
	Description string
	Default     bool
	patch       models.ThemePatch
}

// Patch returns a fresh copy of the preset's full patch.
func (p Preset) Patch() models.ThemePatch {
	out := p.patch
	if p.patch.Colors != nil {
		out.Colors = make(map[string]string, len(p.patch.Colors))
		for k, v := range p.patch.Colors {
			out.Colors[k] = v
		}
	}
	return out
}

type presetEntry struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Default     bool                 `yaml:"default"`
	Radius      *float64             `yaml:"radius"`
	Colors      map[string]string    `yaml:"colors"`
	Shadows     *models.ShadowsPatch `yaml:"shadows"`
	Fonts       *models.FontsPatch   `yaml:"fonts"`
}

var loadBuiltinPresets = sync.OnceValues(func() ([]Preset, error) {
	return ParsePresets(presetsYAML)
})

// ParsePresets decodes a preset list. Colors missing from a preset come from the default
// palette, and every preset must validate as a complete patch.
func ParsePresets(data []byte) ([]Preset, error) {
	var entries []presetEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	presets := make([]Preset, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	defaultName := ""
	for i, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("preset %d: name missing", i+1)
		}
		lower := strings.ToLower(name)
		if seen[lower] {
			return nil, fmt.Errorf("duplicate preset %q", name)
		}
		seen[lower] = true

		if entry.Default {
			if defaultName != "" {
				return nil, fmt.Errorf("multiple default presets: %q and %q", defaultName, name)
			}
			defaultName = name
		}

		colors := models.DefaultTheme().Colors
		for k, v := range entry.Colors {
			colors[k] = v
		}
		patch := models.ThemePatch{
			Name:    &name,
			Colors:  colors,
			Radius:  entry.Radius,
			Shadows: entry.Shadows,
			Fonts:   entry.Fonts,
		}
		if err := patch.Validate(); err != nil {
			return nil, fmt.Errorf("invalid preset %q: %w", name, err)
		}

		presets = append(presets, Preset{
			Name:        name,
			Description: strings.TrimSpace(entry.Description),
			Default:     entry.Default,
			patch:       patch,
		})
	}
	return presets, nil
}

// BuiltinPresets lists the embedded presets in file order.
func BuiltinPresets() ([]Preset, error) {
	presets, err := loadBuiltinPresets()
	if err != nil {
		return nil, err
	}
	return append([]Preset(nil), presets...), nil
}

// Presets lists the built-in presets in file order.
func (s *Service) Presets() ([]Preset, error) {
	return BuiltinPresets()
}

// FindPreset looks a built-in preset up by case-insensitive name.
func (s *Service) FindPreset(name string) (Preset, error) {
	presets, err := s.Presets()
	if err != nil {
		return Preset{}, err
	}
	for _, preset := range presets {
		if strings.EqualFold(preset.Name, strings.TrimSpace(name)) {
			return preset, nil
		}
	}
	return Preset{}, ErrPresetNotFound
}

// ApplyPreset upserts the named preset for key.
func (s *Service) ApplyPreset(ctx context.Context, key, name string) (*models.Theme, error) {
	preset, err := s.FindPreset(name)
	if err != nil {
		return nil, err
	}
	return s.Upsert(ctx, key, preset.Patch())
}
