package themes

import "github.com/codr1/themekit/internal/models"

// Swatch is one color variable shown on the preview page.
type Swatch struct {
	Name  string
	Value string
}

type PreviewData struct {
	Theme    models.Theme
	Swatches []Swatch
	Logo     string
	Global   bool
}

// NewPreviewData lists colors in the same order the stylesheet declares them.
func NewPreviewData(theme models.Theme, global bool) PreviewData {
	keys := theme.OrderedColorKeys()
	swatches := make([]Swatch, len(keys))
	for i, key := range keys {
		swatches[i] = Swatch{Name: key, Value: theme.Colors[key]}
	}
	data := PreviewData{
		Theme:    theme,
		Swatches: swatches,
		Global:   global,
	}
	if global && theme.Logo != nil {
		data.Logo = *theme.Logo
	}
	return data
}
