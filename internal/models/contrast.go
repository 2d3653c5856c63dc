package models

import (
	"fmt"
	"math"

	"github.com/codr1/themekit/internal/color"
)

// Theme colors often back larger UI elements, not body text, so we use the AA large-text threshold.
const wcagAAMinContrastRatio = 3.0

// contrastPairs lists the foreground roles checked against their surface.
var contrastPairs = [][2]string{
	{"foreground", "background"},
	{"primary-foreground", "primary"},
	{"secondary-foreground", "secondary"},
	{"accent-foreground", "accent"},
	{"muted-foreground", "muted"},
	{"card-foreground", "card"},
	{"destructive-foreground", "destructive"},
}

// ContrastWarnings lists role pairs whose contrast ratio is below WCAG AA for large text.
// Colors that cannot be parsed are skipped.
func ContrastWarnings(t Theme) []string {
	var warnings []string
	for _, pair := range contrastPairs {
		text, background := t.Colors[pair[0]], t.Colors[pair[1]]
		ratio, ok := contrastRatio(text, background)
		if !ok || ratio >= wcagAAMinContrastRatio {
			continue
		}
		warnings = append(warnings, fmt.Sprintf(
			"%s on %s has contrast ratio %.2f, below %.1f",
			pair[0], pair[1], ratio, wcagAAMinContrastRatio,
		))
	}
	return warnings
}

func contrastRatio(textColor, backgroundColor string) (float64, bool) {
	textL, ok := relativeLuminance(textColor)
	if !ok {
		return 0, false
	}
	backgroundL, ok := relativeLuminance(backgroundColor)
	if !ok {
		return 0, false
	}
	lightest := math.Max(textL, backgroundL)
	darkest := math.Min(textL, backgroundL)
	return (lightest + 0.05) / (darkest + 0.05), true
}

func relativeLuminance(value string) (float64, bool) {
	c, _, ok := color.Parse(value)
	if !ok {
		return 0, false
	}
	c = c.Clamped()
	return 0.2126*srgbToLinear(c.R) + 0.7152*srgbToLinear(c.G) + 0.0722*srgbToLinear(c.B), true
}

func srgbToLinear(value float64) float64 {
	if value <= 0.03928 {
		return value / 12.92
	}
	return math.Pow((value+0.055)/1.055, 2.4)
}
