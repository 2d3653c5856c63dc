// Package stylesheet renders a resolved theme as a CSS custom-property block.
package stylesheet

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/themekit/internal/color"
	"github.com/codr1/themekit/internal/models"
)

// Options selects variant-specific output.
type Options struct {
	// Global adds the logo variable and the trailing theme comment.
	Global bool
}

type alias struct {
	name   string
	target string
}

var aliases = []alias{
	{"popover", "card"},
	{"popover-foreground", "card-foreground"},
	{"sidebar", "background"},
	{"sidebar-foreground", "foreground"},
	{"sidebar-primary", "primary"},
	{"sidebar-primary-foreground", "primary-foreground"},
	{"sidebar-accent", "accent"},
	{"sidebar-accent-foreground", "accent-foreground"},
	{"sidebar-border", "border"},
	{"sidebar-ring", "ring"},
}

var chartColors = []string{
	"oklch(0.646 0.222 41.116)",
	"oklch(0.6 0.118 184.704)",
	"oklch(0.398 0.07 227.392)",
	"oklch(0.828 0.189 84.429)",
	"oklch(0.769 0.188 70.08)",
}

const (
	sansFallback  = `ui-sans-serif, system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif`
	serifFallback = `ui-serif, Georgia, Cambria, "Times New Roman", Times, serif`
	monoFallback  = `ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace`
)

const (
	shadowHSL     = "hsl(0 0% 0%"
	shadowOffsetY = "1px"
	alphaDecimals = 4
)

// shadowLevel is one step of the shadow scale. A non-empty second layer adds a tighter
// drop shadow under the ambient one.
type shadowLevel struct {
	name       string
	multiplier float64
	second     string
}

// Multipliers: 0.6 for the two smallest levels, 1 for the middle levels, 2.6 for the largest.
var shadowScale = []shadowLevel{
	{name: "shadow-2xs", multiplier: 0.6},
	{name: "shadow-xs", multiplier: 0.6},
	{name: "shadow-sm", multiplier: 1, second: "0px 1px 2px -1px"},
	{name: "shadow", multiplier: 1, second: "0px 1px 2px -1px"},
	{name: "shadow-md", multiplier: 1, second: "0px 2px 4px -1px"},
	{name: "shadow-lg", multiplier: 1, second: "0px 4px 6px -1px"},
	{name: "shadow-xl", multiplier: 1, second: "0px 8px 10px -1px"},
	{name: "shadow-2xl", multiplier: 2.6},
}

// ShadowLevels returns the shadow variable names from smallest to largest.
func ShadowLevels() []string {
	names := make([]string, len(shadowScale))
	for i, level := range shadowScale {
		names[i] = level.name
	}
	return names
}

var (
	logoEscaper    = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", "", "\r", "")
	commentEscaper = strings.NewReplacer("*/", "* /", "\n", " ", "\r", " ")
)

// Render serializes theme into a :root block. Output is byte-identical for identical input.
// The theme must be fully populated.
func Render(theme models.Theme, opts Options) string {
	w := &writer{}
	w.line(":root {")

	w.decl("radius", formatNumber(theme.Radius)+"rem")

	for _, key := range theme.OrderedColorKeys() {
		raw := theme.Colors[key]
		converted, ok := color.Convert(raw)
		if !ok {
			log.Debug().
				Str("theme_key", theme.Key).
				Str("role", key).
				Str("value", raw).
				Msg("Color left unconverted")
		}
		w.decl(key, converted)
	}

	for _, a := range aliases {
		w.decl(a.name, "var(--"+a.target+")")
	}
	for i, c := range chartColors {
		w.decl("chart-"+strconv.Itoa(i+1), c)
	}

	w.decl("font-sans", fontStack(theme.Fonts.Sans, sansFallback))
	w.decl("font-serif", fontStack(theme.Fonts.Serif, serifFallback))
	w.decl("font-mono", fontStack(theme.Fonts.Mono, monoFallback))

	blur := formatNumber(theme.Shadows.Blur) + "px"
	w.decl("shadow-color", shadowHSL+")")
	w.decl("shadow-opacity", formatNumber(theme.Shadows.Opacity))
	w.decl("shadow-blur", blur)
	w.decl("shadow-spread", "0px")
	w.decl("shadow-offset-x", "0px")
	w.decl("shadow-offset-y", shadowOffsetY)

	for _, level := range shadowScale {
		if !theme.Shadows.Enabled {
			w.decl(level.name, "none")
			continue
		}
		w.decl(level.name, shadowValue(level, blur, theme.Shadows.Opacity))
	}

	w.decl("letter-spacing", "0em")
	w.decl("spacing", "0.25rem")
	w.decl("tracking-normal", "0em")

	if opts.Global {
		if theme.Logo != nil && *theme.Logo != "" {
			w.decl("logo-url", "url('"+logoEscaper.Replace(*theme.Logo)+"')")
		}
		w.line("  /* Theme: " + commentEscaper.Replace(theme.Name) + " */")
	}

	w.line("}")
	return w.String()
}

func shadowValue(level shadowLevel, blur string, opacity float64) string {
	alpha := formatNumber(round(opacity*level.multiplier, alphaDecimals))
	ambient := "0px " + shadowOffsetY + " " + blur + " 0px " + shadowHSL + " / " + alpha + ")"
	if level.second == "" {
		return ambient
	}
	return ambient + ", " + level.second + " " + shadowHSL + " / " + alpha + ")"
}

// fontStack prefixes family to fallback, quoting names that contain spaces.
func fontStack(family, fallback string) string {
	family = strings.TrimSpace(family)
	if family == "" {
		return fallback
	}
	if strings.ContainsAny(family, " \t") {
		family = `"` + family + `"`
	}
	return family + ", " + fallback
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func formatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type writer struct {
	strings.Builder
}

func (w *writer) line(s string) {
	w.WriteString(s)
	w.WriteByte('\n')
}

func (w *writer) decl(name, value string) {
	w.WriteString("  --")
	w.WriteString(name)
	w.WriteString(": ")
	w.WriteString(value)
	w.WriteString(";\n")
}
