// Package color converts CSS color strings into OKLCH notation.
package color

import (
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

const (
	lightnessDecimals = 4
	chromaDecimals    = 4
	hueDecimals       = 2
	alphaDecimals     = 4
	// CSS Color 4 maps 100% chroma to 0.4.
	oklchChromaPercentScale = 0.4
)

// lch is a color in OKLCH coordinates with straight alpha.
type lch struct {
	L, C, H float64
	Alpha   float64
}

// ToOKLCH re-serializes input as oklch(L C H [/ A]). Input that cannot be parsed is
// returned unchanged.
func ToOKLCH(input string) string {
	out, _ := Convert(input)
	return out
}

// Convert is ToOKLCH that also reports whether the input was understood.
func Convert(input string) (string, bool) {
	value, ok := parse(input)
	if !ok {
		return input, false
	}
	return format(value), true
}

// Parse returns the sRGB color and alpha for a CSS color string.
func Parse(input string) (colorful.Color, float64, bool) {
	value, ok := parse(input)
	if !ok {
		return colorful.Color{}, 0, false
	}
	return colorful.OkLch(value.L, value.C, value.H), value.Alpha, true
}

func parse(input string) (lch, bool) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return lch{}, false
	}
	if s == "transparent" {
		return lch{Alpha: 0}, true
	}
	if strings.HasPrefix(s, "#") {
		c, alpha, ok := parseHex(s)
		if !ok {
			return lch{}, false
		}
		return fromSRGB(c, alpha), true
	}
	if name, body, ok := splitFunction(s); ok {
		switch name {
		case "rgb", "rgba":
			c, alpha, ok := parseRGB(body)
			if !ok {
				return lch{}, false
			}
			return fromSRGB(c, alpha), true
		case "hsl", "hsla":
			c, alpha, ok := parseHSL(body)
			if !ok {
				return lch{}, false
			}
			return fromSRGB(c, alpha), true
		case "oklch":
			return parseOKLCH(body)
		}
		return lch{}, false
	}
	if named, ok := colornames.Map[s]; ok {
		c := colorful.Color{
			R: float64(named.R) / 255,
			G: float64(named.G) / 255,
			B: float64(named.B) / 255,
		}
		return fromSRGB(c, 1), true
	}
	return lch{}, false
}

func fromSRGB(c colorful.Color, alpha float64) lch {
	l, ch, h := c.OkLch()
	return lch{L: l, C: ch, H: h, Alpha: alpha}
}

func format(value lch) string {
	l := round(value.L, lightnessDecimals)
	c := round(value.C, chromaDecimals)
	h := round(value.H, hueDecimals)
	if c == 0 || h == 360 {
		h = 0
	}

	var b strings.Builder
	b.WriteString("oklch(")
	b.WriteString(formatFloat(l))
	b.WriteByte(' ')
	b.WriteString(formatFloat(c))
	b.WriteByte(' ')
	b.WriteString(formatFloat(h))
	if alpha := round(value.Alpha, alphaDecimals); alpha < 1 {
		b.WriteString(" / ")
		b.WriteString(formatFloat(alpha))
	}
	b.WriteByte(')')
	return b.String()
}

func parseHex(s string) (colorful.Color, float64, bool) {
	digits := strings.TrimPrefix(s, "#")
	for _, r := range digits {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return colorful.Color{}, 0, false
		}
	}

	switch len(digits) {
	case 3, 4:
		var expanded strings.Builder
		for _, r := range digits {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		digits = expanded.String()
	case 6, 8:
	default:
		return colorful.Color{}, 0, false
	}

	alpha := 1.0
	if len(digits) == 8 {
		a, err := strconv.ParseUint(digits[6:], 16, 8)
		if err != nil {
			return colorful.Color{}, 0, false
		}
		alpha = float64(a) / 255
		digits = digits[:6]
	}

	c, err := colorful.Hex("#" + digits)
	if err != nil {
		return colorful.Color{}, 0, false
	}
	return c, alpha, true
}

func parseRGB(body string) (colorful.Color, float64, bool) {
	parts, alphaRaw, ok := splitArgs(body)
	if !ok {
		return colorful.Color{}, 0, false
	}
	var channels [3]float64
	for i, part := range parts {
		v, ok := parseRGBChannel(part)
		if !ok {
			return colorful.Color{}, 0, false
		}
		channels[i] = v
	}
	alpha, ok := parseAlpha(alphaRaw)
	if !ok {
		return colorful.Color{}, 0, false
	}
	return colorful.Color{R: channels[0], G: channels[1], B: channels[2]}, alpha, true
}

func parseHSL(body string) (colorful.Color, float64, bool) {
	parts, alphaRaw, ok := splitArgs(body)
	if !ok {
		return colorful.Color{}, 0, false
	}
	h, ok := parseHue(parts[0])
	if !ok {
		return colorful.Color{}, 0, false
	}
	sat, ok := parsePercentage(parts[1])
	if !ok {
		return colorful.Color{}, 0, false
	}
	light, ok := parsePercentage(parts[2])
	if !ok {
		return colorful.Color{}, 0, false
	}
	alpha, ok := parseAlpha(alphaRaw)
	if !ok {
		return colorful.Color{}, 0, false
	}
	return colorful.Hsl(h, clamp01(sat), clamp01(light)), alpha, true
}

func parseOKLCH(body string) (lch, bool) {
	parts, alphaRaw, ok := splitArgs(body)
	if !ok {
		return lch{}, false
	}

	var l float64
	if strings.HasSuffix(parts[0], "%") {
		p, ok := parseNumber(strings.TrimSuffix(parts[0], "%"))
		if !ok {
			return lch{}, false
		}
		l = p / 100
	} else if v, ok := parseNumber(parts[0]); ok {
		l = v
	} else {
		return lch{}, false
	}

	var c float64
	if strings.HasSuffix(parts[1], "%") {
		p, ok := parseNumber(strings.TrimSuffix(parts[1], "%"))
		if !ok {
			return lch{}, false
		}
		c = p / 100 * oklchChromaPercentScale
	} else if v, ok := parseNumber(parts[1]); ok {
		c = v
	} else {
		return lch{}, false
	}

	h, ok := parseHue(parts[2])
	if !ok {
		return lch{}, false
	}
	alpha, ok := parseAlpha(alphaRaw)
	if !ok {
		return lch{}, false
	}
	return lch{L: clamp01(l), C: math.Max(c, 0), H: h, Alpha: alpha}, true
}

// splitFunction splits "name(body)" into its parts.
func splitFunction(s string) (string, string, bool) {
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	return strings.TrimSpace(s[:open]), s[open+1 : len(s)-1], true
}

// splitArgs accepts both the legacy comma syntax and the space syntax with "/ alpha".
func splitArgs(body string) ([]string, string, bool) {
	main := body
	alpha := ""
	if idx := strings.IndexByte(body, '/'); idx >= 0 {
		main = body[:idx]
		alpha = strings.TrimSpace(body[idx+1:])
		if alpha == "" {
			return nil, "", false
		}
	}

	var parts []string
	if strings.Contains(main, ",") {
		for _, part := range strings.Split(main, ",") {
			parts = append(parts, strings.TrimSpace(part))
		}
		if alpha == "" && len(parts) == 4 {
			alpha = parts[3]
			parts = parts[:3]
		}
	} else {
		parts = strings.Fields(main)
	}

	if len(parts) != 3 {
		return nil, "", false
	}
	for _, part := range parts {
		if part == "" {
			return nil, "", false
		}
	}
	return parts, alpha, true
}

func parseRGBChannel(s string) (float64, bool) {
	if strings.HasSuffix(s, "%") {
		p, ok := parseNumber(strings.TrimSuffix(s, "%"))
		if !ok {
			return 0, false
		}
		return clamp01(p / 100), true
	}
	v, ok := parseNumber(s)
	if !ok {
		return 0, false
	}
	return clamp01(v / 255), true
}

func parsePercentage(s string) (float64, bool) {
	v, ok := parseNumber(strings.TrimSuffix(s, "%"))
	if !ok {
		return 0, false
	}
	return v / 100, true
}

func parseAlpha(s string) (float64, bool) {
	if s == "" {
		return 1, true
	}
	if strings.HasSuffix(s, "%") {
		p, ok := parseNumber(strings.TrimSuffix(s, "%"))
		if !ok {
			return 0, false
		}
		return clamp01(p / 100), true
	}
	v, ok := parseNumber(s)
	if !ok {
		return 0, false
	}
	return clamp01(v), true
}

func parseHue(s string) (float64, bool) {
	scale := 1.0
	switch {
	case strings.HasSuffix(s, "deg"):
		s = strings.TrimSuffix(s, "deg")
	case strings.HasSuffix(s, "grad"):
		s = strings.TrimSuffix(s, "grad")
		scale = 0.9
	case strings.HasSuffix(s, "rad"):
		s = strings.TrimSuffix(s, "rad")
		scale = 180 / math.Pi
	case strings.HasSuffix(s, "turn"):
		s = strings.TrimSuffix(s, "turn")
		scale = 360
	}
	v, ok := parseNumber(s)
	if !ok {
		return 0, false
	}
	h := math.Mod(v*scale, 360)
	if h < 0 {
		h += 360
	}
	return h, true
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "none" {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
