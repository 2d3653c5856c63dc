package themes

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/codr1/themekit/internal/stylesheet"
)

// Preview renders swatches, type samples and the shadow scale using the theme variables.
func Preview(data PreviewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, buildPreviewHTML(data))
		return err
	})
}

func buildPreviewHTML(data PreviewData) string {
	theme := data.Theme

	var builder strings.Builder
	builder.WriteString(`<main class="card" style="display:grid;gap:1.5rem;">`)
	builder.WriteString(`<header style="display:flex;align-items:center;gap:1rem;">`)
	if data.Logo != "" {
		builder.WriteString(fmt.Sprintf(`<img src="%s" alt="Logo" style="height:2.5rem;">`, html.EscapeString(data.Logo)))
	}
	builder.WriteString(fmt.Sprintf(`<div><h1 style="margin:0;">%s</h1>`, html.EscapeString(theme.Name)))
	builder.WriteString(fmt.Sprintf(`<p style="margin:0;color:var(--muted-foreground);">Radius %grem`, theme.Radius))
	if data.Global {
		builder.WriteString(` &middot; global theme`)
	}
	builder.WriteString(`</p></div></header>`)

	builder.WriteString(`<section><h2>Colors</h2><div class="swatches">`)
	for _, swatch := range data.Swatches {
		name := html.EscapeString(swatch.Name)
		builder.WriteString(fmt.Sprintf(
			`<div class="swatch"><span style="background:var(--%s);"></span><code>--%s</code><code>%s</code></div>`,
			name,
			name,
			html.EscapeString(swatch.Value),
		))
	}
	builder.WriteString(`</div></section>`)

	builder.WriteString(`<section><h2>Type</h2>`)
	builder.WriteString(fmt.Sprintf(`<p style="font-family:var(--font-sans);">Sans &middot; %s</p>`, html.EscapeString(theme.Fonts.Sans)))
	builder.WriteString(fmt.Sprintf(`<p style="font-family:var(--font-serif);">Serif &middot; %s</p>`, html.EscapeString(theme.Fonts.Serif)))
	builder.WriteString(fmt.Sprintf(`<p style="font-family:var(--font-mono);">Mono &middot; %s</p>`, html.EscapeString(theme.Fonts.Mono)))
	builder.WriteString(`</section>`)

	builder.WriteString(`<section><h2>Shadows</h2>`)
	if !theme.Shadows.Enabled {
		builder.WriteString(`<p style="color:var(--muted-foreground);">Shadows are disabled.</p>`)
	}
	builder.WriteString(`<div class="shadows">`)
	for _, level := range stylesheet.ShadowLevels() {
		builder.WriteString(fmt.Sprintf(`<div style="box-shadow:var(--%s);">%s</div>`, level, level))
	}
	builder.WriteString(`</div></section>`)

	builder.WriteString(`<section style="display:flex;gap:.75rem;">`)
	builder.WriteString(`<button style="background:var(--primary);color:var(--primary-foreground);border:0;border-radius:var(--radius);padding:.5rem 1rem;">Primary</button>`)
	builder.WriteString(`<button style="background:var(--secondary);color:var(--secondary-foreground);border:0;border-radius:var(--radius);padding:.5rem 1rem;">Secondary</button>`)
	builder.WriteString(`<button style="background:var(--destructive);color:var(--destructive-foreground);border:0;border-radius:var(--radius);padding:.5rem 1rem;">Destructive</button>`)
	builder.WriteString(`</section></main>`)
	return builder.String()
}
