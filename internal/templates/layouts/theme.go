package layouts

import (
	"context"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Base wraps content in a standalone HTML page whose inline style block is the
// rendered theme stylesheet.
func Base(title string, stylesheet string, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var builder strings.Builder
		builder.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		builder.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		builder.WriteString(`<title>`)
		builder.WriteString(html.EscapeString(title))
		builder.WriteString(`</title><style>`)
		builder.WriteString(styleSafe(stylesheet))
		builder.WriteString(baseStyles)
		builder.WriteString(`</style></head><body>`)
		if _, err := io.WriteString(w, builder.String()); err != nil {
			return err
		}
		if content != nil {
			if err := content.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// styleSafe keeps a stylesheet from closing the surrounding style element.
func styleSafe(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

const baseStyles = `
body{margin:0;padding:2rem;background:var(--background);color:var(--foreground);font-family:var(--font-sans);}
.card{background:var(--card);color:var(--card-foreground);border:1px solid var(--border);border-radius:var(--radius);padding:1rem;box-shadow:var(--shadow-md);}
.swatches{display:grid;grid-template-columns:repeat(auto-fill,minmax(9rem,1fr));gap:.75rem;}
.swatch{border-radius:var(--radius);border:1px solid var(--border);overflow:hidden;font-size:.75rem;}
.swatch span{display:block;height:3rem;}
.swatch code{display:block;padding:.25rem .5rem;font-family:var(--font-mono);}
.shadows{display:flex;flex-wrap:wrap;gap:1rem;}
.shadows div{width:6rem;height:4rem;border-radius:var(--radius);background:var(--card);display:flex;align-items:center;justify-content:center;font-size:.75rem;}
`
