package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"

	"svgbook/internal/fence"
)

var svgElements = []string{
	"svg", "g", "title", "desc", "defs", "path", "polygon", "polyline",
	"ellipse", "circle", "rect", "line", "text", "tspan", "image",
	"lineargradient", "radialgradient", "stop", "marker", "use",
}

var svgAttrs = []string{
	"class", "id", "width", "height", "viewbox", "preserveaspectratio",
	"transform", "fill", "fill-opacity", "stroke", "stroke-width", "stroke-opacity",
	"stroke-dasharray", "stroke-linecap", "stroke-linejoin", "opacity",
	"d", "points", "x", "y", "x1", "y1", "x2", "y2", "cx", "cy", "r", "rx", "ry",
	"dx", "dy", "text-anchor", "font-family", "font-size", "font-weight", "font-style",
	"offset", "stop-color", "gradientunits", "markerwidth", "markerheight", "refx", "refy", "orient",
}

// newPolicy extends the user-generated-content policy with the markup diagram
// fences produce: inline SVG and the styled wrapper divs.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("class").OnElements("div", "pre", "code", "span")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("rel", "target").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto", "tel")

	p.AllowElements(svgElements...)
	p.AllowAttrs(svgAttrs...).OnElements(svgElements...)
	// Without this bluemonday drops attribute-less elements such as <defs>.
	p.AllowNoAttrs().OnElements(svgElements...)
	p.AllowStyles(
		"max-width", "display", "flex-wrap", "justify-content", "align-items",
		"overflow-x", "font-size", "color", "border", "padding",
	).OnElements("div")
	return p
}

// chromaListing highlights diagram source for the echo variants. Languages
// chroma has no lexer for (dot among them) use its plain-text fallback, so
// every listing carries the same chroma markup.
func chromaListing(style string) fence.ListingFunc {
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	st := styles.Get(style)
	return func(language, source string) string {
		lexer := lexers.Get(language)
		if lexer == nil {
			lexer = lexers.Fallback
		}
		it, err := chroma.Coalesce(lexer).Tokenise(nil, source)
		if err != nil {
			return fence.PlainListing(language, source)
		}
		var b strings.Builder
		if err := formatter.Format(&b, st, it); err != nil {
			return fence.PlainListing(language, source)
		}
		return b.String()
	}
}
