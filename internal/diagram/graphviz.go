package diagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-graphviz"

	"svgbook/internal/fence"
)

// SVGClass is added to every generated <svg> element.
const SVGClass = "svgbook-svg"

var layouts = map[string]graphviz.Layout{
	"dot":   graphviz.DOT,
	"neato": graphviz.NEATO,
	"circo": graphviz.CIRCO,
	"fdp":   graphviz.FDP,
	"sfdp":  graphviz.SFDP,
	"twopi": graphviz.TWOPI,
}

// darkDefaults is spliced right after the opening brace of a graph when the
// dark theme is selected. Attributes set later in the source still win.
const darkDefaults = `bgcolor="transparent"; node [color="#e0e0e0" fontcolor="#e0e0e0"]; edge [color="#e0e0e0" fontcolor="#e0e0e0"]; `

// Graphviz renders DOT source with the embedded Graphviz build. Every call
// creates its own Graphviz instance, so a Graphviz value is safe for
// concurrent use.
type Graphviz struct{}

func (g *Graphviz) Render(source string, opts fence.Options) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errors.New("empty diagram source")
	}

	dirs := Directives(source)
	layout := graphviz.DOT
	if name, ok := dirs["layout"]; ok {
		l, ok := layouts[name]
		if !ok {
			return "", fmt.Errorf("unknown layout %q", name)
		}
		layout = l
	}
	theme := opts.Theme
	if t, ok := dirs["theme"]; ok {
		theme = t
	}
	if theme == "dark" {
		source = withDarkDefaults(source)
	}

	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(layout)

	graph, err := graphviz.ParseBytes([]byte(source))
	if err != nil {
		return "", fmt.Errorf("parse DOT: %w", err)
	}
	if graph == nil {
		return "", errors.New("parse DOT: no graph in source")
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return embeddable(buf.String()), nil
}

func withDarkDefaults(source string) string {
	i := strings.IndexByte(source, '{')
	if i < 0 {
		return source
	}
	return source[:i+1] + " " + darkDefaults + source[i+1:]
}

var (
	prologRe  = regexp.MustCompile(`(?s)<\?xml.*?\?>`)
	doctypeRe = regexp.MustCompile(`(?s)<!DOCTYPE.*?>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// embeddable strips the document-level parts of a standalone SVG file so it
// can sit inside an HTML page.
func embeddable(svg string) string {
	svg = prologRe.ReplaceAllString(svg, "")
	svg = doctypeRe.ReplaceAllString(svg, "")
	svg = commentRe.ReplaceAllString(svg, "")
	svg = strings.Replace(svg, "<svg ", `<svg class="`+SVGClass+`" `, 1)
	return strings.TrimSpace(svg)
}
