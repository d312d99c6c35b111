package fence

import (
	"html"
	"strings"
)

// CSS classes shared with the book stylesheet. Renaming any of them breaks
// existing themes.
const (
	ClassRoot    = "svgbook"
	ClassDiagram = "svgbook-diagram"
	ClassInline  = "svgbook-inline"
	ClassEcho    = "svgbook-echo"
	ClassSource  = "svgbook-source"
	ClassError   = "svgbook-error"
)

const (
	diagramStyle = "max-width: 100%;"
	echoStyle    = "display: flex; flex-wrap: wrap; justify-content: space-around; align-items: center;"
	sourceStyle  = "overflow-x: auto; font-size: 0.9em;"
	errorStyle   = "color: red; border: 5px double red; padding: 1em;"
)

// ListingFunc renders diagram source for literal display. The result must be
// safe HTML.
type ListingFunc func(language, source string) string

// PlainListing escapes source into a pre/code listing.
func PlainListing(language, source string) string {
	return `<pre><code class="language-` + html.EscapeString(language) + `">` +
		html.EscapeString(source) + `</code></pre>`
}

// Composer builds the Raw events that replace a recognized block.
// The zero value uses PlainListing.
type Composer struct {
	Listing ListingFunc
}

// Compose returns the replacement for one block. Every returned event is Raw
// and carries origin.
func (c Composer) Compose(tok Token, source string, out Outcome, origin any) []Event {
	var parts []string
	switch {
	case out.Failed():
		parts = []string{
			openDiv(errorStyle, ClassRoot, languageClass(tok), ClassError),
			errorText(out.Err),
			"</div>",
		}
	case tok.Variant.Echo():
		diagram := c.diagram(out.Markup)
		listing := openDiv(sourceStyle, ClassSource) + c.listing(tok.Language, source) + "</div>"
		parts = []string{openDiv(echoStyle, ClassRoot, languageClass(tok), ClassEcho, inlineClass(tok))}
		if tok.SourceFirst {
			parts = append(parts, listing, diagram)
		} else {
			parts = append(parts, diagram, listing)
		}
		parts = append(parts, "</div>")
	default:
		parts = []string{
			openDiv(diagramStyle, ClassRoot, languageClass(tok), ClassDiagram, inlineClass(tok)),
			compact(out.Markup),
			"</div>",
		}
	}

	events := make([]Event, len(parts))
	for i, p := range parts {
		events[i] = Event{Kind: KindRaw, Text: p, Origin: origin}
	}
	return events
}

func (c Composer) diagram(markup string) string {
	return openDiv(diagramStyle, ClassDiagram) + "\n" + compact(markup) + "\n</div>"
}

func (c Composer) listing(language, source string) string {
	if c.Listing != nil {
		return c.Listing(language, source)
	}
	return PlainListing(language, source)
}

func languageClass(tok Token) string { return ClassRoot + "-" + tok.Language }

func inlineClass(tok Token) string {
	if tok.Variant.Inline() {
		return ClassInline
	}
	return ""
}

func openDiv(style string, classes ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="`)
	first := true
	for _, c := range classes {
		if c == "" {
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		b.WriteString(html.EscapeString(c))
		first = false
	}
	b.WriteString(`" style="`)
	b.WriteString(style)
	b.WriteString(`">`)
	return b.String()
}

// compact drops blank lines. A blank line inside an HTML block ends the
// block when the result is fed back through a Markdown parser.
func compact(markup string) string {
	lines := strings.Split(markup, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		kept = append(kept, strings.TrimRight(l, "\r"))
	}
	return strings.Join(kept, "\n")
}

func errorText(err error) string {
	msg := html.EscapeString(strings.TrimRight(err.Error(), "\n"))
	return strings.ReplaceAll(msg, "\n", "<br/>")
}
