package render

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/yuin/goldmark/text"

	"svgbook/internal/config"
	"svgbook/internal/diagram"
	"svgbook/internal/fence"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

func fakeDiagrams() fence.Renderer {
	return fence.RendererFunc(func(src string, opts fence.Options) (string, error) {
		if strings.Contains(src, "broken") {
			return "", errors.New("unexpected token 'broken'")
		}
		return `<svg class="svgbook-svg"><g class="node"><ellipse/></g><g class="node"><ellipse/></g><g class="edge"><path d="M0,0"/></g></svg>`, nil
	})
}

func newTestRenderer(t *testing.T, root string, r fence.Renderer) *Renderer {
	t.Helper()
	rr, err := New(Options{RootAbs: root, Config: config.Default(), Diagrams: r})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rr
}

func TestRender_TwoConnectedShapes(t *testing.T) {
	r := newTestRenderer(t, "", diagram.Default())

	src := "# Shapes\n\n```dot\ndigraph {\n  a -> b\n}\n```\n"
	res, err := r.Render([]byte(src), "shapes.md")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Diagrams != 1 || res.Failed() {
		t.Fatalf("unexpected diagram summary %d %+v", res.Diagrams, res.Failures)
	}
	if n := strings.Count(res.HTML, `class="svgbook svgbook-dot svgbook-diagram"`); n != 1 {
		t.Fatalf("expected one wrapper, got %d: %s", n, res.HTML)
	}
	if strings.Count(res.HTML, `class="node"`) < 2 || strings.Count(res.HTML, `class="edge"`) < 1 {
		t.Fatalf("expected two nodes and an edge: %s", res.HTML)
	}
	if strings.Contains(res.HTML, "language-dot") || strings.Contains(res.HTML, "```") {
		t.Fatalf("fence leaked into output: %s", res.HTML)
	}
}

func TestRender_SourceEchoAndPassthrough(t *testing.T) {
	r := newTestRenderer(t, "", fakeDiagrams())

	src := strings.Join([]string{
		"Intro text.",
		"",
		"```dot-source",
		"digraph { a -> b }",
		"```",
		"",
		"```xml",
		"<svg><rect/></svg>",
		"```",
		"",
	}, "\n")
	res, err := r.Render([]byte(src), "echo.md")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(res.HTML, "<p>Intro text.</p>") {
		t.Fatalf("surrounding paragraph changed: %s", res.HTML)
	}
	if !strings.Contains(res.HTML, `class="svgbook svgbook-dot svgbook-echo"`) {
		t.Fatalf("missing echo wrapper: %s", res.HTML)
	}
	if !strings.Contains(res.HTML, `class="svgbook-diagram"`) || !strings.Contains(res.HTML, `class="svgbook-source"`) {
		t.Fatalf("expected diagram and source siblings: %s", res.HTML)
	}
	if !strings.Contains(tagRe.ReplaceAllString(res.HTML, ""), "digraph { a -&gt; b }") {
		t.Fatalf("expected escaped source listing: %s", res.HTML)
	}
	// chroma has no dot lexer; the listing still goes through its formatter.
	if !strings.Contains(res.HTML, `<pre class="chroma">`) {
		t.Fatalf("expected chroma listing: %s", res.HTML)
	}
	// The xml fence is ordinary code: highlighted, no wrapper, no render call.
	if res.Diagrams != 1 {
		t.Fatalf("xml fence must not be rendered, diagrams=%d", res.Diagrams)
	}
	if !strings.Contains(tagRe.ReplaceAllString(res.HTML, ""), "&lt;svg&gt;&lt;rect/&gt;&lt;/svg&gt;") {
		t.Fatalf("xml fence content changed: %s", res.HTML)
	}
}

func TestRender_FailureIsLocal(t *testing.T) {
	r := newTestRenderer(t, "", fakeDiagrams())

	src := "```dot\nbroken\n```\n\n```dot-inline\nfine\n```\n"
	res, err := r.Render([]byte(src), "fail.md")
	if err != nil {
		t.Fatalf("Render must not fail on a bad diagram: %v", err)
	}
	if res.Diagrams != 2 || len(res.Failures) != 1 || res.Failures[0].Info != "dot" {
		t.Fatalf("unexpected summary %d %+v", res.Diagrams, res.Failures)
	}
	if !strings.Contains(res.HTML, "svgbook-error") || !strings.Contains(res.HTML, "unexpected token &#39;broken&#39;") {
		t.Fatalf("missing visible error: %s", res.HTML)
	}
	if !strings.Contains(res.HTML, `svgbook-diagram svgbook-inline`) {
		t.Fatalf("second block not rendered: %s", res.HTML)
	}
}

func TestRender_Sanitization(t *testing.T) {
	r := newTestRenderer(t, "", fakeDiagrams())

	res, err := r.Render([]byte("# T\n\n<script>alert(1)</script>\n\n```dot\nx\n```\n"), "s.md")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(res.HTML, "<script") {
		t.Fatalf("expected script tags to be sanitized")
	}
	if !strings.Contains(res.HTML, "<svg") || strings.Count(res.HTML, "<ellipse") != 2 {
		t.Fatalf("expected svg to survive sanitization: %s", res.HTML)
	}
}

func TestRender_SanitizationKeepsBareSVGElements(t *testing.T) {
	bare := fence.RendererFunc(func(string, fence.Options) (string, error) {
		return `<svg><defs><marker/></defs><g><circle/><text>a</text></g></svg>`, nil
	})
	r := newTestRenderer(t, "", bare)

	res, err := r.Render([]byte("```dot\nx\n```\n"), "bare.md")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"<defs>", "<marker", "<g>", "<circle", "<text>a</text>"} {
		if !strings.Contains(res.HTML, want) {
			t.Fatalf("missing %s after sanitization: %s", want, res.HTML)
		}
	}
}

func TestRenderer_RenderFile_LinksAndCache(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel, body string) {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	mustWrite("ch1/intro.md", "# Intro\n\nNext: [Two](../ch2/two.md). Image: ![Logo](img/logo.png)\n")
	mustWrite("ch2/two.md", "# Two\n")

	r, err := New(Options{
		RootAbs:     root,
		Config:      config.Default(),
		Diagrams:    fakeDiagrams(),
		PagePrefix:  "/page/",
		AssetPrefix: "/book/",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := r.RenderFile("ch1/intro.md")
	if err != nil {
		t.Fatalf("RenderFile: %v", err)
	}
	if res.Title != "Intro" || len(res.TOC) != 1 {
		t.Fatalf("unexpected title/toc %q %+v", res.Title, res.TOC)
	}
	if !strings.Contains(res.HTML, `href="/page/ch2/two.md"`) {
		t.Fatalf("expected chapter link rewrite: %s", res.HTML)
	}
	if !strings.Contains(res.HTML, `src="/book/ch1/img/logo.png"`) {
		t.Fatalf("expected asset link rewrite: %s", res.HTML)
	}

	again, err := r.RenderFile("ch1/intro.md")
	if err != nil {
		t.Fatalf("RenderFile: %v", err)
	}
	if again.MTime != res.MTime || again.HTML != res.HTML {
		t.Fatalf("expected cached result")
	}

	if _, err := r.RenderFile("../outside.md"); err == nil {
		t.Fatalf("expected traversal to fail")
	}
}

func TestDocumentEvents_SplitsFenceLines(t *testing.T) {
	r := newTestRenderer(t, "", fakeDiagrams())
	src := []byte("```dot\r\na\r\nb\r\n```\r\n")
	doc := r.md.Parser().Parse(text.NewReader(src))

	var texts int
	var start fence.Event
	for ev := range documentEvents(doc, src) {
		if ev.Kind == fence.KindStart && ev.Tag == fence.TagCodeBlock {
			start = ev
		}
		if ev.Kind == fence.KindText && ev.Origin == start.Origin {
			texts++
		}
	}
	if start.Info != "dot" || texts != 2 {
		t.Fatalf("expected two text events for dot fence, got info=%q texts=%d", start.Info, texts)
	}
}
