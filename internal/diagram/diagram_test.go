package diagram

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"svgbook/internal/fence"
)

func TestGraphviz_TwoConnectedShapes(t *testing.T) {
	out, err := (&Graphviz{}).Render("digraph {\n  a -> b\n}\n", fence.Options{Language: "dot"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(out, `<svg class="svgbook-svg" `) {
		t.Fatalf("expected embeddable svg, got %.80q", out)
	}
	if strings.Contains(out, "<?xml") || strings.Contains(out, "<!DOCTYPE") || strings.Contains(out, "<!--") {
		t.Fatalf("document prolog not stripped: %.200q", out)
	}
	if n := strings.Count(out, `class="node"`); n != 2 {
		t.Fatalf("expected 2 nodes, got %d", n)
	}
	if n := strings.Count(out, `class="edge"`); n != 1 {
		t.Fatalf("expected 1 edge, got %d", n)
	}
}

func TestGraphviz_Failures(t *testing.T) {
	g := &Graphviz{}
	if _, err := g.Render(" \n", fence.Options{}); err == nil {
		t.Fatalf("expected error for empty source")
	}
	if _, err := g.Render("// layout: spiral\ndigraph { a }", fence.Options{}); err == nil || !strings.Contains(err.Error(), "spiral") {
		t.Fatalf("expected unknown layout error, got %v", err)
	}
}

func TestDirectives(t *testing.T) {
	src := "// Theme: Dark\n# layout = neato\n// theme: light\ndigraph { a }\n"
	want := map[string]string{"theme": "dark", "layout": "neato"}
	if diff := cmp.Diff(want, Directives(src)); diff != "" {
		t.Fatalf("directives:\n%s", diff)
	}
}

func TestWithDarkDefaults(t *testing.T) {
	got := withDarkDefaults("digraph G {a}")
	if !strings.HasPrefix(got, "digraph G { bgcolor=") || !strings.HasSuffix(got, "a}") {
		t.Fatalf("unexpected splice: %q", got)
	}
	if withDarkDefaults("nonsense") != "nonsense" {
		t.Fatalf("source without a body must be left alone")
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", fence.RendererFunc(func(src string, o fence.Options) (string, error) {
		return "<svg>" + o.Language + ":" + src + "</svg>", nil
	}))

	out, err := r.Render("x", fence.Options{Language: "fake"})
	if err != nil || out != "<svg>fake:x</svg>" {
		t.Fatalf("unexpected result %q, %v", out, err)
	}
	if _, err := r.Render("x", fence.Options{Language: "dot"}); !errors.Is(err, ErrUnknownLanguage) {
		t.Fatalf("expected ErrUnknownLanguage, got %v", err)
	}
	if diff := cmp.Diff([]string{"dot", "graphviz"}, Default().Languages()); diff != "" {
		t.Fatalf("default languages:\n%s", diff)
	}
}
