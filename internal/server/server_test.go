package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"svgbook/internal/config"
	"svgbook/internal/fence"
	"svgbook/internal/render"
	"svgbook/internal/scan"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"README.md":   "# Book\n\n```dot\na -> b\n```\n",
		"ch1/bad.md":  "# Bad\n\n```dot-inline\nbroken\n```\n",
		"img/one.svg": "<svg/>",
	}
	for rel, body := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	diagrams := fence.RendererFunc(func(src string, _ fence.Options) (string, error) {
		if strings.Contains(src, "broken") {
			return "", errors.New("cannot parse")
		}
		return `<svg class="svgbook-svg"><g class="node"></g></svg>`, nil
	})
	s, err := New(Options{Root: root, Config: config.Default(), Diagrams: diagrams, NoWatch: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp.StatusCode, body
}

func TestServer_RenderAPI(t *testing.T) {
	srv := newTestServer(t)

	code, body := get(t, srv.URL+"/api/render")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	var res render.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Path != "README.md" || res.Diagrams != 1 || res.Failed() {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.HTML, "svgbook-diagram") {
		t.Fatalf("expected diagram wrapper: %s", res.HTML)
	}

	code, body = get(t, srv.URL+"/api/render?path=ch1/bad.md")
	if code != http.StatusOK {
		t.Fatalf("a failing diagram must not fail the page, status %d", code)
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Info != "dot-inline" {
		t.Fatalf("unexpected failures %+v", res.Failures)
	}

	if code, _ := get(t, srv.URL+"/api/render?path=../etc/passwd"); code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal, got %d", code)
	}

	_, metrics := get(t, srv.URL+"/metrics")
	if !strings.Contains(string(metrics), `svgbook_preview_diagrams_total{language="dot",outcome="error",variant="render-inline"}`) {
		t.Fatalf("expected diagram failure metric")
	}
}

func TestServer_TreeAndAssets(t *testing.T) {
	srv := newTestServer(t)

	code, body := get(t, srv.URL+"/api/tree")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	var tree scan.Node
	if err := json.Unmarshal(body, &tree); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := scan.Pages(tree); len(got) != 2 || got[0] != "README.md" {
		t.Fatalf("unexpected pages %v", got)
	}

	code, body = get(t, srv.URL+"/book/img/one.svg")
	if code != http.StatusOK || string(body) != "<svg/>" {
		t.Fatalf("asset: %d %q", code, body)
	}
	if code, _ := get(t, srv.URL+"/book/img"); code != http.StatusNotFound {
		t.Fatalf("expected 404 for directory, got %d", code)
	}

	code, body = get(t, srv.URL+"/page/ch1/bad.md")
	if code != http.StatusOK || !strings.Contains(string(body), "<!doctype html>") {
		t.Fatalf("expected index page, got %d", code)
	}
	code, body = get(t, srv.URL+"/app/svgbook.css")
	if code != http.StatusOK || !strings.Contains(string(body), ".svgbook-diagram") {
		t.Fatalf("expected stylesheet, got %d", code)
	}
}

func writeBook(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func svgDiagrams() fence.Renderer {
	return fence.RendererFunc(func(string, fence.Options) (string, error) {
		return `<svg class="svgbook-svg"><g class="node"></g></svg>`, nil
	})
}

func renderReadme(t *testing.T, url string) render.Result {
	t.Helper()
	code, body := get(t, url+"/api/render?path=README.md")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	var res render.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res
}

const graphvizOnly = "[preprocessor.svgbook]\nlanguages = [\"graphviz\"]\n"

func TestServer_ReloadPicksUpConfig(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, map[string]string{
		"book.toml": graphvizOnly,
		"README.md": "# Book\n\n```dot\na -> b\n```\n",
	})
	cfg, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := New(Options{Root: root, Config: cfg, Diagrams: svgDiagrams(), NoWatch: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	if res := renderReadme(t, srv.URL); res.Diagrams != 0 {
		t.Fatalf("dot is not configured yet, diagrams=%d", res.Diagrams)
	}

	writeBook(t, root, map[string]string{"book.toml": "[preprocessor.svgbook]\nlanguages = [\"dot\", \"graphviz\"]\n"})
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	res := renderReadme(t, srv.URL)
	if res.Diagrams != 1 || !strings.Contains(res.HTML, "<svg") {
		t.Fatalf("expected the cached page to be re-rendered with dot enabled: %+v", res)
	}

	writeBook(t, root, map[string]string{"book.toml": "[preprocessor.svgbook]\ntheme = \"sepia\"\n"})
	if err := s.Reload(); err == nil {
		t.Fatalf("expected invalid theme to be rejected")
	}
	if res := renderReadme(t, srv.URL); res.Diagrams != 1 {
		t.Fatalf("a failed reload must keep the previous renderer, diagrams=%d", res.Diagrams)
	}
}

func TestServer_ConfigEditDuringWatch(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, map[string]string{
		"book.toml": graphvizOnly,
		"README.md": "# Book\n\n```dot\na -> b\n```\n",
	})
	cfg, err := config.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, err := New(Options{Root: root, Config: cfg, Diagrams: svgDiagrams()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	if res := renderReadme(t, srv.URL); res.Diagrams != 0 {
		t.Fatalf("diagrams=%d before the edit", res.Diagrams)
	}
	writeBook(t, root, map[string]string{"book.toml": "[preprocessor.svgbook]\nlanguages = [\"dot\"]\n"})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if res := renderReadme(t, srv.URL); res.Diagrams == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("book.toml edit was not picked up")
}
