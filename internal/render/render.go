package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/charmbracelet/log"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	ast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	gmutil "github.com/yuin/goldmark/util"

	"svgbook/internal/config"
	"svgbook/internal/fence"
	"svgbook/internal/util"
)

type Options struct {
	// RootAbs is the chapter directory. Required by RenderFile.
	RootAbs string
	Config  config.Config
	// Diagrams renders fence sources. Required.
	Diagrams fence.Renderer
	// PagePrefix, when set, rewrites links to other chapters as
	// PagePrefix+path and links to other files as AssetPrefix+path.
	PagePrefix  string
	AssetPrefix string
	Logger      *log.Logger
	// Observe is called for every diagram block of every page.
	Observe func(page string, rep fence.Report)
}

type TOCItem struct {
	Level int    `json:"level"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Failure struct {
	Info    string `json:"info"`
	Message string `json:"message"`
}

type Result struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	HTML     string    `json:"html"`
	TOC      []TOCItem `json:"toc"`
	MTime    int64     `json:"mtime"`
	Diagrams int       `json:"diagrams"`
	Failures []Failure `json:"failures,omitempty"`
}

func (r Result) Failed() bool { return len(r.Failures) > 0 }

type Renderer struct {
	rootAbs  string
	opts     Options
	table    *fence.Table
	composer fence.Composer
	theme    string
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	logger   *log.Logger

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	mtime int64
	res   Result
}

func New(opts Options) (*Renderer, error) {
	if opts.Diagrams == nil {
		return nil, errors.New("diagram renderer is required")
	}
	d := opts.Config.Diagrams()
	table, err := fence.NewTable(d.Languages...)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		rootAbs:  opts.RootAbs,
		opts:     opts,
		table:    table,
		composer: fence.Composer{Listing: chromaListing(d.HighlightStyle)},
		theme:    d.Theme,
		logger:   opts.Logger,
		cache:    make(map[string]cached),
	}
	if r.logger == nil {
		r.logger = log.Default()
	}

	transformers := []gmutil.PrioritizedValue{
		gmutil.Prioritized(&diagramTransformer{}, 100),
	}
	if opts.PagePrefix != "" {
		transformers = append(transformers, gmutil.Prioritized(&linkRewriter{
			rootAbs:     r.rootAbs,
			pagePrefix:  opts.PagePrefix,
			assetPrefix: opts.AssetPrefix,
		}, 200))
	}

	r.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(d.HighlightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(transformers...),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			html.WithUnsafe(), // sanitization is applied afterwards
			renderer.WithNodeRenderers(
				gmutil.Prioritized(&diagramHTMLRenderer{}, 100),
			),
		),
	)

	if d.SanitizeEnabled() {
		r.policy = newPolicy()
	}
	return r, nil
}

// Tokens lists the info-strings this renderer recognizes.
func (r *Renderer) Tokens() []fence.Token { return r.table.Tokens() }

// RenderFile renders a chapter relative to RootAbs. Results are cached until
// the file's mtime changes.
func (r *Renderer) RenderFile(rel string) (Result, error) {
	if r.rootAbs == "" {
		return Result{}, errors.New("RootAbs is required to render files")
	}
	rel = filepath.ToSlash(rel)
	abs, _, err := util.ResolveBookPath(r.rootAbs, rel)
	if err != nil {
		return Result{}, err
	}

	st, err := os.Stat(abs)
	if err != nil {
		return Result{}, err
	}
	mtime := st.ModTime().UnixNano()

	r.mu.Lock()
	if c, ok := r.cache[rel]; ok && c.mtime == mtime {
		res := c.res
		r.mu.Unlock()
		return res, nil
	}
	r.mu.Unlock()

	src, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, err
	}

	res, err := r.Render(src, rel)
	if err != nil {
		return Result{}, err
	}
	res.MTime = mtime

	r.mu.Lock()
	r.cache[rel] = cached{mtime: mtime, res: res}
	r.mu.Unlock()

	return res, nil
}

// Render converts Markdown to HTML. rel names the page in logs and is used to
// resolve relative links.
func (r *Renderer) Render(src []byte, rel string) (Result, error) {
	proc := &fence.Processor{
		Table:    r.table,
		Renderer: r.opts.Diagrams,
		Composer: r.composer,
		Theme:    r.theme,
		Observe:  r.observer(rel),
	}

	ctx := parser.NewContext()
	ctx.Set(linkCtxKeyCurrentRel, rel)
	ctx.Set(ctxKeyProcessor, proc)

	reader := text.NewReader(src)
	doc := r.md.Parser().Parse(reader, parser.WithContext(ctx))
	toc := extractTOC(doc, src)

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return Result{}, fmt.Errorf("render %s: %w", rel, err)
	}
	out := buf.Bytes()
	if r.policy != nil {
		out = r.policy.SanitizeBytes(out)
	}

	title := ""
	for _, it := range toc {
		if it.Level == 1 {
			title = it.Title
			break
		}
	}
	if title == "" {
		title = path.Base(rel)
	}

	res := Result{
		Path:  rel,
		Title: title,
		HTML:  string(out),
		TOC:   toc,
	}
	if sum, ok := ctx.Get(ctxKeySummary).(fence.Summary); ok {
		res.Diagrams = sum.Blocks
		for _, f := range sum.Failures {
			res.Failures = append(res.Failures, Failure{Info: f.Token.Info, Message: f.Outcome.Err.Error()})
		}
	}
	return res, nil
}

func (r *Renderer) observer(rel string) func(fence.Report) {
	return func(rep fence.Report) {
		if rep.Outcome.Failed() {
			r.logger.Warn("diagram failed", "page", rel, "info", rep.Token.Info, "err", rep.Outcome.Err)
		} else {
			r.logger.Debug("diagram rendered", "page", rel, "info", rep.Token.Info, "bytes", len(rep.Outcome.Markup))
		}
		if r.opts.Observe != nil {
			r.opts.Observe(rel, rep)
		}
	}
}

func extractTOC(doc ast.Node, source []byte) []TOCItem {
	items := make([]TOCItem, 0, 32)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		id := ""
		if v, ok := h.AttributeString("id"); ok {
			if s, ok := v.([]byte); ok {
				id = string(s)
			} else if s, ok := v.(string); ok {
				id = s
			}
		}
		title := util.NodeText(h, source)
		if strings.TrimSpace(title) == "" {
			return ast.WalkContinue, nil
		}
		items = append(items, TOCItem{Level: h.Level, ID: id, Title: title})
		return ast.WalkContinue, nil
	})
	return items
}
