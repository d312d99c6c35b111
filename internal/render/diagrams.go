package render

import (
	"iter"
	"slices"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"svgbook/internal/fence"
)

// DiagramBlock is a synthetic block node rendered as raw HTML.
type DiagramBlock struct {
	ast.BaseBlock
	HTML string
}

var KindDiagramBlock = ast.NewNodeKind("DiagramBlock")

func (n *DiagramBlock) Kind() ast.NodeKind { return KindDiagramBlock }
func (n *DiagramBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"HTML": "(inline)"}, nil)
}
func (n *DiagramBlock) IsRaw() bool { return true }

var (
	ctxKeyProcessor = parser.NewContextKey()
	ctxKeySummary   = parser.NewContextKey()
)

// diagramTransformer feeds the document to the fence.Processor stored in the
// parser context and swaps every consumed fence for a DiagramBlock holding
// its replacement markup.
type diagramTransformer struct{}

func (t *diagramTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	proc, _ := pc.Get(ctxKeyProcessor).(*fence.Processor)
	if proc == nil {
		return
	}

	// Materialize before touching the tree; the event source walks it.
	out, sum := proc.ProcessAll(slices.Collect(documentEvents(doc, reader.Source())))
	pc.Set(ctxKeySummary, sum)

	var order []*ast.FencedCodeBlock
	html := map[*ast.FencedCodeBlock]*strings.Builder{}
	for _, ev := range out {
		if ev.Kind != fence.KindRaw {
			continue
		}
		f, ok := ev.Origin.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		b, seen := html[f]
		if !seen {
			b = &strings.Builder{}
			html[f] = b
			order = append(order, f)
		}
		b.WriteString(ev.Text)
	}

	for _, f := range order {
		parent := f.Parent()
		if parent == nil {
			continue
		}
		parent.ReplaceChild(parent, f, &DiagramBlock{HTML: html[f].String()})
	}
}

// documentEvents flattens the goldmark tree into a fence event stream. Code
// block lines become one Text event each.
func documentEvents(doc ast.Node, source []byte) iter.Seq[fence.Event] {
	return func(yield func(fence.Event) bool) {
		emit := func(ev fence.Event, n ast.Node) bool {
			ev.Origin = n
			return yield(ev)
		}
		_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			ok := true
			switch v := n.(type) {
			case *ast.FencedCodeBlock:
				if !entering {
					ok = emit(fence.End(fence.TagCodeBlock), n)
					break
				}
				info := ""
				if v.Info != nil {
					info = strings.TrimSpace(string(v.Info.Segment.Value(source)))
				}
				ok = emit(fence.Start(fence.TagCodeBlock, info), n) && emitLines(v.Lines(), source, fence.KindText, n, emit)
			case *ast.CodeBlock:
				if !entering {
					ok = emit(fence.End(fence.TagCodeBlock), n)
					break
				}
				ok = emit(fence.Start(fence.TagCodeBlock, ""), n) && emitLines(v.Lines(), source, fence.KindText, n, emit)
			case *ast.HTMLBlock:
				if entering {
					ok = emitLines(v.Lines(), source, fence.KindRaw, n, emit)
				}
			case *ast.RawHTML:
				if entering {
					ok = emitLines(v.Segments, source, fence.KindRaw, n, emit)
				}
			case *ast.Text:
				if entering {
					ok = emit(fence.Text(string(v.Segment.Value(source))), n)
				}
			case *ast.String:
				if entering {
					ok = emit(fence.Text(string(v.Value)), n)
				}
			default:
				if entering {
					ok = emit(fence.Start(fence.TagOther, ""), n)
				} else {
					ok = emit(fence.End(fence.TagOther), n)
				}
			}
			if !ok {
				return ast.WalkStop, nil
			}
			return ast.WalkContinue, nil
		})
	}
}

func emitLines(lines *text.Segments, source []byte, kind fence.Kind, n ast.Node, emit func(fence.Event, ast.Node) bool) bool {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if !emit(fence.Event{Kind: kind, Text: string(seg.Value(source))}, n) {
			return false
		}
	}
	return true
}

type diagramHTMLRenderer struct{}

func (r *diagramHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindDiagramBlock, r.render)
}

func (r *diagramHTMLRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	b, ok := node.(*DiagramBlock)
	if !ok {
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString(b.HTML)
	_ = w.WriteByte('\n')
	return ast.WalkSkipChildren, nil
}
