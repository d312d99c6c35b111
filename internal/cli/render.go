package cli

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"svgbook/internal/render"
	"svgbook/internal/web"
)

type renderOpts struct {
	book       string // directory holding book.toml
	out        string // output directory; empty writes a single file to stdout
	strict     bool   // fail when any diagram fails
	standalone bool   // wrap fragments in an HTML document with the stylesheet
	jobs       int
}

func newRenderCmd() *cobra.Command {
	opts := renderOpts{book: ".", jobs: runtime.GOMAXPROCS(0)}

	cmd := &cobra.Command{
		Use:   "render <file.md>...",
		Short: "Render Markdown files to HTML with diagrams inlined",
		Long: `Render Markdown files to HTML fragments. Diagram fences are replaced with
SVG; every other block is rendered as ordinary Markdown. A diagram that fails
to render is shown as an error box and does not stop the run unless --strict
is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.book, "book", opts.book, "directory containing book.toml")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (required for more than one file)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit non-zero if any diagram fails")
	cmd.Flags().BoolVar(&opts.standalone, "standalone", false, "write complete HTML documents including the diagram stylesheet")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", opts.jobs, "files rendered in parallel")
	return cmd
}

func runRender(ctx context.Context, stdout io.Writer, files []string, opts renderOpts) error {
	if opts.out == "" && len(files) > 1 {
		return errors.New("--out is required when rendering more than one file")
	}
	names, err := outputNames(files)
	if err != nil {
		return err
	}

	logger := loggerFromContext(ctx)
	cfg, reg, err := loadBook(ctx, opts.book)
	if err != nil {
		return err
	}
	r, err := render.New(render.Options{Config: cfg, Diagrams: reg, Logger: logger})
	if err != nil {
		return err
	}
	if opts.out != "" {
		if err := os.MkdirAll(opts.out, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	prog := newProgress(logger)
	results := make([]render.Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			res, err := r.Render(src, filepath.ToSlash(file))
			if err != nil {
				return err
			}
			results[i] = res
			if opts.out == "" {
				return nil
			}
			dst := filepath.Join(opts.out, names[i])
			if err := os.WriteFile(dst, document(res, opts.standalone), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", dst, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.out == "" {
		_, err := stdout.Write(document(results[0], opts.standalone))
		if err != nil {
			return err
		}
	} else {
		for _, name := range names {
			printFile(stdout, filepath.Join(opts.out, name))
		}
	}

	blocks, failed := 0, 0
	for _, res := range results {
		blocks += res.Diagrams
		failed += len(res.Failures)
	}
	prog.done(fmt.Sprintf("Rendered %d file(s), %d diagram(s)", len(files), blocks))

	if opts.strict && failed > 0 {
		return fmt.Errorf("%d of %d diagram(s) failed", failed, blocks)
	}
	return nil
}

// outputNames maps each input to <base>.html and rejects collisions.
func outputNames(files []string) ([]string, error) {
	names := make([]string, len(files))
	seen := make(map[string]string, len(files))
	for i, f := range files {
		base := filepath.Base(f)
		name := strings.TrimSuffix(base, filepath.Ext(base)) + ".html"
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%s and %s would both be written to %s", prev, f, name)
		}
		seen[name] = f
		names[i] = name
	}
	return names, nil
}

const documentTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8"/>
<title>%s</title>
<style>
%s</style>
</head>
<body>
%s</body>
</html>
`

func document(res render.Result, standalone bool) []byte {
	if !standalone {
		return []byte(res.HTML)
	}
	return fmt.Appendf(nil, documentTemplate, html.EscapeString(res.Title), web.Stylesheet(), res.HTML)
}
