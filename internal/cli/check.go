package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"svgbook/internal/ignore"
	"svgbook/internal/render"
	"svgbook/internal/scan"
)

func newCheckCmd() *cobra.Command {
	jobs := runtime.GOMAXPROCS(0)

	cmd := &cobra.Command{
		Use:   "check <book-dir>",
		Short: "Render every chapter and report diagram failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), args[0], jobs)
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", jobs, "chapters rendered in parallel")
	return cmd
}

func runCheck(ctx context.Context, w io.Writer, root string, jobs int) error {
	logger := loggerFromContext(ctx)
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	cfg, reg, err := loadBook(ctx, rootAbs)
	if err != nil {
		return err
	}
	srcAbs := cfg.SrcDir(rootAbs)

	ig, err := ignore.Load(srcAbs)
	if err != nil {
		return err
	}
	tree, err := scan.BuildTree(scan.Options{RootAbs: srcAbs, Ignore: ig})
	if err != nil {
		return err
	}
	pages := scan.Pages(tree)
	logger.Debug("chapters found", "count", len(pages), "src", srcAbs)

	r, err := render.New(render.Options{RootAbs: srcAbs, Config: cfg, Diagrams: reg, Logger: logger})
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	results := make([]render.Result, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.RenderFile(page)
			if err != nil {
				return fmt.Errorf("%s: %w", page, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	blocks, failed := 0, 0
	for _, res := range results {
		blocks += res.Diagrams
		for _, f := range res.Failures {
			failed++
			printError(w, "%s: %s: %s", res.Path, f.Info, f.Message)
		}
	}
	prog.done(fmt.Sprintf("Checked %d chapter(s)", len(pages)))

	if failed > 0 {
		return fmt.Errorf("%d of %d diagram(s) failed", failed, blocks)
	}
	printSuccess(w, "%d chapter(s), %d diagram(s), no failures", len(pages), blocks)
	return nil
}
