package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"svgbook/internal/server"
)

type serveOpts struct {
	host    string
	port    int // 0 picks a free port
	noOpen  bool
	noWatch bool
}

func newServeCmd() *cobra.Command {
	opts := serveOpts{host: "127.0.0.1"}

	cmd := &cobra.Command{
		Use:   "serve <book-dir>",
		Short: "Start a live preview of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", opts.host, "host/interface to bind to")
	cmd.Flags().IntVar(&opts.port, "port", 0, "port to listen on (0 = auto)")
	cmd.Flags().BoolVar(&opts.noOpen, "no-open", false, "do not open the browser")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "disable live reload")
	return cmd
}

func runServe(ctx context.Context, w io.Writer, root string, opts serveOpts) error {
	logger := loggerFromContext(ctx)
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	st, err := os.Stat(rootAbs)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s: not a directory", rootAbs)
	}

	cfg, reg, err := loadBook(ctx, rootAbs)
	if err != nil {
		return err
	}
	s, err := server.New(server.Options{
		Root:     rootAbs,
		Config:   cfg,
		Diagrams: reg,
		Logger:   logger,
		NoWatch:  opts.noWatch,
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ln, err := net.Listen("tcp", net.JoinHostPort(opts.host, strconv.Itoa(opts.port)))
	if err != nil {
		return err
	}
	url := fmt.Sprintf("http://%s/", ln.Addr().String())

	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- httpServer.Serve(ln) }()

	logger.Info("serving book", "root", rootAbs)
	printSuccess(w, "open %s", url)
	if !opts.noOpen {
		if err := browser.OpenURL(url); err != nil {
			logger.Warn("open browser", "err", err)
		}
	}

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
