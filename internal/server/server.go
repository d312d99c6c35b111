// Package server is the live preview for a book.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"svgbook/internal/config"
	"svgbook/internal/fence"
	"svgbook/internal/ignore"
	"svgbook/internal/render"
	"svgbook/internal/scan"
	"svgbook/internal/util"
	"svgbook/internal/watch"
	"svgbook/internal/web"
)

const (
	pagePrefix  = "/page/"
	assetPrefix = "/book/"
)

type Options struct {
	// Root is the book root, where book.toml lives.
	Root     string
	Config   config.Config
	Diagrams fence.Renderer
	Logger   *log.Logger
	// NoWatch disables live reload.
	NoWatch bool
}

type Server struct {
	rootAbs  string
	srcAbs   string
	diagrams fence.Renderer
	ignore   *ignore.Matcher
	hub      *watch.Hub
	watcher  *watch.Watcher
	logger   *log.Logger

	mu       sync.RWMutex
	renderer *render.Renderer
}

func New(opts Options) (*Server, error) {
	rootAbs, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	srcAbs := opts.Config.SrcDir(rootAbs)

	ig, err := ignore.Load(srcAbs)
	if err != nil {
		return nil, err
	}

	s := &Server{
		rootAbs:  rootAbs,
		srcAbs:   srcAbs,
		diagrams: opts.Diagrams,
		ignore:   ig,
		hub:      watch.NewHub(),
		logger:   logger,
	}
	if s.renderer, err = s.newRenderer(opts.Config); err != nil {
		return nil, err
	}
	if !opts.NoWatch {
		w, err := watch.NewWatcher(watch.Options{
			RootAbs:    srcAbs,
			ConfigPath: filepath.Join(rootAbs, config.FileName),
			Hub:        s.hub,
			Ignore:     ig,
			Logger:     logger,
			OnConfigChange: func() {
				if err := s.Reload(); err != nil {
					logger.Error("reload "+config.FileName, "err", err)
				}
			},
		})
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}
	return s, nil
}

func (s *Server) newRenderer(cfg config.Config) (*render.Renderer, error) {
	return render.New(render.Options{
		RootAbs:     s.srcAbs,
		Config:      cfg,
		Diagrams:    s.diagrams,
		PagePrefix:  pagePrefix,
		AssetPrefix: assetPrefix,
		Logger:      s.logger,
		Observe:     observeDiagram,
	})
}

// Reload re-reads book.toml and swaps in a renderer built from it, which also
// drops every cached page. On error the current renderer stays in place. The
// chapter directory is fixed for the server's lifetime.
func (s *Server) Reload() error {
	cfg, err := config.Load(s.rootAbs)
	if err != nil && !errors.Is(err, config.ErrNoBook) {
		return err
	}
	if k, ok := s.diagrams.(interface{ Has(string) bool }); ok {
		if err := cfg.Validate(k.Has); err != nil {
			return err
		}
	}
	if src := cfg.SrcDir(s.rootAbs); src != s.srcAbs {
		s.logger.Warn("book.src changed, restart to serve the new directory", "src", src)
	}

	r, err := s.newRenderer(cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.renderer = r
	s.mu.Unlock()
	s.logger.Info("reloaded "+config.FileName, "languages", cfg.Diagrams().Languages)
	return nil
}

func (s *Server) currentRenderer() *render.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderer
}

func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Handle("/app/*", http.StripPrefix("/app/", http.FileServer(web.FS())))
	r.Get(assetPrefix+"*", s.handleAsset)

	r.Get("/api/tree", s.handleTree)
	r.Get("/api/render", s.handleRender)
	r.Get("/ws", s.hub.ServeWS)
	r.Handle("/metrics", promhttp.Handler())

	r.Get(pagePrefix+"*", web.ServeIndex)
	r.Get("/", web.ServeIndex)
	return r
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	tree, err := scan.BuildTree(scan.Options{RootAbs: s.srcAbs, Ignore: s.ignore})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, tree)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("path")
	if unesc, err := url.PathUnescape(q); err == nil {
		q = unesc
	}

	// An empty path opens the book's landing page.
	resolved, err := util.ResolveMarkdownRel(s.srcAbs, q)
	if err != nil || s.ignore.IsIgnored(resolved.Rel, false) {
		pageCounter.WithLabelValues("not_found").Inc()
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}

	res, err := s.currentRenderer().RenderFile(resolved.Rel)
	if err != nil {
		pageCounter.WithLabelValues("error").Inc()
		s.logger.Error("render page", "page", resolved.Rel, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pageCounter.WithLabelValues("ok").Inc()
	writeJSON(w, res)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, assetPrefix)
	if unesc, err := url.PathUnescape(rel); err == nil {
		rel = unesc
	}

	abs, cleanRel, err := util.ResolveBookPath(s.srcAbs, rel)
	if err != nil || s.ignore.IsIgnored(cleanRel, false) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	st, err := util.Stat(abs)
	if err != nil || st.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// Raw book files must not run script in the preview's origin.
	w.Header().Set("Content-Security-Policy", "sandbox")
	http.ServeFile(w, r, abs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
