package watch

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"svgbook/internal/ignore"
	"svgbook/internal/util"
)

// Event types sent to preview clients.
const (
	PageChanged   = "page-changed"
	TreeUpdated   = "tree-updated"
	ConfigChanged = "config-changed"
)

type Options struct {
	RootAbs string
	// ConfigPath, when set, is watched as well.
	ConfigPath string
	Hub        *Hub
	Ignore     *ignore.Matcher
	Logger     *log.Logger
	// OnConfigChange runs before clients are told about a config change.
	OnConfigChange func()
}

type Watcher struct {
	rootAbs    string
	configPath string
	hub        *Hub
	ignore     *ignore.Matcher
	logger     *log.Logger
	onConfig   func()
	w          *fsnotify.Watcher
	done       chan struct{}
	closeOnce  sync.Once
}

// NewWatcher watches every directory below RootAbs that is not ignored.
func NewWatcher(opts Options) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rootAbs, configPath := opts.RootAbs, opts.ConfigPath

	ww := &Watcher{
		rootAbs:    rootAbs,
		configPath: configPath,
		hub:        opts.Hub,
		ignore:     opts.Ignore,
		logger:     logger,
		onConfig:   opts.OnConfigChange,
		w:          w,
		done:       make(chan struct{}),
	}

	// fsnotify is not recursive.
	err = filepath.WalkDir(rootAbs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if p != rootAbs && ww.skipDir(p) {
			return fs.SkipDir
		}
		return w.Add(p)
	})
	if err == nil && configPath != "" {
		if _, statErr := util.Stat(configPath); statErr == nil {
			err = w.Add(configPath)
		}
	}
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	go ww.loop()
	return ww, nil
}

// Close stops the watcher. Later calls are no-ops.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.w.Close()
	})
	return err
}

func (w *Watcher) skipDir(abs string) bool {
	name := filepath.Base(abs)
	if name == ".git" || name == "node_modules" || name == "book" {
		return true
	}
	rel, err := filepath.Rel(w.rootAbs, abs)
	if err != nil {
		return true
	}
	return w.ignore.IsIgnored(filepath.ToSlash(rel), true)
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.configPath != "" && filepath.Clean(ev.Name) == filepath.Clean(w.configPath) {
		if w.onConfig != nil {
			w.onConfig()
		}
		w.hub.Broadcast(Event{Type: ConfigChanged})
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if st, err := util.Stat(ev.Name); err == nil && st.IsDir() {
			if !w.skipDir(ev.Name) {
				_ = w.w.Add(ev.Name)
				w.hub.Broadcast(Event{Type: TreeUpdated})
			}
			return
		}
	}

	relOS, err := filepath.Rel(w.rootAbs, ev.Name)
	if err != nil {
		return
	}
	rel := filepath.ToSlash(relOS)
	if !util.IsMarkdownFileName(filepath.Base(ev.Name)) || w.ignore.IsIgnored(rel, false) {
		return
	}

	w.logger.Debug("page changed", "page", rel, "op", ev.Op.String())
	w.hub.Broadcast(Event{Type: PageChanged, Path: rel})
	if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.hub.Broadcast(Event{Type: TreeUpdated})
	}
}
