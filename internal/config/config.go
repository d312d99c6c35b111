// Package config reads book.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const FileName = "book.toml"

var ErrNoBook = errors.New("no " + FileName + " found")

type Book struct {
	Title string `toml:"title"`
	// Src is the chapter directory, relative to the book root.
	Src string `toml:"src"`
}

type Diagrams struct {
	Languages      []string `toml:"languages"`
	Theme          string   `toml:"theme"`
	HighlightStyle string   `toml:"highlight-style"`
	Sanitize       *bool    `toml:"sanitize"`
}

type Config struct {
	Book         Book                `toml:"book"`
	Preprocessor map[string]Diagrams `toml:"preprocessor"`
}

// Section is the key of the diagram settings under [preprocessor].
const Section = "svgbook"

func Default() Config {
	return Config{
		Book: Book{Src: "."},
		Preprocessor: map[string]Diagrams{
			Section: {
				Languages:      []string{"dot", "graphviz"},
				Theme:          "light",
				HighlightStyle: "github",
			},
		},
	}
}

// Diagrams returns the svgbook section with defaults filled in.
func (c Config) Diagrams() Diagrams {
	d := c.Preprocessor[Section]
	def := Default().Preprocessor[Section]
	if len(d.Languages) == 0 {
		d.Languages = def.Languages
	}
	if d.Theme == "" {
		d.Theme = def.Theme
	}
	if d.HighlightStyle == "" {
		d.HighlightStyle = def.HighlightStyle
	}
	return d
}

// SanitizeEnabled defaults to true.
func (d Diagrams) SanitizeEnabled() bool {
	return d.Sanitize == nil || *d.Sanitize
}

// Load reads rootAbs/book.toml. A missing file yields Default and ErrNoBook,
// which callers may ignore.
func Load(rootAbs string) (Config, error) {
	p := filepath.Join(rootAbs, FileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), ErrNoBook
		}
		return Config{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	cfg.Preprocessor = nil
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", FileName, err)
	}
	if cfg.Book.Src == "" {
		cfg.Book.Src = "."
	}
	if filepath.IsAbs(cfg.Book.Src) {
		return Config{}, fmt.Errorf("%s: book.src must be relative, got %q", FileName, cfg.Book.Src)
	}
	d := cfg.Diagrams()
	switch d.Theme {
	case "light", "dark":
	default:
		return Config{}, fmt.Errorf("%s: unknown theme %q", FileName, d.Theme)
	}
	return cfg, nil
}

// Validate checks that every configured language has a renderer.
func (c Config) Validate(known func(string) bool) error {
	for _, l := range c.Diagrams().Languages {
		if !known(l) {
			return fmt.Errorf("%s: no renderer for diagram language %q", FileName, l)
		}
	}
	return nil
}

// SrcDir resolves the chapter directory under rootAbs.
func (c Config) SrcDir(rootAbs string) string {
	return filepath.Join(rootAbs, filepath.FromSlash(c.Book.Src))
}
