// Package diagram holds the rendering capabilities behind diagram fences.
package diagram

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"svgbook/internal/fence"
)

var ErrUnknownLanguage = errors.New("unknown diagram language")

// Registry dispatches to one renderer per fence language.
type Registry struct {
	engines map[string]fence.Renderer
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]fence.Renderer)}
}

// Default returns a registry with Graphviz under "dot" and "graphviz".
func Default() *Registry {
	r := NewRegistry()
	gv := &Graphviz{}
	r.Register("dot", gv)
	r.Register("graphviz", gv)
	return r
}

func (r *Registry) Register(language string, e fence.Renderer) {
	r.engines[language] = e
}

// Languages returns the registered languages in sorted order.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.engines))
	for l := range r.engines {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Has(language string) bool {
	_, ok := r.engines[language]
	return ok
}

// Render implements fence.Renderer.
func (r *Registry) Render(source string, opts fence.Options) (string, error) {
	e, ok := r.engines[opts.Language]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, opts.Language)
	}
	return e.Render(source, opts)
}

var directiveRe = regexp.MustCompile(`(?mi)^[ \t]*(?://|#)[ \t]*(theme|layout)[ \t]*[:=][ \t]*([A-Za-z0-9_-]+)[ \t]*\r?$`)

// Directives extracts "// key: value" comment lines from diagram source.
// The first occurrence of a key wins.
func Directives(source string) map[string]string {
	out := map[string]string{}
	for _, m := range directiveRe.FindAllStringSubmatch(source, -1) {
		key := strings.ToLower(m[1])
		if _, seen := out[key]; !seen {
			out[key] = strings.ToLower(m[2])
		}
	}
	return out
}
