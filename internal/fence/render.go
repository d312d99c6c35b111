package fence

import "fmt"

// Options are passed to a Renderer with every diagram.
type Options struct {
	Language string
	Inline   bool
	// Theme is the host default. A directive inside the source wins.
	Theme string
}

// Renderer turns diagram source into SVG markup.
type Renderer interface {
	Render(source string, opts Options) (string, error)
}

type RendererFunc func(source string, opts Options) (string, error)

func (f RendererFunc) Render(source string, opts Options) (string, error) { return f(source, opts) }

// Outcome is the result of rendering one block. Err is nil on success.
type Outcome struct {
	Markup string
	Err    error
}

func (o Outcome) Failed() bool { return o.Err != nil }

// renderBlock calls r exactly once. A panicking renderer is reported as a
// failed outcome so the rest of the document still gets processed.
func renderBlock(r Renderer, tok Token, source, theme string) (out Outcome) {
	if r == nil {
		return Outcome{Err: fmt.Errorf("no renderer configured for %q", tok.Language)}
	}
	defer func() {
		if p := recover(); p != nil {
			out = Outcome{Err: fmt.Errorf("%s renderer panicked: %v", tok.Language, p)}
		}
	}()
	opts := Options{Language: tok.Language, Inline: tok.Variant.Inline(), Theme: theme}
	markup, err := r.Render(source, opts)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Markup: markup}
}
