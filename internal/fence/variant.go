package fence

import (
	"fmt"
	"sort"
)

type Variant uint8

const (
	PlainPassthrough Variant = iota
	Render
	RenderInline
	SourceEcho
	SourceEchoInline
)

func (v Variant) String() string {
	switch v {
	case Render:
		return "render"
	case RenderInline:
		return "render-inline"
	case SourceEcho:
		return "source-echo"
	case SourceEchoInline:
		return "source-echo-inline"
	default:
		return "passthrough"
	}
}

// Inline reports whether the variant uses flow layout.
func (v Variant) Inline() bool { return v == RenderInline || v == SourceEchoInline }

// Echo reports whether the variant shows the diagram source next to the
// rendered diagram.
func (v Variant) Echo() bool { return v == SourceEcho || v == SourceEchoInline }

// Token is the classification of one recognized info-string.
type Token struct {
	Info     string
	Language string
	Variant  Variant
	// SourceFirst puts the source listing before the diagram. Only set for
	// echo variants.
	SourceFirst bool
}

const (
	inlineSuffix = "-inline"
	sourceWord   = "source"
)

// Table is the closed set of recognized info-strings. It is immutable after
// NewTable and safe for concurrent use.
type Table struct {
	tokens map[string]Token
}

// NewTable builds the token table for the given diagram languages. Each
// language L contributes L, L-inline, L-source, L-source-inline and the
// aliases source-L, source-L-inline.
func NewTable(languages ...string) (*Table, error) {
	t := &Table{tokens: make(map[string]Token, len(languages)*6)}
	for _, lang := range languages {
		if lang == "" {
			return nil, fmt.Errorf("fence: empty diagram language")
		}
		forms := []Token{
			{Info: lang, Variant: Render},
			{Info: lang + inlineSuffix, Variant: RenderInline},
			{Info: lang + "-" + sourceWord, Variant: SourceEcho},
			{Info: lang + "-" + sourceWord + inlineSuffix, Variant: SourceEchoInline},
			{Info: sourceWord + "-" + lang, Variant: SourceEcho, SourceFirst: true},
			{Info: sourceWord + "-" + lang + inlineSuffix, Variant: SourceEchoInline, SourceFirst: true},
		}
		for _, tok := range forms {
			if prev, dup := t.tokens[tok.Info]; dup {
				return nil, fmt.Errorf("fence: info-string %q claimed by %q and %q", tok.Info, prev.Language, lang)
			}
			tok.Language = lang
			t.tokens[tok.Info] = tok
		}
	}
	return t, nil
}

// Lookup classifies an info-string. Matching is exact and case-sensitive.
func (t *Table) Lookup(info string) (Token, bool) {
	if t == nil {
		return Token{Info: info}, false
	}
	tok, ok := t.tokens[info]
	if !ok {
		return Token{Info: info, Variant: PlainPassthrough}, false
	}
	return tok, true
}

// Tokens lists every recognized token sorted by info-string.
func (t *Table) Tokens() []Token {
	if t == nil {
		return nil
	}
	out := make([]Token, 0, len(t.tokens))
	for _, tok := range t.tokens {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info < out[j].Info })
	return out
}
