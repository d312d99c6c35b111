// Package fence rewrites diagram fences in a Markdown event stream.
//
// A host turns its parsed document into a sequence of Events, runs them
// through a Processor and applies the returned stream. Fenced code blocks whose
// info-string is in the Table are collected, rendered through a Renderer and
// replaced by Raw events. Everything else is forwarded untouched.
package fence

type Kind uint8

const (
	KindOther Kind = iota
	KindStart
	KindEnd
	KindText
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindText:
		return "text"
	case KindRaw:
		return "raw"
	default:
		return "other"
	}
}

// Tag tells which structure a Start or End event delimits. Only code blocks
// matter here.
type Tag uint8

const (
	TagOther Tag = iota
	TagCodeBlock
)

// Event is one element of a document stream.
//
// Origin is an opaque handle owned by the host (typically the AST node the
// event came from). Replacement events carry the Origin of the code block
// they stand in for.
type Event struct {
	Kind   Kind
	Tag    Tag
	Info   string
	Text   string
	Origin any
}

func Start(tag Tag, info string) Event { return Event{Kind: KindStart, Tag: tag, Info: info} }
func End(tag Tag) Event                { return Event{Kind: KindEnd, Tag: tag} }
func Text(s string) Event              { return Event{Kind: KindText, Text: s} }
func Raw(s string) Event               { return Event{Kind: KindRaw, Text: s} }

func (e Event) isCodeStart() bool { return e.Kind == KindStart && e.Tag == TagCodeBlock }
func (e Event) isCodeEnd() bool   { return e.Kind == KindEnd && e.Tag == TagCodeBlock }

// textual reports whether the event carries content that belongs to an open
// code block.
func (e Event) textual() bool { return e.Kind == KindText || e.Kind == KindRaw }
