package fence

import (
	"iter"
	"strings"
)

// Block is one element of the accumulated stream: either a recognized diagram
// fence with its full source, or a single event to forward unchanged.
type Block struct {
	Recognized bool
	Token      Token
	Source     string
	Origin     any

	Event Event
}

type fenceState struct {
	open   bool
	token  Token
	origin any
	text   strings.Builder
}

func (s *fenceState) openWith(tok Token, origin any) {
	s.open = true
	s.token = tok
	s.origin = origin
	s.text.Reset()
}

func (s *fenceState) close() Block {
	b := Block{Recognized: true, Token: s.token, Source: s.text.String(), Origin: s.origin}
	s.open = false
	s.token = Token{}
	s.origin = nil
	s.text.Reset()
	return b
}

// Accumulate groups the events of recognized fences into single Blocks.
//
// Text of one fence may arrive in any number of events; it is concatenated in
// arrival order without trimming. Events outside recognized fences, including
// every event of fences with an unknown info-string, come out one per Block.
func Accumulate(events iter.Seq[Event], table *Table) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		var st fenceState
		for ev := range events {
			if !st.open {
				if ev.isCodeStart() {
					if tok, ok := table.Lookup(ev.Info); ok {
						st.openWith(tok, ev.Origin)
						continue
					}
				}
				if !yield(Block{Event: ev}) {
					return
				}
				continue
			}

			switch {
			case ev.isCodeEnd():
				if !yield(st.close()) {
					return
				}
			case ev.textual():
				st.text.WriteString(ev.Text)
			default:
				if !yield(Block{Event: ev}) {
					return
				}
			}
		}
		// An unterminated fence runs to the end of the document.
		if st.open {
			yield(st.close())
		}
	}
}
