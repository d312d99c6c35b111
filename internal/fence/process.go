package fence

import (
	"iter"
	"slices"
)

// Report describes one rendered block. It is handed to Processor.Observe.
type Report struct {
	Token   Token
	Source  string
	Outcome Outcome
}

// Summary counts what a pass did.
type Summary struct {
	Blocks   int
	Failures []Report
}

func (s Summary) Failed() bool { return len(s.Failures) > 0 }

// Processor runs the whole substitution pass. It keeps no state between
// passes, so one Processor may be shared by concurrent passes as long as its
// Renderer allows that.
type Processor struct {
	Table    *Table
	Renderer Renderer
	Composer Composer
	// Theme is forwarded to the Renderer as the default theme.
	Theme string
	// Observe, if set, is called once per recognized block in document order.
	Observe func(Report)
}

// Process returns the rewritten stream. The input is consumed lazily, one
// event at a time.
func (p *Processor) Process(events iter.Seq[Event]) iter.Seq[Event] {
	return p.process(events, nil)
}

// ProcessAll runs a pass over a materialized stream and reports the summary.
func (p *Processor) ProcessAll(events []Event) ([]Event, Summary) {
	var sum Summary
	out := slices.Collect(p.process(slices.Values(events), &sum))
	return out, sum
}

func (p *Processor) process(events iter.Seq[Event], sum *Summary) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for blk := range Accumulate(events, p.Table) {
			if !blk.Recognized {
				if !yield(blk.Event) {
					return
				}
				continue
			}

			out := renderBlock(p.Renderer, blk.Token, blk.Source, p.Theme)
			rep := Report{Token: blk.Token, Source: blk.Source, Outcome: out}
			if sum != nil {
				sum.Blocks++
				if out.Failed() {
					sum.Failures = append(sum.Failures, rep)
				}
			}
			if p.Observe != nil {
				p.Observe(rep)
			}
			for _, ev := range p.Composer.Compose(blk.Token, blk.Source, out, blk.Origin) {
				if !yield(ev) {
					return
				}
			}
		}
	}
}
