package editbuf

import (
	"fmt"
	"strings"

	"github.com/proofpilot-dev/proofpilot/internal/utils"
)

// Expander turns compiler result text into buffer-ready text. Chosen at
// configuration time: SnippetExpander when the host editor supports snippet
// fields, PlainExpander otherwise. No runtime capability probing.
type Expander interface {
	Expand(text string) string
}

// PlainExpander inserts result text verbatim.
type PlainExpander struct{}

func (PlainExpander) Expand(text string) string { return text }

// SnippetExpander rewrites residual placeholders into numbered snippet
// fields, so a snippet-capable editor turns them into editable tab stops.
type SnippetExpander struct{}

func (SnippetExpander) Expand(text string) string { return Template(text) }

// Template rewrites placeholder tokens into `${N:default}` snippet fields.
// Two placeholder forms occur in compiler results: `?name` holes, which keep
// the hole name as the field default, and the literal `(_)`, which defaults
// to `_`. Fields are numbered by first occurrence, strictly increasing from 1.
func Template(text string) string {
	var out strings.Builder
	field := 0
	for i := 0; i < len(text); {
		if strings.HasPrefix(text[i:], "(_)") {
			field++
			fmt.Fprintf(&out, "${%d:_}", field)
			i += len("(_)")
			continue
		}
		if text[i] == '?' && i+1 < len(text) && utils.IsIdentChar(text[i+1]) {
			end := i + 1
			for end < len(text) && utils.IsIdentChar(text[end]) {
				end++
			}
			field++
			fmt.Fprintf(&out, "${%d:%s}", field, text[i+1:end])
			i = end
			continue
		}
		out.WriteByte(text[i])
		i++
	}
	return out.String()
}

// Mediator applies compiler results to a buffer through the configured
// expander. No partial mutation: each method performs a single edit.
type Mediator struct {
	exp Expander
}

func NewMediator(exp Expander) *Mediator {
	if exp == nil {
		exp = PlainExpander{}
	}
	return &Mediator{exp: exp}
}

// ReplaceLine swaps the whole line for the expanded result.
func (m *Mediator) ReplaceLine(b Buffer, line int, text string) {
	b.ReplaceLine(line, m.exp.Expand(text))
}

// InsertAfter adds the expanded result as new line(s) after line.
func (m *Mediator) InsertAfter(b Buffer, line int, text string) {
	b.InsertLineAfter(line, m.exp.Expand(text))
}

// ReplaceSpan swaps [startCol, endCol) on line for the expanded result.
func (m *Mediator) ReplaceSpan(b Buffer, line, startCol, endCol int, text string) {
	b.ReplaceSpan(line, startCol, endCol, m.exp.Expand(text))
}
