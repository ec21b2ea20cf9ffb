package interact

import (
	"fmt"
	"strings"

	"github.com/proofpilot-dev/proofpilot/internal/utils"
	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// RefineVariant selects one of the three metavariable refinement protocols.
type RefineVariant int

const (
	// RefineSingle asks for compatible identifiers once, then materializes
	// the refined expression from the chosen one.
	RefineSingle RefineVariant = iota
	// RefineWithCompletion additionally completes the hole name server-side
	// before listing candidates.
	RefineWithCompletion
	// RefineRecursive lets the compiler keep disambiguating: each choice
	// yields either another candidate list or the final expression. The
	// client places no bound on the number of rounds.
	RefineRecursive
)

func (v RefineVariant) startTag() string {
	switch v {
	case RefineWithCompletion:
		return wire.TagCompleteCompatibleIdents
	case RefineRecursive:
		return wire.TagCompatibleIdentsRecursive
	}
	return wire.TagCompatibleIdents
}

// refineState is the per-invocation disambiguation record: the hole under
// refinement and where its text lives. It spans every round of the protocol
// and dies when a final expression lands or the operation errors out.
type refineState struct {
	name string
	line int
}

// Refine runs the metavariable refinement protocol for the hole at the
// cursor. The protocol is an explicit state machine: Start (load and fetch
// candidates), AwaitingChoice (offer candidates, forward the selection),
// Done (splice the final expression over the hole and reload).
func (c *Client) Refine(b editbuf.Buffer, variant RefineVariant) error {
	name, line, err := b.CursorIdent()
	if err != nil {
		return err
	}
	if err := c.sess.EnsureProcess(); err != nil {
		return err
	}
	if err := c.sess.LoadIfNeeded(b); err != nil {
		return err
	}
	st := &refineState{name: name, line: line}

	val, err := c.disp.CallSync(wire.NewCommand(variant.startTag(), wire.StringValue(name)))
	if err != nil {
		return err
	}

	if variant == RefineRecursive {
		return c.refineRecursive(b, st, val)
	}

	choices, ok := val.Names()
	if !ok {
		return fmt.Errorf("unexpected %s result shape", variant.startTag())
	}
	choice, err := c.ui.OfferChoices(choices)
	if err != nil {
		return err
	}
	expr, err := c.callText(wire.TagMakeRefined, wire.StringValue(st.name), wire.StringValue(choice))
	if err != nil {
		return err
	}
	return c.placeRefined(b, st, expr)
}

// refineRecursive loops AwaitingChoice until the compiler tags a reply as
// final. Termination is bounded only by the server's own disambiguation:
// every round's candidate set is finite, but the client runs as many rounds
// as the compiler asks for.
func (c *Client) refineRecursive(b editbuf.Buffer, st *refineState, val wire.Value) error {
	for {
		tag, rest, ok := val.Tagged()
		if !ok || len(rest.List) == 0 {
			return fmt.Errorf("untagged reply in recursive refinement of ?%s", st.name)
		}
		switch tag {
		case wire.TagFinal:
			expr, ok := rest.List[0].Text()
			if !ok {
				return fmt.Errorf("malformed final expression for ?%s", st.name)
			}
			return c.placeRefined(b, st, expr)
		case wire.TagMore:
			choices, ok := rest.List[0].Names()
			if !ok {
				return fmt.Errorf("malformed candidate list for ?%s", st.name)
			}
			choice, err := c.ui.OfferChoices(choices)
			if err != nil {
				return err
			}
			val, err = c.disp.CallSync(wire.NewCommand(wire.TagChooseIdent,
				wire.StringValue(st.name), wire.StringValue(choice)))
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown refinement tag %q for ?%s", tag, st.name)
		}
	}
}

// placeRefined is the Done state: it splices the final expression over the
// hole's textual occurrence and forces a reload to re-validate. If the hole
// text is gone (edited away while the protocol ran) nothing is mutated.
func (c *Client) placeRefined(b editbuf.Buffer, st *refineState, expr string) error {
	text := b.LineText(st.line)
	start, ok := findHole(text, st.name)
	if !ok {
		return &VanishedError{Name: st.name}
	}
	c.med.ReplaceSpan(b, st.line, start, start+len(st.name)+1, expr)
	c.sess.MarkDirty(b)
	return c.sess.LoadIfNeeded(b)
}

// findHole locates `?name` in line as a whole token, not a prefix of a
// longer hole name.
func findHole(line, name string) (int, bool) {
	marker := "?" + name
	for from := 0; ; {
		i := strings.Index(line[from:], marker)
		if i < 0 {
			return 0, false
		}
		at := from + i
		end := at + len(marker)
		if end == len(line) || !utils.IsIdentChar(line[end]) {
			return at, true
		}
		from = end
	}
}
