/*
Package interact implements the developer-facing command protocols.

Every point-scoped command follows the same shape: resolve the identifier and
line at the cursor, bring the compiler up to date through the session (a
reload only happens when the buffer is stale), issue the command, and apply
the result to the buffer through the mediator. No buffer mutation happens
before the compiler confirms success.

The metavariable refinement flows live in refine.go; completion, which
deliberately never forces a load, lives in complete.go.
*/
package interact

import (
	"fmt"
	"strings"
	"time"

	"github.com/proofpilot-dev/proofpilot/internal/utils"
	"github.com/proofpilot-dev/proofpilot/pkg/dispatch"
	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/session"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// VanishedError reports that the hole a refinement targeted was edited away
// before its final expression arrived. The buffer is left untouched.
type VanishedError struct {
	Name string
}

func (e *VanishedError) Error() string {
	return fmt.Sprintf("metavariable ?%s is no longer present on its line", e.Name)
}

// Options tunes a Client. Zero values fall back to sane defaults.
type Options struct {
	// CompletionLimit caps the candidate list handed back per request.
	CompletionLimit int
	// CompletionTTL is how long a prefix's candidate list stays cached.
	CompletionTTL time.Duration
}

// Client layers the interactive commands over one session.
type Client struct {
	sess  *session.Session
	disp  *dispatch.Dispatcher
	ui    editbuf.UI
	med   *editbuf.Mediator
	index *candidateIndex
	limit int
}

func NewClient(sess *session.Session, disp *dispatch.Dispatcher, ui editbuf.UI, med *editbuf.Mediator, opts Options) *Client {
	if opts.CompletionLimit <= 0 {
		opts.CompletionLimit = 24
	}
	if opts.CompletionTTL <= 0 {
		opts.CompletionTTL = 2 * time.Second
	}
	return &Client{
		sess:  sess,
		disp:  disp,
		ui:    ui,
		med:   med,
		index: newCandidateIndex(opts.CompletionTTL),
		limit: opts.CompletionLimit,
	}
}

// Close releases the completion cache's expiry loop.
func (c *Client) Close() { c.index.close() }

// target resolves the point command target, ensures the process is up and
// forces a synchronous load when the buffer is stale.
func (c *Client) target(b editbuf.Buffer) (string, int, error) {
	name, line, err := b.CursorIdent()
	if err != nil {
		return "", 0, err
	}
	if err := c.sess.EnsureProcess(); err != nil {
		return "", 0, err
	}
	if err := c.sess.LoadIfNeeded(b); err != nil {
		return "", 0, err
	}
	return name, line, nil
}

// TypeOf shows the type of the identifier at the cursor.
func (c *Client) TypeOf(b editbuf.Buffer) error {
	name, _, err := c.target(b)
	if err != nil {
		return err
	}
	return c.showType(name)
}

// TypeOfName shows the type of an explicitly named identifier (the prompt
// variant: the cursor position is irrelevant, but the buffer must still be
// loaded for the name to resolve).
func (c *Client) TypeOfName(b editbuf.Buffer, name string) error {
	if err := c.sess.EnsureProcess(); err != nil {
		return err
	}
	if err := c.sess.LoadIfNeeded(b); err != nil {
		return err
	}
	return c.showType(name)
}

func (c *Client) showType(name string) error {
	val, err := c.disp.CallSync(wire.NewCommand(wire.TagTypeOf, wire.StringValue(name)))
	if err != nil {
		return err
	}
	if pairs, ok := val.Pairs(); ok {
		var text strings.Builder
		for _, p := range pairs {
			text.WriteString(p[0])
		}
		c.ui.ShowInfo(text.String(), pairs)
		return nil
	}
	text, ok := val.Text()
	if !ok {
		return fmt.Errorf("unexpected %s result shape", wire.TagTypeOf)
	}
	c.ui.ShowInfo(text, nil)
	return nil
}

// CaseSplit replaces the current line with the compiler's split of the
// pattern variable at the cursor.
func (c *Client) CaseSplit(b editbuf.Buffer) error {
	name, line, err := c.target(b)
	if err != nil {
		return err
	}
	text, err := c.callText(wire.TagCaseSplit, wire.NumberValue(int64(line)), wire.StringValue(name))
	if err != nil {
		return err
	}
	// The result arrives with its own trailing terminator; the line ending
	// already in the buffer stays authoritative.
	c.med.ReplaceLine(b, line, strings.TrimRight(text, "\n"))
	return nil
}

// AddClause inserts an initial clause for the declaration at the cursor on
// the line after it.
func (c *Client) AddClause(b editbuf.Buffer) error {
	return c.insertAfterCurrent(b, wire.TagAddClause)
}

// AddProofClause is the proof-obligation variant of AddClause.
func (c *Client) AddProofClause(b editbuf.Buffer) error {
	return c.insertAfterCurrent(b, wire.TagAddProofClause)
}

// AddMissing inserts clauses covering the missing cases of the definition at
// the cursor, starting on the next line.
func (c *Client) AddMissing(b editbuf.Buffer) error {
	return c.insertAfterCurrent(b, wire.TagAddMissing)
}

func (c *Client) insertAfterCurrent(b editbuf.Buffer, tag string) error {
	name, line, err := c.target(b)
	if err != nil {
		return err
	}
	text, err := c.callText(tag, wire.NumberValue(int64(line)), wire.StringValue(name))
	if err != nil {
		return err
	}
	c.med.InsertAfter(b, line, strings.TrimRight(text, "\n"))
	return nil
}

// MakeWith rewrites the clause on the current line into a with-block.
func (c *Client) MakeWith(b editbuf.Buffer) error {
	name, line, err := c.target(b)
	if err != nil {
		return err
	}
	text, err := c.callText(wire.TagMakeWith, wire.NumberValue(int64(line)), wire.StringValue(name))
	if err != nil {
		return err
	}
	c.med.ReplaceLine(b, line, strings.TrimRight(text, "\n"))
	return nil
}

// ProofSearch asks the compiler to fill the hole at the cursor, optionally
// guided by whitespace/punctuation-delimited hint tokens. The span from the
// hole marker through the end of the hole name is replaced with the result.
func (c *Client) ProofSearch(b editbuf.Buffer, hints string) error {
	name, line, err := c.target(b)
	if err != nil {
		return err
	}

	hintVals := []wire.Value{}
	for _, h := range utils.SplitHints(hints) {
		hintVals = append(hintVals, wire.StringValue(h))
	}
	text, err := c.callText(wire.TagProofSearch,
		wire.NumberValue(int64(line)), wire.StringValue(name), wire.ListValue(hintVals...))
	if err != nil {
		return err
	}

	start, end, ok := holeSpan(b.LineText(line), b.CursorCol())
	if !ok {
		return editbuf.ErrNoTargetAtPoint
	}
	c.med.ReplaceSpan(b, line, start, end, strings.TrimRight(text, "\n"))
	return nil
}

// holeSpan locates the nearest `?` at or before col and extends through the
// contiguous identifier run that follows it.
func holeSpan(line string, col int) (int, int, bool) {
	if col > len(line) {
		col = len(line)
	}
	start := strings.LastIndexByte(line[:col], '?')
	if start < 0 {
		// The cursor may sit on the marker itself.
		if col < len(line) && line[col] == '?' {
			start = col
		} else {
			return 0, 0, false
		}
	}
	end := start + 1
	for end < len(line) && utils.IsIdentChar(line[end]) {
		end++
	}
	return start, end, true
}

// callText issues one command and decodes a plain-text result.
func (c *Client) callText(tag string, args ...wire.Value) (string, error) {
	val, err := c.disp.CallSync(wire.NewCommand(tag, args...))
	if err != nil {
		return "", err
	}
	text, ok := val.Text()
	if !ok {
		return "", fmt.Errorf("unexpected %s result shape", tag)
	}
	return text, nil
}
