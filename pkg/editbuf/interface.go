/*
Package editbuf holds the editor-facing capability boundary.

The core never copies buffer content speculatively: it holds a Buffer
reference owned by the host editor and asks for lines, cursor position and
edits on demand. MemBuffer is the bundled implementation used by the debug
REPL and the tests; an editor plugin supplies its own.

Presentation (informational pop-ups, choice menus, snippet expansion) goes
through the UI and Expander interfaces so the core stays free of widget code.
*/
package editbuf

import "errors"

// ErrNoTargetAtPoint reports that no identifier was resolvable at the cursor
// for a point-scoped command.
var ErrNoTargetAtPoint = errors.New("no identifier at point")

// Buffer identifies one editable text unit. Lines are 1-based; columns are
// 0-based byte offsets within a line.
type Buffer interface {
	FilePath() string
	Directory() string

	LineCount() int
	LineText(line int) string
	CursorLine() int
	CursorCol() int
	CurrentLineText() string

	ReplaceLine(line int, text string)
	InsertLineAfter(line int, text string)
	ReplaceSpan(line, startCol, endCol int, text string)

	// CursorIdent resolves the identifier at the cursor and the cursor's
	// 1-based line. Fails with ErrNoTargetAtPoint when the cursor is not on
	// an identifier.
	CursorIdent() (string, int, error)
}

// UI is the presentation capability consumed by interactive commands.
type UI interface {
	// ShowInfo renders a read-only result, optionally decorated with
	// (text, formatting) pairs.
	ShowInfo(text string, pairs [][2]string)

	// OfferChoices presents candidates and returns the selection. An error
	// means the user dismissed the menu; the calling protocol aborts.
	OfferChoices(choices []string) (string, error)

	// Message reports a one-line status or failure to the user.
	Message(text string)
}
