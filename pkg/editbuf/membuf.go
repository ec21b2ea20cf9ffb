package editbuf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/proofpilot-dev/proofpilot/internal/utils"
)

// MemBuffer is a line-based in-memory Buffer backed by a file on disk. The
// debug REPL and the tests edit through it; a real editor plugin provides its
// own Buffer over live editor state.
type MemBuffer struct {
	path  string
	lines []string
	line  int // 1-based cursor line
	col   int // 0-based cursor column

	// OnChange fires after every mutation, before the edit is observable to
	// a reader racing us. The session hooks it to mark the buffer dirty.
	OnChange func()
}

// Open reads path into a new buffer with the cursor at line 1, column 0.
func Open(path string) (*MemBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	return &MemBuffer{path: path, lines: strings.Split(text, "\n"), line: 1}, nil
}

// NewMemBuffer builds a buffer from literal lines, for tests and scratch use.
func NewMemBuffer(path string, lines ...string) *MemBuffer {
	if len(lines) == 0 {
		lines = []string{""}
	}
	return &MemBuffer{path: path, lines: lines, line: 1}
}

func (b *MemBuffer) FilePath() string  { return b.path }
func (b *MemBuffer) Directory() string { return filepath.Dir(b.path) }
func (b *MemBuffer) LineCount() int    { return len(b.lines) }
func (b *MemBuffer) CursorLine() int   { return b.line }
func (b *MemBuffer) CursorCol() int    { return b.col }

func (b *MemBuffer) LineText(line int) string {
	if line < 1 || line > len(b.lines) {
		return ""
	}
	return b.lines[line-1]
}

func (b *MemBuffer) CurrentLineText() string { return b.LineText(b.line) }

// MoveTo places the cursor, clamped to the buffer.
func (b *MemBuffer) MoveTo(line, col int) {
	if line < 1 {
		line = 1
	}
	if line > len(b.lines) {
		line = len(b.lines)
	}
	b.line = line
	if col < 0 {
		col = 0
	}
	if col > len(b.lines[line-1]) {
		col = len(b.lines[line-1])
	}
	b.col = col
}

func (b *MemBuffer) ReplaceLine(line int, text string) {
	if line < 1 || line > len(b.lines) {
		return
	}
	b.lines[line-1] = text
	b.changed()
}

// InsertLineAfter splices text (possibly multi-line) in after line.
func (b *MemBuffer) InsertLineAfter(line int, text string) {
	if line < 0 {
		line = 0
	}
	if line > len(b.lines) {
		line = len(b.lines)
	}
	inserted := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	rest := make([]string, len(b.lines[line:]))
	copy(rest, b.lines[line:])
	b.lines = append(b.lines[:line], append(inserted, rest...)...)
	b.changed()
}

func (b *MemBuffer) ReplaceSpan(line, startCol, endCol int, text string) {
	if line < 1 || line > len(b.lines) {
		return
	}
	cur := b.lines[line-1]
	if startCol < 0 {
		startCol = 0
	}
	if endCol > len(cur) {
		endCol = len(cur)
	}
	if startCol > endCol {
		return
	}
	b.lines[line-1] = cur[:startCol] + text + cur[endCol:]
	b.changed()
}

// CursorIdent resolves the identifier under (or just before) the cursor.
func (b *MemBuffer) CursorIdent() (string, int, error) {
	name, _, _, ok := utils.IdentAt(b.CurrentLineText(), b.col)
	if !ok {
		return "", 0, ErrNoTargetAtPoint
	}
	return name, b.line, nil
}

// Text renders the whole buffer, trailing newline included.
func (b *MemBuffer) Text() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// Save writes the buffer back to its file.
func (b *MemBuffer) Save() error {
	return os.WriteFile(b.path, []byte(b.Text()), 0644)
}

func (b *MemBuffer) changed() {
	if b.OnChange != nil {
		b.OnChange()
	}
}
