// Package cli is the interactive debug REPL: it opens a source file into an
// in-memory buffer and maps short commands onto the interact client, for
// testing the protocol stack against a real (or mock) compiler.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/interact"
	"github.com/proofpilot-dev/proofpilot/pkg/session"
)

// REPL drives one session from stdin.
type REPL struct {
	client     *interact.Client
	sess       *session.Session
	ui         *TermUI
	reader     *bufio.Reader
	buf        *editbuf.MemBuffer
	showTiming bool
}

func NewREPL(client *interact.Client, sess *session.Session, ui *TermUI, reader *bufio.Reader, showTiming bool) *REPL {
	return &REPL{client: client, sess: sess, ui: ui, reader: reader, showTiming: showTiming}
}

// Open loads path into the working buffer. Every later mutation marks the
// buffer dirty through the change hook, like an editor's change watcher
// would.
func (r *REPL) Open(path string) error {
	buf, err := editbuf.Open(path)
	if err != nil {
		return err
	}
	buf.OnChange = func() { r.sess.MarkDirty(buf) }
	r.buf = buf
	log.Printf("opened %s (%d lines)", path, buf.LineCount())
	return nil
}

// Start begins the command loop. Terminates on EOF or :quit.
func (r *REPL) Start() error {
	log.Print("proofpilot REPL")
	log.Print("commands: :open :goto :show :t :split :clause :pclause :missing :with :search :refine :refinec :refiner :complete :load :save :quit")

	for {
		fmt.Print("> ")
		line, err := r.reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ":quit" {
			return r.sess.Quit()
		}
		r.handle(line)
	}
}

// handle runs one command line and reports its outcome.
func (r *REPL) handle(line string) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	if cmd == ":open" {
		if rest == "" {
			log.Error("usage: :open <file>")
			return
		}
		if err := r.Open(rest); err != nil {
			log.Errorf("open: %v", err)
		}
		return
	}
	if r.buf == nil {
		log.Error("no buffer open (use :open <file>)")
		return
	}

	start := time.Now()
	err := r.dispatch(cmd, rest)
	if r.showTiming {
		log.Debugf("took %v", time.Since(start))
	}
	if err != nil {
		log.Errorf("%s: %v", cmd, err)
	}
}

func (r *REPL) dispatch(cmd, rest string) error {
	switch cmd {
	case ":goto":
		return r.moveCursor(rest)
	case ":show":
		r.printBuffer()
		return nil
	case ":t":
		if rest != "" {
			return r.client.TypeOfName(r.buf, rest)
		}
		return r.client.TypeOf(r.buf)
	case ":split":
		return r.client.CaseSplit(r.buf)
	case ":clause":
		return r.client.AddClause(r.buf)
	case ":pclause":
		return r.client.AddProofClause(r.buf)
	case ":missing":
		return r.client.AddMissing(r.buf)
	case ":with":
		return r.client.MakeWith(r.buf)
	case ":search":
		return r.client.ProofSearch(r.buf, rest)
	case ":refine":
		return r.client.Refine(r.buf, interact.RefineSingle)
	case ":refinec":
		return r.client.Refine(r.buf, interact.RefineWithCompletion)
	case ":refiner":
		return r.client.Refine(r.buf, interact.RefineRecursive)
	case ":complete":
		return r.complete()
	case ":load":
		return r.sess.LoadIfNeeded(r.buf)
	case ":save":
		return r.buf.Save()
	default:
		return fmt.Errorf("unknown command")
	}
}

func (r *REPL) moveCursor(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return fmt.Errorf("usage: :goto <line> [col]")
	}
	line, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("bad line number %q", fields[0])
	}
	col := 0
	if len(fields) > 1 {
		if col, err = strconv.Atoi(fields[1]); err != nil {
			return fmt.Errorf("bad column %q", fields[1])
		}
	}
	r.buf.MoveTo(line, col)
	return nil
}

func (r *REPL) complete() error {
	result, err := r.client.CompleteAt(r.buf)
	if err != nil {
		return err
	}
	if result == nil {
		log.Print("no completions")
		return nil
	}
	log.Printf("completing [%d:%d) on line %d:", result.Start, result.End, r.buf.CursorLine())
	for i, cand := range result.Candidates {
		fmt.Printf("%2d. %s\n", i+1, cand)
	}
	return nil
}

// printBuffer dumps the buffer with line numbers and a cursor marker.
func (r *REPL) printBuffer() {
	for i := 1; i <= r.buf.LineCount(); i++ {
		marker := "  "
		if i == r.buf.CursorLine() {
			marker = "->"
		}
		fmt.Fprintf(os.Stdout, "%s %3d | %s\n", marker, i, r.buf.LineText(i))
	}
}
