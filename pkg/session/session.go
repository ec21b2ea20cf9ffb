/*
Package session tracks what the compiler process has actually loaded.

Loading is the most expensive operation in the protocol, so buffers are only
re-sent when strictly necessary; every buffer-scoped command must nonetheless
run against up-to-date, type-correct state. The single gating predicate is
IsStale: a buffer needs a reload when it has been edited since its last load,
or when it is not the buffer the compiler currently holds (the compiler keeps
exactly one program loaded at a time).

State is only touched on confirmed success: a failed load leaves no buffer
recorded as loaded, so the next command retries the load instead of running
against known-bad state.
*/
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/proofpilot-dev/proofpilot/internal/logger"
	"github.com/proofpilot-dev/proofpilot/pkg/dispatch"
	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// LoadError reports that the compiler rejected a buffer. Diagnostics have
// been repopulated by the time it surfaces.
type LoadError struct {
	Path string
	Diag string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s failed: %s", e.Path, e.Diag)
}

// Session is the per-compiler-process record of load state and working
// directory. One session per driven compiler; multiple projects mean
// multiple sessions.
type Session struct {
	disp *dispatch.Dispatcher
	diag Diagnostics
	log  *log.Logger

	mu     sync.Mutex
	cwd    string
	loaded string          // path of the loaded buffer; "" when none
	dirty  map[string]bool // missing entry means dirty (buffers start dirty)
}

// New builds a session over disp and routes warning notifications into diag.
// Interpreter output notifications go to onOutput when non-nil.
func New(disp *dispatch.Dispatcher, diag Diagnostics, onOutput func(string)) *Session {
	if diag == nil {
		diag = NewCollector()
	}
	s := &Session{disp: disp, diag: diag, log: logger.New("session"), dirty: make(map[string]bool)}
	// A dead compiler holds nothing, whether it exited on request or crashed:
	// all load state is invalid the moment the process goes away.
	disp.OnExit(func(error) { s.reset() })
	disp.Observe(func(channel string, payload wire.Value) {
		switch channel {
		case wire.ChannelWarning:
			s.publishWarning(payload)
		case wire.ChannelOutput:
			if text, ok := payload.Text(); ok && onOutput != nil {
				onOutput(text)
			}
		}
	})
	return s
}

// Diagnostics exposes the session's diagnostics sink.
func (s *Session) Diagnostics() Diagnostics { return s.diag }

// EnsureProcess starts the compiler if it is not already running. Idempotent.
func (s *Session) EnsureProcess() error {
	return s.disp.Start()
}

// SwitchDir aligns the compiler's working directory with dir. Issues the
// change-directory command only when dir differs from the cached value, and
// caches only on confirmed success, so the two never diverge as observed
// after this call returns.
func (s *Session) SwitchDir(dir string) error {
	s.mu.Lock()
	same := dir == s.cwd
	s.mu.Unlock()
	if same {
		return nil
	}
	if err := s.EnsureProcess(); err != nil {
		return err
	}
	cmd := wire.NewCommand(wire.TagInterpret, wire.StringValue(fmt.Sprintf(":cd %q", dir)))
	if _, err := s.disp.CallSync(cmd); err != nil {
		return err
	}
	s.mu.Lock()
	s.cwd = dir
	s.mu.Unlock()
	s.log.Debugf("compiler cwd now %s", dir)
	return nil
}

// CWD returns the cached working directory.
func (s *Session) CWD() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// MarkDirty records that b's content changed since its last load.
func (s *Session) MarkDirty(b editbuf.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := b.FilePath()
	s.dirty[path] = true
	// A dirty buffer can never be the loaded one.
	if s.loaded == path {
		s.loaded = ""
	}
}

// MarkClean records a successful load of b.
func (s *Session) MarkClean(b editbuf.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[b.FilePath()] = false
	s.loaded = b.FilePath()
}

// IsStale is the single predicate gating reloads: true when b was edited
// since its last load or when b is not the buffer the compiler holds.
func (s *Session) IsStale(b editbuf.Buffer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := b.FilePath()
	dirty, known := s.dirty[path]
	if !known {
		dirty = true
	}
	return dirty || s.loaded != path
}

// LoadIfNeeded synchronously brings the compiler up to date with b. Returns
// without any round-trip when b is already loaded and clean.
func (s *Session) LoadIfNeeded(b editbuf.Buffer) error {
	cmd, err := s.prepareLoad(b)
	if err != nil {
		return err
	}
	if cmd == nil {
		return nil
	}
	if _, err := s.disp.CallSync(*cmd); err != nil {
		return s.loadFailed(b, err)
	}
	s.MarkClean(b)
	return nil
}

// LoadIfNeededAsync is LoadIfNeeded with the round-trip off the calling
// goroutine. onDone receives nil on success and runs exactly once, on the
// dispatcher's completion goroutine, unless no load was needed, in which
// case it runs before LoadIfNeededAsync returns.
func (s *Session) LoadIfNeededAsync(b editbuf.Buffer, onDone func(error)) {
	cmd, err := s.prepareLoad(b)
	if err != nil {
		onDone(err)
		return
	}
	if cmd == nil {
		onDone(nil)
		return
	}
	s.disp.CallAsync(*cmd,
		func(wire.Value) {
			s.MarkClean(b)
			onDone(nil)
		},
		func(err error) {
			onDone(s.loadFailed(b, err))
		})
}

// prepareLoad performs the shared front half of a load: staleness check,
// diagnostics reset, working directory switch and optimistic invalidation.
// A nil command with nil error means no load is required.
func (s *Session) prepareLoad(b editbuf.Buffer) (*wire.Command, error) {
	if !s.IsStale(b) {
		return nil, nil
	}
	if err := s.EnsureProcess(); err != nil {
		return nil, err
	}
	s.diag.Reset(b.FilePath())
	if err := s.SwitchDir(b.Directory()); err != nil {
		return nil, err
	}
	// A load in flight must not be treated as already loaded.
	s.mu.Lock()
	s.loaded = ""
	s.mu.Unlock()
	cmd := wire.NewCommand(wire.TagLoadFile, wire.StringValue(filepath.Base(b.FilePath())))
	return &cmd, nil
}

// loadFailed surfaces a rejected load. The loaded slot stays empty so the
// next attempt retries rather than assuming partial success.
func (s *Session) loadFailed(b editbuf.Buffer, err error) error {
	var call *dispatch.CallError
	if errors.As(err, &call) {
		s.diag.Available(b.FilePath())
		return &LoadError{Path: b.FilePath(), Diag: call.Diag}
	}
	return err
}

// Quit terminates the compiler, discards all pending calls without invoking
// their continuations, and resets load state: afterwards no buffer matches
// the loaded slot, so every buffer is implicitly dirty again.
func (s *Session) Quit() error {
	err := s.disp.Terminate()
	s.disp.DiscardPending()
	s.reset()
	return err
}

// reset drops every cached fact about the compiler: loaded buffer, dirty
// flags, working directory. Runs on quit and on process exit, so the next
// command after a restart redoes the :cd and the load instead of trusting
// state a dead process no longer holds.
func (s *Session) reset() {
	s.mu.Lock()
	s.loaded = ""
	s.dirty = make(map[string]bool)
	s.cwd = ""
	s.mu.Unlock()
}

// publishWarning decodes a (file, line, text) warning payload into the
// diagnostics sink. Shorter payloads degrade to a bare message.
func (s *Session) publishWarning(payload wire.Value) {
	if payload.Kind != wire.List || len(payload.List) < 3 {
		if text, ok := payload.Text(); ok {
			s.diag.Publish("", Diagnostic{Text: text})
		}
		return
	}
	file, _ := payload.List[0].Text()
	line := payload.List[1].Num
	text, _ := payload.List[2].Text()
	s.diag.Publish(file, Diagnostic{Line: int(line), Text: text})
}
