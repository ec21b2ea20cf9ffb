package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/proofpilot-dev/proofpilot/internal/logger"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// Proc runs the compiler as a child process and exchanges msgpack envelopes
// over its stdin/stdout pipes. The compiler's stderr is passed through to ours
// so its own logging stays visible.
type Proc struct {
	path string
	args []string
	log  *log.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	enc     *msgpack.Encoder
	running bool
}

// NewProc prepares a transport for the compiler binary at path. Nothing is
// spawned until Start.
func NewProc(path string, args ...string) *Proc {
	return &Proc{path: path, args: args, log: logger.New("proc")}
}

// Start spawns the compiler and its receive pump. Idempotent: a second Start
// against a live process does nothing.
func (p *Proc) Start(onRecv RecvFunc, onExit func(error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	cmd := exec.Command(p.path, p.args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning %s: %w", p.path, err)
	}
	p.log.Debugf("compiler started: %s (pid %d)", p.path, cmd.Process.Pid)

	p.cmd = cmd
	p.stdin = stdin
	p.enc = msgpack.NewEncoder(stdin)
	p.running = true

	go p.pump(stdout, onRecv, onExit)
	return nil
}

// pump decodes inbound messages until the stream ends, then reaps the process.
func (p *Proc) pump(stdout io.Reader, onRecv RecvFunc, onExit func(error)) {
	dec := msgpack.NewDecoder(stdout)
	var cause error
	for {
		var msg wire.Message
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) {
				cause = err
				p.log.Errorf("decoding compiler output: %v", err)
			}
			break
		}
		onRecv(msg)
	}

	p.mu.Lock()
	p.running = false
	cmd := p.cmd
	p.mu.Unlock()

	if err := cmd.Wait(); err != nil && cause == nil {
		cause = err
	}
	p.log.Debugf("compiler exited: %v", cause)
	if onExit != nil {
		onExit(cause)
	}
}

// Running reports whether the process is alive.
func (p *Proc) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Send encodes one request onto the process's stdin.
func (p *Proc) Send(req wire.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrNotRunning
	}
	if err := p.enc.Encode(req); err != nil {
		return fmt.Errorf("encoding request %q: %w", req.Tag, err)
	}
	return nil
}

// Terminate kills the compiler. Closing stdin first gives it a chance to exit
// on its own; the receive pump observes EOF and reaps it.
func (p *Proc) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.running = false
	if err := p.stdin.Close(); err != nil {
		p.log.Debugf("closing compiler stdin: %v", err)
	}
	return p.cmd.Process.Kill()
}
