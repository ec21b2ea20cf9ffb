/*
Package dispatch correlates outgoing commands with compiler replies.

One Dispatcher owns the correlation ID space for a transport. Synchronous
calls block the caller until the matching reply arrives; asynchronous calls
register a success and a failure continuation and return at once. Exactly one
of the two continuations runs, exactly once, and never on the caller's stack:
completions are handed to a dispatcher-owned goroutine, which stands in for
the "next turn of host event processing" of a cooperative editor runtime.

Unsolicited compiler output (warnings, interpreter output) never resolves a
pending call; it fans out to registered observers instead.

CallSync must not be issued from inside a continuation. A compiler that
serializes one request at a time would never answer the nested call, and the
completion goroutine would deadlock waiting on it.
*/
package dispatch

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/proofpilot-dev/proofpilot/internal/logger"
	"github.com/proofpilot-dev/proofpilot/pkg/transport"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// ErrProcessUnavailable reports that a call needed a live compiler process
// and none was running. Recoverable: ensure the process and retry.
var ErrProcessUnavailable = transport.ErrNotRunning

// CallError is a server-side command failure. The diagnostic is surfaced to
// the user verbatim; it never corrupts session state.
type CallError struct {
	Diag string
}

func (e *CallError) Error() string { return e.Diag }

// Observer consumes one notification: channel name plus decoded payload.
type Observer func(channel string, payload wire.Value)

type outcome struct {
	val wire.Value
	err error
}

// pendingCall is the bookkeeping for one outstanding request. Never reused:
// it is deleted from the table the moment its terminal reply arrives.
type pendingCall struct {
	id        uint64
	done      chan outcome
	onSuccess func(wire.Value)
	onFailure func(error)
	async     bool
}

// Dispatcher issues requests against one transport and routes replies back to
// their callers.
type Dispatcher struct {
	tr  transport.Transport
	log *log.Logger

	mu        sync.Mutex
	nextID    uint64
	pending   map[uint64]*pendingCall
	observers []Observer
	exitHooks []func(error)

	// compMu guards the completion queue. The queue is unbounded so the
	// transport's receive goroutine never blocks behind a slow continuation;
	// completions enqueued after Close are dropped.
	compMu   sync.Mutex
	compCond *sync.Cond
	queue    []func()
	closed   bool

	closeOnce sync.Once
}

// New builds a dispatcher over tr and starts its completion goroutine.
func New(tr transport.Transport) *Dispatcher {
	d := &Dispatcher{
		tr:      tr,
		log:     logger.New("dispatch"),
		pending: make(map[uint64]*pendingCall),
	}
	d.compCond = sync.NewCond(&d.compMu)
	go d.runCompletions()
	return d
}

// runCompletions drains the queue until Close.
func (d *Dispatcher) runCompletions() {
	for {
		d.compMu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.compCond.Wait()
		}
		if len(d.queue) == 0 {
			d.compMu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.compMu.Unlock()
		fn()
	}
}

// complete schedules fn on the completion goroutine. No-op after Close.
func (d *Dispatcher) complete(fn func()) {
	d.compMu.Lock()
	defer d.compMu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, fn)
	d.compCond.Signal()
}

// Start launches the transport with this dispatcher's receive handlers.
// No-op if the process is already running.
func (d *Dispatcher) Start() error {
	return d.tr.Start(d.handleMessage, d.handleExit)
}

// Running reports whether the underlying process is alive.
func (d *Dispatcher) Running() bool { return d.tr.Running() }

// Observe registers fn for notification traffic. Observers run on the
// completion goroutine, in registration order.
func (d *Dispatcher) Observe(fn Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

// OnExit registers fn to run after the compiler process goes away, once every
// pending call has been failed or discarded. Hooks run synchronously on the
// goroutine reporting the exit, so state they reset is consistent before any
// retry can observe it.
func (d *Dispatcher) OnExit(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exitHooks = append(d.exitHooks, fn)
}

// CallSync issues cmd and blocks until its reply arrives. Fails immediately
// with ErrProcessUnavailable when no process is running.
func (d *Dispatcher) CallSync(cmd wire.Command) (wire.Value, error) {
	if !d.tr.Running() {
		return wire.Value{}, ErrProcessUnavailable
	}
	pc := &pendingCall{done: make(chan outcome, 1)}
	if err := d.issue(cmd, pc); err != nil {
		return wire.Value{}, err
	}
	out := <-pc.done
	return out.val, out.err
}

// CallAsync issues cmd and returns without waiting. Exactly one of onSuccess
// and onFailure runs later, on the completion goroutine.
func (d *Dispatcher) CallAsync(cmd wire.Command, onSuccess func(wire.Value), onFailure func(error)) {
	pc := &pendingCall{onSuccess: onSuccess, onFailure: onFailure, async: true}
	if !d.tr.Running() {
		d.complete(func() { onFailure(ErrProcessUnavailable) })
		return
	}
	if err := d.issue(cmd, pc); err != nil {
		d.complete(func() { onFailure(err) })
	}
}

// issue registers pc and sends the request. Registration happens before the
// send so a reply can never race past its own bookkeeping.
func (d *Dispatcher) issue(cmd wire.Command, pc *pendingCall) error {
	d.mu.Lock()
	d.nextID++
	pc.id = d.nextID
	d.pending[pc.id] = pc
	d.mu.Unlock()

	args := make([]any, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = a.ToAny()
	}
	if err := d.tr.Send(wire.Request{ID: pc.id, Tag: cmd.Tag, Args: args}); err != nil {
		d.mu.Lock()
		delete(d.pending, pc.id)
		d.mu.Unlock()
		return fmt.Errorf("sending %q: %w", cmd.Tag, err)
	}
	return nil
}

// handleMessage runs on the transport's receive goroutine.
func (d *Dispatcher) handleMessage(msg wire.Message) {
	if msg.Notification() {
		payload := wire.FromAny(msg.Payload)
		d.mu.Lock()
		observers := make([]Observer, len(d.observers))
		copy(observers, d.observers)
		d.mu.Unlock()
		for _, fn := range observers {
			fn := fn
			d.complete(func() { fn(msg.Channel, payload) })
		}
		return
	}

	d.mu.Lock()
	pc, ok := d.pending[msg.ID]
	delete(d.pending, msg.ID)
	d.mu.Unlock()
	if !ok {
		d.log.Debugf("orphan reply for id %d (tag mismatch or discarded call)", msg.ID)
		return
	}

	var out outcome
	if msg.OK {
		out.val = wire.FromAny(msg.Result)
	} else {
		out.err = &CallError{Diag: msg.Err}
	}
	d.resolve(pc, out)
}

// handleExit fails everything still outstanding when the process dies, then
// runs the exit hooks. Synchronous callers are unblocked with
// ErrProcessUnavailable; asynchronous calls are discarded without invoking
// their continuations, matching quit semantics.
func (d *Dispatcher) handleExit(cause error) {
	d.mu.Lock()
	orphans := d.pending
	d.pending = make(map[uint64]*pendingCall)
	hooks := make([]func(error), len(d.exitHooks))
	copy(hooks, d.exitHooks)
	d.mu.Unlock()

	for _, pc := range orphans {
		if pc.async {
			continue
		}
		pc.done <- outcome{err: ErrProcessUnavailable}
	}
	if len(orphans) > 0 {
		d.log.Debugf("discarded %d pending call(s) on process exit: %v", len(orphans), cause)
	}
	for _, fn := range hooks {
		fn(cause)
	}
}

func (d *Dispatcher) resolve(pc *pendingCall, out outcome) {
	if !pc.async {
		pc.done <- out
		return
	}
	d.complete(func() {
		if out.err != nil {
			pc.onFailure(out.err)
			return
		}
		pc.onSuccess(out.val)
	})
}

// Terminate kills the underlying process.
func (d *Dispatcher) Terminate() error { return d.tr.Terminate() }

// DiscardPending drops every outstanding call, unblocking synchronous callers
// and skipping asynchronous continuations. Used on quit.
func (d *Dispatcher) DiscardPending() {
	d.handleExit(nil)
}

// Close stops the completion goroutine after it drains what is already
// queued. Messages still arriving from the transport afterwards are dropped.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.DiscardPending()
		d.compMu.Lock()
		d.closed = true
		d.compCond.Signal()
		d.compMu.Unlock()
	})
}
