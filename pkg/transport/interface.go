/*
Package transport moves wire envelopes between the client and the compiler process.

The only concrete implementation is Proc, which owns the compiler as a child
process and speaks streamed msgpack on its stdin/stdout. Everything above this
package (dispatcher, session) only sees the Transport interface, so tests drive
the stack with scripted fakes instead of a real process.
*/
package transport

import (
	"errors"

	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// ErrNotRunning is returned by Send when no compiler process is alive.
var ErrNotRunning = errors.New("compiler process is not running")

// RecvFunc consumes one decoded inbound message. The transport calls it from
// its receive goroutine, in stream order.
type RecvFunc func(wire.Message)

// Transport delivers encoded requests to the compiler process and pumps its
// replies and notifications back through a receive callback.
type Transport interface {
	// Start launches the process and its receive pump. Calling Start on a
	// transport that is already running is a no-op.
	Start(onRecv RecvFunc, onExit func(error)) error

	// Running reports whether the process is currently alive.
	Running() bool

	// Send encodes one request onto the process's stdin. Requests sent from a
	// single goroutine reach the process in call order.
	Send(req wire.Request) error

	// Terminate kills the process. The onExit callback passed to Start still
	// fires once the process is reaped.
	Terminate() error
}
