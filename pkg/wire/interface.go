/*
Package wire defines the message model spoken between proofpilot and the compiler process.

The compiler runs as a long-lived subprocess and exchanges MessagePack values over
stdin/stdout. msgpack objects are self delimiting, so the stream needs no extra framing.

# Envelopes

Every outgoing command is a Request carrying a correlation ID, a command tag and a
fixed-arity argument list:

	{"id": 7, "t": "case-split", "a": [10, "foo"]}

The compiler answers with a Message carrying the same ID and either a result or a
diagnostic string:

	{"id": 7, "ok": true, "r": "foo Z = ?foo_1\nfoo (S k) = ?foo_2\n"}
	{"id": 7, "ok": false, "e": "foo is not a pattern variable"}

Unsolicited output (warnings, interpreter output) arrives with ID 0 and a channel
name, and is never matched to a pending call:

	{"id": 0, "ch": "warning", "p": ["Main.idr", 12, "unreachable case"]}

Correlation is always by the explicit ID field. The client never assumes replies
arrive in issuance order, so the protocol survives a pipelining compiler as well
as a strictly one-at-a-time one.

# Command tags

The known tags and their argument shapes live in tags.go. Each tag has a fixed
arity; arguments are primitives or nested lists (see Value).
*/
package wire

// Request is the outgoing envelope for a single command.
type Request struct {
	ID   uint64 `msgpack:"id"`
	Tag  string `msgpack:"t"`
	Args []any  `msgpack:"a,omitempty"`
}

// Message is the inbound envelope: either the reply to a Request (ID > 0) or a
// notification (ID == 0, Channel set).
type Message struct {
	ID      uint64 `msgpack:"id"`
	OK      bool   `msgpack:"ok"`
	Result  any    `msgpack:"r,omitempty"`
	Err     string `msgpack:"e,omitempty"`
	Channel string `msgpack:"ch,omitempty"`
	Payload any    `msgpack:"p,omitempty"`
}

// Notification reports whether the message is unsolicited output rather than
// the reply to a pending call.
func (m Message) Notification() bool {
	return m.ID == 0 && m.Channel != ""
}
