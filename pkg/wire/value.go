package wire

import (
	"fmt"
	"math"
)

// Kind discriminates the decoded value union.
type Kind int

const (
	Atom Kind = iota
	String
	Number
	Float
	List
)

// Value is the decoded form of anything the compiler sends or the client
// encodes into a command argument: a bare atom (symbol), a string, a number
// (integer or floating point), or a list of further values.
//
// msgpack has no atom type, so atoms travel as strings; on decode an
// identifier-like string only becomes an Atom through an accessor that knows
// the position calls for one (such as the head of a tagged result).
type Value struct {
	Kind Kind
	Sym  string
	Str  string
	Num  int64
	Real float64
	List []Value
}

func AtomValue(s string) Value   { return Value{Kind: Atom, Sym: s} }
func StringValue(s string) Value { return Value{Kind: String, Str: s} }
func NumberValue(n int64) Value  { return Value{Kind: Number, Num: n} }
func FloatValue(f float64) Value { return Value{Kind: Float, Real: f} }

func ListValue(vs ...Value) Value { return Value{Kind: List, List: vs} }

// Command is one outgoing request before the dispatcher assigns it a
// correlation ID. Immutable once constructed.
type Command struct {
	Tag  string
	Args []Value
}

func NewCommand(tag string, args ...Value) Command {
	return Command{Tag: tag, Args: args}
}

// FromAny converts a raw msgpack-decoded value into the tagged model.
// Unknown shapes collapse to their string rendering rather than failing: the
// compiler side of the protocol is not under our control.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return ListValue()
	case string:
		return StringValue(x)
	case bool:
		if x {
			return NumberValue(1)
		}
		return NumberValue(0)
	case int:
		return NumberValue(int64(x))
	case int8:
		return NumberValue(int64(x))
	case int16:
		return NumberValue(int64(x))
	case int32:
		return NumberValue(int64(x))
	case int64:
		return NumberValue(x)
	case uint8:
		return NumberValue(int64(x))
	case uint16:
		return NumberValue(int64(x))
	case uint32:
		return NumberValue(int64(x))
	case uint64:
		return NumberValue(int64(x))
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case []any:
		vs := make([]Value, len(x))
		for i, e := range x {
			vs[i] = FromAny(e)
		}
		return ListValue(vs...)
	default:
		return StringValue(fmt.Sprintf("%v", x))
	}
}

// fromFloat keeps integral floats as Numbers (some encoders float-encode line
// and column arguments) and preserves fractional values as Floats, so nothing
// the compiler sends is truncated.
func fromFloat(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
		return NumberValue(int64(f))
	}
	return FloatValue(f)
}

// ToAny converts a Value back into the raw form the msgpack encoder accepts.
func (v Value) ToAny() any {
	switch v.Kind {
	case Atom:
		return v.Sym
	case String:
		return v.Str
	case Number:
		return v.Num
	case Float:
		return v.Real
	case List:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.ToAny()
		}
		return out
	}
	return nil
}

// Text returns the value as plain text. Atoms and strings qualify; anything
// else does not.
func (v Value) Text() (string, bool) {
	switch v.Kind {
	case Atom:
		return v.Sym, true
	case String:
		return v.Str, true
	}
	return "", false
}

// Names returns the value as a flat list of identifiers.
func (v Value) Names() ([]string, bool) {
	if v.Kind != List {
		return nil, false
	}
	names := make([]string, 0, len(v.List))
	for _, e := range v.List {
		s, ok := e.Text()
		if !ok {
			return nil, false
		}
		names = append(names, s)
	}
	return names, true
}

// Pairs returns the value as a list of (text, formatting) pairs, the shape
// type-of results use for decorated output.
func (v Value) Pairs() ([][2]string, bool) {
	if v.Kind != List {
		return nil, false
	}
	pairs := make([][2]string, 0, len(v.List))
	for _, e := range v.List {
		if e.Kind != List || len(e.List) != 2 {
			return nil, false
		}
		text, ok1 := e.List[0].Text()
		format, ok2 := e.List[1].Text()
		if !ok1 || !ok2 {
			return nil, false
		}
		pairs = append(pairs, [2]string{text, format})
	}
	return pairs, true
}

// Tagged splits a tagged result into its head atom and the remaining
// elements. The recursive refinement protocol tags every reply as either
// "more" (candidate list follows) or "final" (expression follows).
func (v Value) Tagged() (string, Value, bool) {
	if v.Kind != List || len(v.List) == 0 {
		return "", Value{}, false
	}
	tag, ok := v.List[0].Text()
	if !ok {
		return "", Value{}, false
	}
	return tag, ListValue(v.List[1:]...), true
}
