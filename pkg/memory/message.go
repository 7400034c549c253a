package memory

import "strconv"

// CmdSetMemorySize sets the arena size used by the next Initialize.
const CmdSetMemorySize = "setMemorySize"

type valueKind uint8

const (
	kindNone valueKind = iota
	kindUint
	kindString
)

// Value is the tagged scalar carried by a Message.
type Value struct {
	kind valueKind
	u    uint64
	s    string
}

// Uint wraps an unsigned integer.
func Uint(v uint64) Value { return Value{kind: kindUint, u: v} }

// String wraps a string such as "512MiB".
func String(s string) Value { return Value{kind: kindString, s: s} }

// Size interprets the value as a byte count.
func (v Value) Size() (uint64, bool) {
	switch v.kind {
	case kindUint:
		return v.u, true
	case kindString:
		n, err := ParseSize(v.s)
		return n, err == nil
	}
	return 0, false
}

func (v Value) String() string {
	switch v.kind {
	case kindUint:
		return strconv.FormatUint(v.u, 10)
	case kindString:
		return strconv.Quote(v.s)
	}
	return "<none>"
}

// Message is a configuration command delivered through HandleMessage.
type Message struct {
	Command string
	Value   Value
}
