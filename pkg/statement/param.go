package statement

import "fmt"

// Param is one slot of a statement's parameter list. A slot is either a plain
// value or a placeholder that is expanded when the statement is assembled.
type Param interface {
	isParam()
	String() string
}

// Value is a literal bind parameter.
type Value struct {
	V any
}

// ChannelIDs stands for the ordered channel-id list of the request. It occupies a
// single "?" until assembly, where it becomes one "?" per channel.
type ChannelIDs struct{}

// Deferred is a named property that was not bound when the statement was
// compiled. It is resolved from the binding data at assembly. Scalar values
// occupy one "?", collections expand like ChannelIDs.
type Deferred struct {
	Prefix string
	Name   string
}

func (Value) isParam()      {}
func (ChannelIDs) isParam() {}
func (Deferred) isParam()   {}

func (v Value) String() string { return fmt.Sprintf("%v", v.V) }

func (ChannelIDs) String() string { return "${channelIds}" }

func (d Deferred) String() string { return "${" + d.Prefix + "." + d.Name + "}" }

// Values wraps plain values into Value slots.
func Values(vs ...any) []Param {
	params := make([]Param, len(vs))
	for i, v := range vs {
		params[i] = Value{V: v}
	}
	return params
}
