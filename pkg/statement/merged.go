package statement

import "strings"

// MergedFilter accumulates statement text and the parameters belonging to it,
// in statement order. It is owned by one compilation pass.
type MergedFilter struct {
	text   strings.Builder
	params []Param
}

func NewMergedFilter() *MergedFilter {
	return &MergedFilter{}
}

// Append writes text followed by the parameters its placeholders refer to.
func (m *MergedFilter) Append(text string, params ...Param) *MergedFilter {
	m.text.WriteString(text)
	m.params = append(m.params, params...)
	return m
}

// AppendParam writes a single "?" bound to p.
func (m *MergedFilter) AppendParam(p Param) *MergedFilter {
	return m.Append("?", p)
}

// AppendFilter splices another filter's text and parameters into this one.
func (m *MergedFilter) AppendFilter(other *MergedFilter) *MergedFilter {
	return m.Append(other.Text(), other.Params()...)
}

func (m *MergedFilter) Text() string {
	return m.text.String()
}

// Params returns a copy of the accumulated parameters.
func (m *MergedFilter) Params() []Param {
	out := make([]Param, len(m.params))
	copy(out, m.params)
	return out
}

// Empty reports whether nothing was written yet.
func (m *MergedFilter) Empty() bool {
	return m.text.Len() == 0
}
