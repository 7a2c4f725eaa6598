package statement

import (
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"

	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
)

// Binding carries the values placeholders are expanded to.
type Binding struct {
	// Channels is the ordered channel-priority list of the request.
	Channels []int64
	// Data holds named property values by prefix and name, e.g. Data["data"]["groups"].
	Data map[string]map[string]any
}

// Lookup returns the value bound to prefix.name.
func (b Binding) Lookup(prefix, name string) (any, bool) {
	props, ok := b.Data[prefix]
	if !ok {
		return nil, false
	}
	v, ok := props[name]
	return v, ok
}

// Statement is the final SQL text and its flat argument list.
type Statement struct {
	SQL  string
	Args []any
}

// Assemble expands every placeholder slot of params into plain arguments and
// rewrites text accordingly, then applies the placeholder format. Each "?" in
// text consumes one slot; list-valued slots turn into "?, ?, ..." or NULL when
// the list is empty.
func Assemble(text string, params []Param, binding Binding, format sq.PlaceholderFormat) (*Statement, error) {
	var (
		out   strings.Builder
		args  []any
		next  int
		inStr bool
	)

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '\'' {
			inStr = !inStr
		}
		if ch != '?' || inStr {
			out.WriteByte(ch)
			continue
		}

		if next >= len(params) {
			return nil, cfErrors.NewUnsupportedOperationError("assemble", "more placeholders than parameters")
		}
		values, list, err := expand(params[next], binding)
		if err != nil {
			return nil, err
		}
		next++

		if !list {
			out.WriteByte('?')
			args = append(args, values[0])
			continue
		}
		if len(values) == 0 {
			out.WriteString("NULL")
			continue
		}
		out.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "))
		args = append(args, values...)
	}

	if next != len(params) {
		return nil, cfErrors.NewUnsupportedOperationError("assemble", "more parameters than placeholders")
	}

	if format == nil {
		format = sq.Question
	}
	sql, err := format.ReplacePlaceholders(out.String())
	if err != nil {
		return nil, err
	}

	return &Statement{SQL: sql, Args: args}, nil
}

// expand resolves a slot. The boolean result reports whether the slot is
// list-valued.
func expand(p Param, binding Binding) ([]any, bool, error) {
	switch p := p.(type) {
	case Value:
		return []any{p.V}, false, nil
	case ChannelIDs:
		values := make([]any, len(binding.Channels))
		for i, id := range binding.Channels {
			values[i] = id
		}
		return values, true, nil
	case Deferred:
		v, ok := binding.Lookup(p.Prefix, p.Name)
		if !ok {
			return nil, false, cfErrors.NewUnresolvedAttributeError(p.Prefix + "." + p.Name)
		}
		if values, ok := Flatten(v); ok {
			return values, true, nil
		}
		return []any{v}, false, nil
	default:
		return nil, false, cfErrors.NewUnsupportedOperationError("assemble", "unknown parameter slot")
	}
}

// Flatten returns the non-nil elements of a slice or array value. The boolean
// result is false when v is not a collection.
func Flatten(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		// []byte is a scalar
		return nil, false
	}
	values := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i).Interface()
		if e == nil {
			continue
		}
		values = append(values, e)
	}
	return values, true
}
