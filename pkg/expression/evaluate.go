package expression

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotStatic is returned by Evaluate for expressions that depend on the
// filtered row or on properties that are not bound yet.
var ErrNotStatic = errors.New("expression is not static")

// PropertyResolver supplies named property values.
type PropertyResolver interface {
	Lookup(prefix, name string) (any, bool)
}

// Evaluate computes the value of an expression that does not depend on the
// filtered row.
func Evaluate(e Expression, props PropertyResolver) (any, error) {
	switch e := e.(type) {
	case *Literal:
		return e.Value, nil
	case *NamedProperty:
		if props == nil {
			return nil, ErrNotStatic
		}
		v, ok := props.Lookup(e.Prefix, e.Name)
		if !ok {
			return nil, ErrNotStatic
		}
		return normalize(v), nil
	case *ObjectPath:
		return nil, ErrNotStatic
	case *Call:
		args := make([]any, len(e.Args))
		for i, a := range e.Args {
			v, err := Evaluate(a, props)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return e.Function.Evaluate(e.Type, args)
	default:
		return nil, fmt.Errorf("unknown expression %T", e)
	}
}

// StaticValueType returns the type of a static value.
func StaticValueType(v any) ValueType {
	return valueTypeOf(normalize(v))
}

func toNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "0"
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			return x == y
		}
	}
	return toString(a) == toString(b)
}

func compareValues(a, b any) int {
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func asSlice(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	default:
		return []any{v}
	}
}

func containsAny(values, set []any) bool {
	for _, v := range values {
		for _, s := range set {
			if equalValues(v, s) {
				return true
			}
		}
	}
	return false
}
