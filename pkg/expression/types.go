package expression

// ValueType is the type an expression evaluates to.
type ValueType int

const (
	ValueAny ValueType = iota
	ValueNull
	ValueString
	ValueNumber
	ValueBoolean
	ValueDate
	ValueCollection
	ValueWildcardString
	ValueObject
	ValueUnknown
)

var valueTypeNames = map[ValueType]string{
	ValueAny:            "any",
	ValueNull:           "null",
	ValueString:         "string",
	ValueNumber:         "number",
	ValueBoolean:        "boolean",
	ValueDate:           "date",
	ValueCollection:     "collection",
	ValueWildcardString: "wildcard string",
	ValueObject:         "object",
	ValueUnknown:        "unknown",
}

func (v ValueType) String() string {
	if name, ok := valueTypeNames[v]; ok {
		return name
	}
	return "invalid"
}

// AssignableTo reports whether a value of type v may be used where expected is required.
func (v ValueType) AssignableTo(expected ValueType) bool {
	switch {
	case expected == ValueAny, v == ValueAny, v == ValueUnknown, v == expected:
		return true
	case expected == ValueWildcardString:
		return v == ValueString
	case expected == ValueCollection:
		// a scalar is a collection of one
		return true
	case expected == ValueString:
		return v == ValueObject
	default:
		return false
	}
}

// Type identifies the operation a function performs.
type Type int

const (
	TypeAnd Type = iota
	TypeOr
	TypePlus
	TypeMinus
	TypeTimes
	TypeDiv
	TypeMod
	TypeConcat
	TypeEqual
	TypeNotEqual
	TypeGreater
	TypeGreaterOrEqual
	TypeLess
	TypeLessOrEqual
	TypeLike
	TypeNotLike
	TypeContainsOneOf
	TypeContainsNone
	TypeContainsAll
	TypeUnaryPlus
	TypeUnaryMinus
	TypeNot
	TypeIsEmpty
)

var typeNames = map[Type]string{
	TypeAnd:            "AND",
	TypeOr:             "OR",
	TypePlus:           "+",
	TypeMinus:          "-",
	TypeTimes:          "*",
	TypeDiv:            "/",
	TypeMod:            "%",
	TypeConcat:         "concat",
	TypeEqual:          "==",
	TypeNotEqual:       "!=",
	TypeGreater:        ">",
	TypeGreaterOrEqual: ">=",
	TypeLess:           "<",
	TypeLessOrEqual:    "<=",
	TypeLike:           "LIKE",
	TypeNotLike:        "NOTLIKE",
	TypeContainsOneOf:  "CONTAINSONEOF",
	TypeContainsNone:   "CONTAINSNONE",
	TypeContainsAll:    "CONTAINSALL",
	TypeUnaryPlus:      "+",
	TypeUnaryMinus:     "-",
	TypeNot:            "!",
	TypeIsEmpty:        "isempty",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Infix reports whether the type is written between two operands.
func (t Type) Infix() bool {
	switch t {
	case TypeConcat, TypeUnaryPlus, TypeUnaryMinus, TypeNot, TypeIsEmpty:
		return false
	default:
		return true
	}
}

// Unary reports whether the type is a prefix operator.
func (t Type) Unary() bool {
	return t == TypeUnaryPlus || t == TypeUnaryMinus || t == TypeNot
}
