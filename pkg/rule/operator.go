package rule

import "strings"

// Operator is a comparison or logical operator of a rule. Operators carry no
// state; copies of a tree share them.
type Operator int

const (
	OpEqual Operator = iota + 1
	OpNotEqual
	OpGreater
	OpLess
	OpLessOrEqual
	OpGreaterOrEqual
	OpContains
	OpNotContains
	OpIsNull
	OpIsNotNull
	OpLike
	OpNotLike
	OpAnd
	OpOr
)

var operatorNames = map[Operator]string{
	OpEqual:          "==",
	OpNotEqual:       "!=",
	OpGreater:        ">",
	OpLess:           "<",
	OpLessOrEqual:    "<=",
	OpGreaterOrEqual: ">=",
	OpContains:       "CONTAINSONEOF",
	OpNotContains:    "CONTAINSNONE",
	OpIsNull:         "ISNULL",
	OpIsNotNull:      "ISNOTNULL",
	OpLike:           "LIKE",
	OpNotLike:        "NOTLIKE",
	OpAnd:            "AND",
	OpOr:             "OR",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "illegal"
}

// Logical reports whether o combines conditions.
func (o Operator) Logical() bool {
	return o == OpAnd || o == OpOr
}

// Postfix reports whether o takes no right operand.
func (o Operator) Postfix() bool {
	return o == OpIsNull || o == OpIsNotNull
}

func (Operator) node() {}

type operatorSpelling struct {
	text string
	op   Operator
	word bool
}

// Spellings in match priority order; longer symbols first so ">=" wins over ">".
var operatorSpellings = []operatorSpelling{
	{"==", OpEqual, false},
	{"!=", OpNotEqual, false},
	{">=", OpGreaterOrEqual, false},
	{"<=", OpLessOrEqual, false},
	{">", OpGreater, false},
	{"<", OpLess, false},
	{"&&", OpAnd, false},
	{"||", OpOr, false},
	{"CONTAINSONEOF", OpContains, true},
	{"CONTAINSNONE", OpNotContains, true},
	{"ISNOTNULL", OpIsNotNull, true},
	{"ISNULL", OpIsNull, true},
	{"NOTLIKE", OpNotLike, true},
	{"LIKE", OpLike, true},
	{"AND", OpAnd, true},
	{"OR", OpOr, true},
}

// matchOperator tries every spelling at src[pos:]. Word operators only match
// at a token boundary, i.e. when nothing is accumulated yet and the word is
// not followed by more identifier characters.
func matchOperator(src string, pos int, atBoundary bool) (Operator, int, bool) {
	rest := src[pos:]
	for _, sp := range operatorSpellings {
		if !sp.word {
			if strings.HasPrefix(rest, sp.text) {
				return sp.op, len(sp.text), true
			}
			continue
		}
		if !atBoundary || len(rest) < len(sp.text) || !strings.EqualFold(rest[:len(sp.text)], sp.text) {
			continue
		}
		if endsWord(rest, len(sp.text)) {
			return sp.op, len(sp.text), true
		}
	}
	return 0, 0, false
}

func endsWord(s string, n int) bool {
	if n >= len(s) {
		return true
	}
	switch s[n] {
	case ' ', '\t', '\r', '\n', '(', '"', '\'':
		return true
	}
	return false
}
