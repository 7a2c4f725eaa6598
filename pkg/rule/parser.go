package rule

import (
	"regexp"
	"strconv"
	"strings"

	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"go.uber.org/zap"
)

// item is one token of a scanned rule: an operand, an operator or a group.
type item struct {
	pos     int
	operand Operand
	op      Operator
	group   *RuleTree
}

// state is the scan position. Sub-scans receive a state and return the state
// after the construct they consumed.
type state struct {
	pos    int
	escape bool
}

type scanMode int

const (
	scanTop scanMode = iota
	scanGroup
	scanParams
)

var numberRegexp = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)

type parser struct {
	src       string
	resolvers map[string]bool
	log       *zap.SugaredLogger
}

func newParser(src string, resolvers map[string]bool) *parser {
	return &parser{src: src, resolvers: resolvers, log: zap.S().Named("rule")}
}

func (p *parser) parse(owner *RuleTree) ([]Node, error) {
	segments, _, err := p.scan(state{}, scanTop, owner)
	if err != nil {
		return nil, err
	}
	return p.parseConditions(segments[0], owner)
}

// scan collects the items up to the end of input (scanTop) or up to the
// matching ")" (scanGroup, scanParams). Top-level commas of a group or a
// parameter list start a new segment.
func (p *parser) scan(st state, mode scanMode, owner *RuleTree) ([][]item, state, error) {
	segments := [][]item{nil}
	var buf strings.Builder
	bufStart := 0

	add := func(it item) {
		segments[len(segments)-1] = append(segments[len(segments)-1], it)
	}
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		add(item{pos: bufStart, operand: p.classify(buf.String(), owner)})
		buf.Reset()
	}
	accumulate := func(pos int, ch byte) {
		if buf.Len() == 0 {
			bufStart = pos
		}
		buf.WriteByte(ch)
	}

	for st.pos < len(p.src) {
		ch := p.src[st.pos]
		if st.escape {
			accumulate(st.pos-1, ch)
			st.escape = false
			st.pos++
			continue
		}
		if ch == '\\' {
			st.escape = true
			st.pos++
			continue
		}

		if op, n, ok := matchOperator(p.src, st.pos, buf.Len() == 0); ok {
			flush()
			add(item{pos: st.pos, op: op})
			st.pos += n
			continue
		}
		if buf.Len() == 0 {
			if fn, n, ok := matchFunction(p.src, st.pos); ok {
				call, next, err := p.scanCall(st, fn, n, owner)
				if err != nil {
					return nil, st, err
				}
				add(item{pos: st.pos, operand: call})
				st = next
				continue
			}
			if v, n, ok := matchConstant(p.src, st.pos); ok {
				add(item{pos: st.pos, operand: &Literal{owner: owner, Value: v}})
				st.pos += n
				continue
			}
		}

		switch ch {
		case '"', '\'':
			if buf.Len() > 0 {
				return nil, st, cfErrors.NewSyntaxError(st.pos, "unexpected quote after %q", buf.String())
			}
			s, next, err := p.scanString(st)
			if err != nil {
				return nil, st, err
			}
			add(item{pos: st.pos, operand: &Literal{owner: owner, Value: s}})
			st = next
			continue
		case '(':
			if buf.Len() > 0 {
				return nil, st, cfErrors.NewSyntaxError(bufStart, "unknown function %q", buf.String())
			}
			it, next, err := p.scanGroup(st, owner)
			if err != nil {
				return nil, st, err
			}
			add(it)
			st = next
			continue
		case ')':
			if mode == scanTop {
				return nil, st, cfErrors.NewSyntaxError(st.pos, "unbalanced closing parenthesis")
			}
			flush()
			st.pos++
			return segments, st, nil
		case ',':
			if mode == scanTop {
				return nil, st, cfErrors.NewSyntaxError(st.pos, "unexpected comma outside of parentheses")
			}
			flush()
			segments = append(segments, nil)
		case ' ', '\t', '\r', '\n':
			flush()
		default:
			accumulate(st.pos, ch)
		}
		st.pos++
	}

	if st.escape {
		return nil, st, cfErrors.NewSyntaxError(st.pos, "dangling escape character")
	}
	if mode != scanTop {
		return nil, st, cfErrors.NewSyntaxError(st.pos, "missing closing parenthesis")
	}
	flush()
	return segments, st, nil
}

// scanString reads a quoted string starting at st.pos.
func (p *parser) scanString(st state) (string, state, error) {
	quote := p.src[st.pos]
	start := st.pos
	st.pos++
	var sb strings.Builder
	for st.pos < len(p.src) {
		ch := p.src[st.pos]
		st.pos++
		switch {
		case st.escape:
			sb.WriteByte(ch)
			st.escape = false
		case ch == '\\':
			st.escape = true
		case ch == quote:
			return sb.String(), st, nil
		default:
			sb.WriteByte(ch)
		}
	}
	return "", st, cfErrors.NewSyntaxError(start, "unterminated string")
}

// scanGroup reads a parenthesized group starting at st.pos. A group with
// top-level commas is a collection literal; a group holding a single operand
// is that operand.
func (p *parser) scanGroup(st state, owner *RuleTree) (item, state, error) {
	start := st.pos
	st.pos++
	group := &RuleTree{parent: owner, resolvers: p.resolvers}
	segments, next, err := p.scan(st, scanGroup, group)
	if err != nil {
		return item{}, st, err
	}

	if len(segments) > 1 {
		values := make([]any, 0, len(segments))
		for _, seg := range segments {
			if len(seg) != 1 || seg[0].operand == nil {
				return item{}, st, cfErrors.NewSyntaxError(start, "collection elements must be single literals")
			}
			lit, ok := seg[0].operand.(*Literal)
			if !ok {
				return item{}, st, cfErrors.NewSyntaxError(seg[0].pos, "collection element %s is not a literal", seg[0].operand)
			}
			values = append(values, lit.Value)
		}
		return item{pos: start, operand: &Literal{owner: owner, Value: values}}, next, nil
	}

	nodes, err := p.parseConditions(segments[0], group)
	if err != nil {
		return item{}, st, err
	}
	if len(nodes) == 0 {
		return item{}, st, cfErrors.NewSyntaxError(start, "empty parentheses")
	}
	if s, ok := nodes[0].(*Standalone); ok && len(nodes) == 1 {
		return item{pos: start, operand: s.Operand.copyTo(owner)}, next, nil
	}
	group.nodes = nodes
	return item{pos: start, group: group}, next, nil
}

// scanCall reads the parameter list of fn, whose name starts at st.pos and is n bytes long.
func (p *parser) scanCall(st state, fn legacyFunction, n int, owner *RuleTree) (Operand, state, error) {
	st.pos += n
	for st.pos < len(p.src) && p.src[st.pos] == ' ' {
		st.pos++
	}
	if st.pos >= len(p.src) || p.src[st.pos] != '(' {
		return nil, st, cfErrors.NewSyntaxError(st.pos, "expected ( after function %s", fn.name)
	}
	st.pos++

	segments, next, err := p.scan(st, scanParams, owner)
	if err != nil {
		return nil, st, err
	}
	var args []Operand
	if len(segments) > 1 || len(segments[0]) > 0 {
		for _, seg := range segments {
			if len(seg) != 1 || seg[0].operand == nil {
				return nil, st, cfErrors.NewSyntaxError(st.pos, "parameters of %s must be single operands", fn.name)
			}
			args = append(args, seg[0].operand)
		}
	}

	f, ok := expression.DefaultRegistry.Lookup(fn.typ)
	if !ok {
		return nil, st, cfErrors.NewUnsupportedOperationError(fn.name, "no function registered")
	}
	if err := expression.CheckArity(f, len(args)); err != nil {
		return nil, st, err
	}
	return &FunctionCall{owner: owner, Name: fn.name, Args: args}, next, nil
}

// classify turns an unquoted token into an operand.
func (p *parser) classify(token string, owner *RuleTree) Operand {
	if numberRegexp.MatchString(token) {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return &Literal{owner: owner, Value: f}
		}
	}
	prefix, name, dotted := strings.Cut(token, ".")
	if dotted && name != "" {
		if strings.EqualFold(prefix, expression.ObjectPrefix) {
			return &ObjectPath{owner: owner, Path: expression.ObjectPrefix + "." + name}
		}
		if p.resolvers[strings.ToLower(prefix)] {
			return &NamedProperty{owner: owner, Prefix: prefix, Attribute: name}
		}
	}
	return &Literal{owner: owner, Value: token}
}

// parseConditions folds a flat item list into conditions joined by logical operators.
func (p *parser) parseConditions(items []item, owner *RuleTree) ([]Node, error) {
	var (
		nodes   []Node
		pending *item
	)
	afterCondition := func() bool {
		if len(nodes) == 0 {
			return false
		}
		op, ok := nodes[len(nodes)-1].(Operator)
		return !ok || !op.Logical()
	}

	for i := 0; i < len(items); i++ {
		it := items[i]
		switch {
		case it.operand != nil:
			if pending != nil || afterCondition() {
				return nil, cfErrors.NewSyntaxError(it.pos, "unexpected operand %s, missing operator", it.operand)
			}
			pending = &items[i]
		case it.group != nil:
			if pending != nil || afterCondition() {
				return nil, cfErrors.NewSyntaxError(it.pos, "unexpected group, missing operator")
			}
			nodes = append(nodes, it.group)
		case it.op.Logical():
			if pending != nil {
				nodes = append(nodes, &Standalone{Operand: pending.operand})
				pending = nil
			}
			if !afterCondition() {
				return nil, cfErrors.NewSyntaxError(it.pos, "missing operand before %s", it.op)
			}
			nodes = append(nodes, it.op)
		default:
			if pending == nil {
				return nil, cfErrors.NewSyntaxError(it.pos, "missing left operand for %s", it.op)
			}
			cond := &Condition{Left: pending.operand, Operator: it.op}
			pending = nil
			if !it.op.Postfix() {
				switch {
				case i+1 < len(items) && items[i+1].operand != nil:
					cond.Right = items[i+1].operand
					i++
				case i+1 < len(items) && items[i+1].group != nil:
					return nil, cfErrors.NewSyntaxError(items[i+1].pos, "%s cannot compare against a condition group", it.op)
				default:
					p.log.Warnw("missing right operand, using empty string",
						"operator", it.op.String(), "position", it.pos, "rule", p.src)
					cond.Right = &Literal{owner: owner, Value: ""}
				}
			}
			nodes = append(nodes, cond)
		}
	}

	if pending != nil {
		nodes = append(nodes, &Standalone{Operand: pending.operand})
	}
	if len(nodes) > 0 && !afterCondition() {
		return nil, cfErrors.NewSyntaxError(len(p.src), "missing operand after %s", nodes[len(nodes)-1])
	}
	return nodes, nil
}
