package rule

import (
	"strings"
	"sync"
)

// Node is an element of a rule tree: *Condition, Operator (logical only),
// *RuleTree (parenthesized group) or *Standalone.
type Node interface {
	String() string
	node()
}

// Condition compares two operands. Right is nil for postfix operators.
type Condition struct {
	Left     Operand
	Operator Operator
	Right    Operand
}

// Standalone is an operand used as a condition on its own, e.g. "object.online".
type Standalone struct {
	Operand Operand
}

func (*Condition) node()  {}
func (*Standalone) node() {}
func (*RuleTree) node()   {}

func (c *Condition) String() string {
	if c.Right == nil {
		return c.Left.String() + " " + c.Operator.String()
	}
	return c.Left.String() + " " + c.Operator.String() + " " + c.Right.String()
}

// DeepCopy returns a condition whose operands belong to owner. The operator is shared.
func (c *Condition) DeepCopy(owner *RuleTree) *Condition {
	cp := &Condition{Left: c.Left.copyTo(owner), Operator: c.Operator}
	if c.Right != nil {
		cp.Right = c.Right.copyTo(owner)
	}
	return cp
}

func (s *Standalone) String() string {
	return s.Operand.String()
}

// RuleTree is a parsed rule: a flat sequence of conditions and groups
// separated by logical operators.
type RuleTree struct {
	nodes     []Node
	parent    *RuleTree
	resolvers map[string]bool

	mu        sync.Mutex
	listeners []func()
}

// Option configures a RuleTree.
type Option func(*RuleTree)

// WithResolvers registers property prefixes; tokens like "<prefix>.name" are
// parsed as named properties instead of bare strings.
func WithResolvers(prefixes ...string) Option {
	return func(t *RuleTree) {
		for _, p := range prefixes {
			t.resolvers[strings.ToLower(p)] = true
		}
	}
}

func New(opts ...Option) *RuleTree {
	t := &RuleTree{resolvers: make(map[string]bool)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Parse builds a rule tree from text.
func Parse(text string, opts ...Option) (*RuleTree, error) {
	t := New(opts...)
	if err := t.Parse(text); err != nil {
		return nil, err
	}
	return t, nil
}

// Parse replaces the tree's content with the rule in text. On error the tree
// is left unchanged.
func (t *RuleTree) Parse(text string) error {
	nodes, err := newParser(text, t.resolvers).parse(t)
	if err != nil {
		return err
	}
	t.nodes = nodes
	t.NotifyChanged()
	return nil
}

// Nodes returns the top-level nodes. The slice must not be modified.
func (t *RuleTree) Nodes() []Node {
	return t.nodes
}

// Empty reports whether the tree holds no rule; an empty rule matches everything.
func (t *RuleTree) Empty() bool {
	return len(t.nodes) == 0
}

// Root returns the outermost tree t belongs to.
func (t *RuleTree) Root() *RuleTree {
	for t.parent != nil {
		t = t.parent
	}
	return t
}

func (t *RuleTree) String() string {
	parts := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		if g, ok := n.(*RuleTree); ok {
			parts[i] = "(" + g.String() + ")"
			continue
		}
		parts[i] = n.String()
	}
	return strings.Join(parts, " ")
}

// Depth returns the maximum group nesting below t.
func (t *RuleTree) Depth() int {
	depth := 0
	for _, n := range t.nodes {
		if g, ok := n.(*RuleTree); ok {
			depth = max(depth, g.Depth()+1)
		}
	}
	return depth
}

// DeepCopy returns an independent tree. Listeners are not copied.
func (t *RuleTree) DeepCopy() *RuleTree {
	return t.copyWithParent(nil)
}

func (t *RuleTree) copyWithParent(parent *RuleTree) *RuleTree {
	cp := &RuleTree{parent: parent, resolvers: t.resolvers, nodes: make([]Node, len(t.nodes))}
	for i, n := range t.nodes {
		switch n := n.(type) {
		case *Condition:
			cp.nodes[i] = n.DeepCopy(cp)
		case *Standalone:
			cp.nodes[i] = &Standalone{Operand: n.Operand.copyTo(cp)}
		case *RuleTree:
			cp.nodes[i] = n.copyWithParent(cp)
		default:
			cp.nodes[i] = n
		}
	}
	return cp
}

// AddListener registers fn to be called whenever the tree changes.
// Listeners always live on the root tree.
func (t *RuleTree) AddListener(fn func()) {
	root := t.Root()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.listeners = append(root.listeners, fn)
}

// NotifyChanged calls all listeners of the root tree.
func (t *RuleTree) NotifyChanged() {
	root := t.Root()
	root.mu.Lock()
	listeners := append([]func(){}, root.listeners...)
	root.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
