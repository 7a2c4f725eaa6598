package rule_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/rule"
)

var _ = Describe("RuleTree", func() {
	Context("DeepCopy", func() {
		It("should bind copied operands to the new tree and share operators", func() {
			tree, err := rule.Parse(`object.a == 1 AND (object.b == "x" OR concat(object.c, "y") == "zy")`)
			Expect(err).ToNot(HaveOccurred())

			cp := tree.DeepCopy()
			Expect(cp.String()).To(Equal(tree.String()))

			orig := tree.Nodes()[0].(*rule.Condition)
			copied := cp.Nodes()[0].(*rule.Condition)
			Expect(copied).ToNot(BeIdenticalTo(orig))
			Expect(copied.Left).ToNot(BeIdenticalTo(orig.Left))
			Expect(orig.Left.Owner()).To(BeIdenticalTo(tree))
			Expect(copied.Left.Owner()).To(BeIdenticalTo(cp))
			Expect(copied.Operator).To(Equal(orig.Operator))

			group := cp.Nodes()[2].(*rule.RuleTree)
			inner := group.Nodes()[0].(*rule.Condition)
			Expect(inner.Left.Owner()).To(BeIdenticalTo(group))
			Expect(inner.Left.Owner().Root()).To(BeIdenticalTo(cp))

			call := group.Nodes()[2].(*rule.Condition).Left.(*rule.FunctionCall)
			Expect(call.Args[0].Owner()).To(BeIdenticalTo(group))
		})

		It("should copy conditions with a new owner", func() {
			tree, err := rule.Parse("object.a ISNULL")
			Expect(err).ToNot(HaveOccurred())

			owner := rule.New()
			cp := tree.Nodes()[0].(*rule.Condition).DeepCopy(owner)
			Expect(cp.Left.Owner()).To(BeIdenticalTo(owner))
			Expect(cp.Right).To(BeNil())
		})
	})

	Context("Listeners", func() {
		It("should notify root listeners when the rule is reparsed", func() {
			tree := rule.New()
			calls := 0
			tree.AddListener(func() { calls++ })

			Expect(tree.Parse("object.a == 1")).To(Succeed())
			Expect(calls).To(Equal(1))

			Expect(tree.Parse("object.a ==== 1")).ToNot(Succeed())
			Expect(calls).To(Equal(1))
			Expect(tree.String()).To(Equal("object.a == 1"))
		})

		It("should route listeners of groups to the root", func() {
			tree, err := rule.Parse("(object.a == 1 OR object.b == 2) AND object.c == 3")
			Expect(err).ToNot(HaveOccurred())

			calls := 0
			group := tree.Nodes()[0].(*rule.RuleTree)
			group.AddListener(func() { calls++ })
			tree.NotifyChanged()
			Expect(calls).To(Equal(1))
		})
	})

	Context("Expression", func() {
		type testCase struct {
			input  string
			output string
		}

		tests := []testCase{
			{input: "object.a == 1", output: "(object.a == 1)"},
			{input: "object.a ISNULL", output: "(object.a == null)"},
			{input: "object.a ISNOTNULL", output: "(object.a != null)"},
			{input: `object.a LIKE "x*"`, output: `(object.a LIKE "x*")`},
			{input: `object.a CONTAINSONEOF ("x", "y")`, output: `(object.a CONTAINSONEOF ["x", "y"])`},
			{input: `object.a CONTAINSNONE ("x", "y")`, output: `(object.a CONTAINSNONE ["x", "y"])`},
			{
				input:  "object.a == 1 OR object.b == 2 AND object.c == 3",
				output: "((object.a == 1) OR ((object.b == 2) AND (object.c == 3)))",
			},
			{
				input:  "object.a == 1 AND object.b == 2 OR object.c == 3",
				output: "(((object.a == 1) AND (object.b == 2)) OR (object.c == 3))",
			},
			{
				input:  "object.a == 1 AND object.b == 2 AND object.c == 3",
				output: "(((object.a == 1) AND (object.b == 2)) AND (object.c == 3))",
			},
			{
				input:  "(object.a == 1 OR object.b == 2) AND object.c == 3",
				output: "(((object.a == 1) OR (object.b == 2)) AND (object.c == 3))",
			},
			{input: `concat(object.a, "x", object.b) == "y"`, output: `(concat(object.a, "x", object.b) == "y")`},
			{input: "isempty(object.a)", output: "isempty(object.a)"},
			{input: "object.online", output: "object.online"},
		}

		for _, test := range tests {
			It("should convert: "+test.input, func() {
				tree, err := rule.Parse(test.input)
				Expect(err).ToNot(HaveOccurred())

				expr, err := tree.Expression()
				Expect(err).ToNot(HaveOccurred())
				Expect(expr.String()).To(Equal(test.output))
			})
		}

		It("should convert named properties", func() {
			tree, err := rule.Parse("object.groups CONTAINSONEOF data.groups", rule.WithResolvers("data"))
			Expect(err).ToNot(HaveOccurred())

			expr, err := tree.Expression()
			Expect(err).ToNot(HaveOccurred())

			call, ok := expr.(*expression.Call)
			Expect(ok).To(BeTrue())
			Expect(call.Type).To(Equal(expression.TypeContainsOneOf))
			Expect(call.Args[1]).To(Equal(expression.NewNamedProperty("data", "groups")))
		})

		It("should convert the empty rule to nil", func() {
			tree, err := rule.Parse("")
			Expect(err).ToNot(HaveOccurred())
			Expect(tree.Empty()).To(BeTrue())

			expr, err := tree.Expression()
			Expect(err).ToNot(HaveOccurred())
			Expect(expr).To(BeNil())
		})
	})
})
