package attribute_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
)

var _ = Describe("Type", func() {
	type testCase struct {
		input     string
		output    attribute.Type
		column    string
		valueType expression.ValueType
	}

	tests := []testCase{
		{input: "text", output: attribute.TypeText, column: "value_text", valueType: expression.ValueString},
		{input: "link", output: attribute.TypeLink, column: "value_text", valueType: expression.ValueString},
		{input: "integer", output: attribute.TypeInteger, column: "value_int", valueType: expression.ValueNumber},
		{input: "longtext", output: attribute.TypeLongText, column: "value_clob", valueType: expression.ValueString},
		{input: "binary", output: attribute.TypeBinary, column: "value_blob", valueType: expression.ValueUnknown},
		{input: "foreignlink", output: attribute.TypeForeignLink, column: "", valueType: expression.ValueString},
		{input: "long", output: attribute.TypeLong, column: "value_long", valueType: expression.ValueNumber},
		{input: "double", output: attribute.TypeDouble, column: "value_double", valueType: expression.ValueNumber},
		{input: "date", output: attribute.TypeDate, column: "value_date", valueType: expression.ValueDate},
	}

	for _, tt := range tests {
		It("should describe type: "+tt.input, func() {
			t, ok := attribute.ParseType(tt.input)
			Expect(ok).To(BeTrue())
			Expect(t).To(Equal(tt.output))
			Expect(t.String()).To(Equal(tt.input))
			Expect(t.Valid()).To(BeTrue())
			Expect(t.ValueColumn()).To(Equal(tt.column))
			Expect(t.ValueType()).To(Equal(tt.valueType))
		})
	}

	It("should reject unknown types", func() {
		_, ok := attribute.ParseType("color")
		Expect(ok).To(BeFalse())
		Expect(attribute.Type(4).Valid()).To(BeFalse())
		Expect(attribute.Type(4).String()).To(Equal("unknown"))
		Expect(attribute.Type(4).ValueType()).To(Equal(expression.ValueUnknown))
	})

	It("should know which types reference objects", func() {
		Expect(attribute.TypeLink.IsLink()).To(BeTrue())
		Expect(attribute.TypeForeignLink.IsLink()).To(BeTrue())
		Expect(attribute.TypeText.IsLink()).To(BeFalse())
	})
})

var _ = Describe("Attribute", func() {
	It("should derive the quick column", func() {
		a := attribute.Attribute{Name: "name", Optimized: true}
		Expect(a.QuickColumn()).To(Equal("quick_name"))

		a.QuickName = "quick_title"
		Expect(a.QuickColumn()).To(Equal("quick_title"))
	})
})

var _ = Describe("MapCatalog", func() {
	It("should look up attributes by name", func() {
		c := attribute.NewMapCatalog(
			attribute.Attribute{Name: "title", Type: attribute.TypeText},
			attribute.Attribute{Name: "name", Type: attribute.TypeText, Optimized: true},
		)

		a, ok := c.Lookup("name")
		Expect(ok).To(BeTrue())
		Expect(a.Optimized).To(BeTrue())

		_, ok = c.Lookup("missing")
		Expect(ok).To(BeFalse())
	})

	It("should return the stored attribute", func() {
		c := attribute.NewMapCatalog(attribute.Attribute{Name: "title", Type: attribute.TypeText})
		a, _ := c.Lookup("title")
		a.ObjectTypes = append(a.ObjectTypes, 10002)

		again, _ := c.Lookup("title")
		Expect(again.ObjectTypes).To(Equal([]int{10002}))
	})

	It("should list attributes sorted by name", func() {
		c := attribute.NewMapCatalog()
		c.Add(attribute.Attribute{Name: "b"})
		c.Add(attribute.Attribute{Name: "c"})
		c.Add(attribute.Attribute{Name: "a"})

		var names []string
		for _, a := range c.Attributes() {
			names = append(names, a.Name)
		}
		Expect(names).To(Equal([]string{"a", "b", "c"}))
	})
})
