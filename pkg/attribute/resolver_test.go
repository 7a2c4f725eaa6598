package attribute_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

func testCatalog() attribute.MapCatalog {
	return attribute.NewMapCatalog(
		attribute.Attribute{Name: "name", Type: attribute.TypeText, Optimized: true},
		attribute.Attribute{Name: "title", Type: attribute.TypeText},
		attribute.Attribute{Name: "folder", Type: attribute.TypeLink, Optimized: true},
		attribute.Attribute{Name: "parent", Type: attribute.TypeLink},
		attribute.Attribute{Name: "children", Type: attribute.TypeForeignLink, ForeignLinkAttribute: "folder"},
		attribute.Attribute{Name: "comments", Type: attribute.TypeForeignLink, ForeignLinkAttribute: "parent"},
		attribute.Attribute{Name: "broken", Type: attribute.TypeForeignLink, ForeignLinkAttribute: "missing"},
	)
}

var _ = Describe("Resolver", func() {
	var r *attribute.Resolver

	BeforeEach(func() {
		r = attribute.NewResolver(testCatalog(), statement.NewAliasAllocator(), nil)
	})

	It("should allocate the main alias first", func() {
		Expect(r.MainAlias()).To(Equal("cm1"))
		Expect(r.MapTable()).To(Equal("contentmap"))
		Expect(r.AttributeTable()).To(Equal("contentattribute"))
		Expect(r.Versioned()).To(BeFalse())
	})

	It("should resolve meta columns without joins", func() {
		for _, path := range []string{"id", "object.contentid", "updatetimestamp"} {
			e, err := r.Resolve(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Kind).To(Equal(attribute.KindMeta))
			Expect(e.Alias).To(Equal("cm1"))
			Expect(e.Inline()).To(BeTrue())
		}

		id, _ := r.Resolve("id")
		Expect(id.ValueType()).To(Equal(expression.ValueNumber))
		contentID, _ := r.Resolve("contentid")
		Expect(contentID.ValueType()).To(Equal(expression.ValueString))
		Expect(r.Joins()).To(BeEmpty())
	})

	It("should resolve optimized attributes to their quick column", func() {
		e, err := r.Resolve("object.name")
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Kind).To(Equal(attribute.KindOptimized))
		Expect(e.Column).To(Equal("cm1.quick_name"))
		Expect(e.Inline()).To(BeTrue())
		Expect(e.ValueType()).To(Equal(expression.ValueString))
	})

	It("should join normal attributes once", func() {
		e, err := r.Resolve("object.title")
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Kind).To(Equal(attribute.KindNormal))
		Expect(e.Column).To(Equal("ca2.value_text"))
		Expect(e.Inline()).To(BeFalse())

		again, err := r.Resolve("title")
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeIdenticalTo(e))

		Expect(r.Joins()).To(BeEmpty())
		r.MarkNeeded(e)
		Expect(r.Joins()).To(Equal([]attribute.Join{{
			Text:   "LEFT JOIN contentattribute ca2 ON (ca2.map_id = cm1.id AND ca2.name = ?)",
			Params: []statement.Param{statement.Value{V: "title"}},
		}}))
	})

	It("should join the target of traversed optimized links", func() {
		e, err := r.Resolve("object.folder.name")
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Column).To(Equal("cm2.quick_name"))
		Expect(e.Parent.Kind).To(Equal(attribute.KindLink))
		Expect(e.Parent.Column).To(Equal("cm1.quick_folder"))

		r.MarkNeeded(e)
		Expect(r.Joins()).To(Equal([]attribute.Join{{
			Text:   "LEFT JOIN contentmap cm2 ON (cm2.contentid = cm1.quick_folder AND cm2.channel_id IN (?))",
			Params: []statement.Param{statement.ChannelIDs{}},
		}}))
	})

	It("should not join the target of a link compared by value", func() {
		e, err := r.Resolve("object.folder")
		Expect(err).NotTo(HaveOccurred())
		r.MarkNeeded(e)
		Expect(r.Joins()).To(BeEmpty())
	})

	It("should join normal links through their attribute row", func() {
		e, err := r.Resolve("object.parent.title")
		Expect(err).NotTo(HaveOccurred())
		r.MarkNeeded(e)

		joins := r.Joins()
		Expect(joins).To(HaveLen(3))
		Expect(joins[0].Text).To(Equal("LEFT JOIN contentattribute ca2 ON (ca2.map_id = cm1.id AND ca2.name = ?)"))
		Expect(joins[1].Text).To(Equal("LEFT JOIN contentmap cm3 ON (cm3.contentid = ca2.value_text AND cm3.channel_id IN (?))"))
		Expect(joins[2].Text).To(Equal("LEFT JOIN contentattribute ca4 ON (ca4.map_id = cm3.id AND ca4.name = ?)"))
		Expect(e.Column).To(Equal("ca4.value_text"))
	})

	It("should join the referencing objects of foreign links", func() {
		e, err := r.Resolve("object.children")
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Kind).To(Equal(attribute.KindForeignLink))
		Expect(e.Inline()).To(BeFalse())
		Expect(e.Column).To(Equal("cm2.contentid"))

		r.MarkNeeded(e)
		Expect(r.Joins()).To(Equal([]attribute.Join{{
			Text:   "LEFT JOIN contentmap cm2 ON (cm2.quick_folder = cm1.contentid AND cm2.channel_id IN (?))",
			Params: []statement.Param{statement.ChannelIDs{}},
		}}))
	})

	It("should join foreign links over normal attributes", func() {
		e, err := r.Resolve("object.comments.name")
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Column).To(Equal("cm3.quick_name"))

		r.MarkNeeded(e)
		Expect(r.Joins()).To(Equal([]attribute.Join{{
			Text: "LEFT JOIN contentattribute ca2 ON (ca2.name = ? AND ca2.value_text = cm1.contentid)" +
				" LEFT JOIN contentmap cm3 ON (cm3.id = ca2.map_id AND cm3.channel_id IN (?))",
			Params: []statement.Param{statement.Value{V: "parent"}, statement.ChannelIDs{}},
		}}))
	})

	It("should restrict every join to the version", func() {
		ts := int64(100)
		r = attribute.NewResolver(testCatalog(), statement.NewAliasAllocator(), &ts)
		Expect(r.MapTable()).To(Equal("contentmap_nodeversion"))
		Expect(r.AttributeTable()).To(Equal("contentattribute_nodeversion"))

		e, err := r.Resolve("object.title")
		Expect(err).NotTo(HaveOccurred())
		r.MarkNeeded(e)
		Expect(r.Joins()).To(Equal([]attribute.Join{{
			Text: "LEFT JOIN contentattribute_nodeversion ca2 ON (ca2.map_id = cm1.id AND ca2.name = ? AND " +
				"(ca2.nodeversiontimestamp <= ? AND (ca2.nodeversionremoved > ? OR ca2.nodeversionremoved = 0)))",
			Params: []statement.Param{statement.Value{V: "title"}, statement.Value{V: ts}, statement.Value{V: ts}},
		}}))

		Expect(r.VersionPredicate("cm1").Text()).To(Equal(
			"(cm1.nodeversiontimestamp <= ? AND (cm1.nodeversionremoved > ? OR cm1.nodeversionremoved = 0))"))
	})

	It("should not restrict unversioned statements", func() {
		Expect(r.VersionPredicate("cm1")).To(BeNil())
	})

	Context("Errors", func() {
		type testCase struct {
			input string
			check func(error) bool
		}

		tests := []testCase{
			{input: "object.missing", check: cfErrors.IsUnresolvedAttributeError},
			{input: "object.folder.missing", check: cfErrors.IsUnresolvedAttributeError},
			{input: "object.folder.", check: cfErrors.IsUnresolvedAttributeError},
			{input: "object.broken", check: cfErrors.IsUnresolvedAttributeError},
			{input: "object.title.name", check: cfErrors.IsTypeMismatchError},
			{input: "object.name.title", check: cfErrors.IsTypeMismatchError},
		}

		for _, tt := range tests {
			It("should reject path: "+tt.input, func() {
				_, err := r.Resolve(tt.input)
				Expect(err).To(HaveOccurred())
				Expect(tt.check(err)).To(BeTrue())
			})
		}
	})
})
