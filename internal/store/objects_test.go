package store_test

import (
	"context"
	"database/sql"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kubev2v/contentmap-filter/internal/store"
	"github.com/kubev2v/contentmap-filter/internal/store/migrations"
	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	"github.com/kubev2v/contentmap-filter/pkg/dialect"
	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/filter"
	"github.com/kubev2v/contentmap-filter/pkg/rule"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

var testAttributes = []attribute.Attribute{
	{Name: "name", Type: attribute.TypeText, Optimized: true},
	{Name: "title", Type: attribute.TypeText},
	{Name: "count", Type: attribute.TypeInteger, Optimized: true},
	{Name: "tags", Type: attribute.TypeText, Multivalue: true},
	{Name: "folder", Type: attribute.TypeLink, Optimized: true},
	{Name: "parent", Type: attribute.TypeLink},
	{Name: "children", Type: attribute.TypeForeignLink, ForeignLinkAttribute: "folder"},
	{Name: "comments", Type: attribute.TypeForeignLink, ForeignLinkAttribute: "parent"},
}

// Objects by contentid:
//
//	10001.1 folder "news"           channel 1
//	10002.1 page "alpha"            channel 1, in 10001.1
//	10002.2 page "beta"             channel 1, in 10001.1
//	10002.3 page "gamma"            channel 2
//	10003.1 comment on 10002.1      channel 1
var testObjects = []store.Object{
	{ChannelID: 1, ObjType: 10001, ObjID: 1, UpdateTimestamp: 100, Attributes: map[string][]any{
		"name": {"news"},
	}},
	{ChannelID: 1, ObjType: 10002, ObjID: 1, UpdateTimestamp: 100, Attributes: map[string][]any{
		"name":   {"alpha"},
		"title":  {"Alpha"},
		"count":  {3},
		"tags":   {"red", "blue"},
		"folder": {"10001.1"},
	}},
	{ChannelID: 1, ObjType: 10002, ObjID: 2, UpdateTimestamp: 100, Attributes: map[string][]any{
		"name":   {"beta"},
		"title":  {"Beta"},
		"count":  {7},
		"tags":   {"green"},
		"folder": {"10001.1"},
	}},
	{ChannelID: 2, ObjType: 10002, ObjID: 3, UpdateTimestamp: 100, Attributes: map[string][]any{
		"name":  {"gamma"},
		"count": {10},
	}},
	{ChannelID: 1, ObjType: 10003, ObjID: 1, UpdateTimestamp: 100, Attributes: map[string][]any{
		"name":   {"comment"},
		"parent": {"10002.1"},
	}},
}

var _ = Describe("ObjectStore", func() {
	var (
		ctx      context.Context
		db       *sql.DB
		s        *store.Store
		catalog  attribute.MapCatalog
		compiler *filter.Compiler
		req      filter.Request
		ids      map[string]int64
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, db)).To(Succeed())

		s = store.NewStore(db)
		for _, a := range testAttributes {
			Expect(s.Catalog().Register(ctx, a)).To(Succeed())
		}
		catalog, err = s.Catalog().Load(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		ids = make(map[string]int64)
		for _, o := range testObjects {
			id, err := s.Objects().Put(ctx, catalog, o)
			Expect(err).NotTo(HaveOccurred())
			ids[o.Attributes["name"][0].(string)] = id
		}

		compiler = filter.NewCompiler(dialect.DuckDB, catalog)
		req = filter.Request{Channels: []int64{1}}
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	compile := func(text string) *statement.Statement {
		tree, err := rule.Parse(text, rule.WithResolvers("data"))
		Expect(err).NotTo(HaveOccurred())
		expr, err := tree.Expression()
		Expect(err).NotTo(HaveOccurred())
		stmt, err := compiler.Compile(expr, req)
		Expect(err).NotTo(HaveOccurred())
		return stmt
	}

	contentIDs := func(stmt *statement.Statement) []string {
		objects, err := s.Objects().Query(ctx, stmt)
		Expect(err).NotTo(HaveOccurred())
		out := make([]string, 0, len(objects))
		for _, o := range objects {
			out = append(out, o.ContentID)
		}
		return out
	}

	sorted := func(stmt *statement.Statement) []string {
		out := contentIDs(stmt)
		slices.Sort(out)
		return out
	}

	Context("Put", func() {
		It("should derive the content id", func() {
			objects, err := s.Objects().Query(ctx, compile(`object.name == "alpha"`))
			Expect(err).NotTo(HaveOccurred())
			Expect(objects).To(HaveLen(1))
			Expect(objects[0].ID).To(Equal(ids["alpha"]))
			Expect(objects[0].ContentID).To(Equal("10002.1"))
			Expect(objects[0].ObjType).To(Equal(int64(10002)))
			Expect(objects[0].UpdateTimestamp).To(Equal(int64(100)))
		})

		It("should store normal attributes with their sort order", func() {
			rows, err := db.QueryContext(ctx,
				`SELECT value_text FROM contentattribute WHERE map_id = ? AND name = 'tags' ORDER BY sortorder`, ids["alpha"])
			Expect(err).NotTo(HaveOccurred())
			defer rows.Close()

			var tags []string
			for rows.Next() {
				var t string
				Expect(rows.Scan(&t)).To(Succeed())
				tags = append(tags, t)
			}
			Expect(tags).To(Equal([]string{"red", "blue"}))
		})

		It("should record a version of every object", func() {
			var n int
			Expect(db.QueryRowContext(ctx, `SELECT count(*) FROM contentmap_nodeversion`).Scan(&n)).To(Succeed())
			Expect(n).To(Equal(len(testObjects)))
		})

		It("should reject unknown attributes", func() {
			_, err := s.Objects().Put(ctx, catalog, store.Object{ChannelID: 1, ObjType: 10002, ObjID: 9,
				Attributes: map[string][]any{"missing": {"x"}}})
			Expect(cfErrors.IsUnresolvedAttributeError(err)).To(BeTrue())
		})

		It("should reject several values for an optimized attribute", func() {
			_, err := s.Objects().Put(ctx, catalog, store.Object{ChannelID: 1, ObjType: 10002, ObjID: 9,
				Attributes: map[string][]any{"name": {"a", "b"}}})
			Expect(cfErrors.IsUnsupportedOperationError(err)).To(BeTrue())
		})

		It("should reject values for foreign links", func() {
			_, err := s.Objects().Put(ctx, catalog, store.Object{ChannelID: 1, ObjType: 10001, ObjID: 9,
				Attributes: map[string][]any{"children": {"10002.1"}}})
			Expect(cfErrors.IsUnsupportedOperationError(err)).To(BeTrue())
		})
	})

	Context("Query", func() {
		type testCase struct {
			input  string
			output []string
		}

		tests := []testCase{
			{input: `object.name == "alpha"`, output: []string{"10002.1"}},
			{input: `object.count > 2`, output: []string{"10002.1", "10002.2"}},
			{input: `object.count >= 3 AND object.count < 7`, output: []string{"10002.1"}},
			{input: `object.title LIKE "B*"`, output: []string{"10002.2"}},
			{input: `object.title == "Alpha" OR object.name == "beta"`, output: []string{"10002.1", "10002.2"}},
			{input: `object.tags CONTAINSONEOF ("red", "green")`, output: []string{"10002.1", "10002.2"}},
			{input: `object.tags CONTAINSNONE ("red")`, output: []string{"10001.1", "10002.2", "10003.1"}},
			{input: `object.name CONTAINSONEOF ("beta", "gamma")`, output: []string{"10002.2"}},
			{input: `object.folder.name == "news"`, output: []string{"10002.1", "10002.2"}},
			{input: `object.children.name == "alpha"`, output: []string{"10001.1"}},
			{input: `object.parent.name == "alpha"`, output: []string{"10003.1"}},
			{input: `object.comments.name == "comment"`, output: []string{"10002.1"}},
			{input: `isempty(object.title)`, output: []string{"10001.1", "10003.1"}},
			{input: `object.obj_type == 10002 AND object.name != "alpha"`, output: []string{"10002.2"}},
			{input: ``, output: []string{"10001.1", "10002.1", "10002.2", "10003.1"}},
		}

		for _, tt := range tests {
			It("should select the matching objects: "+tt.input, func() {
				Expect(sorted(compile(tt.input))).To(Equal(tt.output))
			})
		}

		It("should search every requested channel", func() {
			req.Channels = []int64{1, 2}
			Expect(sorted(compile(`object.count > 2`))).To(Equal([]string{"10002.1", "10002.2", "10002.3"}))
		})

		It("should find nothing without channels", func() {
			req.Channels = nil
			Expect(contentIDs(compile(`object.count > 2`))).To(BeEmpty())
		})

		It("should execute statements bound after preparation", func() {
			tree, err := rule.Parse(`object.name CONTAINSONEOF data.names`, rule.WithResolvers("data"))
			Expect(err).NotTo(HaveOccurred())
			expr, err := tree.Expression()
			Expect(err).NotTo(HaveOccurred())

			p, err := compiler.Prepare(expr, req)
			Expect(err).NotTo(HaveOccurred())

			stmt, err := p.Bind(map[string]map[string]any{"data": {"names": []string{"beta", "news"}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(sorted(stmt)).To(Equal([]string{"10001.1", "10002.2"}))

			stmt, err = p.Bind(map[string]map[string]any{"data": {"names": []string{}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(contentIDs(stmt)).To(BeEmpty())
		})

		It("should sort and page", func() {
			req.Sort = []filter.Sort{{Path: "object.name", Descending: true}}
			Expect(contentIDs(compile(`object.obj_type == 10002`))).To(Equal([]string{"10002.2", "10002.1"}))

			req.Limit = 1
			req.Offset = 1
			Expect(contentIDs(compile(`object.obj_type == 10002`))).To(Equal([]string{"10002.1"}))
		})

		It("should sort by a normal attribute", func() {
			req.Sort = []filter.Sort{{Path: "object.title"}}
			Expect(contentIDs(compile(`object.obj_type == 10002`))).To(Equal([]string{"10002.1", "10002.2"}))
		})
	})

	Context("Count", func() {
		It("should count distinct objects", func() {
			req.Count = true
			n, err := s.Objects().Count(ctx, compile(`object.tags CONTAINSONEOF ("red", "blue", "green")`))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))
		})
	})

	Context("Versions", func() {
		BeforeEach(func() {
			Expect(s.Objects().Remove(ctx, ids["beta"], 200)).To(Succeed())
		})

		It("should remove the current object", func() {
			Expect(contentIDs(compile(`object.name == "beta"`))).To(BeEmpty())
		})

		type testCase struct {
			version int64
			output  []string
		}

		tests := []testCase{
			{version: 50, output: []string{}},
			{version: 100, output: []string{"10002.2"}},
			{version: 150, output: []string{"10002.2"}},
			{version: 200, output: []string{}},
			{version: 250, output: []string{}},
		}

		for _, tt := range tests {
			It("should read the objects valid at the version", func() {
				ts := tt.version
				req.VersionTimestamp = &ts
				Expect(contentIDs(compile(`object.name == "beta" AND object.title == "Beta"`))).To(Equal(tt.output))
			})
		}

		It("should keep other objects in later versions", func() {
			ts := int64(250)
			req.VersionTimestamp = &ts
			Expect(sorted(compile(`object.folder.name == "news"`))).To(Equal([]string{"10002.1"}))
		})
	})
})
