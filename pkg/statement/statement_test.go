package statement_test

import (
	"sync"

	sq "github.com/Masterminds/squirrel"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

var _ = Describe("AliasAllocator", func() {
	It("should number aliases across prefixes", func() {
		a := statement.NewAliasAllocator()
		Expect(a.Next("cm")).To(Equal("cm1"))
		Expect(a.Next("ca")).To(Equal("ca2"))
		Expect(a.Next("cm")).To(Equal("cm3"))
		Expect(a.Issued()).To(Equal(int64(3)))
	})

	It("should hand out unique aliases concurrently", func() {
		a := statement.NewAliasAllocator()
		seen := make(chan string, 100)

		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seen <- a.Next("cm")
			}()
		}
		wg.Wait()
		close(seen)

		unique := make(map[string]bool)
		for s := range seen {
			unique[s] = true
		}
		Expect(unique).To(HaveLen(100))
	})
})

var _ = Describe("MergedFilter", func() {
	It("should keep parameters in text order", func() {
		inner := statement.NewMergedFilter().Append("b = ?", statement.Value{V: 2})

		m := statement.NewMergedFilter()
		Expect(m.Empty()).To(BeTrue())
		m.Append("a = ").AppendParam(statement.Value{V: 1}).
			Append(" AND ").AppendFilter(inner).
			Append(" AND c IN (?)", statement.ChannelIDs{})

		Expect(m.Empty()).To(BeFalse())
		Expect(m.Text()).To(Equal("a = ? AND b = ? AND c IN (?)"))
		Expect(m.Params()).To(Equal([]statement.Param{
			statement.Value{V: 1}, statement.Value{V: 2}, statement.ChannelIDs{},
		}))
	})

	It("should return a copy of the parameters", func() {
		m := statement.NewMergedFilter().AppendParam(statement.Value{V: 1})
		params := m.Params()
		params[0] = statement.Value{V: 9}
		Expect(m.Params()).To(Equal([]statement.Param{statement.Value{V: 1}}))
	})
})

var _ = Describe("Param", func() {
	It("should print slots", func() {
		Expect(statement.Value{V: "x"}.String()).To(Equal("x"))
		Expect(statement.ChannelIDs{}.String()).To(Equal("${channelIds}"))
		Expect(statement.Deferred{Prefix: "data", Name: "groups"}.String()).To(Equal("${data.groups}"))
	})

	It("should wrap values", func() {
		Expect(statement.Values(1, "a")).To(Equal([]statement.Param{statement.Value{V: 1}, statement.Value{V: "a"}}))
	})
})

var _ = Describe("Assemble", func() {
	binding := statement.Binding{
		Channels: []int64{3, 1, 2},
		Data: map[string]map[string]any{
			"data": {"x": "v", "ids": []int{7, 8}, "none": []string{}, "raw": []byte("b")},
		},
	}

	It("should expand channel ids in place", func() {
		stmt, err := statement.Assemble("a = ? AND c IN (?) AND b = ?",
			[]statement.Param{statement.Value{V: 1}, statement.ChannelIDs{}, statement.Value{V: 2}}, binding, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt.SQL).To(Equal("a = ? AND c IN (?, ?, ?) AND b = ?"))
		Expect(stmt.Args).To(Equal([]any{1, int64(3), int64(1), int64(2), 2}))
	})

	It("should render an empty list as NULL", func() {
		stmt, err := statement.Assemble("c IN (?)", []statement.Param{statement.ChannelIDs{}}, statement.Binding{}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt.SQL).To(Equal("c IN (NULL)"))
		Expect(stmt.Args).To(BeEmpty())
	})

	It("should resolve deferred values", func() {
		stmt, err := statement.Assemble("a = ? AND b IN (?) AND c IN (?) AND d = ?", []statement.Param{
			statement.Deferred{Prefix: "data", Name: "x"},
			statement.Deferred{Prefix: "data", Name: "ids"},
			statement.Deferred{Prefix: "data", Name: "none"},
			statement.Deferred{Prefix: "data", Name: "raw"},
		}, binding, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt.SQL).To(Equal("a = ? AND b IN (?, ?) AND c IN (NULL) AND d = ?"))
		Expect(stmt.Args).To(Equal([]any{"v", 7, 8, []byte("b")}))
	})

	It("should fail on unbound deferred values", func() {
		_, err := statement.Assemble("a = ?", []statement.Param{statement.Deferred{Prefix: "data", Name: "missing"}}, binding, nil)
		Expect(cfErrors.IsUnresolvedAttributeError(err)).To(BeTrue())
	})

	It("should skip question marks in string literals", func() {
		stmt, err := statement.Assemble("a = '?' AND b = ?", statement.Values(1), binding, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt.SQL).To(Equal("a = '?' AND b = ?"))
	})

	It("should apply the placeholder format", func() {
		stmt, err := statement.Assemble("a = ? AND c IN (?)",
			[]statement.Param{statement.Value{V: 1}, statement.ChannelIDs{}}, binding, sq.Dollar)
		Expect(err).NotTo(HaveOccurred())
		Expect(stmt.SQL).To(Equal("a = $1 AND c IN ($2, $3, $4)"))
	})

	It("should reject mismatched slot counts", func() {
		_, err := statement.Assemble("a = ? AND b = ?", statement.Values(1), binding, nil)
		Expect(cfErrors.IsUnsupportedOperationError(err)).To(BeTrue())

		_, err = statement.Assemble("a = ?", statement.Values(1, 2), binding, nil)
		Expect(cfErrors.IsUnsupportedOperationError(err)).To(BeTrue())
	})

	It("should keep the same result on repeated assembly", func() {
		params := []statement.Param{statement.ChannelIDs{}}
		first, err := statement.Assemble("c IN (?)", params, binding, nil)
		Expect(err).NotTo(HaveOccurred())
		second, err := statement.Assemble("c IN (?)", params, binding, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal(first))
	})
})

var _ = Describe("Flatten", func() {
	type testCase struct {
		input  any
		output []any
		ok     bool
	}

	tests := []testCase{
		{input: nil, output: nil, ok: false},
		{input: "a", output: nil, ok: false},
		{input: []byte("ab"), output: nil, ok: false},
		{input: []string{"a", "b"}, output: []any{"a", "b"}, ok: true},
		{input: []any{"a", nil, 1}, output: []any{"a", 1}, ok: true},
		{input: [2]int{1, 2}, output: []any{1, 2}, ok: true},
		{input: []int{}, output: []any{}, ok: true},
	}

	for _, tt := range tests {
		It("should flatten collections", func() {
			values, ok := statement.Flatten(tt.input)
			Expect(ok).To(Equal(tt.ok))
			if tt.output == nil {
				Expect(values).To(BeNil())
				return
			}
			Expect(values).To(Equal(tt.output))
		})
	}
})
