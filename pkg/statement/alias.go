package statement

import (
	"strconv"
	"sync/atomic"
)

// AliasAllocator hands out table aliases that are unique within one statement
// tree. A parent filter and every sub-filter it spawns share one allocator.
type AliasAllocator struct {
	counter atomic.Int64
}

func NewAliasAllocator() *AliasAllocator {
	return &AliasAllocator{}
}

// Next returns the next alias for the given table prefix, e.g. "cm1", "ca2".
func (a *AliasAllocator) Next(prefix string) string {
	return prefix + strconv.FormatInt(a.counter.Add(1), 10)
}

// Issued returns how many aliases were handed out so far.
func (a *AliasAllocator) Issued() int64 {
	return a.counter.Load()
}
