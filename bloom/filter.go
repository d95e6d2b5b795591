// Package bloom provides approximate set membership for deduplicating
// URLs using Bloom filters.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter is a Bloom filter over strings. It may report false positives
// but never false negatives.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a filter sized for n expected keys at the given false
// positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{f: bloom.NewWithEstimates(n, fpRate)}
}

// Add inserts key.
func (f *Filter) Add(key string) {
	f.f.AddString(key)
}

// Test reports whether key may have been added.
func (f *Filter) Test(key string) bool {
	return f.f.TestString(key)
}

// TestAndAdd reports whether key may have been added and inserts it.
func (f *Filter) TestAndAdd(key string) bool {
	return f.f.TestAndAddString(key)
}

// EstimatedCount returns the approximate number of keys added.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}
