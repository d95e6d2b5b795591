package ingest

import (
	"container/heap"
	"strings"
	"sync"

	"github.com/fwojciec/ragdoc"
	"github.com/fwojciec/ragdoc/bloom"
)

// Queue orders sources for indexing and drops repeated URLs. Sources that
// were never indexed come first, then the least recently indexed. URLs
// differing only by fragment are the same page. It is safe for concurrent
// use.
type Queue struct {
	mu    sync.Mutex
	seen  *bloom.Filter
	items *sourceHeap
}

// NewQueue creates a Queue sized for n expected URLs with the given false
// positive rate for deduplication.
func NewQueue(n uint, fpRate float64) *Queue {
	h := &sourceHeap{}
	heap.Init(h)
	return &Queue{
		seen:  bloom.NewFilter(n, fpRate),
		items: h,
	}
}

// Push adds a source. It returns false if its URL was pushed before.
func (q *Queue) Push(src *ragdoc.Source) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen.TestAndAdd(pageURL(src.URL)) {
		return false
	}
	heap.Push(q.items, src)
	return true
}

// Pop returns the next source. The bool result is false if the queue is
// empty.
func (q *Queue) Pop() (*ragdoc.Source, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil, false
	}
	src, _ := heap.Pop(q.items).(*ragdoc.Source)
	return src, true
}

// Len returns the number of queued sources.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Seen reports whether the URL was pushed before.
func (q *Queue) Seen(rawURL string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen.Test(pageURL(rawURL))
}

// Drain pops every queued source in order.
func (q *Queue) Drain() []*ragdoc.Source {
	var out []*ragdoc.Source
	for {
		src, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, src)
	}
}

// pageURL strips the fragment from a URL.
func pageURL(u string) string {
	if i := strings.Index(u, "#"); i != -1 {
		return u[:i]
	}
	return u
}

// sourceHeap implements heap.Interface. Unindexed sources sort first,
// then by ascending IndexedAt, then by URL.
type sourceHeap []*ragdoc.Source

func (h sourceHeap) Len() int { return len(h) }

func (h sourceHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.Indexed() != b.Indexed() {
		return !a.Indexed()
	}
	if !a.IndexedAt.Equal(b.IndexedAt) {
		return a.IndexedAt.Before(b.IndexedAt)
	}
	return a.URL < b.URL
}

func (h sourceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *sourceHeap) Push(x any) {
	src, _ := x.(*ragdoc.Source)
	*h = append(*h, src)
}

func (h *sourceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
