// Package frontier implements the priority-ordered URL queue the worker
// pool draws from: a bounded, deduplicated, FIFO-tie-broken admission
// structure backed by a binary heap (the open question in the original
// design notes about full-array re-sort vs. heap/skiplist is resolved
// here in favor of a heap — see DESIGN.md).
package frontier

import (
	"container/heap"
	"sync"
)

// Entry is one frontier admission: an absolute URL awaiting fetch, together
// with the metadata the worker pool and extractors need. The URL is stored
// as its discoverer produced it; it is not passed through
// urlscope.Canonicalize, so dedup is by the exact URL string.
type Entry struct {
	URL       string
	Depth     int
	SourceURL string
	Type      string // start | page | sitemap | robots | pagination | internal
	Priority  int

	seq int // insertion order, used to break priority ties FIFO
}

// heapSlice implements container/heap.Interface over []*Entry, ordering by
// descending priority and, within equal priority, ascending sequence
// number (first admitted, first popped).
type heapSlice []*Entry

func (h heapSlice) Len() int { return len(h) }

func (h heapSlice) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}

	return h[i].seq < h[j].seq
}

func (h heapSlice) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *heapSlice) Push(x any) {
	*h = append(*h, x.(*Entry))
}

func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return item
}

// Frontier is the shared, mutex-serialized admission/pop structure. Admit
// and Pop never suspend (§5): both are plain in-memory operations under a
// single mutex.
type Frontier struct {
	mu         sync.Mutex
	heap       heapSlice
	discovered map[string]struct{}
	maxPages   int
	nextSeq    int
}

// New creates an empty Frontier bounded to maxPages discovered URLs.
func New(maxPages int) *Frontier {
	f := &Frontier{
		discovered: make(map[string]struct{}),
		maxPages:   maxPages,
	}
	heap.Init(&f.heap)

	return f
}

// Admit inserts entry if its URL has not already been discovered and the
// discovered-set cap has not been reached. Admission is idempotent and
// silent on refusal — callers are not expected to branch on the result
// for control flow, only for metrics.
func (f *Frontier) Admit(e Entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.discovered[e.URL]; ok {
		return false
	}

	if len(f.discovered) >= f.maxPages {
		return false
	}

	f.discovered[e.URL] = struct{}{}
	e.seq = f.nextSeq
	f.nextSeq++

	entry := e
	heap.Push(&f.heap, &entry)

	return true
}

// Pop removes and returns the highest-priority entry, ties broken by
// insertion order. Returns false if the frontier is currently empty.
func (f *Frontier) Pop() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.heap.Len() == 0 {
		return Entry{}, false
	}

	item := heap.Pop(&f.heap).(*Entry)

	return *item, true
}

// Len returns the number of entries currently awaiting pop.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.heap.Len()
}

// DiscoveredCount returns |discovered|, the admission-cap denominator.
func (f *Frontier) DiscoveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.discovered)
}

// IsDiscovered reports whether url has ever been admitted.
func (f *Frontier) IsDiscovered(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.discovered[url]

	return ok
}

// Snapshot returns the pending entries and the discovered-set contents,
// in pop order, for checkpoint serialization. It does not mutate state.
func (f *Frontier) Snapshot() (pending []Entry, discovered []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make(heapSlice, len(f.heap))
	copy(cp, f.heap)
	heap.Init(&cp)

	pending = make([]Entry, 0, len(cp))

	for cp.Len() > 0 {
		item := heap.Pop(&cp).(*Entry)
		pending = append(pending, *item)
	}

	discovered = make([]string, 0, len(f.discovered))
	for u := range f.discovered {
		discovered = append(discovered, u)
	}

	return pending, discovered
}

// Restore repopulates the frontier from a checkpointed snapshot, preserving
// the saved relative admission order for FIFO tie-breaking.
func Restore(maxPages int, pending []Entry, discovered []string) *Frontier {
	f := New(maxPages)

	for _, u := range discovered {
		f.discovered[u] = struct{}{}
	}

	for _, e := range pending {
		e.seq = f.nextSeq
		f.nextSeq++
		entry := e
		heap.Push(&f.heap, &entry)
	}

	return f
}
