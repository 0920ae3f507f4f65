package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/ranker"
)

const DefaultLimit = 10

// TopK keeps the best limit documents seen so far in a bounded min-heap, so
// ranking n candidates costs O(n log k).
type TopK struct {
	limit int
	h     scoredDocHeap
}

func NewTopK(limit int) *TopK {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &TopK{limit: limit, h: make(scoredDocHeap, 0, limit+1)}
}

func (t *TopK) Push(doc ranker.ScoredDoc) {
	if t.h.Len() == t.limit && !ranker.Less(doc, t.h[0]) {
		return
	}
	heap.Push(&t.h, doc)
	if t.h.Len() > t.limit {
		heap.Pop(&t.h)
	}
}

func (t *TopK) Len() int { return t.h.Len() }

// Results drains the heap and returns the kept documents best first.
func (t *TopK) Results() []ranker.ScoredDoc {
	result := make([]ranker.ScoredDoc, t.h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ranker.ScoredDoc)
	}
	return result
}

// Merge combines already scored lists into one top-limit list.
func Merge(lists [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	top := NewTopK(limit)
	for _, results := range lists {
		for _, doc := range results {
			top.Push(doc)
		}
	}
	return top.Results()
}

// scoredDocHeap keeps the weakest document at the root.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return ranker.Less(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
