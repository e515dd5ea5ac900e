package vector

// Candidate is one scored row from a CVVI query.
type Candidate struct {
	DocID  uint64
	Score  float32
	Approx bool
}

// topKHeap is a bounded min-heap over Candidate, ordered so the weakest
// candidate currently held is always at index 0, letting Query discard a
// new candidate in O(log K) once the heap is full. Ties break on higher
// score, then lower doc_id (spec §4.3 "ties in score break on doc_id
// ascending"), which we implement by treating a tie-losing candidate
// (higher doc_id) as "weaker" so it's the one popped.
type topKHeap struct {
	items []Candidate
	k     int
}

func newTopKHeap(k int) *topKHeap {
	return &topKHeap{items: make([]Candidate, 0, k), k: k}
}

// weaker reports whether a should be evicted before b when the heap is
// full and a new candidate needs to take a's place.
func weaker(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

func (h *topKHeap) Offer(c Candidate) {
	if len(h.items) < h.k {
		h.items = append(h.items, c)
		h.up(len(h.items) - 1)
		return
	}
	if len(h.items) == 0 {
		return
	}
	if weaker(c, h.items[0]) {
		return
	}
	h.items[0] = c
	h.down(0)
}

func (h *topKHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !weaker(h.items[parent], h.items[i]) {
			break
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *topKHeap) down(i int) {
	n := len(h.items)
	for {
		l, r := 2*i+1, 2*i+2
		smallest := i
		if l < n && weaker(h.items[smallest], h.items[l]) {
			smallest = l
		}
		if r < n && weaker(h.items[smallest], h.items[r]) {
			smallest = r
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// Sorted drains the heap into a slice ordered best-first (score
// descending, doc_id ascending on ties).
func (h *topKHeap) Sorted() []Candidate {
	out := make([]Candidate, len(h.items))
	copy(out, h.items)
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if weaker(out[i], out[j]) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
