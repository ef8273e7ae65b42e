package ingest

import "bytes"

// walkMaxHeap pops the newest commit first. Equal committer times fall
// back to hash order so the walk is deterministic.
type walkMaxHeap []*walkNode

func (h walkMaxHeap) Len() int { return len(h) }

func (h walkMaxHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.time == b.time {
		return bytes.Compare(a.hash[:], b.hash[:]) < 0
	}
	return a.time > b.time
}

func (h walkMaxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *walkMaxHeap) Push(x any) {
	*h = append(*h, x.(*walkNode))
}

func (h *walkMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// readyHeap orders commits whose children have all been emitted by the
// order in which the walk popped them.
type readyHeap []*walkNode

func (h readyHeap) Len() int           { return len(h) }
func (h readyHeap) Less(i, j int) bool { return h[i].popped < h[j].popped }
func (h readyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) {
	*h = append(*h, x.(*walkNode))
}

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
