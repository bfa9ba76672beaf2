package main

import "container/heap"

// activityHeap is a binary min-heap of clients ordered by last-activity
// timestamp, oldest first (§4.3). It implements container/heap's interface
// the way idiomatic Go priority queues are built; the corpus has no
// third-party heap library, so stdlib is the right call here, not a
// fallback.
//
// Every client holds its own index into items (heapIndex); Swap keeps that
// back-reference correct so remove/update can locate a client in O(1)
// instead of scanning. This is the property the liveness sweeper depends
// on (§4.3, §4.7).
type activityHeap struct {
	items []*Client
}

func newActivityHeap() *activityHeap {
	return &activityHeap{}
}

func (h *activityHeap) Len() int { return len(h.items) }

func (h *activityHeap) Less(i, j int) bool {
	return h.items[i].lastActive.Before(h.items[j].lastActive)
}

func (h *activityHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].heapIndex = i
	h.items[j].heapIndex = j
}

// Push and Pop satisfy container/heap.Interface; callers should use
// push/remove/update/peek below instead of calling these directly.
func (h *activityHeap) Push(x any) {
	c := x.(*Client)
	c.heapIndex = len(h.items)
	h.items = append(h.items, c)
}

func (h *activityHeap) Pop() any {
	old := h.items
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.heapIndex = -1
	h.items = old[:n-1]
	return c
}

// push inserts c into the heap and sets c.heapIndex.
func (h *activityHeap) push(c *Client) {
	heap.Push(h, c)
}

// remove extracts c from the heap (wherever it currently sits) and sets
// c.heapIndex back to -1. No-op if c isn't currently in the heap.
func (h *activityHeap) remove(c *Client) {
	if c.heapIndex < 0 || c.heapIndex >= len(h.items) || h.items[c.heapIndex] != c {
		return
	}
	heap.Remove(h, c.heapIndex)
}

// update re-sifts c after its last-activity timestamp has changed, in
// either direction. No-op if c isn't currently in the heap.
func (h *activityHeap) update(c *Client) {
	if c.heapIndex < 0 || c.heapIndex >= len(h.items) || h.items[c.heapIndex] != c {
		return
	}
	heap.Fix(h, c.heapIndex)
}

// peek returns the stalest client (smallest last-activity timestamp), or
// nil if the heap is empty.
func (h *activityHeap) peek() *Client {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// len returns the number of clients currently tracked.
func (h *activityHeap) len() int {
	return len(h.items)
}
