// Package dsa holds the in-memory data structures the services share.
package dsa

import (
	"sync"
	"time"
)

// ─── Unlock Queue (Min-Heap) ────────────────────────────────────────────────
// Binary min-heap ordered by the time a contribution next becomes claimable.
//
// Operations:
//   Push:     O(log n) sift up
//   Pop:      O(log n) sift down (extract-min)
//   Peek:     O(1)
//   PopDue:   O(k log n) for k due items
//   Upcoming: O(n log n) on a copy; the heap is left untouched

// Unlock is one pending claim window.
type Unlock struct {
	Account string    `json:"account"`
	Index   int       `json:"index"`
	PlanID  int       `json:"plan_id"`
	At      time.Time `json:"at"`     // when the next claim becomes allowed
	Amount  int64     `json:"amount"` // payout if claimed at At
	Final   bool      `json:"final"`
}

// UnlockQueue is a thread-safe min-heap of Unlocks.
type UnlockQueue struct {
	mu   sync.Mutex
	heap []Unlock
}

// NewUnlockQueue creates an empty queue.
func NewUnlockQueue() *UnlockQueue {
	return &UnlockQueue{}
}

// Push adds an item. O(log n).
func (q *UnlockQueue) Push(u Unlock) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = append(q.heap, u)
	siftUp(q.heap, len(q.heap)-1)
}

// Pop removes and returns the earliest unlock, or false if empty.
func (q *UnlockQueue) Pop() (Unlock, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

func (q *UnlockQueue) pop() (Unlock, bool) {
	if len(q.heap) == 0 {
		return Unlock{}, false
	}
	top := q.heap[0]
	last := len(q.heap) - 1
	q.heap[0] = q.heap[last]
	q.heap = q.heap[:last]
	if len(q.heap) > 0 {
		siftDown(q.heap, 0)
	}
	return top, true
}

// Peek returns the earliest unlock without removing it. O(1).
func (q *UnlockQueue) Peek() (Unlock, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return Unlock{}, false
	}
	return q.heap[0], true
}

// PopDue removes and returns every unlock with At <= now, earliest first.
func (q *UnlockQueue) PopDue(now time.Time) []Unlock {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Unlock
	for len(q.heap) > 0 && !q.heap[0].At.After(now) {
		u, _ := q.pop()
		out = append(out, u)
	}
	return out
}

// Upcoming returns up to n unlocks in order without consuming them.
// n <= 0 returns all.
func (q *UnlockQueue) Upcoming(n int) []Unlock {
	q.mu.Lock()
	cp := make([]Unlock, len(q.heap))
	copy(cp, q.heap)
	q.mu.Unlock()

	if n <= 0 || n > len(cp) {
		n = len(cp)
	}
	out := make([]Unlock, 0, n)
	for len(out) < n {
		out = append(out, cp[0])
		last := len(cp) - 1
		cp[0] = cp[last]
		cp = cp[:last]
		if len(cp) > 0 {
			siftDown(cp, 0)
		}
	}
	return out
}

// Replace swaps the whole content for items, heapified in O(n).
func (q *UnlockQueue) Replace(items []Unlock) {
	h := make([]Unlock, len(items))
	copy(h, items)
	for i := len(h)/2 - 1; i >= 0; i-- {
		siftDown(h, i)
	}

	q.mu.Lock()
	q.heap = h
	q.mu.Unlock()
}

// Len returns the number of queued unlocks.
func (q *UnlockQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// less orders by unlock time, then account and index for a stable order.
func less(h []Unlock, i, j int) bool {
	if !h[i].At.Equal(h[j].At) {
		return h[i].At.Before(h[j].At)
	}
	if h[i].Account != h[j].Account {
		return h[i].Account < h[j].Account
	}
	return h[i].Index < h[j].Index
}

func siftUp(h []Unlock, idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if !less(h, idx, parent) {
			break
		}
		h[idx], h[parent] = h[parent], h[idx]
		idx = parent
	}
}

func siftDown(h []Unlock, idx int) {
	n := len(h)
	for {
		smallest := idx
		left := 2*idx + 1
		right := 2*idx + 2

		if left < n && less(h, left, smallest) {
			smallest = left
		}
		if right < n && less(h, right, smallest) {
			smallest = right
		}
		if smallest == idx {
			break
		}
		h[idx], h[smallest] = h[smallest], h[idx]
		idx = smallest
	}
}
