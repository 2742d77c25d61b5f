// Package equeue implements the resistance-priority event queues of
// spec.md §4.4: ascending-resistance dispatch with at most one pending
// entry per (device, kind), replacing re-enqueues with a strictly lower
// resistance and dropping those that aren't an improvement.
package equeue

import (
	"container/heap"

	"github.com/donn/cvc/pkg/elaborate"
)

// Kind names which of the three coupled queues an event belongs to.
type Kind int

const (
	MinQueue Kind = iota
	MaxQueue
	SimQueue
)

// Event is one pending voltage-propagation dispatch: device should be
// re-examined because Net, one of its terminals, just had its bound
// improved at Resistance ohms from the driving supply.
type Event struct {
	Device     elaborate.DeviceID
	Kind       Kind
	Net        elaborate.NetID
	Resistance float64

	seq   int // insertion order, for deterministic tie-breaking
	index int // current position in the heap, maintained by innerHeap.Swap
}

// Queue is a single resistance-priority queue with per-(device, kind)
// deduplication. The zero value is not usable; call New.
type Queue struct {
	heap innerHeap
	// pending maps a (device, kind) pair to its queued *Event (whose index
	// field tracks its heap position) so a re-enqueue can find and possibly
	// replace the existing entry instead of pushing a duplicate.
	pending map[key]*Event
	nextSeq int
}

type key struct {
	device elaborate.DeviceID
	kind   Kind
}

// New returns an empty Queue.
func New() *Queue {
	q := &Queue{pending: make(map[key]*Event)}
	heap.Init(&q.heap)
	return q
}

// Push enqueues device (reached via net, at resistance ohms from the
// driving supply) at the given kind. If an entry for this (device, kind)
// is already pending, Push replaces it only when resistance strictly
// improves on (is lower than) the pending entry's resistance; an
// equal-or-higher resistance re-enqueue is dropped. Returns whether the
// event was installed.
func (q *Queue) Push(device elaborate.DeviceID, kind Kind, net elaborate.NetID, resistance float64) bool {
	k := key{device, kind}
	if existing, ok := q.pending[k]; ok {
		if resistance >= existing.Resistance {
			return false
		}
		existing.Net = net
		existing.Resistance = resistance
		heap.Fix(&q.heap, existing.index)
		return true
	}
	e := &Event{Device: device, Kind: kind, Net: net, Resistance: resistance, seq: q.nextSeq}
	q.nextSeq++
	q.pending[k] = e
	heap.Push(&q.heap, e)
	return true
}

// Pop removes and returns the lowest-resistance pending event, breaking
// ties by insertion order. Returns ok=false when the queue is empty.
func (q *Queue) Pop() (Event, bool) {
	if q.heap.Len() == 0 {
		return Event{}, false
	}
	e := heap.Pop(&q.heap).(*Event)
	delete(q.pending, key{e.Device, e.Kind})
	return *e, true
}

// Len reports how many events are pending.
func (q *Queue) Len() int { return q.heap.Len() }

// innerHeap implements container/heap.Interface over *Event, ordered by
// ascending resistance then ascending sequence number.
type innerHeap []*Event

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].Resistance != h[j].Resistance {
		return h[i].Resistance < h[j].Resistance
	}
	return h[i].seq < h[j].seq
}
func (h innerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *innerHeap) Push(x interface{}) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
