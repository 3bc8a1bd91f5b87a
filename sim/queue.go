// Implements the EventQueue, the ordered store that drives simulated time.

package sim

import "container/heap"

// eventHeap implements heap.Interface and orders events by time, then by
// insertion sequence. See https://pkg.go.dev/container/heap#example-package-IntHeap
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Seq < h[j].Seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

// EventQueue is a min-heap of events ordered by (Time, Seq).
// Equal-time events pop in the order they were scheduled.
type EventQueue struct {
	events  eventHeap
	nextSeq uint64
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{events: make(eventHeap, 0)}
	heap.Init(&q.events)
	return q
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return len(q.events)
}

// Schedule stamps ev with the next sequence number and inserts it.
// The stamped event is returned.
func (q *EventQueue) Schedule(ev Event) Event {
	q.nextSeq++
	ev.Seq = q.nextSeq
	heap.Push(&q.events, ev)
	return ev
}

// Next removes and returns the earliest event.
// The boolean is false when the queue is empty.
func (q *EventQueue) Next() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return heap.Pop(&q.events).(Event), true
}

// Peek returns the earliest event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

// Cancel removes every pending event for which match returns true and
// returns the removed events in (Time, Seq) order.
func (q *EventQueue) Cancel(match func(Event) bool) []Event {
	kept := q.events[:0]
	var removed []Event
	for _, ev := range q.events {
		if match(ev) {
			removed = append(removed, ev)
			continue
		}
		kept = append(kept, ev)
	}
	q.events = kept
	heap.Init(&q.events)
	if len(removed) > 1 {
		rh := eventHeap(removed)
		heap.Init(&rh)
		ordered := make([]Event, 0, len(removed))
		for rh.Len() > 0 {
			ordered = append(ordered, heap.Pop(&rh).(Event))
		}
		removed = ordered
	}
	return removed
}
