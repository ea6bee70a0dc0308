package sim

import "container/heap"

// event is a scheduled drive.
type event struct {
	at    Time
	seq   uint64 // scheduling order, breaks ties deterministically
	sig   int
	elem  int
	value uint64
}

// eventQueue is a min-heap of events ordered by (at, seq).
type eventQueue struct {
	events []event
	seq    uint64
}

func (q *eventQueue) Len() int { return len(q.events) }

func (q *eventQueue) Less(i, j int) bool {
	a, b := q.events[i], q.events[j]
	if a.at != b.at {
		return a.at.Before(b.at)
	}
	return a.seq < b.seq
}

func (q *eventQueue) Swap(i, j int) { q.events[i], q.events[j] = q.events[j], q.events[i] }

func (q *eventQueue) Push(x any) { q.events = append(q.events, x.(event)) }

func (q *eventQueue) Pop() any {
	n := len(q.events)
	e := q.events[n-1]
	q.events = q.events[:n-1]
	return e
}

// schedule stamps ev with the next sequence number and queues it.
func (q *eventQueue) schedule(ev event) {
	q.seq++
	ev.seq = q.seq
	heap.Push(q, ev)
}

// peek returns the earliest event time. The queue must not be empty.
func (q *eventQueue) peek() Time { return q.events[0].at }

// popSlot removes and returns every event scheduled at exactly t, in
// scheduling order.
func (q *eventQueue) popSlot(t Time) []event {
	var out []event
	for q.Len() > 0 && q.events[0].at == t {
		out = append(out, heap.Pop(q).(event))
	}
	return out
}
