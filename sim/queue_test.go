package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_Next_OrdersByTimeThenSeq(t *testing.T) {
	// GIVEN events scheduled out of time order, two of them at t=5
	q := NewEventQueue()
	q.Schedule(Event{Time: 5, Tag: "b"})
	q.Schedule(Event{Time: 1, Tag: "a"})
	q.Schedule(Event{Time: 5, Tag: "c"})
	q.Schedule(Event{Time: 3, Tag: "x"})

	// WHEN the queue is drained
	var tags []Tag
	for {
		ev, ok := q.Next()
		if !ok {
			break
		}
		tags = append(tags, ev.Tag)
	}

	// THEN events come out by time, equal times in scheduling order
	assert.Equal(t, []Tag{"a", "x", "b", "c"}, tags)
}

func TestEventQueue_Schedule_StampsIncreasingSeq(t *testing.T) {
	q := NewEventQueue()

	first := q.Schedule(Event{Time: 0})
	second := q.Schedule(Event{Time: 0})

	assert.Less(t, first.Seq, second.Seq)
}

func TestEventQueue_Peek_DoesNotRemove(t *testing.T) {
	// GIVEN a queue with one event
	q := NewEventQueue()
	q.Schedule(Event{Time: 2, Tag: "only"})

	// WHEN Peek is called twice
	a, okA := q.Peek()
	b, okB := q.Peek()

	// THEN both see the same event and the length is unchanged
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_Empty(t *testing.T) {
	q := NewEventQueue()

	_, ok := q.Next()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestEventQueue_Cancel_RemovesMatchingInOrder(t *testing.T) {
	// GIVEN events for destinations 1 and 2
	q := NewEventQueue()
	q.Schedule(Event{Time: 4, Dst: 1, Tag: "late"})
	q.Schedule(Event{Time: 1, Dst: 2, Tag: "keep"})
	q.Schedule(Event{Time: 2, Dst: 1, Tag: "early"})

	// WHEN events for destination 1 are cancelled
	removed := q.Cancel(func(ev Event) bool { return ev.Dst == 1 })

	// THEN both are returned in (time, seq) order and only the other remains
	require.Len(t, removed, 2)
	assert.Equal(t, Tag("early"), removed[0].Tag)
	assert.Equal(t, Tag("late"), removed[1].Tag)
	require.Equal(t, 1, q.Len())
	ev, _ := q.Next()
	assert.Equal(t, Tag("keep"), ev.Tag)
}

func TestEventQueue_Cancel_KeepsHeapOrder(t *testing.T) {
	// GIVEN interleaved events
	q := NewEventQueue()
	for i := 10; i > 0; i-- {
		q.Schedule(Event{Time: float64(i), Dst: EntityID(i % 2)})
	}

	// WHEN odd destinations are cancelled
	q.Cancel(func(ev Event) bool { return ev.Dst == 1 })

	// THEN the remaining events still pop in ascending time
	last := -1.0
	for {
		ev, ok := q.Next()
		if !ok {
			break
		}
		assert.Greater(t, ev.Time, last)
		last = ev.Time
	}
}

func TestClock_AdvanceTo_Backwards_Panics(t *testing.T) {
	// GIVEN a clock at t=5
	var c Clock
	c.AdvanceTo(5)

	// WHEN it is moved to an earlier time
	// THEN it panics
	assert.Panics(t, func() { c.AdvanceTo(4) })
	assert.Equal(t, 5.0, c.Now())
}

func TestClock_AdvanceTo_SameTime_Allowed(t *testing.T) {
	var c Clock
	c.AdvanceTo(3)

	assert.NotPanics(t, func() { c.AdvanceTo(3) })
	assert.Equal(t, 3.0, c.Now())
}
