package sim

import "fmt"

// EntityID identifies an entity registered with a Simulation.
// Ids are assigned in registration order starting at 0.
type EntityID int

// NoEntity marks an unset source or destination.
const NoEntity EntityID = -1

// Tag names the kind of message an event carries.
// The kernel reserves no tags; entity packages define their own.
type Tag string

// Event is a message scheduled for delivery at a simulated time.
// Events are stored by value, so an enqueued event cannot be mutated.
type Event struct {
	Time    float64  // Delivery time in simulated seconds
	Seq     uint64   // Insertion sequence, assigned by the queue
	Src     EntityID // Sending entity
	Dst     EntityID // Receiving entity
	Tag     Tag      // Message kind
	Payload any      // Message body; senders pass values or immutable snapshots
}

func (e Event) String() string {
	return fmt.Sprintf("Event(t=%.4f seq=%d %d->%d %s)", e.Time, e.Seq, e.Src, e.Dst, e.Tag)
}
