package sim

import "github.com/uber-go/tally/v4"

// kernelMetrics groups the counters the event loop maintains.
type kernelMetrics struct {
	EventsScheduled  tally.Counter
	EventsDispatched tally.Counter
	EventsCancelled  tally.Counter
	EventsDropped    tally.Counter
	RunDuration      tally.Timer
	QueueDepth       tally.Gauge
}

func newKernelMetrics(scope tally.Scope) *kernelMetrics {
	kernel := scope.SubScope("kernel")
	return &kernelMetrics{
		EventsScheduled:  kernel.Counter("events_scheduled"),
		EventsDispatched: kernel.Counter("events_dispatched"),
		EventsCancelled:  kernel.Counter("events_cancelled"),
		EventsDropped:    kernel.Counter("events_dropped"),
		RunDuration:      kernel.Timer("run_duration"),
		QueueDepth:       kernel.Gauge("queue_depth"),
	}
}
