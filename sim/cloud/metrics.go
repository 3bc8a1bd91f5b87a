package cloud

import (
	"github.com/uber-go/tally/v4"
)

// DatacenterMetrics tracks VM placements and cloudlet outcomes of one datacenter.
type DatacenterMetrics struct {
	VmAllocated       tally.Counter
	VmRejected        tally.Counter
	VmDestroyed       tally.Counter
	CloudletSubmitted tally.Counter
	Ticks             tally.Counter
	RunningCloudlets  tally.Gauge

	scope tally.Scope
}

// NewDatacenterMetrics returns a new DatacenterMetrics rooted at the given
// scope, tagged with the datacenter name.
func NewDatacenterMetrics(scope tally.Scope, name string) *DatacenterMetrics {
	dc := scope.SubScope("datacenter").Tagged(map[string]string{"datacenter": name})
	return &DatacenterMetrics{
		VmAllocated:       dc.Tagged(map[string]string{"result": "allocated"}).Counter("vm_allocations"),
		VmRejected:        dc.Tagged(map[string]string{"result": "rejected"}).Counter("vm_allocations"),
		VmDestroyed:       dc.Counter("vm_destroyed"),
		CloudletSubmitted: dc.Counter("cloudlets_submitted"),
		Ticks:             dc.Counter("ticks"),
		RunningCloudlets:  dc.Gauge("running_cloudlets"),

		scope: dc,
	}
}

// CloudletReturned counts a returned cloudlet by its final status.
func (m *DatacenterMetrics) CloudletReturned(status CloudletStatus) {
	m.scope.Tagged(map[string]string{"status": string(status)}).Counter("cloudlets_returned").Inc(1)
}

// BrokerMetrics tracks what a broker sent and received.
type BrokerMetrics struct {
	VmRequested       tally.Counter
	VmCreated         tally.Counter
	VmFailed          tally.Counter
	CloudletSubmitted tally.Counter
	CloudletReceived  tally.Counter
	CloudletFailed    tally.Counter
	InvalidReference  tally.Counter

	scope tally.Scope
}

// NewBrokerMetrics returns a new BrokerMetrics rooted at the given scope,
// tagged with the broker name.
func NewBrokerMetrics(scope tally.Scope, name string) *BrokerMetrics {
	b := scope.SubScope("broker").Tagged(map[string]string{"broker": name})
	return &BrokerMetrics{
		VmRequested:       b.Counter("vm_requested"),
		VmCreated:         b.Counter("vm_created"),
		VmFailed:          b.Counter("vm_failed"),
		CloudletSubmitted: b.Counter("cloudlets_submitted"),
		CloudletReceived:  b.Counter("cloudlets_received"),
		CloudletFailed:    b.Counter("cloudlets_failed"),
		InvalidReference:  b.Counter("invalid_references"),

		scope: b,
	}
}
