// Package trace provides event and decision recording for simulation analysis.
// This package has no dependencies on sim/ or sim/cloud/; it stores pure data types.
package trace

// EventRecord captures a single dispatched event.
type EventRecord struct {
	Time float64
	Seq  uint64
	Src  int
	Dst  int
	Tag  string
}

// AllocationRecord captures a single VM placement decision.
type AllocationRecord struct {
	Time         float64
	DatacenterID int
	Policy       string
	BrokerID     int
	VmID         int
	HostID       int // -1 when no host was chosen
	Allocated    bool
	Reason       string
}

// CloudletRecord captures a cloudlet leaving a datacenter, whatever its status.
type CloudletRecord struct {
	Time         float64
	DatacenterID int
	CloudletID   int
	VmID         int
	Status       string
	StartTime    float64
	FinishTime   float64
}
