package cloud

import (
	"fmt"

	"github.com/cloudlet-sim/cloudlet-sim/sim"
)

// CloudletStatus is the lifecycle state of a cloudlet.
type CloudletStatus string

const (
	CloudletCreated    CloudletStatus = "created"
	CloudletQueued     CloudletStatus = "queued"
	CloudletRunning    CloudletStatus = "running"
	CloudletFinished   CloudletStatus = "finished"
	CloudletFailed     CloudletStatus = "failed"
	CloudletCanceled   CloudletStatus = "canceled"
	CloudletIncomplete CloudletStatus = "incomplete" // cut off by the horizon or a stop
)

// Terminal reports whether no further transition is possible.
func (s CloudletStatus) Terminal() bool {
	switch s {
	case CloudletFinished, CloudletFailed, CloudletCanceled, CloudletIncomplete:
		return true
	}
	return false
}

// Unbound marks a cloudlet the broker should place on any created VM.
const Unbound = -1

// CloudletSpec is the work a broker submits.
type CloudletSpec struct {
	ID             int
	Length         float64 // MI
	Pes            int
	FileSize       int64 // input, MB
	OutputSize     int64 // MB
	UtilizationCpu UtilizationModel
	UtilizationRam UtilizationModel
	UtilizationBw  UtilizationModel
	VmID           int // Unbound lets the broker choose
}

// Cloudlet is a cloudlet in flight inside a datacenter.
type Cloudlet struct {
	CloudletSpec

	BrokerID     sim.EntityID
	DatacenterID sim.EntityID

	status         CloudletStatus
	submissionTime float64
	startTime      float64
	finishTime     float64
	processed      float64
	cost           float64
	reason         string
}

// NewCloudlet wraps spec for submission by broker.
func NewCloudlet(spec CloudletSpec, broker sim.EntityID) *Cloudlet {
	spec.UtilizationCpu = utilizationOrFull(spec.UtilizationCpu)
	spec.UtilizationRam = utilizationOrFull(spec.UtilizationRam)
	spec.UtilizationBw = utilizationOrFull(spec.UtilizationBw)
	return &Cloudlet{
		CloudletSpec:   spec,
		BrokerID:       broker,
		DatacenterID:   sim.NoEntity,
		status:         CloudletCreated,
		submissionTime: -1,
		startTime:      -1,
		finishTime:     -1,
	}
}

func (c *Cloudlet) Status() CloudletStatus { return c.status }
func (c *Cloudlet) SubmissionTime() float64 { return c.submissionTime }
func (c *Cloudlet) StartTime() float64 { return c.startTime }
func (c *Cloudlet) FinishTime() float64 { return c.finishTime }
func (c *Cloudlet) Processed() float64 { return c.processed }
func (c *Cloudlet) Remaining() float64 { return c.Length - c.processed }
func (c *Cloudlet) Reason() string { return c.reason }

// VmKey returns the key of the VM the cloudlet is bound to.
func (c *Cloudlet) VmKey() VmKey { return VmKey{Owner: c.BrokerID, ID: c.VmID} }

// addProcessed advances the processed length, clamping at Length.
func (c *Cloudlet) addProcessed(mi float64) {
	if mi < 0 {
		panic(fmt.Sprintf("cloudlet %d: negative progress %v", c.ID, mi))
	}
	c.processed += mi
	if c.processed > c.Length {
		c.processed = c.Length
	}
}

func (c *Cloudlet) done() bool { return c.Length-c.processed <= mipsEpsilon*c.Length+mipsEpsilon }

func (c *Cloudlet) markStarted(now float64) {
	c.status = CloudletRunning
	if c.startTime < 0 {
		c.startTime = now
	}
}

func (c *Cloudlet) markFinished(now float64) {
	c.processed = c.Length
	c.status = CloudletFinished
	c.finishTime = now
}

// end moves the cloudlet to a terminal status other than finished.
func (c *Cloudlet) end(status CloudletStatus, now float64, reason string) {
	c.status = status
	c.finishTime = now
	c.reason = reason
}

// Snapshot returns the immutable view sent back to the broker.
func (c *Cloudlet) Snapshot() CloudletSnapshot {
	return CloudletSnapshot{
		ID:             c.ID,
		VmID:           c.VmID,
		BrokerID:       c.BrokerID,
		DatacenterID:   c.DatacenterID,
		Status:         c.status,
		Length:         c.Length,
		Pes:            c.Pes,
		SubmissionTime: c.submissionTime,
		StartTime:      c.startTime,
		FinishTime:     c.finishTime,
		Processed:      c.processed,
		Cost:           c.cost,
		Reason:         c.reason,
	}
}

// CloudletSnapshot is the payload of CLOUDLET_RETURN. Times are -1 when the
// cloudlet never reached that point.
type CloudletSnapshot struct {
	ID             int
	VmID           int
	BrokerID       sim.EntityID
	DatacenterID   sim.EntityID
	Status         CloudletStatus
	Length         float64
	Pes            int
	SubmissionTime float64
	StartTime      float64
	FinishTime     float64
	Processed      float64
	Cost           float64
	Reason         string
}

// ExecTime returns finish minus start, or 0 for a cloudlet that never ran.
func (s CloudletSnapshot) ExecTime() float64 {
	if s.StartTime < 0 || s.FinishTime < s.StartTime {
		return 0
	}
	return s.FinishTime - s.StartTime
}
