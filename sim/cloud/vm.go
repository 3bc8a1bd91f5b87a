package cloud

import (
	"fmt"

	"github.com/cloudlet-sim/cloudlet-sim/sim"
)

// VmKey identifies a VM across brokers: VM ids are only unique per owner.
type VmKey struct {
	Owner sim.EntityID
	ID    int
}

// Less orders keys by owner, then id.
func (k VmKey) Less(o VmKey) bool {
	if k.Owner != o.Owner {
		return k.Owner < o.Owner
	}
	return k.ID < o.ID
}

func (k VmKey) String() string { return fmt.Sprintf("%d/%d", k.Owner, k.ID) }

// VmSpec is the VM a broker asks for. It travels by value in VM_CREATE.
type VmSpec struct {
	ID                int
	BrokerID          sim.EntityID
	Mips              float64 // per PE
	Pes               int
	Ram               int64 // MB
	Bw                int64 // Mbps
	Size              int64 // image size, MB
	Vmm               string
	CloudletScheduler CloudletSchedulerPolicy
}

// Key returns the VM's cross-broker identity.
func (s VmSpec) Key() VmKey { return VmKey{Owner: s.BrokerID, ID: s.ID} }

// TotalMips returns the requested capacity across all PEs.
func (s VmSpec) TotalMips() float64 { return s.Mips * float64(s.Pes) }

// Vm is a VM instantiated inside a datacenter.
type Vm struct {
	VmSpec

	host          *Host
	datacenter    sim.EntityID
	createdAt     float64
	allocatedMips []float64
	scheduler     *CloudletScheduler
}

func newVm(spec VmSpec) *Vm {
	return &Vm{
		VmSpec:     spec,
		datacenter: sim.NoEntity,
		scheduler:  NewCloudletScheduler(spec.CloudletScheduler, spec.Pes),
	}
}

// Host returns the host the VM runs on, or nil.
func (v *Vm) Host() *Host { return v.host }

// Datacenter returns the hosting datacenter's id.
func (v *Vm) Datacenter() sim.EntityID { return v.datacenter }

// CreatedAt returns the simulated time the VM was placed.
func (v *Vm) CreatedAt() float64 { return v.createdAt }

// Scheduler returns the VM's cloudlet scheduler.
func (v *Vm) Scheduler() *CloudletScheduler { return v.scheduler }

// AllocatedMips returns the MIPS granted per virtual PE.
func (v *Vm) AllocatedMips() []float64 {
	return append([]float64(nil), v.allocatedMips...)
}

// TotalAllocatedMips returns the sum of AllocatedMips.
func (v *Vm) TotalAllocatedMips() float64 {
	total := 0.0
	for _, m := range v.allocatedMips {
		total += m
	}
	return total
}

// setAllocatedMips updates the VM's share and forwards it to its scheduler.
func (v *Vm) setAllocatedMips(mips []float64) {
	v.allocatedMips = mips
	v.scheduler.SetMips(mips)
}

func (v *Vm) String() string {
	return fmt.Sprintf("Vm(%s, %d x %.0f MIPS)", v.Key(), v.Pes, v.Mips)
}
