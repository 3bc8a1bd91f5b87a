package cloud

import (
	"fmt"
	"sort"
)

// mipsEpsilon absorbs floating-point residue when packing MIPS shares.
const mipsEpsilon = 1e-9

// PeProvisioner tracks the MIPS of one PE reserved by each VM.
type PeProvisioner struct {
	mips      float64
	available float64
	byVm      map[VmKey]float64
}

// NewPeProvisioner creates a provisioner for a PE of the given capacity.
func NewPeProvisioner(mips float64) *PeProvisioner {
	return &PeProvisioner{
		mips:      mips,
		available: mips,
		byVm:      make(map[VmKey]float64),
	}
}

// AllocateForVm reserves mips for vm on top of what it already holds.
// Returns false, reserving nothing, if the PE lacks free capacity.
func (p *PeProvisioner) AllocateForVm(vm VmKey, mips float64) bool {
	if mips < 0 || mips > p.available+mipsEpsilon {
		return false
	}
	if mips > p.available {
		mips = p.available
	}
	p.available -= mips
	p.byVm[vm] += mips
	return true
}

// DeallocateForVm releases everything vm holds on this PE.
func (p *PeProvisioner) DeallocateForVm(vm VmKey) {
	if held, ok := p.byVm[vm]; ok {
		p.available += held
		delete(p.byVm, vm)
	}
	if p.available > p.mips {
		p.available = p.mips
	}
}

// DeallocateAll releases every reservation.
func (p *PeProvisioner) DeallocateAll() {
	p.byVm = make(map[VmKey]float64)
	p.available = p.mips
}

// AllocatedForVm returns the MIPS vm holds on this PE.
func (p *PeProvisioner) AllocatedForVm(vm VmKey) float64 { return p.byVm[vm] }

// Available returns the unreserved MIPS.
func (p *PeProvisioner) Available() float64 { return p.available }

// Allocated returns the reserved MIPS.
func (p *PeProvisioner) Allocated() float64 { return p.mips - p.available }

// Mips returns the PE capacity.
func (p *PeProvisioner) Mips() float64 { return p.mips }

// Utilization returns reserved / capacity in [0, 1].
func (p *PeProvisioner) Utilization() float64 {
	if p.mips == 0 {
		return 0
	}
	return p.Allocated() / p.mips
}

// PeStatus is the allocation status of a PE.
type PeStatus string

const (
	PeFree      PeStatus = "free"
	PeAllocated PeStatus = "allocated"
)

// Pe is a processing element of a host.
type Pe struct {
	ID          int
	status      PeStatus
	provisioner *PeProvisioner
}

// NewPe creates a free PE with the given MIPS capacity.
func NewPe(id int, mips float64) *Pe {
	return &Pe{ID: id, status: PeFree, provisioner: NewPeProvisioner(mips)}
}

// Mips returns the PE capacity.
func (p *Pe) Mips() float64 { return p.provisioner.Mips() }

// Status returns the PE status.
func (p *Pe) Status() PeStatus { return p.status }

// Provisioner returns the PE's MIPS provisioner.
func (p *Pe) Provisioner() *PeProvisioner { return p.provisioner }

func (p *Pe) String() string {
	return fmt.Sprintf("Pe(%d, %.0f MIPS, %s)", p.ID, p.Mips(), p.status)
}

// NewPeList creates one PE per entry in mips, numbered from 0.
func NewPeList(mips ...float64) []*Pe {
	pes := make([]*Pe, len(mips))
	for i, m := range mips {
		pes[i] = NewPe(i, m)
	}
	return pes
}

// Provisioner tracks a fixed-size pool (RAM in MB or bandwidth in Mbps)
// reserved per VM. Reservations are not time-sliced.
type Provisioner struct {
	resource  string
	capacity  int64
	available int64
	byVm      map[VmKey]int64
}

// NewRamProvisioner creates a RAM pool of capacity MB.
func NewRamProvisioner(capacity int64) *Provisioner {
	return newProvisioner("ram", capacity)
}

// NewBwProvisioner creates a bandwidth pool of capacity Mbps.
func NewBwProvisioner(capacity int64) *Provisioner {
	return newProvisioner("bw", capacity)
}

func newProvisioner(resource string, capacity int64) *Provisioner {
	return &Provisioner{
		resource:  resource,
		capacity:  capacity,
		available: capacity,
		byVm:      make(map[VmKey]int64),
	}
}

// IsSuitableForVm reports whether amount could be granted to vm, counting
// what vm already holds as reusable.
func (p *Provisioner) IsSuitableForVm(vm VmKey, amount int64) bool {
	return amount >= 0 && p.available+p.byVm[vm] >= amount
}

// AllocateForVm sets vm's reservation to amount, replacing any previous one.
// Returns false, changing nothing, if the pool cannot cover it.
func (p *Provisioner) AllocateForVm(vm VmKey, amount int64) bool {
	if !p.IsSuitableForVm(vm, amount) {
		return false
	}
	p.available += p.byVm[vm]
	p.available -= amount
	p.byVm[vm] = amount
	return true
}

// DeallocateForVm releases vm's reservation.
func (p *Provisioner) DeallocateForVm(vm VmKey) {
	if held, ok := p.byVm[vm]; ok {
		p.available += held
		delete(p.byVm, vm)
	}
}

// AllocatedForVm returns vm's reservation.
func (p *Provisioner) AllocatedForVm(vm VmKey) int64 { return p.byVm[vm] }

// Available returns the unreserved amount.
func (p *Provisioner) Available() int64 { return p.available }

// Capacity returns the pool size.
func (p *Provisioner) Capacity() int64 { return p.capacity }

// Resource names the pool ("ram" or "bw").
func (p *Provisioner) Resource() string { return p.resource }

// Holders returns the VMs with a reservation, sorted by owner then id.
func (p *Provisioner) Holders() []VmKey {
	keys := make([]VmKey, 0, len(p.byVm))
	for k := range p.byVm {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
