package cloud

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// VmSchedulerPolicy selects how a host shares its PEs among VMs.
type VmSchedulerPolicy string

const (
	// VmSchedulerTimeShared gives each VM an equal slice of the host's MIPS,
	// capacity/n for n VMs, capped at what the VM requested.
	VmSchedulerTimeShared VmSchedulerPolicy = "time-shared"
	// VmSchedulerTimeSharedProportional grants full requests until the host is
	// oversubscribed, then scales every request by capacity/requested.
	VmSchedulerTimeSharedProportional VmSchedulerPolicy = "time-shared-proportional"
	// VmSchedulerSpaceShared gives each VM whole PEs exclusively.
	VmSchedulerSpaceShared VmSchedulerPolicy = "space-shared"
)

var validVmSchedulerPolicies = map[VmSchedulerPolicy]bool{
	"":                                true,
	VmSchedulerTimeShared:             true,
	VmSchedulerTimeSharedProportional: true,
	VmSchedulerSpaceShared:            true,
}

// IsValidVmSchedulerPolicy reports whether name is a recognized policy.
// The empty string selects time-shared.
func IsValidVmSchedulerPolicy(name string) bool {
	return validVmSchedulerPolicies[VmSchedulerPolicy(name)]
}

// vmSchedulerBehaviour is the per-policy table dispatched by VmScheduler.
type vmSchedulerBehaviour struct {
	suitable func(s *VmScheduler, spec VmSpec) error
	allocate func(s *VmScheduler, spec VmSpec) error
	release  func(s *VmScheduler, key VmKey)
	// grant returns the total MIPS each VM receives; time-shared policies only.
	grant func(s *VmScheduler) func(r vmRequest) float64
}

var vmSchedulerBehaviours = map[VmSchedulerPolicy]vmSchedulerBehaviour{
	VmSchedulerTimeShared: {
		suitable: timeSharedSuitable,
		allocate: timeSharedAllocate,
		release:  timeSharedRelease,
		grant:    equalGrant,
	},
	VmSchedulerTimeSharedProportional: {
		suitable: timeSharedSuitable,
		allocate: timeSharedAllocate,
		release:  timeSharedRelease,
		grant:    proportionalGrant,
	},
	VmSchedulerSpaceShared: {
		suitable: spaceSharedSuitable,
		allocate: spaceSharedAllocate,
		release:  spaceSharedRelease,
	},
}

// vmRequest is what a VM asked the scheduler for.
type vmRequest struct {
	mips float64
	pes  int
}

// VmScheduler maps VMs onto the PEs of one host.
type VmScheduler struct {
	policy    VmSchedulerPolicy
	behaviour vmSchedulerBehaviour
	pes       []*Pe

	order     []VmKey // admission order; drives deterministic packing
	requests  map[VmKey]vmRequest
	allocated map[VmKey][]float64 // MIPS per virtual PE
	exclusive map[VmKey][]int     // space-shared: indices into pes
}

// NewVmScheduler creates a scheduler over pes. Panics on an unknown policy.
func NewVmScheduler(policy VmSchedulerPolicy, pes []*Pe) *VmScheduler {
	if policy == "" {
		policy = VmSchedulerTimeShared
	}
	b, ok := vmSchedulerBehaviours[policy]
	if !ok {
		panic(fmt.Sprintf("unknown vm scheduler policy %q", policy))
	}
	return &VmScheduler{
		policy:    policy,
		behaviour: b,
		pes:       pes,
		requests:  make(map[VmKey]vmRequest),
		allocated: make(map[VmKey][]float64),
		exclusive: make(map[VmKey][]int),
	}
}

// Policy returns the sharing policy.
func (s *VmScheduler) Policy() VmSchedulerPolicy { return s.policy }

// IsSuitable returns nil if the VM could be admitted now, or an error
// wrapping ErrProvisionerExhausted naming the shortfall.
func (s *VmScheduler) IsSuitable(spec VmSpec) error {
	if spec.Pes <= 0 || spec.Mips <= 0 {
		return errors.Wrapf(ErrProvisionerExhausted, "vm %s requests %d PEs at %.2f MIPS", spec.Key(), spec.Pes, spec.Mips)
	}
	if _, dup := s.requests[spec.Key()]; dup {
		return errors.Errorf("vm %s already scheduled", spec.Key())
	}
	return s.behaviour.suitable(s, spec)
}

// Allocate admits the VM and recomputes shares.
func (s *VmScheduler) Allocate(spec VmSpec) error {
	if err := s.IsSuitable(spec); err != nil {
		return err
	}
	return s.behaviour.allocate(s, spec)
}

// Release removes the VM and recomputes shares for the remaining VMs.
func (s *VmScheduler) Release(key VmKey) {
	if _, ok := s.requests[key]; !ok {
		return
	}
	delete(s.requests, key)
	delete(s.allocated, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.behaviour.release(s, key)
}

// AllocatedMips returns the MIPS granted to each virtual PE of the VM.
func (s *VmScheduler) AllocatedMips(key VmKey) []float64 {
	return append([]float64(nil), s.allocated[key]...)
}

// Vms returns admitted VMs in admission order.
func (s *VmScheduler) Vms() []VmKey { return append([]VmKey(nil), s.order...) }

// TotalMips returns the summed capacity of all PEs.
func (s *VmScheduler) TotalMips() float64 {
	total := 0.0
	for _, pe := range s.pes {
		total += pe.Mips()
	}
	return total
}

// AllocatedTotal returns the MIPS reserved across all PEs.
func (s *VmScheduler) AllocatedTotal() float64 {
	total := 0.0
	for _, pe := range s.pes {
		total += pe.provisioner.Allocated()
	}
	return total
}

// FreePes returns the number of PEs with no reservation.
func (s *VmScheduler) FreePes() int {
	n := 0
	for _, pe := range s.pes {
		if pe.status == PeFree {
			n++
		}
	}
	return n
}

func (s *VmScheduler) maxPeMips() float64 {
	largest := 0.0
	for _, pe := range s.pes {
		if pe.Mips() > largest {
			largest = pe.Mips()
		}
	}
	return largest
}

func (s *VmScheduler) admit(spec VmSpec) {
	key := spec.Key()
	s.order = append(s.order, key)
	s.requests[key] = vmRequest{mips: spec.Mips, pes: spec.Pes}
}

// --- time-shared ---

func timeSharedSuitable(s *VmScheduler, spec VmSpec) error {
	if spec.Pes > len(s.pes) {
		return errors.Wrapf(ErrProvisionerExhausted, "vm %s needs %d PEs, host has %d", spec.Key(), spec.Pes, len(s.pes))
	}
	if largest := s.maxPeMips(); spec.Mips > largest+mipsEpsilon {
		return errors.Wrapf(ErrProvisionerExhausted, "vm %s needs %.2f MIPS per PE, largest PE has %.2f", spec.Key(), spec.Mips, largest)
	}
	return nil
}

func timeSharedAllocate(s *VmScheduler, spec VmSpec) error {
	s.admit(spec)
	s.rebalance()
	return nil
}

func timeSharedRelease(s *VmScheduler, _ VmKey) {
	s.rebalance()
}

// equalGrant caps each VM at capacity/n, n being the number of admitted VMs.
// Capacity a VM leaves unused is not handed to the others.
func equalGrant(s *VmScheduler) func(r vmRequest) float64 {
	fair := 0.0
	if n := len(s.order); n > 0 {
		fair = s.TotalMips() / float64(n)
	}
	return func(r vmRequest) float64 {
		return math.Min(r.mips*float64(r.pes), fair)
	}
}

// proportionalGrant scales every request by capacity/requested once the
// requested total exceeds capacity.
func proportionalGrant(s *VmScheduler) func(r vmRequest) float64 {
	capacity := s.TotalMips()
	requested := 0.0
	for _, key := range s.order {
		r := s.requests[key]
		requested += r.mips * float64(r.pes)
	}
	scale := 1.0
	if requested > capacity && requested > 0 {
		scale = capacity / requested
	}
	return func(r vmRequest) float64 {
		return r.mips * float64(r.pes) * scale
	}
}

// rebalance recomputes every VM's share and repacks the PE provisioners.
// A VM's grant is split evenly over its virtual PEs.
func (s *VmScheduler) rebalance() {
	grant := s.behaviour.grant(s)

	for _, pe := range s.pes {
		pe.provisioner.DeallocateAll()
		pe.status = PeFree
	}

	peIdx := 0
	for _, key := range s.order {
		r := s.requests[key]
		share := grant(r) / float64(r.pes)
		shares := make([]float64, r.pes)
		for v := range shares {
			shares[v] = share
			remaining := share
			for remaining > mipsEpsilon && peIdx < len(s.pes) {
				prov := s.pes[peIdx].provisioner
				take := remaining
				if take > prov.Available() {
					take = prov.Available()
				}
				if take > mipsEpsilon {
					prov.AllocateForVm(key, take)
					s.pes[peIdx].status = PeAllocated
					remaining -= take
				}
				if prov.Available() <= mipsEpsilon {
					peIdx++
				}
			}
		}
		s.allocated[key] = shares
	}
}

// --- space-shared ---

func spaceSharedSuitable(s *VmScheduler, spec VmSpec) error {
	if got := len(s.freePesFor(spec.Mips)); got < spec.Pes {
		return errors.Wrapf(ErrProvisionerExhausted, "vm %s needs %d free PEs of %.2f MIPS, host has %d", spec.Key(), spec.Pes, spec.Mips, got)
	}
	return nil
}

func spaceSharedAllocate(s *VmScheduler, spec VmSpec) error {
	key := spec.Key()
	free := s.freePesFor(spec.Mips)[:spec.Pes]
	shares := make([]float64, spec.Pes)
	for i, idx := range free {
		pe := s.pes[idx]
		if !pe.provisioner.AllocateForVm(key, spec.Mips) {
			for _, undo := range free[:i] {
				s.pes[undo].provisioner.DeallocateForVm(key)
				s.pes[undo].status = PeFree
			}
			return errors.Wrapf(ErrProvisionerExhausted, "pe %d refused %.2f MIPS for vm %s", pe.ID, spec.Mips, key)
		}
		pe.status = PeAllocated
		shares[i] = spec.Mips
	}
	s.admit(spec)
	s.allocated[key] = shares
	s.exclusive[key] = free
	return nil
}

func spaceSharedRelease(s *VmScheduler, key VmKey) {
	for _, idx := range s.exclusive[key] {
		s.pes[idx].provisioner.DeallocateForVm(key)
		s.pes[idx].status = PeFree
	}
	delete(s.exclusive, key)
}

// freePesFor returns indices of free PEs whose capacity covers mips.
func (s *VmScheduler) freePesFor(mips float64) []int {
	var idx []int
	for i, pe := range s.pes {
		if pe.status == PeFree && pe.Mips()+mipsEpsilon >= mips {
			idx = append(idx, i)
		}
	}
	return idx
}
