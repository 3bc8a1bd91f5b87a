package cloud

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// AllocationPolicy chooses the host receiving each VM of a datacenter.
type AllocationPolicy interface {
	// AllocateHostForVm places vm and returns its host. The error wraps
	// ErrAllocationFailed when no host fits, or ErrProvisionerExhausted when
	// a suitable host then refused a reservation.
	AllocateHostForVm(vm *Vm) (*Host, error)
	// DeallocateHostForVm releases the VM's reservations. Unknown keys are ignored.
	DeallocateHostForVm(key VmKey)
	// HostOf returns the host holding the VM, or nil.
	HostOf(key VmKey) *Host
	Hosts() []*Host
	Name() string
}

// Allocation policy names.
const (
	AllocationFirstFit    = "first-fit"
	AllocationSimple      = "simple" // alias for first-fit
	AllocationBestFit     = "best-fit"
	AllocationLeastLoaded = "least-loaded"
)

// validAllocationPolicies maps each accepted name to a constructor.
var validAllocationPolicies = map[string]func(hosts []*Host) *hostChooser{
	"":                    newFirstFit,
	AllocationFirstFit:    newFirstFit,
	AllocationSimple:      newFirstFit,
	AllocationBestFit:     newBestFit,
	AllocationLeastLoaded: newLeastLoaded,
}

// IsValidAllocationPolicy reports whether name is a recognized policy.
func IsValidAllocationPolicy(name string) bool {
	_, ok := validAllocationPolicies[name]
	return ok
}

// ValidAllocationPolicyNames returns the canonical names, sorted.
func ValidAllocationPolicyNames() []string {
	names := make([]string, 0, len(validAllocationPolicies))
	for name := range validAllocationPolicies {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NewAllocationPolicy creates the named policy over hosts.
// Panics on an unknown name; validate with IsValidAllocationPolicy first.
func NewAllocationPolicy(name string, hosts []*Host) AllocationPolicy {
	ctor, ok := validAllocationPolicies[name]
	if !ok {
		panic(fmt.Sprintf("unknown allocation policy %q", name))
	}
	return ctor(hosts)
}

// hostChooser implements AllocationPolicy; variants differ only in how they
// rank suitable hosts.
type hostChooser struct {
	name   string
	hosts  []*Host
	placed map[VmKey]*Host
	// better reports whether candidate should replace current.
	better func(candidate, current *Host) bool
}

func newChooser(name string, hosts []*Host, better func(candidate, current *Host) bool) *hostChooser {
	sorted := append([]*Host(nil), hosts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })
	return &hostChooser{name: name, hosts: sorted, placed: make(map[VmKey]*Host), better: better}
}

func newFirstFit(hosts []*Host) *hostChooser {
	return newChooser(AllocationFirstFit, hosts, nil)
}

// newBestFit prefers the suitable host with the fewest free PEs.
func newBestFit(hosts []*Host) *hostChooser {
	return newChooser(AllocationBestFit, hosts, func(c, cur *Host) bool { return c.FreePes() < cur.FreePes() })
}

// newLeastLoaded prefers the suitable host with the most free PEs.
func newLeastLoaded(hosts []*Host) *hostChooser {
	return newChooser(AllocationLeastLoaded, hosts, func(c, cur *Host) bool { return c.FreePes() > cur.FreePes() })
}

func (p *hostChooser) Name() string { return p.name }
func (p *hostChooser) Hosts() []*Host { return append([]*Host(nil), p.hosts...) }
func (p *hostChooser) HostOf(key VmKey) *Host { return p.placed[key] }

func (p *hostChooser) AllocateHostForVm(vm *Vm) (*Host, error) {
	key := vm.Key()
	if h, ok := p.placed[key]; ok {
		return h, nil
	}
	var chosen *Host
	var lastErr error
	for _, h := range p.hosts {
		if err := h.checkSuitable(vm.VmSpec); err != nil {
			lastErr = err
			continue
		}
		if chosen == nil {
			chosen = h
			if p.better == nil {
				break
			}
			continue
		}
		if p.better(h, chosen) {
			chosen = h
		}
	}
	if chosen == nil {
		if lastErr == nil {
			return nil, errors.Wrapf(ErrAllocationFailed, "vm %s: datacenter has no hosts", key)
		}
		return nil, errors.Wrapf(ErrAllocationFailed, "vm %s: no suitable host (last: %v)", key, lastErr)
	}
	if err := chosen.CreateVm(vm); err != nil {
		return nil, errors.Wrapf(err, "vm %s", key)
	}
	p.placed[key] = chosen
	return chosen, nil
}

func (p *hostChooser) DeallocateHostForVm(key VmKey) {
	h, ok := p.placed[key]
	if !ok {
		return
	}
	h.DestroyVm(key)
	delete(p.placed, key)
}
