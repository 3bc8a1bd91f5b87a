package cloud

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// HostConfig describes a physical machine.
type HostConfig struct {
	ID          int
	Ram         int64 // MB
	Bw          int64 // Mbps
	Storage     int64 // MB
	PeMips      []float64
	VmScheduler VmSchedulerPolicy
}

// Host owns PEs, RAM, bandwidth and storage and tracks the VMs placed on it.
type Host struct {
	id        int
	pes       []*Pe
	ram       *Provisioner
	bw        *Provisioner
	storage   int64
	freeDisk  int64
	scheduler *VmScheduler
	vms       map[VmKey]*Vm
}

// NewHost builds a host from cfg. Panics on an unknown VM scheduler policy.
func NewHost(cfg HostConfig) *Host {
	pes := NewPeList(cfg.PeMips...)
	return &Host{
		id:        cfg.ID,
		pes:       pes,
		ram:       NewRamProvisioner(cfg.Ram),
		bw:        NewBwProvisioner(cfg.Bw),
		storage:   cfg.Storage,
		freeDisk:  cfg.Storage,
		scheduler: NewVmScheduler(cfg.VmScheduler, pes),
		vms:       make(map[VmKey]*Vm),
	}
}

func (h *Host) ID() int { return h.id }
func (h *Host) Pes() []*Pe { return h.pes }
func (h *Host) NumPes() int { return len(h.pes) }
func (h *Host) Ram() *Provisioner { return h.ram }
func (h *Host) Bw() *Provisioner { return h.bw }
func (h *Host) Storage() int64 { return h.storage }
func (h *Host) FreeStorage() int64 { return h.freeDisk }
func (h *Host) VmScheduler() *VmScheduler { return h.scheduler }

// TotalMips returns the summed PE capacity.
func (h *Host) TotalMips() float64 { return h.scheduler.TotalMips() }

// FreePes returns PEs with no reservation.
func (h *Host) FreePes() int { return h.scheduler.FreePes() }

// Utilization returns allocated MIPS over total MIPS.
func (h *Host) Utilization() float64 {
	total := h.TotalMips()
	if total == 0 {
		return 0
	}
	return h.scheduler.AllocatedTotal() / total
}

// checkSuitable returns nil if the VM fits, otherwise an error wrapping
// ErrProvisionerExhausted that names the first resource that falls short.
func (h *Host) checkSuitable(spec VmSpec) error {
	key := spec.Key()
	if _, ok := h.vms[key]; ok {
		return errors.Errorf("vm %s already on host %d", key, h.id)
	}
	if spec.Size > h.freeDisk {
		return errors.Wrapf(ErrProvisionerExhausted, "host %d storage: need %d MB, free %d", h.id, spec.Size, h.freeDisk)
	}
	if !h.ram.IsSuitableForVm(key, spec.Ram) {
		return errors.Wrapf(ErrProvisionerExhausted, "host %d ram: need %d MB, free %d", h.id, spec.Ram, h.ram.Available())
	}
	if !h.bw.IsSuitableForVm(key, spec.Bw) {
		return errors.Wrapf(ErrProvisionerExhausted, "host %d bw: need %d, free %d", h.id, spec.Bw, h.bw.Available())
	}
	if err := h.scheduler.IsSuitable(spec); err != nil {
		return errors.Wrapf(err, "host %d pes", h.id)
	}
	return nil
}

// IsSuitableForVm reports whether storage, RAM, BW and PEs can all take the VM.
func (h *Host) IsSuitableForVm(spec VmSpec) bool {
	return h.checkSuitable(spec) == nil
}

// CreateVm reserves the VM's resources. On any refusal it rolls back the
// reservations made so far and returns an error wrapping ErrProvisionerExhausted.
func (h *Host) CreateVm(vm *Vm) error {
	spec := vm.VmSpec
	if err := h.checkSuitable(spec); err != nil {
		return err
	}
	key := spec.Key()
	if !h.ram.AllocateForVm(key, spec.Ram) {
		return errors.Wrapf(ErrProvisionerExhausted, "host %d ram refused vm %s", h.id, key)
	}
	if !h.bw.AllocateForVm(key, spec.Bw) {
		h.ram.DeallocateForVm(key)
		return errors.Wrapf(ErrProvisionerExhausted, "host %d bw refused vm %s", h.id, key)
	}
	if err := h.scheduler.Allocate(spec); err != nil {
		h.ram.DeallocateForVm(key)
		h.bw.DeallocateForVm(key)
		return errors.Wrapf(err, "host %d", h.id)
	}
	h.freeDisk -= spec.Size
	vm.host = h
	h.vms[key] = vm
	h.syncShares()
	return nil
}

// DestroyVm releases everything the VM holds and recomputes the remaining
// VMs' shares. Unknown VMs are ignored.
func (h *Host) DestroyVm(key VmKey) {
	vm, ok := h.vms[key]
	if !ok {
		return
	}
	h.scheduler.Release(key)
	h.ram.DeallocateForVm(key)
	h.bw.DeallocateForVm(key)
	h.freeDisk += vm.Size
	delete(h.vms, key)
	vm.host = nil
	h.syncShares()
}

// syncShares pushes the scheduler's current per-PE shares into each VM.
func (h *Host) syncShares() {
	for key, vm := range h.vms {
		vm.setAllocatedMips(h.scheduler.AllocatedMips(key))
	}
}

// Vms returns the VMs on this host sorted by key.
func (h *Host) Vms() []*Vm {
	out := make([]*Vm, 0, len(h.vms))
	for _, vm := range h.vms {
		out = append(out, vm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// Vm returns the VM with the given key, or nil.
func (h *Host) Vm(key VmKey) *Vm { return h.vms[key] }

func (h *Host) String() string {
	return fmt.Sprintf("Host(%d, %d PEs, %.0f MIPS, %s)", h.id, len(h.pes), h.TotalMips(), h.scheduler.Policy())
}
