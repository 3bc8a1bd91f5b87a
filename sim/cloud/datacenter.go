package cloud

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cloudlet-sim/cloudlet-sim/sim"
	"github.com/cloudlet-sim/cloudlet-sim/sim/trace"
)

// DatacenterConfig groups the parameters of one datacenter.
type DatacenterConfig struct {
	Name             string
	Characteristics  Characteristics
	Hosts            []*Host
	AllocationPolicy string // "" selects first-fit
	// SchedulingInterval caps the spacing of processing ticks in simulated
	// seconds; 0 ticks only at projected cloudlet completions.
	SchedulingInterval float64
}

// Datacenter owns hosts and runs the cloudlets submitted to its VMs.
// It is idle when no VM has a running or waiting cloudlet.
type Datacenter struct {
	sim.BaseEntity

	characteristics Characteristics
	policy          AllocationPolicy
	interval        float64

	vms         map[VmKey]*Vm
	lastProcess float64
	tickPending bool
	tickAt      float64
	debts       map[sim.EntityID]float64

	metrics *DatacenterMetrics
}

// NewDatacenter creates a datacenter and registers it with s.
func NewDatacenter(s *sim.Simulation, cfg DatacenterConfig) (*Datacenter, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.Errorf("datacenter %q has no hosts", cfg.Name)
	}
	if !IsValidAllocationPolicy(cfg.AllocationPolicy) {
		return nil, errors.Errorf("datacenter %q: unknown allocation policy %q (valid: %v)", cfg.Name, cfg.AllocationPolicy, ValidAllocationPolicyNames())
	}
	if cfg.SchedulingInterval < 0 {
		return nil, errors.Errorf("datacenter %q: negative scheduling interval %v", cfg.Name, cfg.SchedulingInterval)
	}
	d := &Datacenter{
		BaseEntity:      sim.NewBaseEntity(cfg.Name, KindDatacenter),
		characteristics: cfg.Characteristics,
		policy:          NewAllocationPolicy(cfg.AllocationPolicy, cfg.Hosts),
		interval:        cfg.SchedulingInterval,
		vms:             make(map[VmKey]*Vm),
		debts:           make(map[sim.EntityID]float64),
		metrics:         NewDatacenterMetrics(s.Metrics(), cfg.Name),
	}
	if _, err := s.Register(d); err != nil {
		return nil, errors.Wrapf(err, "register datacenter %q", cfg.Name)
	}
	return d, nil
}

// Process handles one delivered event.
func (d *Datacenter) Process(s *sim.Simulation, ev sim.Event) {
	switch ev.Tag {
	case TagCharacteristicsRequest:
		s.Send(d.ID(), ev.Src, 0, TagCharacteristics, d.Info())
	case TagVmCreate:
		spec, ok := ev.Payload.(VmSpec)
		if !ok {
			logrus.Warnf("[t=%.4f] %s: VM_CREATE with payload %T", s.Clock(), d.Name(), ev.Payload)
			return
		}
		spec.BrokerID = ev.Src
		d.createVm(s, spec)
	case TagVmDestroy:
		req, ok := ev.Payload.(VmDestroyRequest)
		if !ok {
			logrus.Warnf("[t=%.4f] %s: VM_DESTROY with payload %T", s.Clock(), d.Name(), ev.Payload)
			return
		}
		d.destroyVm(s, VmKey{Owner: ev.Src, ID: req.VmID})
	case TagCloudletSubmit:
		spec, ok := ev.Payload.(CloudletSpec)
		if !ok {
			logrus.Warnf("[t=%.4f] %s: CLOUDLET_SUBMIT with payload %T", s.Clock(), d.Name(), ev.Payload)
			return
		}
		d.submitCloudlet(s, spec, ev.Src)
	case TagCloudletCancel:
		req, ok := ev.Payload.(CloudletCancelRequest)
		if !ok {
			logrus.Warnf("[t=%.4f] %s: CLOUDLET_CANCEL with payload %T", s.Clock(), d.Name(), ev.Payload)
			return
		}
		d.cancelCloudlet(s, VmKey{Owner: ev.Src, ID: req.VmID}, req.CloudletID)
	case TagVmDatacenterEvent:
		if ev.Time == d.tickAt {
			d.tickPending = false
		}
		d.metrics.Ticks.Inc(1)
		d.updateProcessing(s)
		d.scheduleTick(s)
	default:
		logrus.Warnf("[t=%.4f] %s: ignoring unknown tag %s from %d", s.Clock(), d.Name(), ev.Tag, ev.Src)
	}
}

func (d *Datacenter) createVm(s *sim.Simulation, spec VmSpec) {
	d.updateProcessing(s)

	vm := newVm(spec)
	host, err := d.policy.AllocateHostForVm(vm)
	ack := VmCreateAck{VmID: spec.ID, DatacenterID: d.ID(), HostID: -1, OK: err == nil}
	rec := trace.AllocationRecord{
		Time:         s.Clock(),
		DatacenterID: int(d.ID()),
		Policy:       d.policy.Name(),
		BrokerID:     int(spec.BrokerID),
		VmID:         spec.ID,
		HostID:       -1,
		Allocated:    err == nil,
	}
	if err != nil {
		ack.Reason = err.Error()
		rec.Reason = err.Error()
		d.metrics.VmRejected.Inc(1)
		logrus.Infof("[t=%.4f] %s: allocation of vm %s failed: %v", s.Clock(), d.Name(), spec.Key(), err)
	} else {
		vm.datacenter = d.ID()
		vm.createdAt = s.Clock()
		d.vms[spec.Key()] = vm
		d.debts[spec.BrokerID] += d.characteristics.VmCost(spec)
		ack.HostID = host.ID()
		rec.HostID = host.ID()
		d.metrics.VmAllocated.Inc(1)
		logrus.Infof("[t=%.4f] %s: vm %s placed on host %d", s.Clock(), d.Name(), spec.Key(), host.ID())
	}
	s.Trace().RecordAllocation(rec)
	s.Send(d.ID(), spec.BrokerID, 0, TagVmCreateAck, ack)
	// Shares on the host may have changed; re-plan the next completion.
	d.scheduleTick(s)
}

func (d *Datacenter) destroyVm(s *sim.Simulation, key VmKey) {
	d.updateProcessing(s)

	vm, ok := d.vms[key]
	if !ok {
		s.Send(d.ID(), key.Owner, 0, TagVmDestroyAck, VmDestroyAck{VmID: key.ID, DatacenterID: d.ID(), OK: false})
		return
	}
	for _, cl := range vm.scheduler.Drain(CloudletCanceled, s.Clock(), "vm destroyed") {
		d.returnCloudlet(s, cl)
	}
	// Submissions already in flight to this VM will never run.
	pending := s.Cancel(func(ev sim.Event) bool {
		if ev.Dst != d.ID() || ev.Src != key.Owner || ev.Tag != TagCloudletSubmit {
			return false
		}
		spec, ok := ev.Payload.(CloudletSpec)
		return ok && spec.VmID == key.ID
	})
	for _, ev := range pending {
		cl := NewCloudlet(ev.Payload.(CloudletSpec), key.Owner)
		cl.DatacenterID = d.ID()
		cl.submissionTime = s.Clock()
		cl.end(CloudletCanceled, s.Clock(), "vm destroyed before submission")
		d.returnCloudlet(s, cl)
	}

	d.policy.DeallocateHostForVm(key)
	delete(d.vms, key)
	d.metrics.VmDestroyed.Inc(1)
	logrus.Infof("[t=%.4f] %s: vm %s destroyed", s.Clock(), d.Name(), key)
	s.Send(d.ID(), key.Owner, 0, TagVmDestroyAck, VmDestroyAck{VmID: key.ID, DatacenterID: d.ID(), OK: true})
	d.scheduleTick(s)
}

// cancelCloudlet stops a running or waiting cloudlet, or one whose submission
// is still in flight, and returns it as canceled.
func (d *Datacenter) cancelCloudlet(s *sim.Simulation, key VmKey, cloudletID int) {
	d.updateProcessing(s)

	if vm, ok := d.vms[key]; ok {
		if cl, found := vm.scheduler.Cancel(cloudletID, s.Clock()); found {
			logrus.Infof("[t=%.4f] %s: cloudlet %d on vm %s canceled", s.Clock(), d.Name(), cloudletID, key)
			d.returnCloudlet(s, cl)
			d.scheduleTick(s)
			return
		}
	}
	pending := s.Cancel(func(ev sim.Event) bool {
		if ev.Dst != d.ID() || ev.Src != key.Owner || ev.Tag != TagCloudletSubmit {
			return false
		}
		spec, ok := ev.Payload.(CloudletSpec)
		return ok && spec.ID == cloudletID && spec.VmID == key.ID
	})
	for _, ev := range pending {
		cl := NewCloudlet(ev.Payload.(CloudletSpec), key.Owner)
		cl.DatacenterID = d.ID()
		cl.submissionTime = s.Clock()
		cl.end(CloudletCanceled, s.Clock(), "canceled before submission")
		d.returnCloudlet(s, cl)
	}
	if len(pending) == 0 {
		logrus.Warnf("[t=%.4f] %s: cancel for unknown cloudlet %d on vm %s", s.Clock(), d.Name(), cloudletID, key)
	}
}

func (d *Datacenter) submitCloudlet(s *sim.Simulation, spec CloudletSpec, broker sim.EntityID) {
	d.updateProcessing(s)

	cl := NewCloudlet(spec, broker)
	cl.DatacenterID = d.ID()
	d.metrics.CloudletSubmitted.Inc(1)

	vm, ok := d.vms[cl.VmKey()]
	if !ok {
		err := errors.Wrapf(ErrInvalidReference, "cloudlet %d: vm %d of broker %d is not in datacenter %s", spec.ID, spec.VmID, broker, d.Name())
		logrus.Warnf("[t=%.4f] %v", s.Clock(), err)
		cl.submissionTime = s.Clock()
		cl.end(CloudletFailed, s.Clock(), err.Error())
		d.returnCloudlet(s, cl)
		return
	}
	if err := vm.scheduler.Submit(cl, s.Clock()); err != nil {
		logrus.Warnf("[t=%.4f] %s: %v", s.Clock(), d.Name(), err)
		d.returnCloudlet(s, cl)
		return
	}
	if cl.Status() == CloudletFinished {
		d.returnCloudlet(s, cl)
		return
	}
	logrus.Debugf("[t=%.4f] %s: cloudlet %d %s on vm %s", s.Clock(), d.Name(), cl.ID, cl.Status(), vm.Key())
	d.scheduleTick(s)
}

// updateProcessing advances every VM's cloudlets to the current clock and
// returns the ones that finished.
func (d *Datacenter) updateProcessing(s *sim.Simulation) {
	now := s.Clock()
	if now < d.lastProcess {
		return
	}
	d.lastProcess = now
	running := 0
	for _, vm := range d.sortedVms() {
		_, finished := vm.scheduler.Update(now, nil)
		for _, cl := range finished {
			d.returnCloudlet(s, cl)
		}
		running += vm.scheduler.Running()
	}
	d.metrics.RunningCloudlets.Update(float64(running))
}

// scheduleTick keeps exactly one pending tick at the earliest projected
// completion, or none when the datacenter is idle.
func (d *Datacenter) scheduleTick(s *sim.Simulation) {
	now := s.Clock()
	next, ok := d.nextFinish(now)
	if ok && d.interval > 0 && next > now+d.interval {
		next = now + d.interval
	}
	if d.tickPending && ok && next == d.tickAt {
		return
	}
	if d.tickPending {
		s.Cancel(func(ev sim.Event) bool {
			return ev.Src == d.ID() && ev.Dst == d.ID() && ev.Tag == TagVmDatacenterEvent
		})
		d.tickPending = false
	}
	if !ok {
		return
	}
	d.tickPending = true
	d.tickAt = next
	s.Send(d.ID(), d.ID(), next-now, TagVmDatacenterEvent, nil)
}

func (d *Datacenter) nextFinish(now float64) (float64, bool) {
	best, found := 0.0, false
	for _, vm := range d.vms {
		if t, ok := vm.scheduler.NextFinish(now); ok && (!found || t < best) {
			best, found = t, true
		}
	}
	return best, found
}

func (d *Datacenter) returnCloudlet(s *sim.Simulation, cl *Cloudlet) {
	if cl.startTime >= 0 && cl.finishTime >= cl.startTime {
		cl.cost = d.characteristics.CloudletCost(cl.finishTime-cl.startTime, cl.FileSize, cl.OutputSize)
		d.debts[cl.BrokerID] += cl.cost
	}
	s.Trace().RecordCloudlet(trace.CloudletRecord{
		Time:         s.Clock(),
		DatacenterID: int(d.ID()),
		CloudletID:   cl.ID,
		VmID:         cl.VmID,
		Status:       string(cl.Status()),
		StartTime:    cl.startTime,
		FinishTime:   cl.finishTime,
	})
	d.metrics.CloudletReturned(cl.Status())
	logrus.Debugf("[t=%.4f] %s: returning cloudlet %d (%s) to %d", s.Clock(), d.Name(), cl.ID, cl.Status(), cl.BrokerID)
	s.Send(d.ID(), cl.BrokerID, 0, TagCloudletReturn, cl.Snapshot())
}

// Shutdown credits progress up to the final clock and returns every
// unfinished cloudlet as incomplete.
func (d *Datacenter) Shutdown(s *sim.Simulation) {
	d.updateProcessing(s)
	d.tickPending = false
	for _, vm := range d.sortedVms() {
		for _, cl := range vm.scheduler.Drain(CloudletIncomplete, s.Clock(), "simulation ended") {
			d.returnCloudlet(s, cl)
		}
	}
}

func (d *Datacenter) sortedVms() []*Vm {
	out := make([]*Vm, 0, len(d.vms))
	for _, vm := range d.vms {
		out = append(out, vm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// Info describes the datacenter for characteristics replies.
func (d *Datacenter) Info() DatacenterInfo {
	info := DatacenterInfo{ID: d.ID(), Name: d.Name(), Characteristics: d.characteristics}
	for _, h := range d.policy.Hosts() {
		info.Hosts++
		info.Pes += h.NumPes()
		info.TotalMips += h.TotalMips()
	}
	return info
}

// Processing reports whether any VM still has cloudlets.
func (d *Datacenter) Processing() bool {
	for _, vm := range d.vms {
		if !vm.scheduler.Empty() {
			return true
		}
	}
	return false
}

// Characteristics returns the datacenter's price list.
func (d *Datacenter) Characteristics() Characteristics { return d.characteristics }

// Policy returns the allocation policy.
func (d *Datacenter) Policy() AllocationPolicy { return d.policy }

// Hosts returns the hosts in ascending id order.
func (d *Datacenter) Hosts() []*Host { return d.policy.Hosts() }

// Vm returns a VM hosted here, or nil.
func (d *Datacenter) Vm(key VmKey) *Vm { return d.vms[key] }

// Vms returns the hosted VMs sorted by key.
func (d *Datacenter) Vms() []*Vm { return d.sortedVms() }

// Debt returns what the broker owes for VMs and cloudlets run here.
func (d *Datacenter) Debt(broker sim.EntityID) float64 { return d.debts[broker] }
