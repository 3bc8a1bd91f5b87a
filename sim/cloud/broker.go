package cloud

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cloudlet-sim/cloudlet-sim/sim"
)

// tagSubmitPending asks a broker to flush lists handed to it mid-run.
const tagSubmitPending sim.Tag = "BROKER_SUBMIT_PENDING"

// BrokerConfig groups the parameters of one broker.
type BrokerConfig struct {
	Name string
	// DestroyVmsOnCompletion releases each VM once every cloudlet bound to it
	// has come back.
	DestroyVmsOnCompletion bool
}

// placedVm is a VM the broker got a positive acknowledgement for.
type placedVm struct {
	spec       VmSpec
	datacenter sim.EntityID
	host       int
	destroying bool
	destroyed  bool
}

// Broker acts for one user: it discovers datacenters, places VMs, submits
// cloudlets, and collects what comes back.
type Broker struct {
	sim.BaseEntity

	s   *sim.Simulation
	cfg BrokerConfig

	datacenters  []sim.EntityID
	infos        map[sim.EntityID]DatacenterInfo
	pendingInfos int
	discovered   bool

	vmQueue     []VmSpec // not yet requested
	attempts    map[int]int
	pendingAcks int
	created     map[int]*placedVm
	createOrder []int
	failedVms   map[int]string

	cloudletQueue []CloudletSpec // not yet submitted
	outstanding   map[int]int    // vm id -> cloudlets in flight
	inFlight      map[int]int    // cloudlet id -> vm id, until it returns
	roundRobin    int

	received []CloudletSnapshot
	failed   []CloudletSnapshot
	failures []error

	metrics *BrokerMetrics
}

// NewBroker creates a broker and registers it with s.
func NewBroker(s *sim.Simulation, cfg BrokerConfig) (*Broker, error) {
	b := &Broker{
		BaseEntity:  sim.NewBaseEntity(cfg.Name, KindBroker),
		s:           s,
		cfg:         cfg,
		infos:       make(map[sim.EntityID]DatacenterInfo),
		attempts:    make(map[int]int),
		created:     make(map[int]*placedVm),
		failedVms:   make(map[int]string),
		outstanding: make(map[int]int),
		inFlight:    make(map[int]int),
		metrics:     NewBrokerMetrics(s.Metrics(), cfg.Name),
	}
	if _, err := s.Register(b); err != nil {
		return nil, errors.Wrapf(err, "register broker %q", cfg.Name)
	}
	return b, nil
}

// SubmitVmList hands VMs to the broker. Before the run they are created at
// startup; during the run creation is enqueued at the current time.
func (b *Broker) SubmitVmList(vms []VmSpec) {
	for _, vm := range vms {
		vm.BrokerID = b.ID()
		b.vmQueue = append(b.vmQueue, vm)
	}
	b.wake()
}

// SubmitCloudletList hands cloudlets to the broker. They are submitted once
// every outstanding VM request has been acknowledged.
func (b *Broker) SubmitCloudletList(cloudlets []CloudletSpec) {
	b.cloudletQueue = append(b.cloudletQueue, cloudlets...)
	b.wake()
}

func (b *Broker) wake() {
	if b.s.Running() && b.discovered {
		b.s.Send(b.ID(), b.ID(), 0, tagSubmitPending, nil)
	}
}

// Startup asks every datacenter for its characteristics.
func (b *Broker) Startup(s *sim.Simulation) {
	b.datacenters = s.EntitiesOfKind(KindDatacenter)
	if len(b.datacenters) == 0 {
		logrus.Warnf("[t=%.4f] %s: no datacenters registered", s.Clock(), b.Name())
		b.discovered = true
		b.flush(s)
		return
	}
	b.pendingInfos = len(b.datacenters)
	for _, dc := range b.datacenters {
		s.Send(b.ID(), dc, 0, TagCharacteristicsRequest, nil)
	}
}

// Process handles one delivered event.
func (b *Broker) Process(s *sim.Simulation, ev sim.Event) {
	switch ev.Tag {
	case TagCharacteristics:
		info, ok := ev.Payload.(DatacenterInfo)
		if !ok {
			return
		}
		b.infos[info.ID] = info
		b.pendingInfos--
		logrus.Debugf("[t=%.4f] %s: datacenter %s has %d hosts, %d PEs", s.Clock(), b.Name(), info.Name, info.Hosts, info.Pes)
		if b.pendingInfos == 0 {
			b.discovered = true
			logrus.Infof("[t=%.4f] %s: discovered %d datacenters", s.Clock(), b.Name(), len(b.infos))
			b.flush(s)
		}
	case TagVmCreateAck:
		ack, ok := ev.Payload.(VmCreateAck)
		if ok {
			b.handleVmAck(s, ack)
		}
	case TagCloudletReturn:
		snap, ok := ev.Payload.(CloudletSnapshot)
		if ok {
			b.handleReturn(s, snap)
		}
	case TagVmDestroyAck:
		ack, ok := ev.Payload.(VmDestroyAck)
		if !ok {
			return
		}
		if p := b.created[ack.VmID]; ack.OK && p != nil {
			p.destroyed = true
			logrus.Infof("[t=%.4f] %s: vm %d destroyed in datacenter %d", s.Clock(), b.Name(), ack.VmID, ack.DatacenterID)
		}
	case tagSubmitPending:
		b.flush(s)
	default:
		logrus.Warnf("[t=%.4f] %s: ignoring unknown tag %s from %d", s.Clock(), b.Name(), ev.Tag, ev.Src)
	}
}

// flush requests queued VMs, or submits queued cloudlets when no VM
// acknowledgement is outstanding.
func (b *Broker) flush(s *sim.Simulation) {
	if len(b.vmQueue) > 0 && len(b.datacenters) > 0 {
		for _, vm := range b.vmQueue {
			b.requestVm(s, vm, 0)
		}
		b.vmQueue = nil
		return
	}
	for _, vm := range b.vmQueue {
		b.failedVms[vm.ID] = "no datacenters"
		b.metrics.VmFailed.Inc(1)
	}
	b.vmQueue = nil
	if b.pendingAcks == 0 {
		b.submitCloudlets(s)
	}
}

func (b *Broker) requestVm(s *sim.Simulation, vm VmSpec, attempt int) {
	dc := b.datacenters[attempt]
	b.attempts[vm.ID] = attempt
	b.pendingAcks++
	b.metrics.VmRequested.Inc(1)
	logrus.Debugf("[t=%.4f] %s: requesting vm %d in datacenter %d", s.Clock(), b.Name(), vm.ID, dc)
	s.Send(b.ID(), dc, 0, TagVmCreate, vm)
	b.created[vm.ID] = &placedVm{spec: vm, datacenter: sim.NoEntity, host: -1}
}

func (b *Broker) handleVmAck(s *sim.Simulation, ack VmCreateAck) {
	b.pendingAcks--
	p := b.created[ack.VmID]
	if p == nil {
		logrus.Warnf("[t=%.4f] %s: ack for unknown vm %d", s.Clock(), b.Name(), ack.VmID)
		return
	}
	if ack.OK {
		p.datacenter = ack.DatacenterID
		p.host = ack.HostID
		b.createOrder = append(b.createOrder, ack.VmID)
		b.metrics.VmCreated.Inc(1)
		logrus.Infof("[t=%.4f] %s: vm %d created in datacenter %d host %d", s.Clock(), b.Name(), ack.VmID, ack.DatacenterID, ack.HostID)
	} else if next := b.attempts[ack.VmID] + 1; next < len(b.datacenters) {
		logrus.Infof("[t=%.4f] %s: vm %d rejected by datacenter %d, retrying in %d", s.Clock(), b.Name(), ack.VmID, ack.DatacenterID, b.datacenters[next])
		b.requestVm(s, p.spec, next)
	} else {
		delete(b.created, ack.VmID)
		b.failedVms[ack.VmID] = ack.Reason
		b.metrics.VmFailed.Inc(1)
		logrus.Warnf("[t=%.4f] %s: vm %d could not be created: %s", s.Clock(), b.Name(), ack.VmID, ack.Reason)
	}
	if b.pendingAcks == 0 {
		b.submitCloudlets(s)
	}
}

func (b *Broker) submitCloudlets(s *sim.Simulation) {
	queue := b.cloudletQueue
	b.cloudletQueue = nil
	for _, cl := range queue {
		if cl.VmID == Unbound {
			live := b.liveVms()
			if len(live) == 0 {
				b.fail(s, cl, errors.Wrapf(ErrInvalidReference, "cloudlet %d: no vm available for unbound cloudlet", cl.ID))
				continue
			}
			cl.VmID = live[b.roundRobin%len(live)]
			b.roundRobin++
		}
		p, ok := b.created[cl.VmID]
		if !ok || p.datacenter == sim.NoEntity {
			b.fail(s, cl, errors.Wrapf(ErrInvalidReference, "cloudlet %d: vm %d was never created", cl.ID, cl.VmID))
			continue
		}
		if p.destroying {
			b.fail(s, cl, errors.Wrapf(ErrInvalidReference, "cloudlet %d: vm %d has been destroyed", cl.ID, cl.VmID))
			continue
		}
		b.outstanding[cl.VmID]++
		b.inFlight[cl.ID] = cl.VmID
		b.metrics.CloudletSubmitted.Inc(1)
		logrus.Debugf("[t=%.4f] %s: sending cloudlet %d to vm %d", s.Clock(), b.Name(), cl.ID, cl.VmID)
		s.Send(b.ID(), p.datacenter, 0, TagCloudletSubmit, cl)
	}
	if b.cfg.DestroyVmsOnCompletion {
		for _, id := range b.liveVms() {
			b.maybeDestroy(s, id)
		}
	}
}

// fail records a cloudlet the broker could not submit.
func (b *Broker) fail(s *sim.Simulation, cl CloudletSpec, err error) {
	logrus.Warnf("[t=%.4f] %s: %v", s.Clock(), b.Name(), err)
	b.failures = append(b.failures, err)
	b.metrics.InvalidReference.Inc(1)
	b.metrics.CloudletFailed.Inc(1)
	b.failed = append(b.failed, CloudletSnapshot{
		ID:             cl.ID,
		VmID:           cl.VmID,
		BrokerID:       b.ID(),
		DatacenterID:   sim.NoEntity,
		Status:         CloudletFailed,
		Length:         cl.Length,
		Pes:            cl.Pes,
		SubmissionTime: s.Clock(),
		StartTime:      -1,
		FinishTime:     s.Clock(),
		Reason:         err.Error(),
	})
}

func (b *Broker) handleReturn(s *sim.Simulation, snap CloudletSnapshot) {
	if snap.Status == CloudletFinished {
		b.received = append(b.received, snap)
		b.metrics.CloudletReceived.Inc(1)
		logrus.Infof("[t=%.4f] %s: cloudlet %d finished on vm %d", s.Clock(), b.Name(), snap.ID, snap.VmID)
	} else {
		b.failed = append(b.failed, snap)
		b.metrics.CloudletFailed.Inc(1)
		if snap.Reason != "" {
			b.failures = append(b.failures, errors.Errorf("cloudlet %d %s: %s", snap.ID, snap.Status, snap.Reason))
		}
		logrus.Infof("[t=%.4f] %s: cloudlet %d returned %s", s.Clock(), b.Name(), snap.ID, snap.Status)
	}
	delete(b.inFlight, snap.ID)
	if b.outstanding[snap.VmID] > 0 {
		b.outstanding[snap.VmID]--
	}
	if b.cfg.DestroyVmsOnCompletion {
		b.maybeDestroy(s, snap.VmID)
	}
}

// CancelCloudlet asks the datacenter running a submitted cloudlet to stop
// it; the cloudlet comes back as canceled. Only cloudlets already sent to a
// datacenter and not yet returned can be canceled.
func (b *Broker) CancelCloudlet(id int) error {
	vmID, ok := b.inFlight[id]
	if !ok || !b.s.Running() {
		return errors.Wrapf(ErrInvalidReference, "cloudlet %d is not running", id)
	}
	p := b.created[vmID]
	logrus.Debugf("[t=%.4f] %s: canceling cloudlet %d on vm %d", b.s.Clock(), b.Name(), id, vmID)
	b.s.Send(b.ID(), p.datacenter, 0, TagCloudletCancel, CloudletCancelRequest{CloudletID: id, VmID: vmID})
	return nil
}

func (b *Broker) maybeDestroy(s *sim.Simulation, vmID int) {
	p, ok := b.created[vmID]
	if !ok || p.destroying || p.datacenter == sim.NoEntity || b.outstanding[vmID] > 0 {
		return
	}
	p.destroying = true
	logrus.Debugf("[t=%.4f] %s: destroying idle vm %d", s.Clock(), b.Name(), vmID)
	s.Send(b.ID(), p.datacenter, 0, TagVmDestroy, VmDestroyRequest{VmID: vmID})
}

// liveVms returns created, not-yet-destroyed VM ids in creation order.
func (b *Broker) liveVms() []int {
	var ids []int
	for _, id := range b.createOrder {
		if p, ok := b.created[id]; ok && p.datacenter != sim.NoEntity && !p.destroying {
			ids = append(ids, id)
		}
	}
	return ids
}

// CloudletReceivedList returns snapshots of finished cloudlets in arrival order.
func (b *Broker) CloudletReceivedList() []CloudletSnapshot {
	return append([]CloudletSnapshot(nil), b.received...)
}

// CloudletFailedList returns snapshots of cloudlets that did not finish.
func (b *Broker) CloudletFailedList() []CloudletSnapshot {
	return append([]CloudletSnapshot(nil), b.failed...)
}

// Failures returns every error the broker observed, in order.
func (b *Broker) Failures() []error { return append([]error(nil), b.failures...) }

// CreatedVms returns the ids of VMs placed in some datacenter, sorted.
func (b *Broker) CreatedVms() []int {
	ids := append([]int(nil), b.createOrder...)
	sort.Ints(ids)
	return ids
}

// FailedVms returns the VMs no datacenter accepted, keyed by id.
func (b *Broker) FailedVms() map[int]string {
	out := make(map[int]string, len(b.failedVms))
	for k, v := range b.failedVms {
		out[k] = v
	}
	return out
}

// VmPlacement returns the datacenter and host a VM was created on.
func (b *Broker) VmPlacement(vmID int) (sim.EntityID, int, bool) {
	p, ok := b.created[vmID]
	if !ok || p.datacenter == sim.NoEntity {
		return sim.NoEntity, -1, false
	}
	return p.datacenter, p.host, true
}

// VmDestroyed reports whether a created VM has since been released.
func (b *Broker) VmDestroyed(vmID int) bool {
	p, ok := b.created[vmID]
	return ok && p.destroyed
}

// Datacenters returns the characteristics replies received, by ascending id.
func (b *Broker) Datacenters() []DatacenterInfo {
	out := make([]DatacenterInfo, 0, len(b.infos))
	for _, id := range b.datacenters {
		if info, ok := b.infos[id]; ok {
			out = append(out, info)
		}
	}
	return out
}
