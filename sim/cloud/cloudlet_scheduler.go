package cloud

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// CloudletSchedulerPolicy selects how a VM shares its PEs among cloudlets.
type CloudletSchedulerPolicy string

const (
	// CloudletSchedulerTimeShared runs every submitted cloudlet at once,
	// splitting the VM's capacity when cloudlets need more PEs than it has.
	CloudletSchedulerTimeShared CloudletSchedulerPolicy = "time-shared"
	// CloudletSchedulerSpaceShared runs cloudlets FIFO with at most the VM's
	// PE count busy; the rest wait.
	CloudletSchedulerSpaceShared CloudletSchedulerPolicy = "space-shared"
)

var validCloudletSchedulerPolicies = map[CloudletSchedulerPolicy]bool{
	"":                           true,
	CloudletSchedulerTimeShared:  true,
	CloudletSchedulerSpaceShared: true,
}

// IsValidCloudletSchedulerPolicy reports whether name is a recognized policy.
// The empty string selects time-shared.
func IsValidCloudletSchedulerPolicy(name string) bool {
	return validCloudletSchedulerPolicies[CloudletSchedulerPolicy(name)]
}

// minTimeStep is the smallest projected remainder worth another event.
// Anything closer to completion finishes at the current update.
const minTimeStep = 1e-9

type cloudletSchedulerBehaviour struct {
	// admit places a newly submitted cloudlet as running or waiting.
	admit func(s *CloudletScheduler, cl *Cloudlet, now float64)
	// rate returns the MIPS a running cloudlet receives at time now.
	rate func(s *CloudletScheduler, cl *Cloudlet, now float64) float64
	// promote starts waiting cloudlets after capacity was freed.
	promote func(s *CloudletScheduler, now float64)
}

var cloudletSchedulerBehaviours = map[CloudletSchedulerPolicy]cloudletSchedulerBehaviour{
	CloudletSchedulerTimeShared: {
		admit:   timeSharedAdmit,
		rate:    timeSharedRate,
		promote: func(*CloudletScheduler, float64) {},
	},
	CloudletSchedulerSpaceShared: {
		admit:   spaceSharedAdmit,
		rate:    spaceSharedRate,
		promote: spaceSharedPromote,
	},
}

// CloudletScheduler executes cloudlets on the MIPS a VM has been granted.
// Progress is integrated piecewise: each Update credits every running
// cloudlet with elapsed time multiplied by the rate that held since the
// previous update.
type CloudletScheduler struct {
	policy    CloudletSchedulerPolicy
	behaviour cloudletSchedulerBehaviour
	vmPes     int

	mips       []float64
	lastUpdate float64
	running    []*Cloudlet
	waiting    []*Cloudlet
}

// NewCloudletScheduler creates a scheduler for a VM with vmPes PEs.
// Panics on an unknown policy.
func NewCloudletScheduler(policy CloudletSchedulerPolicy, vmPes int) *CloudletScheduler {
	if policy == "" {
		policy = CloudletSchedulerTimeShared
	}
	b, ok := cloudletSchedulerBehaviours[policy]
	if !ok {
		panic(fmt.Sprintf("unknown cloudlet scheduler policy %q", policy))
	}
	return &CloudletScheduler{policy: policy, behaviour: b, vmPes: vmPes}
}

// Policy returns the sharing policy.
func (s *CloudletScheduler) Policy() CloudletSchedulerPolicy { return s.policy }

// SetMips replaces the per-PE MIPS available to the VM. Callers advance the
// scheduler to the current time first so past progress uses the old share.
func (s *CloudletScheduler) SetMips(mips []float64) {
	s.mips = append([]float64(nil), mips...)
}

// Mips returns the per-PE MIPS currently granted.
func (s *CloudletScheduler) Mips() []float64 { return append([]float64(nil), s.mips...) }

// Submit accepts cl at time now, crediting running cloudlets up to now
// first. Callers should Advance to now beforehand so completions are
// collected at their exact time. A cloudlet needing more PEs than the VM has
// is marked failed and an error wrapping ErrProvisionerExhausted is returned.
func (s *CloudletScheduler) Submit(cl *Cloudlet, now float64) error {
	if cl.submissionTime < 0 {
		cl.submissionTime = now
	}
	if cl.Pes <= 0 || cl.Pes > s.vmPes {
		err := errors.Wrapf(ErrProvisionerExhausted, "cloudlet %d needs %d PEs, vm has %d", cl.ID, cl.Pes, s.vmPes)
		cl.end(CloudletFailed, now, err.Error())
		return err
	}
	if cl.Length <= 0 {
		cl.markStarted(now)
		cl.markFinished(now)
		return nil
	}
	s.credit(now)
	s.behaviour.admit(s, cl, now)
	return nil
}

// credit adds the progress made since the last update, at the rates that
// held over that interval, and moves lastUpdate to now.
func (s *CloudletScheduler) credit(now float64) {
	if elapsed := now - s.lastUpdate; elapsed > 0 {
		for _, cl := range s.running {
			cl.addProcessed(elapsed * s.behaviour.rate(s, cl, s.lastUpdate))
		}
		s.lastUpdate = now
	}
}

// Advance credits progress up to now and returns cloudlets that finished,
// in the order they were started.
func (s *CloudletScheduler) Advance(now float64) []*Cloudlet {
	s.credit(now)

	var finished []*Cloudlet
	kept := s.running[:0]
	for _, cl := range s.running {
		if s.finishedBy(cl, now) {
			cl.markFinished(now)
			finished = append(finished, cl)
			continue
		}
		kept = append(kept, cl)
	}
	s.running = kept
	if len(finished) > 0 {
		s.behaviour.promote(s, now)
	}
	return finished
}

// Update advances to now, installs mips when non-nil, and returns the
// earliest projected finish time (or -1 when nothing is running) together
// with the cloudlets that finished.
func (s *CloudletScheduler) Update(now float64, mips []float64) (float64, []*Cloudlet) {
	finished := s.Advance(now)
	if mips != nil {
		s.SetMips(mips)
	}
	next, ok := s.NextFinish(now)
	if !ok {
		next = -1
	}
	return next, finished
}

// NextFinish returns the earliest time a running cloudlet completes at the
// current rates.
func (s *CloudletScheduler) NextFinish(now float64) (float64, bool) {
	best := math.Inf(1)
	for _, cl := range s.running {
		r := s.behaviour.rate(s, cl, now)
		if r <= 0 {
			continue
		}
		if t := now + cl.Remaining()/r; t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	if best <= now {
		best = now + minTimeStep
	}
	return best, true
}

// Cancel credits progress up to now, then removes the cloudlet with the
// given id and marks it canceled.
func (s *CloudletScheduler) Cancel(id int, now float64) (*Cloudlet, bool) {
	s.credit(now)
	for _, list := range []*[]*Cloudlet{&s.running, &s.waiting} {
		for i, cl := range *list {
			if cl.ID == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				cl.end(CloudletCanceled, now, "canceled")
				s.behaviour.promote(s, now)
				return cl, true
			}
		}
	}
	return nil, false
}

// Drain credits progress up to now, removes every cloudlet, running first
// then waiting, and ends them with status.
func (s *CloudletScheduler) Drain(status CloudletStatus, now float64, reason string) []*Cloudlet {
	s.credit(now)
	out := append(append([]*Cloudlet(nil), s.running...), s.waiting...)
	s.running, s.waiting = nil, nil
	for _, cl := range out {
		cl.end(status, now, reason)
	}
	return out
}

// Running returns the number of executing cloudlets.
func (s *CloudletScheduler) Running() int { return len(s.running) }

// Waiting returns the number of queued cloudlets.
func (s *CloudletScheduler) Waiting() int { return len(s.waiting) }

// Empty reports whether no cloudlet is running or waiting.
func (s *CloudletScheduler) Empty() bool { return len(s.running)+len(s.waiting) == 0 }

// finishedBy reports whether cl has no meaningful work left at now.
func (s *CloudletScheduler) finishedBy(cl *Cloudlet, now float64) bool {
	if cl.done() {
		return true
	}
	r := s.behaviour.rate(s, cl, now)
	return r > 0 && cl.Remaining()/r <= minTimeStep*math.Max(1, now)
}

func (s *CloudletScheduler) totalMips() float64 {
	total := 0.0
	for _, m := range s.mips {
		total += m
	}
	return total
}

// --- time-shared ---

func timeSharedAdmit(s *CloudletScheduler, cl *Cloudlet, now float64) {
	cl.markStarted(now)
	s.running = append(s.running, cl)
}

func timeSharedRate(s *CloudletScheduler, cl *Cloudlet, now float64) float64 {
	requested := 0
	for _, c := range s.running {
		requested += c.Pes
	}
	slots := s.vmPes
	if requested > slots {
		slots = requested
	}
	if slots == 0 {
		return 0
	}
	perPe := s.totalMips() / float64(slots)
	return perPe * float64(cl.Pes) * cl.UtilizationCpu.Utilization(now)
}

// --- space-shared ---

func (s *CloudletScheduler) busyPes() int {
	busy := 0
	for _, c := range s.running {
		busy += c.Pes
	}
	return busy
}

func spaceSharedAdmit(s *CloudletScheduler, cl *Cloudlet, now float64) {
	if len(s.waiting) == 0 && s.busyPes()+cl.Pes <= s.vmPes {
		cl.markStarted(now)
		s.running = append(s.running, cl)
		return
	}
	cl.status = CloudletQueued
	s.waiting = append(s.waiting, cl)
}

func spaceSharedRate(s *CloudletScheduler, cl *Cloudlet, now float64) float64 {
	if len(s.mips) == 0 {
		return 0
	}
	mean := s.totalMips() / float64(len(s.mips))
	return mean * float64(cl.Pes) * cl.UtilizationCpu.Utilization(now)
}

func spaceSharedPromote(s *CloudletScheduler, now float64) {
	for len(s.waiting) > 0 {
		head := s.waiting[0]
		if s.busyPes()+head.Pes > s.vmPes {
			return
		}
		s.waiting = s.waiting[1:]
		head.markStarted(now)
		s.running = append(s.running, head)
	}
}
