package sim

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/cloudlet-sim/cloudlet-sim/sim/trace"
)

// ErrSimulationState is returned when the Simulation API is used out of order,
// for example starting twice or registering entities after the run began.
var ErrSimulationState = errors.New("simulation state error")

// State is the lifecycle state of a Simulation.
type State string

const (
	StateCreated  State = "created"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateStopped  State = "stopped"
)

// Config groups the parameters of one simulation run.
type Config struct {
	NumUsers int       // Number of brokers expected; informational
	Calendar time.Time // Wall-clock start recorded for reports; zero means time.Now()
	Trace    trace.TraceConfig
	Horizon  float64 // Maximum simulated time in seconds; 0 = unlimited
	Seed     int64
	RunID    string      // Generated when empty
	Metrics  tally.Scope // nil = tally.NoopScope
}

// Simulation owns the clock, the event queue and every registered entity.
// Entities receive it in Process and use it to send events; there is no
// process-wide simulation state.
type Simulation struct {
	cfg   Config
	runID string
	state State

	clock     Clock
	queue     *EventQueue
	mailboxes []*mailbox
	byKind    map[string][]EntityID

	rng     *PartitionedRNG
	trace   *trace.SimulationTrace
	scope   tally.Scope
	metrics *kernelMetrics

	stopRequested bool
	shuttingDown  bool
	dispatched    int64
}

// NewSimulation creates a Simulation in StateCreated.
func NewSimulation(cfg Config) *Simulation {
	if cfg.Calendar.IsZero() {
		cfg.Calendar = time.Now()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	scope := cfg.Metrics
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Simulation{
		cfg:     cfg,
		runID:   cfg.RunID,
		state:   StateCreated,
		queue:   NewEventQueue(),
		byKind:  make(map[string][]EntityID),
		rng:     NewPartitionedRNG(cfg.Seed),
		trace:   trace.NewSimulationTrace(cfg.Trace),
		scope:   scope,
		metrics: newKernelMetrics(scope),
	}
}

// Register assigns the next EntityID to e and gives it a mailbox.
// Entities must embed BaseEntity and register before Start.
func (s *Simulation) Register(e Entity) (EntityID, error) {
	if s.state != StateCreated {
		return NoEntity, fmt.Errorf("%w: register %q in state %s", ErrSimulationState, e.Name(), s.state)
	}
	r, ok := e.(registrable)
	if !ok {
		return NoEntity, fmt.Errorf("entity %q does not embed sim.BaseEntity", e.Name())
	}
	if r.ID() != NoEntity {
		return NoEntity, fmt.Errorf("entity %q already registered as %d", e.Name(), r.ID())
	}
	id := EntityID(len(s.mailboxes))
	r.bind(id)
	s.mailboxes = append(s.mailboxes, &mailbox{entity: e})
	s.byKind[e.Kind()] = append(s.byKind[e.Kind()], id)
	logrus.Debugf("registered %s %q as entity %d", e.Kind(), e.Name(), id)
	return id, nil
}

// Send schedules an event from src to dst after delay simulated seconds.
// During shutdown only zero-delay events are accepted; later ones are dropped.
// Panics on a negative delay or an unknown destination.
func (s *Simulation) Send(src, dst EntityID, delay float64, tag Tag, payload any) {
	if delay < 0 {
		panic(fmt.Sprintf("Send: negative delay %v for %s", delay, tag))
	}
	if int(dst) < 0 || int(dst) >= len(s.mailboxes) {
		panic(fmt.Sprintf("Send: unknown destination entity %d for %s", dst, tag))
	}
	if s.shuttingDown && delay > 0 {
		logrus.Debugf("[t=%.4f] dropping %s to %d scheduled during shutdown", s.clock.Now(), tag, dst)
		s.metrics.EventsDropped.Inc(1)
		return
	}
	s.queue.Schedule(Event{
		Time:    s.clock.Now() + delay,
		Src:     src,
		Dst:     dst,
		Tag:     tag,
		Payload: payload,
	})
	s.metrics.EventsScheduled.Inc(1)
}

// Cancel removes pending events matching the predicate and returns them.
func (s *Simulation) Cancel(match func(Event) bool) []Event {
	removed := s.queue.Cancel(match)
	if len(removed) > 0 {
		s.metrics.EventsCancelled.Inc(int64(len(removed)))
	}
	return removed
}

// Start runs the event loop until the queue drains, the horizon passes, or an
// entity calls Stop. It returns ErrSimulationState unless the simulation is in
// StateCreated.
func (s *Simulation) Start() error {
	if s.state != StateCreated {
		return fmt.Errorf("%w: start in state %s", ErrSimulationState, s.state)
	}
	if len(s.mailboxes) == 0 {
		return fmt.Errorf("%w: start with no registered entities", ErrSimulationState)
	}
	s.state = StateRunning
	wallStart := time.Now()
	logrus.Infof("Starting simulation %s with %d entities, horizon=%v", s.runID, len(s.mailboxes), s.cfg.Horizon)

	for _, mb := range s.mailboxes {
		if st, ok := mb.entity.(Starter); ok {
			st.Startup(s)
		}
	}

	s.loop()
	s.finish()

	s.metrics.RunDuration.Record(time.Since(wallStart))
	if s.stopRequested {
		s.state = StateStopped
	} else {
		s.state = StateFinished
	}
	logrus.Infof("[t=%.4f] Simulation %s ended after %d events (%s)", s.clock.Now(), s.runID, s.dispatched, s.state)
	return nil
}

func (s *Simulation) loop() {
	for !s.stopRequested {
		ev, ok := s.queue.Peek()
		if !ok {
			return
		}
		if s.cfg.Horizon > 0 && ev.Time > s.cfg.Horizon {
			s.clock.AdvanceTo(s.cfg.Horizon)
			logrus.Infof("[t=%.4f] Horizon reached with %d pending events", s.clock.Now(), s.queue.Len())
			return
		}
		s.queue.Next()
		s.clock.AdvanceTo(ev.Time)
		s.dispatch(ev)
	}
}

// finish purges events later than the clock, delivers the ones already due,
// lets entities flush through Shutdown and delivers whatever they sent at the
// final clock value. Sends with a positive delay are dropped from here on.
func (s *Simulation) finish() {
	now := s.clock.Now()
	if purged := s.queue.Cancel(func(ev Event) bool { return ev.Time > now }); len(purged) > 0 {
		s.metrics.EventsCancelled.Inc(int64(len(purged)))
		logrus.Debugf("[t=%.4f] purged %d pending events", now, len(purged))
	}
	s.shuttingDown = true
	s.drainDue()
	for _, mb := range s.mailboxes {
		if st, ok := mb.entity.(Stopper); ok {
			st.Shutdown(s)
		}
	}
	s.drainDue()
}

func (s *Simulation) drainDue() {
	for {
		ev, ok := s.queue.Next()
		if !ok {
			return
		}
		s.dispatch(ev)
	}
}

func (s *Simulation) dispatch(ev Event) {
	logrus.Debugf("[t=%.4f] Executing %s", s.clock.Now(), ev)
	s.trace.RecordEvent(trace.EventRecord{
		Time: ev.Time,
		Seq:  ev.Seq,
		Src:  int(ev.Src),
		Dst:  int(ev.Dst),
		Tag:  string(ev.Tag),
	})
	mb := s.mailboxes[ev.Dst]
	mb.deliver(ev)
	mb.drain(s)
	s.dispatched++
	s.metrics.EventsDispatched.Inc(1)
	s.metrics.QueueDepth.Update(float64(s.queue.Len()))
}

// Stop ends the simulation. Called from a handler while running, the loop
// halts after the current event and Start leaves the simulation in
// StateStopped. Called after Start returned, it tears the simulation down.
// Stopping twice returns ErrSimulationState.
func (s *Simulation) Stop() error {
	switch s.state {
	case StateRunning:
		if s.stopRequested {
			return fmt.Errorf("%w: stop already requested", ErrSimulationState)
		}
		s.stopRequested = true
		logrus.Infof("[t=%.4f] Stop requested", s.clock.Now())
		return nil
	case StateCreated, StateFinished:
		s.state = StateStopped
		return nil
	default:
		return fmt.Errorf("%w: stop in state %s", ErrSimulationState, s.state)
	}
}

// Clock returns the current simulated time.
func (s *Simulation) Clock() float64 { return s.clock.Now() }

// State returns the lifecycle state.
func (s *Simulation) State() State { return s.state }

// Running reports whether the event loop is active.
func (s *Simulation) Running() bool { return s.state == StateRunning }

// RunID returns the run identifier.
func (s *Simulation) RunID() string { return s.runID }

// Config returns the configuration the simulation was created with.
func (s *Simulation) Config() Config { return s.cfg }

// RNG returns the partitioned RNG seeded from Config.Seed.
func (s *Simulation) RNG() *PartitionedRNG { return s.rng }

// Trace returns the trace, or nil when tracing is disabled.
func (s *Simulation) Trace() *trace.SimulationTrace { return s.trace }

// Metrics returns the simulation's metrics scope.
func (s *Simulation) Metrics() tally.Scope { return s.scope }

// Pending returns the number of queued events.
func (s *Simulation) Pending() int { return s.queue.Len() }

// Dispatched returns the number of events delivered so far.
func (s *Simulation) Dispatched() int64 { return s.dispatched }

// EntitiesOfKind returns the ids of entities of the given kind in ascending order.
func (s *Simulation) EntitiesOfKind(kind string) []EntityID {
	ids := append([]EntityID(nil), s.byKind[kind]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EntityName returns the name of a registered entity, or "" if unknown.
func (s *Simulation) EntityName(id EntityID) string {
	if int(id) < 0 || int(id) >= len(s.mailboxes) {
		return ""
	}
	return s.mailboxes[id].entity.Name()
}
