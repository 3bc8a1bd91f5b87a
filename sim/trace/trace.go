package trace

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures VM allocation decisions and cloudlet outcomes.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelEvents captures decisions plus every dispatched event.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	TraceLevelEvents:    true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a simulation run.
// A nil *SimulationTrace is valid and records nothing.
type SimulationTrace struct {
	Config      TraceConfig
	Events      []EventRecord
	Allocations []AllocationRecord
	Cloudlets   []CloudletRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
// Returns nil for TraceLevelNone so callers pay nothing when tracing is off.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	if config.Level == "" || config.Level == TraceLevelNone {
		return nil
	}
	return &SimulationTrace{
		Config:      config,
		Events:      make([]EventRecord, 0),
		Allocations: make([]AllocationRecord, 0),
		Cloudlets:   make([]CloudletRecord, 0),
	}
}

// RecordEvent appends a dispatched-event record when the level is TraceLevelEvents.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if st == nil || st.Config.Level != TraceLevelEvents {
		return
	}
	st.Events = append(st.Events, record)
}

// RecordAllocation appends a VM allocation decision.
func (st *SimulationTrace) RecordAllocation(record AllocationRecord) {
	if st == nil {
		return
	}
	st.Allocations = append(st.Allocations, record)
}

// RecordCloudlet appends a cloudlet outcome.
func (st *SimulationTrace) RecordCloudlet(record CloudletRecord) {
	if st == nil {
		return
	}
	st.Cloudlets = append(st.Cloudlets, record)
}
