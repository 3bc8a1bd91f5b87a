package trace

import (
	"testing"
)

func TestSimulationTrace_RecordAllocation_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN an allocation record is recorded
	st.RecordAllocation(AllocationRecord{
		Time:         0,
		DatacenterID: 0,
		Policy:       "first-fit",
		BrokerID:     1,
		VmID:         3,
		HostID:       0,
		Allocated:    true,
	})

	// THEN the trace contains one allocation record with correct data
	if len(st.Allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(st.Allocations))
	}
	if st.Allocations[0].VmID != 3 {
		t.Errorf("expected vm 3, got %d", st.Allocations[0].VmID)
	}
	if !st.Allocations[0].Allocated {
		t.Error("expected allocated=true")
	}
}

func TestSimulationTrace_RecordCloudlet_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a cloudlet record is recorded
	st.RecordCloudlet(CloudletRecord{Time: 10, CloudletID: 1, VmID: 1, Status: "finished", StartTime: 0, FinishTime: 10})

	// THEN the trace contains it
	if len(st.Cloudlets) != 1 {
		t.Fatalf("expected 1 cloudlet record, got %d", len(st.Cloudlets))
	}
	if st.Cloudlets[0].FinishTime != 10 {
		t.Errorf("expected finish 10, got %v", st.Cloudlets[0].FinishTime)
	}
}

func TestSimulationTrace_RecordEvent_OnlyAtEventsLevel(t *testing.T) {
	// GIVEN one trace at decisions and one at events level
	decisions := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})
	events := NewSimulationTrace(TraceConfig{Level: TraceLevelEvents})

	// WHEN the same event is recorded in both
	rec := EventRecord{Time: 1, Seq: 1, Src: 0, Dst: 1, Tag: "VM_CREATE"}
	decisions.RecordEvent(rec)
	events.RecordEvent(rec)

	// THEN only the events-level trace keeps it
	if len(decisions.Events) != 0 {
		t.Errorf("decisions level recorded %d events, want 0", len(decisions.Events))
	}
	if len(events.Events) != 1 {
		t.Errorf("events level recorded %d events, want 1", len(events.Events))
	}
}

func TestSimulationTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN multiple records are added
	st.RecordAllocation(AllocationRecord{VmID: 0, Allocated: true})
	st.RecordAllocation(AllocationRecord{VmID: 1, Allocated: false, HostID: -1, Reason: "no suitable host"})
	st.RecordCloudlet(CloudletRecord{CloudletID: 0, Status: "finished"})

	// THEN order is preserved
	if len(st.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(st.Allocations))
	}
	if st.Allocations[0].VmID != 0 || st.Allocations[1].VmID != 1 {
		t.Error("allocation order not preserved")
	}
	if len(st.Cloudlets) != 1 || st.Cloudlets[0].CloudletID != 0 {
		t.Error("cloudlet record mismatch")
	}
}

func TestNewSimulationTrace_None_ReturnsNil(t *testing.T) {
	for _, level := range []TraceLevel{TraceLevelNone, ""} {
		if st := NewSimulationTrace(TraceConfig{Level: level}); st != nil {
			t.Errorf("level %q: expected nil trace", level)
		}
	}
}

func TestSimulationTrace_NilReceiver_RecordsNothing(t *testing.T) {
	// GIVEN a disabled (nil) trace
	var st *SimulationTrace

	// WHEN records are added
	// THEN nothing panics
	st.RecordEvent(EventRecord{})
	st.RecordAllocation(AllocationRecord{})
	st.RecordCloudlet(CloudletRecord{})
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"decisions", true},
		{"events", true},
		{"", true}, // empty defaults to none
		{"detailed", false},
		{"foobar", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}
