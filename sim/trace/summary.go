package trace

import "fmt"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents        int
	EventsByTag        map[string]int
	AllocationAttempts int
	AllocatedCount     int
	RejectedCount      int
	VmsPerHost         map[string]int // "datacenter/host" -> successful placements
	CloudletsByStatus  map[string]int
}

// HostKey formats the VmsPerHost key for a host.
func HostKey(datacenterID, hostID int) string {
	return fmt.Sprintf("%d/%d", datacenterID, hostID)
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		EventsByTag:       make(map[string]int),
		VmsPerHost:        make(map[string]int),
		CloudletsByStatus: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalEvents = len(st.Events)
	for _, e := range st.Events {
		summary.EventsByTag[e.Tag]++
	}

	summary.AllocationAttempts = len(st.Allocations)
	for _, a := range st.Allocations {
		if a.Allocated {
			summary.AllocatedCount++
			summary.VmsPerHost[HostKey(a.DatacenterID, a.HostID)]++
		} else {
			summary.RejectedCount++
		}
	}

	for _, c := range st.Cloudlets {
		summary.CloudletsByStatus[c.Status]++
	}

	return summary
}
