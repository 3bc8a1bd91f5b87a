// Package report turns a finished simulation into per-cloudlet rows and
// summary statistics, and renders them as a table or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/cloudlet-sim/cloudlet-sim/sim"
	"github.com/cloudlet-sim/cloudlet-sim/sim/cloud"
	"github.com/cloudlet-sim/cloudlet-sim/sim/trace"
)

// Output formats accepted by Write.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// IsValidFormat reports whether format is a recognized output format.
func IsValidFormat(format string) bool {
	return format == FormatTable || format == FormatJSON
}

// Row is one returned cloudlet.
type Row struct {
	Broker     string  `json:"broker"`
	CloudletID int     `json:"cloudlet_id"`
	VmID       int     `json:"vm_id"`
	Datacenter string  `json:"datacenter,omitempty"`
	Status     string  `json:"status"`
	StartTime  float64 `json:"start_time"`
	FinishTime float64 `json:"finish_time"`
	ExecTime   float64 `json:"exec_time"`
	Processed  float64 `json:"processed"`
	Length     float64 `json:"length"`
	Cost       float64 `json:"cost"`
	Reason     string  `json:"reason,omitempty"`
}

// Summary aggregates finished cloudlets.
type Summary struct {
	Submitted    int            `json:"submitted"`
	Finished     int            `json:"finished"`
	ByStatus     map[string]int `json:"by_status"`
	MeanExecTime float64        `json:"mean_exec_time"`
	StdDevExec   float64        `json:"stddev_exec_time"`
	P50ExecTime  float64        `json:"p50_exec_time"`
	MaxExecTime  float64        `json:"max_exec_time"`
	Makespan     float64        `json:"makespan"`
	TotalCost    float64        `json:"total_cost"`
	VmsCreated   int            `json:"vms_created"`
	VmsFailed    int            `json:"vms_failed"`
	Failures     []string       `json:"failures,omitempty"`
}

// Report is the result of one run.
type Report struct {
	RunID   string              `json:"run_id"`
	State   string              `json:"state"`
	Clock   float64             `json:"clock"`
	Events  int64               `json:"events"`
	Rows    []Row               `json:"cloudlets"`
	Summary Summary             `json:"summary"`
	Trace   *trace.TraceSummary `json:"trace,omitempty"`
}

// New builds a report from the simulation and its brokers after Start returned.
// Finished cloudlets come first in arrival order, followed by the rest.
func New(s *sim.Simulation, brokers []*cloud.Broker) *Report {
	r := &Report{
		RunID:  s.RunID(),
		State:  string(s.State()),
		Clock:  s.Clock(),
		Events: s.Dispatched(),
		Summary: Summary{
			ByStatus: make(map[string]int),
		},
	}
	if st := s.Trace(); st != nil {
		r.Trace = trace.Summarize(st)
	}

	var execTimes []float64
	first, last := math.Inf(1), math.Inf(-1)
	for _, b := range brokers {
		received := b.CloudletReceivedList()
		failed := b.CloudletFailedList()
		for _, snap := range append(received, failed...) {
			r.Rows = append(r.Rows, rowOf(s, b, snap))
			r.Summary.Submitted++
			r.Summary.ByStatus[string(snap.Status)]++
			r.Summary.TotalCost += snap.Cost
			if snap.Status != cloud.CloudletFinished {
				continue
			}
			r.Summary.Finished++
			execTimes = append(execTimes, snap.ExecTime())
			first = math.Min(first, snap.SubmissionTime)
			last = math.Max(last, snap.FinishTime)
		}
		r.Summary.VmsCreated += len(b.CreatedVms())
		r.Summary.VmsFailed += len(b.FailedVms())
		for _, err := range b.Failures() {
			r.Summary.Failures = append(r.Summary.Failures, fmt.Sprintf("%s: %v", b.Name(), err))
		}
	}

	if n := len(execTimes); n > 0 {
		r.Summary.MeanExecTime = stat.Mean(execTimes, nil)
		if n > 1 {
			r.Summary.StdDevExec = stat.StdDev(execTimes, nil)
		}
		sorted := append([]float64(nil), execTimes...)
		sort.Float64s(sorted)
		r.Summary.P50ExecTime = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		r.Summary.MaxExecTime = sorted[n-1]
		r.Summary.Makespan = last - first
	}
	return r
}

func rowOf(s *sim.Simulation, b *cloud.Broker, snap cloud.CloudletSnapshot) Row {
	return Row{
		Broker:     b.Name(),
		CloudletID: snap.ID,
		VmID:       snap.VmID,
		Datacenter: s.EntityName(snap.DatacenterID),
		Status:     string(snap.Status),
		StartTime:  snap.StartTime,
		FinishTime: snap.FinishTime,
		ExecTime:   snap.ExecTime(),
		Processed:  snap.Processed,
		Length:     snap.Length,
		Cost:       snap.Cost,
		Reason:     snap.Reason,
	}
}

// Write renders the report in the given format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatTable, "":
		return r.writeTable(w)
	default:
		return fmt.Errorf("unknown output format %q; valid: %s, %s", format, FormatTable, FormatJSON)
	}
}

func (r *Report) writeTable(w io.Writer) error {
	fmt.Fprintln(w, "========== CLOUDLET EXECUTION RESULTS ==========")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BROKER\tCLOUDLET\tVM\tDATACENTER\tSTATUS\tSTART\tFINISH\tEXEC\tCOST")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
			row.Broker, row.CloudletID, row.VmID, row.Datacenter, row.Status,
			formatTime(row.StartTime), formatTime(row.FinishTime), row.ExecTime, row.Cost)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sm := r.Summary
	fmt.Fprintln(w, "=== Simulation Summary ===")
	fmt.Fprintf(w, "Run ID               : %s (%s)\n", r.RunID, r.State)
	fmt.Fprintf(w, "Simulated Time       : %.2f\n", r.Clock)
	fmt.Fprintf(w, "Events Dispatched    : %d\n", r.Events)
	fmt.Fprintf(w, "VMs Created / Failed : %d / %d\n", sm.VmsCreated, sm.VmsFailed)
	fmt.Fprintf(w, "Cloudlets Finished   : %d / %d\n", sm.Finished, sm.Submitted)
	if sm.Finished > 0 {
		fmt.Fprintf(w, "Mean Exec Time       : %.4f (stddev %.4f)\n", sm.MeanExecTime, sm.StdDevExec)
		fmt.Fprintf(w, "Median / Max Exec    : %.4f / %.4f\n", sm.P50ExecTime, sm.MaxExecTime)
		fmt.Fprintf(w, "Makespan             : %.4f\n", sm.Makespan)
	}
	fmt.Fprintf(w, "Total Cost           : %.2f\n", sm.TotalCost)
	for _, f := range sm.Failures {
		fmt.Fprintf(w, "Failure              : %s\n", f)
	}
	return nil
}

func formatTime(t float64) string {
	if t < 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", t)
}
