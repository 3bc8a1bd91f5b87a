// Package scenario loads, validates and builds simulation scenarios from YAML.
package scenario

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cloudlet-sim/cloudlet-sim/sim/cloud"
	"github.com/cloudlet-sim/cloudlet-sim/sim/trace"
)

// CurrentVersion is the scenario format version written by this package.
const CurrentVersion = "1"

// Spec is the top-level scenario configuration.
// Loaded from YAML via Load(path).
type Spec struct {
	Version     string           `yaml:"version"`
	Name        string           `yaml:"name,omitempty"`
	Seed        int64            `yaml:"seed"`
	Horizon     float64          `yaml:"horizon,omitempty"` // simulated seconds; 0 = unlimited
	Trace       string           `yaml:"trace,omitempty"`   // none, decisions, events
	Datacenters []DatacenterSpec `yaml:"datacenters"`
	Brokers     []BrokerSpec     `yaml:"brokers"`
}

// DatacenterSpec defines one datacenter and its hosts.
type DatacenterSpec struct {
	Name               string               `yaml:"name"`
	AllocationPolicy   string               `yaml:"allocation_policy,omitempty"`
	SchedulingInterval float64              `yaml:"scheduling_interval,omitempty"`
	Characteristics    *CharacteristicsSpec `yaml:"characteristics,omitempty"`
	Hosts              []HostSpec           `yaml:"hosts"`
}

// CharacteristicsSpec overrides the default platform description and prices.
type CharacteristicsSpec struct {
	Arch           string  `yaml:"arch,omitempty"`
	OS             string  `yaml:"os,omitempty"`
	Vmm            string  `yaml:"vmm,omitempty"`
	TimeZone       float64 `yaml:"time_zone,omitempty"`
	CostPerSec     float64 `yaml:"cost_per_sec"`
	CostPerMem     float64 `yaml:"cost_per_mem"`
	CostPerStorage float64 `yaml:"cost_per_storage"`
	CostPerBw      float64 `yaml:"cost_per_bw"`
}

// HostSpec defines Count identical hosts.
type HostSpec struct {
	Count       int       `yaml:"count,omitempty"` // default 1
	Ram         int64     `yaml:"ram"`
	Bw          int64     `yaml:"bw"`
	Storage     int64     `yaml:"storage"`
	PeMips      []float64 `yaml:"pe_mips"`
	VmScheduler string    `yaml:"vm_scheduler,omitempty"`
}

// BrokerSpec defines one user and its workload.
type BrokerSpec struct {
	Name                   string              `yaml:"name"`
	DestroyVmsOnCompletion bool                `yaml:"destroy_vms_on_completion,omitempty"`
	Vms                    []VmGroupSpec       `yaml:"vms"`
	Cloudlets              []CloudletGroupSpec `yaml:"cloudlets"`
}

// VmGroupSpec defines Count identical VMs with consecutive ids.
type VmGroupSpec struct {
	Count             int     `yaml:"count,omitempty"` // default 1
	Mips              float64 `yaml:"mips"`
	Pes               int     `yaml:"pes"`
	Ram               int64   `yaml:"ram"`
	Bw                int64   `yaml:"bw"`
	Size              int64   `yaml:"size"`
	Vmm               string  `yaml:"vmm,omitempty"`
	CloudletScheduler string  `yaml:"cloudlet_scheduler,omitempty"`
}

// CloudletGroupSpec defines Count identical cloudlets with consecutive ids.
// VmIDs binds them in order, cycling; empty leaves them unbound.
type CloudletGroupSpec struct {
	Count       int              `yaml:"count,omitempty"` // default 1
	Length      float64          `yaml:"length"`
	Pes         int              `yaml:"pes"`
	FileSize    int64            `yaml:"file_size"`
	OutputSize  int64            `yaml:"output_size"`
	VmIDs       []int            `yaml:"vm_ids,omitempty"`
	Utilization *UtilizationSpec `yaml:"utilization,omitempty"`
}

// UtilizationSpec selects the CPU utilization model.
type UtilizationSpec struct {
	Model string  `yaml:"model"`           // full, constant, stochastic
	Value float64 `yaml:"value,omitempty"` // constant: the fraction; stochastic: the floor
}

var validUtilizationModels = map[string]bool{
	"": true, "full": true, "constant": true, "stochastic": true,
}

// Load reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a YAML scenario from r with strict key checking.
func Parse(r io.Reader) (*Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if spec.Version == "" {
		spec.Version = CurrentVersion
	}
	return &spec, nil
}

// Marshal encodes the spec as YAML.
func (s *Spec) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate checks every field and reports all problems at once.
func (s *Spec) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if s.Version != "" && s.Version != CurrentVersion {
		add("unsupported version %q; valid: %s", s.Version, CurrentVersion)
	}
	if math.IsNaN(s.Horizon) || math.IsInf(s.Horizon, 0) || s.Horizon < 0 {
		add("horizon must be a finite non-negative number, got %v", s.Horizon)
	}
	if !trace.IsValidTraceLevel(s.Trace) {
		add("unknown trace level %q; valid: none, decisions, events", s.Trace)
	}
	if len(s.Datacenters) == 0 {
		add("at least one datacenter required")
	}
	if len(s.Brokers) == 0 {
		add("at least one broker required")
	}

	names := make(map[string]bool)
	for i, dc := range s.Datacenters {
		prefix := fmt.Sprintf("datacenters[%d]", i)
		if dc.Name == "" {
			add("%s: name required", prefix)
		} else if names[dc.Name] {
			add("%s: duplicate entity name %q", prefix, dc.Name)
		}
		names[dc.Name] = true
		if !cloud.IsValidAllocationPolicy(dc.AllocationPolicy) {
			add("%s: unknown allocation_policy %q; valid: %v", prefix, dc.AllocationPolicy, cloud.ValidAllocationPolicyNames())
		}
		if dc.SchedulingInterval < 0 {
			add("%s: scheduling_interval must be non-negative, got %v", prefix, dc.SchedulingInterval)
		}
		if len(dc.Hosts) == 0 {
			add("%s: at least one host required", prefix)
		}
		for j, h := range dc.Hosts {
			validateHost(fmt.Sprintf("%s.hosts[%d]", prefix, j), &h, add)
		}
	}

	for i, b := range s.Brokers {
		prefix := fmt.Sprintf("brokers[%d]", i)
		if b.Name == "" {
			add("%s: name required", prefix)
		} else if names[b.Name] {
			add("%s: duplicate entity name %q", prefix, b.Name)
		}
		names[b.Name] = true
		for j, vm := range b.Vms {
			validateVm(fmt.Sprintf("%s.vms[%d]", prefix, j), &vm, add)
		}
		for j, cl := range b.Cloudlets {
			validateCloudlet(fmt.Sprintf("%s.cloudlets[%d]", prefix, j), &cl, add)
		}
	}
	return result.ErrorOrNil()
}

type addFunc func(format string, args ...any)

func validateHost(prefix string, h *HostSpec, add addFunc) {
	if h.Count < 0 {
		add("%s: count must be non-negative, got %d", prefix, h.Count)
	}
	if h.Ram <= 0 || h.Bw <= 0 || h.Storage <= 0 {
		add("%s: ram, bw and storage must be positive", prefix)
	}
	if len(h.PeMips) == 0 {
		add("%s: pe_mips must list at least one PE", prefix)
	}
	for k, m := range h.PeMips {
		if !finitePositive(m) {
			add("%s.pe_mips[%d] must be a finite positive number, got %v", prefix, k, m)
		}
	}
	if !cloud.IsValidVmSchedulerPolicy(h.VmScheduler) {
		add("%s: unknown vm_scheduler %q; valid: time-shared, time-shared-proportional, space-shared", prefix, h.VmScheduler)
	}
}

func validateVm(prefix string, vm *VmGroupSpec, add addFunc) {
	if vm.Count < 0 {
		add("%s: count must be non-negative, got %d", prefix, vm.Count)
	}
	if !finitePositive(vm.Mips) {
		add("%s: mips must be a finite positive number, got %v", prefix, vm.Mips)
	}
	if vm.Pes <= 0 {
		add("%s: pes must be positive, got %d", prefix, vm.Pes)
	}
	if vm.Ram < 0 || vm.Bw < 0 || vm.Size < 0 {
		add("%s: ram, bw and size must be non-negative", prefix)
	}
	if !cloud.IsValidCloudletSchedulerPolicy(vm.CloudletScheduler) {
		add("%s: unknown cloudlet_scheduler %q; valid: time-shared, space-shared", prefix, vm.CloudletScheduler)
	}
}

func validateCloudlet(prefix string, cl *CloudletGroupSpec, add addFunc) {
	if cl.Count < 0 {
		add("%s: count must be non-negative, got %d", prefix, cl.Count)
	}
	if math.IsNaN(cl.Length) || math.IsInf(cl.Length, 0) || cl.Length < 0 {
		add("%s: length must be a finite non-negative number, got %v", prefix, cl.Length)
	}
	if cl.Pes <= 0 {
		add("%s: pes must be positive, got %d", prefix, cl.Pes)
	}
	if cl.FileSize < 0 || cl.OutputSize < 0 {
		add("%s: file_size and output_size must be non-negative", prefix)
	}
	// Ids outside the broker's VM range fail at run time as invalid references.
	for k, id := range cl.VmIDs {
		if id < 0 {
			add("%s.vm_ids[%d] must be non-negative, got %d", prefix, k, id)
		}
	}
	if u := cl.Utilization; u != nil {
		if !validUtilizationModels[u.Model] {
			add("%s.utilization: unknown model %q; valid: full, constant, stochastic", prefix, u.Model)
		}
		if u.Value < 0 || u.Value > 1 {
			add("%s.utilization: value must be in [0, 1], got %v", prefix, u.Value)
		}
		if u.Model == "constant" && u.Value == 0 {
			add("%s.utilization: constant model needs a positive value", prefix)
		}
	}
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func countOrOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}
