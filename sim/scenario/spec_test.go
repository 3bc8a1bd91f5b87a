package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sameMipsYAML = `
version: "1"
name: same-mips
seed: 42
datacenters:
  - name: Datacenter_1
    allocation_policy: least-loaded
    characteristics:
      arch: x86
      os: Linux
      vmm: Xen
      time_zone: 10
      cost_per_sec: 3
      cost_per_mem: 0.05
      cost_per_storage: 0.001
      cost_per_bw: 0
    hosts:
      - ram: 4096
        bw: 10000
        storage: 1000000
        pe_mips: [2000]
        vm_scheduler: time-shared
brokers:
  - name: Broker_1
    vms:
      - count: 2
        mips: 1000
        pes: 1
        ram: 512
        bw: 1000
        size: 10000
        vmm: Xen
        cloudlet_scheduler: time-shared
    cloudlets:
      - count: 2
        length: 10000
        pes: 1
        file_size: 300
        output_size: 300
        vm_ids: [0, 1]
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidFile_ParsesEveryLevel(t *testing.T) {
	// GIVEN the same-mips scenario on disk
	path := writeScenario(t, sameMipsYAML)

	// WHEN loaded
	spec, err := Load(path)

	// THEN every level is populated and the spec validates
	require.NoError(t, err)
	assert.Equal(t, "same-mips", spec.Name)
	assert.Equal(t, int64(42), spec.Seed)
	require.Len(t, spec.Datacenters, 1)
	dc := spec.Datacenters[0]
	assert.Equal(t, "least-loaded", dc.AllocationPolicy)
	require.NotNil(t, dc.Characteristics)
	assert.Equal(t, 3.0, dc.Characteristics.CostPerSec)
	assert.Equal(t, []float64{2000}, dc.Hosts[0].PeMips)
	require.Len(t, spec.Brokers, 1)
	assert.Equal(t, 2, spec.Brokers[0].Vms[0].Count)
	assert.Equal(t, []int{0, 1}, spec.Brokers[0].Cloudlets[0].VmIDs)
	assert.NoError(t, spec.Validate())
}

func TestLoad_MissingFile_ReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestParse_UnknownKey_Rejected(t *testing.T) {
	// GIVEN a scenario with a typo in a host key
	bad := strings.Replace(sameMipsYAML, "pe_mips:", "pe_mip:", 1)

	// WHEN parsed
	_, err := Parse(strings.NewReader(bad))

	// THEN strict decoding rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pe_mip")
}

func TestParse_MissingVersion_DefaultsToCurrent(t *testing.T) {
	spec, err := Parse(strings.NewReader(strings.Replace(sameMipsYAML, `version: "1"`, "", 1)))

	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, spec.Version)
}

func TestSpec_Validate_AggregatesAllProblems(t *testing.T) {
	// GIVEN a spec with four independent problems
	spec := ScenarioSameMips(1)
	spec.Trace = "verbose"
	spec.Datacenters[0].AllocationPolicy = "worst-fit"
	spec.Brokers[0].Vms[0].Mips = 0
	spec.Brokers[0].Cloudlets[0].Pes = 0

	// WHEN validated
	err := spec.Validate()

	// THEN every problem is reported at once
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected *multierror.Error, got %T", err)
	assert.Len(t, merr.Errors, 4)
	msg := err.Error()
	assert.Contains(t, msg, "verbose")
	assert.Contains(t, msg, "worst-fit")
	assert.Contains(t, msg, "mips must be")
	assert.Contains(t, msg, "pes must be positive")
}

func TestSpec_Validate_Cases(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
		want   string
	}{
		{"no datacenters", func(s *Spec) { s.Datacenters = nil }, "at least one datacenter"},
		{"no brokers", func(s *Spec) { s.Brokers = nil }, "at least one broker"},
		{"negative horizon", func(s *Spec) { s.Horizon = -1 }, "horizon"},
		{"bad version", func(s *Spec) { s.Version = "9" }, "unsupported version"},
		{"duplicate name", func(s *Spec) { s.Brokers[0].Name = "Datacenter_1" }, "duplicate entity name"},
		{"no hosts", func(s *Spec) { s.Datacenters[0].Hosts = nil }, "at least one host"},
		{"no pes", func(s *Spec) { s.Datacenters[0].Hosts[0].PeMips = nil }, "pe_mips"},
		{"bad vm scheduler", func(s *Spec) { s.Datacenters[0].Hosts[0].VmScheduler = "fair" }, "vm_scheduler"},
		{"bad cloudlet scheduler", func(s *Spec) { s.Brokers[0].Vms[0].CloudletScheduler = "fair" }, "cloudlet_scheduler"},
		{"negative vm id", func(s *Spec) { s.Brokers[0].Cloudlets[0].VmIDs = []int{-2} }, "vm_ids"},
		{"bad utilization", func(s *Spec) {
			s.Brokers[0].Cloudlets[0].Utilization = &UtilizationSpec{Model: "sine"}
		}, "unknown model"},
		{"negative interval", func(s *Spec) { s.Datacenters[0].SchedulingInterval = -1 }, "scheduling_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ScenarioSameMips(1)
			tt.mutate(spec)

			err := spec.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSpec_Marshal_ParsesBack(t *testing.T) {
	// GIVEN a built-in scenario
	spec := ScenarioSpaceShared(7)

	// WHEN marshalled and parsed again
	data, err := spec.Marshal()
	require.NoError(t, err)
	back, err := Parse(strings.NewReader(string(data)))

	// THEN it is accepted by the strict decoder and keeps its semantics
	require.NoError(t, err)
	assert.Equal(t, spec, back)
}

func TestBuiltin_AllValid(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			spec, err := Builtin(name, 42)
			require.NoError(t, err)
			assert.NoError(t, spec.Validate())
			assert.Equal(t, name, spec.Name)
		})
	}
}

func TestBuiltin_Unknown_ReturnsError(t *testing.T) {
	_, err := Builtin("nope", 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "same-mips")
}
