package scenario

import (
	"fmt"
	"sort"
)

// Built-in scenario presets. Each returns a valid Spec ready for Build.

// ScenarioSameMips creates one datacenter with a single 2000 MIPS PE shared by
// two 1000 MIPS VMs, each running one 10000 MI cloudlet. Both cloudlets run at
// 1000 MIPS and finish at t=10.
func ScenarioSameMips(seed int64) *Spec {
	return &Spec{
		Version: CurrentVersion, Name: "same-mips", Seed: seed,
		Datacenters: []DatacenterSpec{singleHostDatacenter("Datacenter_1")},
		Brokers: []BrokerSpec{{
			Name: "Broker_1",
			Vms:  []VmGroupSpec{xenVms(2, 1000)},
			Cloudlets: []CloudletGroupSpec{
				{Length: 10000, Pes: 1, FileSize: 300, OutputSize: 300, VmIDs: []int{0}},
				{Length: 10000, Pes: 1, FileSize: 300, OutputSize: 300, VmIDs: []int{1}},
			},
		}},
	}
}

// ScenarioLinearScaling is ScenarioSameMips with the second cloudlet twice as
// long, so it finishes at t=20.
func ScenarioLinearScaling(seed int64) *Spec {
	spec := ScenarioSameMips(seed)
	spec.Name = "linear-scaling"
	spec.Brokers[0].Cloudlets[1].Length = 20000
	return spec
}

// ScenarioOversubscribed places three 1000 MIPS VMs on one 2000 MIPS PE. The
// time-shared VM scheduler slices each VM to 2000/3 MIPS.
func ScenarioOversubscribed(seed int64) *Spec {
	spec := ScenarioSameMips(seed)
	spec.Name = "oversubscribed"
	spec.Brokers[0].Vms = []VmGroupSpec{xenVms(3, 1000)}
	spec.Brokers[0].Cloudlets = []CloudletGroupSpec{
		{Count: 3, Length: 10000, Pes: 1, FileSize: 300, OutputSize: 300, VmIDs: []int{0, 1, 2}},
	}
	return spec
}

// ScenarioSpaceShared runs four cloudlets FIFO on a single-PE space-shared VM.
func ScenarioSpaceShared(seed int64) *Spec {
	dc := singleHostDatacenter("Datacenter_1")
	dc.Hosts[0].VmScheduler = "space-shared"
	vms := xenVms(1, 1000)
	vms.CloudletScheduler = "space-shared"
	return &Spec{
		Version: CurrentVersion, Name: "space-shared", Seed: seed,
		Datacenters: []DatacenterSpec{dc},
		Brokers: []BrokerSpec{{
			Name:      "Broker_1",
			Vms:       []VmGroupSpec{vms},
			Cloudlets: []CloudletGroupSpec{{Count: 4, Length: 5000, Pes: 1, FileSize: 300, OutputSize: 300, VmIDs: []int{0}}},
		}},
	}
}

func singleHostDatacenter(name string) DatacenterSpec {
	return DatacenterSpec{
		Name:             name,
		AllocationPolicy: "least-loaded",
		Characteristics: &CharacteristicsSpec{
			Arch: "x86", OS: "Linux", Vmm: "Xen", TimeZone: 10.0,
			CostPerSec: 3.0, CostPerMem: 0.05, CostPerStorage: 0.001, CostPerBw: 0.0,
		},
		Hosts: []HostSpec{{
			Ram: 4096, Bw: 10000, Storage: 1000000,
			PeMips:      []float64{2000},
			VmScheduler: "time-shared",
		}},
	}
}

func xenVms(count int, mips float64) VmGroupSpec {
	return VmGroupSpec{
		Count: count, Mips: mips, Pes: 1, Ram: 512, Bw: 1000, Size: 10000,
		Vmm: "Xen", CloudletScheduler: "time-shared",
	}
}

var builtins = map[string]func(seed int64) *Spec{
	"same-mips":      ScenarioSameMips,
	"linear-scaling": ScenarioLinearScaling,
	"oversubscribed": ScenarioOversubscribed,
	"space-shared":   ScenarioSpaceShared,
}

// Builtin returns the named preset.
func Builtin(name string, seed int64) (*Spec, error) {
	ctor, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in scenario %q; valid: %v", name, BuiltinNames())
	}
	return ctor(seed), nil
}

// BuiltinNames returns the preset names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
