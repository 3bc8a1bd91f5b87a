package scenario

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/cloudlet-sim/cloudlet-sim/sim"
	"github.com/cloudlet-sim/cloudlet-sim/sim/cloud"
	"github.com/cloudlet-sim/cloudlet-sim/sim/trace"
)

// Options carries run-time inputs that are not part of the scenario file.
type Options struct {
	Metrics tally.Scope // nil = tally.NoopScope
	RunID   string      // generated when empty
}

// Run is a built, not yet started, simulation.
type Run struct {
	Spec        *Spec
	Sim         *sim.Simulation
	Datacenters []*cloud.Datacenter
	Brokers     []*cloud.Broker
}

// Execute starts the simulation and blocks until it ends.
func (r *Run) Execute() error {
	return r.Sim.Start()
}

// Build validates spec and wires its datacenters and brokers into a new
// Simulation. Datacenters register before brokers, so they get the lowest ids.
func Build(spec *Spec, opts Options) (*Run, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	s := sim.NewSimulation(sim.Config{
		NumUsers: len(spec.Brokers),
		Trace:    trace.TraceConfig{Level: trace.TraceLevel(spec.Trace)},
		Horizon:  spec.Horizon,
		Seed:     spec.Seed,
		RunID:    opts.RunID,
		Metrics:  opts.Metrics,
	})
	run := &Run{Spec: spec, Sim: s}

	for _, dcSpec := range spec.Datacenters {
		dc, err := cloud.NewDatacenter(s, cloud.DatacenterConfig{
			Name:               dcSpec.Name,
			Characteristics:    buildCharacteristics(dcSpec.Characteristics),
			Hosts:              buildHosts(dcSpec.Hosts),
			AllocationPolicy:   dcSpec.AllocationPolicy,
			SchedulingInterval: dcSpec.SchedulingInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("building datacenter %q: %w", dcSpec.Name, err)
		}
		run.Datacenters = append(run.Datacenters, dc)
	}

	for _, bSpec := range spec.Brokers {
		b, err := cloud.NewBroker(s, cloud.BrokerConfig{
			Name:                   bSpec.Name,
			DestroyVmsOnCompletion: bSpec.DestroyVmsOnCompletion,
		})
		if err != nil {
			return nil, fmt.Errorf("building broker %q: %w", bSpec.Name, err)
		}
		vms := buildVms(bSpec.Vms)
		utilRNG := s.RNG().ForBroker(bSpec.Name)
		cloudlets := buildCloudlets(bSpec.Cloudlets, func(u *UtilizationSpec) cloud.UtilizationModel {
			return buildUtilization(u, utilRNG)
		})
		b.SubmitVmList(vms)
		b.SubmitCloudletList(cloudlets)
		logrus.Debugf("broker %q: %d vms, %d cloudlets", bSpec.Name, len(vms), len(cloudlets))
		run.Brokers = append(run.Brokers, b)
	}
	return run, nil
}

func buildCharacteristics(c *CharacteristicsSpec) cloud.Characteristics {
	out := cloud.DefaultCharacteristics()
	if c == nil {
		return out
	}
	if c.Arch != "" {
		out.Arch = c.Arch
	}
	if c.OS != "" {
		out.OS = c.OS
	}
	if c.Vmm != "" {
		out.Vmm = c.Vmm
	}
	if c.TimeZone != 0 {
		out.TimeZone = c.TimeZone
	}
	out.CostPerSec = c.CostPerSec
	out.CostPerMem = c.CostPerMem
	out.CostPerStorage = c.CostPerStorage
	out.CostPerBw = c.CostPerBw
	return out
}

// buildHosts expands host groups, numbering hosts from 0 within the datacenter.
func buildHosts(groups []HostSpec) []*cloud.Host {
	var hosts []*cloud.Host
	for _, g := range groups {
		for i := 0; i < countOrOne(g.Count); i++ {
			hosts = append(hosts, cloud.NewHost(cloud.HostConfig{
				ID:          len(hosts),
				Ram:         g.Ram,
				Bw:          g.Bw,
				Storage:     g.Storage,
				PeMips:      append([]float64(nil), g.PeMips...),
				VmScheduler: cloud.VmSchedulerPolicy(g.VmScheduler),
			}))
		}
	}
	return hosts
}

// buildVms expands VM groups, numbering VMs from 0 within the broker.
func buildVms(groups []VmGroupSpec) []cloud.VmSpec {
	var vms []cloud.VmSpec
	for _, g := range groups {
		for i := 0; i < countOrOne(g.Count); i++ {
			vms = append(vms, cloud.VmSpec{
				ID:                len(vms),
				Mips:              g.Mips,
				Pes:               g.Pes,
				Ram:               g.Ram,
				Bw:                g.Bw,
				Size:              g.Size,
				Vmm:               g.Vmm,
				CloudletScheduler: cloud.CloudletSchedulerPolicy(g.CloudletScheduler),
			})
		}
	}
	return vms
}

// buildCloudlets expands cloudlet groups, numbering cloudlets from 0 within
// the broker. Each group binds its i-th cloudlet to VmIDs[i % len(VmIDs)].
func buildCloudlets(groups []CloudletGroupSpec, util func(*UtilizationSpec) cloud.UtilizationModel) []cloud.CloudletSpec {
	var cloudlets []cloud.CloudletSpec
	for _, g := range groups {
		for i := 0; i < countOrOne(g.Count); i++ {
			vmID := cloud.Unbound
			if len(g.VmIDs) > 0 {
				vmID = g.VmIDs[i%len(g.VmIDs)]
			}
			cloudlets = append(cloudlets, cloud.CloudletSpec{
				ID:             len(cloudlets),
				Length:         g.Length,
				Pes:            g.Pes,
				FileSize:       g.FileSize,
				OutputSize:     g.OutputSize,
				UtilizationCpu: util(g.Utilization),
				UtilizationRam: cloud.UtilizationFull{},
				UtilizationBw:  cloud.UtilizationFull{},
				VmID:           vmID,
			})
		}
	}
	return cloudlets
}

func buildUtilization(u *UtilizationSpec, rng *rand.Rand) cloud.UtilizationModel {
	if u == nil {
		return cloud.UtilizationFull{}
	}
	switch u.Model {
	case "constant":
		return cloud.UtilizationConstant{Value: u.Value}
	case "stochastic":
		return cloud.NewUtilizationStochastic(rng, u.Value)
	default:
		return cloud.UtilizationFull{}
	}
}
