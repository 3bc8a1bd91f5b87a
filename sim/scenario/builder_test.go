package scenario

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/cloudlet-sim/cloudlet-sim/sim"
	"github.com/cloudlet-sim/cloudlet-sim/sim/cloud"
)

func execute(t *testing.T, spec *Spec) *Run {
	t.Helper()
	run, err := Build(spec, Options{})
	require.NoError(t, err)
	require.NoError(t, run.Execute())
	return run
}

func finishByID(b *cloud.Broker) map[int]float64 {
	out := make(map[int]float64)
	for _, snap := range b.CloudletReceivedList() {
		out[snap.ID] = snap.FinishTime
	}
	return out
}

func TestBuild_SameMips_BothFinishAtTen(t *testing.T) {
	// GIVEN the built-in same-mips scenario
	// WHEN built and executed
	run := execute(t, ScenarioSameMips(42))

	// THEN both cloudlets finish at 10
	require.Len(t, run.Brokers, 1)
	assert.Equal(t, map[int]float64{0: 10, 1: 10}, finishByID(run.Brokers[0]))
	assert.Equal(t, sim.StateFinished, run.Sim.State())
}

func TestBuild_LinearScaling_DoubleLengthDoubleTime(t *testing.T) {
	run := execute(t, ScenarioLinearScaling(42))

	assert.Equal(t, map[int]float64{0: 10, 1: 20}, finishByID(run.Brokers[0]))
}

func TestBuild_Oversubscribed_AllFinishAtFifteen(t *testing.T) {
	run := execute(t, ScenarioOversubscribed(42))

	got := finishByID(run.Brokers[0])
	require.Len(t, got, 3)
	for id, finish := range got {
		assert.InDelta(t, 15.0, finish, 1e-6, "cloudlet %d", id)
	}
}

func TestBuild_SpaceShared_RunsOneAtATime(t *testing.T) {
	run := execute(t, ScenarioSpaceShared(42))

	assert.Equal(t, map[int]float64{0: 5, 1: 10, 2: 15, 3: 20}, finishByID(run.Brokers[0]))
}

func TestBuild_FromYAML_MatchesBuiltin(t *testing.T) {
	// GIVEN the same-mips scenario loaded from disk
	spec, err := Load(writeScenario(t, sameMipsYAML))
	require.NoError(t, err)

	// WHEN executed
	run := execute(t, spec)

	// THEN results match the built-in preset
	assert.Equal(t, map[int]float64{0: 10, 1: 10}, finishByID(run.Brokers[0]))
}

func TestBuild_InvalidSpec_ReturnsError(t *testing.T) {
	spec := ScenarioSameMips(1)
	spec.Brokers = nil

	_, err := Build(spec, Options{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestBuild_NumbersEntitiesAndExpandsGroups(t *testing.T) {
	// GIVEN two datacenters, two host groups and counted VM and cloudlet groups
	spec := ScenarioSameMips(1)
	second := singleHostDatacenter("Datacenter_2")
	second.Hosts[0].Count = 3
	spec.Datacenters = append(spec.Datacenters, second)
	spec.Brokers[0].Vms = []VmGroupSpec{xenVms(2, 1000), xenVms(1, 500)}
	spec.Brokers[0].Cloudlets = []CloudletGroupSpec{{Count: 5, Length: 1000, Pes: 1, VmIDs: []int{0, 2}}}

	// WHEN built
	run, err := Build(spec, Options{RunID: "fixed"})
	require.NoError(t, err)

	// THEN datacenters get the first ids and hosts are numbered per datacenter
	require.Len(t, run.Datacenters, 2)
	assert.Equal(t, sim.EntityID(0), run.Datacenters[0].ID())
	assert.Equal(t, sim.EntityID(1), run.Datacenters[1].ID())
	assert.Equal(t, sim.EntityID(2), run.Brokers[0].ID())
	hosts := run.Datacenters[1].Hosts()
	require.Len(t, hosts, 3)
	for i, h := range hosts {
		assert.Equal(t, i, h.ID())
	}
	assert.Equal(t, "fixed", run.Sim.RunID())

	// AND all five cloudlets come back bound to vms 0 and 2 in turn
	require.NoError(t, run.Execute())
	received := run.Brokers[0].CloudletReceivedList()
	require.Len(t, received, 5)
	for _, snap := range received {
		want := []int{0, 2}[snap.ID%2]
		assert.Equal(t, want, snap.VmID, "cloudlet %d", snap.ID)
	}
}

func TestBuild_DefaultCharacteristicsWhenOmitted(t *testing.T) {
	spec := ScenarioSameMips(1)
	spec.Datacenters[0].Characteristics = nil

	run, err := Build(spec, Options{})

	require.NoError(t, err)
	assert.Equal(t, cloud.DefaultCharacteristics(), run.Datacenters[0].Characteristics())
}

func TestBuild_StochasticUtilization_Deterministic(t *testing.T) {
	// GIVEN a scenario with stochastic utilization
	mk := func(seed int64) *Spec {
		spec := ScenarioSameMips(seed)
		for i := range spec.Brokers[0].Cloudlets {
			spec.Brokers[0].Cloudlets[i].Utilization = &UtilizationSpec{Model: "stochastic", Value: 0.3}
		}
		return spec
	}

	// WHEN run twice with the same seed
	a := finishByID(execute(t, mk(11)).Brokers[0])
	b := finishByID(execute(t, mk(11)).Brokers[0])

	// THEN finish times match and are no earlier than at full utilization
	assert.Equal(t, a, b)
	for _, finish := range a {
		assert.GreaterOrEqual(t, finish, 10.0)
	}
}

func TestBuild_StochasticUtilization_PerBrokerStreams(t *testing.T) {
	// GIVEN a four-host datacenter and a stochastic Broker_1, alone or next to a second stochastic broker
	mk := func(brokers int) *Spec {
		spec := ScenarioSameMips(5)
		spec.Datacenters[0].Hosts[0].Count = 4
		for i := range spec.Brokers[0].Cloudlets {
			spec.Brokers[0].Cloudlets[i].Utilization = &UtilizationSpec{Model: "stochastic", Value: 0.3}
		}
		for n := 2; n <= brokers; n++ {
			other := spec.Brokers[0]
			other.Name = fmt.Sprintf("Broker_%d", n)
			spec.Brokers = append(spec.Brokers, other)
		}
		return spec
	}

	// WHEN both run
	alone := execute(t, mk(1))
	shared := execute(t, mk(2))

	// THEN Broker_1's cloudlets draw the same utilization and finish at the same times
	assert.Equal(t, finishByID(alone.Brokers[0]), finishByID(shared.Brokers[0]))
	require.Len(t, shared.Brokers, 2)
	assert.Len(t, shared.Brokers[1].CloudletReceivedList(), 2)
}

func TestBuild_Horizon_CutsOffRun(t *testing.T) {
	spec := ScenarioLinearScaling(1)
	spec.Horizon = 15

	run := execute(t, spec)

	b := run.Brokers[0]
	assert.Equal(t, map[int]float64{0: 10}, finishByID(b))
	require.Len(t, b.CloudletFailedList(), 1)
	assert.Equal(t, cloud.CloudletIncomplete, b.CloudletFailedList()[0].Status)
}

func TestBuild_MetricsScope_Threaded(t *testing.T) {
	scope := tally.NewTestScope("", nil)

	run, err := Build(ScenarioSameMips(1), Options{Metrics: scope})
	require.NoError(t, err)
	require.NoError(t, run.Execute())

	counters := scope.Snapshot().Counters()
	assert.Equal(t, int64(2), counters["broker.cloudlets_received+broker=Broker_1"].Value())
}

func TestBuildUtilization_Models(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Equal(t, cloud.UtilizationFull{}, buildUtilization(nil, rng))
	assert.Equal(t, cloud.UtilizationConstant{Value: 0.5}, buildUtilization(&UtilizationSpec{Model: "constant", Value: 0.5}, rng))
	u := buildUtilization(&UtilizationSpec{Model: "stochastic", Value: 0.4}, rng)
	assert.GreaterOrEqual(t, u.Utilization(0), 0.4)
}
