package cloud

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vmSpec(id int, mips float64, pes int) VmSpec {
	return VmSpec{ID: id, BrokerID: 1, Mips: mips, Pes: pes, Ram: 512, Bw: 1000, Size: 10000, Vmm: "Xen"}
}

func sumShares(shares []float64) float64 {
	total := 0.0
	for _, m := range shares {
		total += m
	}
	return total
}

func TestVmScheduler_TimeShared_UndersubscribedGrantsRequest(t *testing.T) {
	// GIVEN one 2000 MIPS PE and two 1000 MIPS VMs
	s := NewVmScheduler(VmSchedulerTimeShared, NewPeList(2000))
	require.NoError(t, s.Allocate(vmSpec(0, 1000, 1)))
	require.NoError(t, s.Allocate(vmSpec(1, 1000, 1)))

	// THEN each VM receives its full request
	assert.Equal(t, []float64{1000}, s.AllocatedMips(vmSpec(0, 0, 0).Key()))
	assert.Equal(t, []float64{1000}, s.AllocatedMips(vmSpec(1, 0, 0).Key()))
	assert.InDelta(t, 2000, s.AllocatedTotal(), 1e-9)
}

func TestVmScheduler_TimeShared_OversubscribedSlicesEqually(t *testing.T) {
	// GIVEN one 2000 MIPS PE and three 1000 MIPS VMs
	s := NewVmScheduler(VmSchedulerTimeShared, NewPeList(2000))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Allocate(vmSpec(i, 1000, 1)))
	}

	// THEN each gets 2000/3 and the PE is never over-allocated
	for i := 0; i < 3; i++ {
		shares := s.AllocatedMips(vmSpec(i, 0, 0).Key())
		require.Len(t, shares, 1)
		assert.InDelta(t, 2000.0/3, shares[0], 1e-9)
	}
	assert.LessOrEqual(t, s.AllocatedTotal(), s.TotalMips()+mipsEpsilon)
}

func TestVmScheduler_TimeShared_UnequalRequestsCappedAtEqualSlice(t *testing.T) {
	// GIVEN a 2000 MIPS PE and VMs requesting 500 and 2000 MIPS
	s := NewVmScheduler(VmSchedulerTimeShared, NewPeList(2000))
	require.NoError(t, s.Allocate(vmSpec(0, 500, 1)))
	require.NoError(t, s.Allocate(vmSpec(1, 2000, 1)))

	// THEN each gets min(request, 2000/2) and the 500 left over stays unallocated
	assert.Equal(t, []float64{500}, s.AllocatedMips(vmSpec(0, 0, 0).Key()))
	assert.Equal(t, []float64{1000}, s.AllocatedMips(vmSpec(1, 0, 0).Key()))
	assert.InDelta(t, 1500, s.AllocatedTotal(), 1e-9)
}

func TestVmScheduler_TimeShared_MultiPeVmSplitsSliceOverPes(t *testing.T) {
	// GIVEN two 1000 MIPS PEs, a 2-PE VM at 1000 and a 1-PE VM at 1000
	s := NewVmScheduler(VmSchedulerTimeShared, NewPeList(1000, 1000))
	require.NoError(t, s.Allocate(vmSpec(0, 1000, 2)))
	require.NoError(t, s.Allocate(vmSpec(1, 1000, 1)))

	// THEN the wide VM's 1000 MIPS slice is spread over its two virtual PEs
	assert.Equal(t, []float64{500, 500}, s.AllocatedMips(vmSpec(0, 0, 0).Key()))
	assert.Equal(t, []float64{1000}, s.AllocatedMips(vmSpec(1, 0, 0).Key()))
	assert.LessOrEqual(t, s.AllocatedTotal(), s.TotalMips()+mipsEpsilon)
}

func TestVmScheduler_TimeSharedProportional_UnequalRequestsKeepRatio(t *testing.T) {
	// GIVEN a 2000 MIPS PE and VMs requesting 500 and 2000 MIPS under proportional sharing
	s := NewVmScheduler(VmSchedulerTimeSharedProportional, NewPeList(2000))
	require.NoError(t, s.Allocate(vmSpec(0, 500, 1)))
	require.NoError(t, s.Allocate(vmSpec(1, 2000, 1)))

	// THEN shares keep the 1:4 ratio and sum to capacity
	assert.InDelta(t, 400, sumShares(s.AllocatedMips(vmSpec(0, 0, 0).Key())), 1e-9)
	assert.InDelta(t, 1600, sumShares(s.AllocatedMips(vmSpec(1, 0, 0).Key())), 1e-9)
	assert.InDelta(t, 2000, s.AllocatedTotal(), 1e-9)
}

func TestVmScheduler_TimeSharedProportional_UndersubscribedGrantsRequest(t *testing.T) {
	s := NewVmScheduler(VmSchedulerTimeSharedProportional, NewPeList(2000))
	require.NoError(t, s.Allocate(vmSpec(0, 500, 1)))
	require.NoError(t, s.Allocate(vmSpec(1, 1000, 1)))

	assert.Equal(t, []float64{500}, s.AllocatedMips(vmSpec(0, 0, 0).Key()))
	assert.Equal(t, []float64{1000}, s.AllocatedMips(vmSpec(1, 0, 0).Key()))
}

func TestVmScheduler_TimeShared_ReleaseRestoresShares(t *testing.T) {
	// GIVEN three VMs slicing one PE
	s := NewVmScheduler(VmSchedulerTimeShared, NewPeList(2000))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Allocate(vmSpec(i, 1000, 1)))
	}

	// WHEN one VM is released
	s.Release(vmSpec(2, 0, 0).Key())

	// THEN the remaining two get their full request again
	assert.Equal(t, []float64{1000}, s.AllocatedMips(vmSpec(0, 0, 0).Key()))
	assert.Equal(t, []float64{1000}, s.AllocatedMips(vmSpec(1, 0, 0).Key()))
	assert.Nil(t, s.AllocatedMips(vmSpec(2, 0, 0).Key()))
	assert.Len(t, s.Vms(), 2)
}

func TestVmScheduler_TimeShared_MultiPeVmPacksAcrossPes(t *testing.T) {
	// GIVEN two 1000 MIPS PEs and one VM with 2 PEs at 1000
	pes := NewPeList(1000, 1000)
	s := NewVmScheduler(VmSchedulerTimeShared, pes)
	key := vmSpec(0, 0, 0).Key()

	// WHEN it is allocated
	require.NoError(t, s.Allocate(vmSpec(0, 1000, 2)))

	// THEN each physical PE holds 1000 for it
	assert.Equal(t, []float64{1000, 1000}, s.AllocatedMips(key))
	assert.Equal(t, 1000.0, pes[0].Provisioner().AllocatedForVm(key))
	assert.Equal(t, 1000.0, pes[1].Provisioner().AllocatedForVm(key))
	assert.Equal(t, 0, s.FreePes())
}

func TestVmScheduler_TimeShared_Admission(t *testing.T) {
	tests := []struct {
		name string
		spec VmSpec
		ok   bool
	}{
		{"fits", vmSpec(0, 1000, 1), true},
		{"too many pes", vmSpec(0, 1000, 2), false},
		{"mips above largest pe", vmSpec(0, 2500, 1), false},
		{"zero pes", vmSpec(0, 1000, 0), false},
		{"zero mips", vmSpec(0, 0, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewVmScheduler(VmSchedulerTimeShared, NewPeList(2000))
			err := s.IsSuitable(tt.spec)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrProvisionerExhausted), "got %v", err)
		})
	}
}

func TestVmScheduler_TimeShared_DuplicateRejected(t *testing.T) {
	s := NewVmScheduler(VmSchedulerTimeShared, NewPeList(2000))
	require.NoError(t, s.Allocate(vmSpec(0, 1000, 1)))

	assert.Error(t, s.Allocate(vmSpec(0, 1000, 1)))
}

func TestVmScheduler_SpaceShared_ExclusivePes(t *testing.T) {
	// GIVEN two 1000 MIPS PEs under space sharing
	pes := NewPeList(1000, 1000)
	s := NewVmScheduler(VmSchedulerSpaceShared, pes)

	// WHEN a 1-PE VM is placed
	require.NoError(t, s.Allocate(vmSpec(0, 1000, 1)))

	// THEN a 2-PE VM no longer fits but another 1-PE VM does
	err := s.Allocate(vmSpec(1, 1000, 2))
	assert.True(t, errors.Is(err, ErrProvisionerExhausted))
	require.NoError(t, s.Allocate(vmSpec(2, 1000, 1)))
	assert.Equal(t, 0, s.FreePes())
	assert.Equal(t, PeAllocated, pes[0].Status())

	// WHEN the first VM is released
	s.Release(vmSpec(0, 0, 0).Key())

	// THEN its PE is free again
	assert.Equal(t, 1, s.FreePes())
	assert.Equal(t, PeFree, pes[0].Status())
}

func TestVmScheduler_SpaceShared_PeTooSlow(t *testing.T) {
	s := NewVmScheduler(VmSchedulerSpaceShared, NewPeList(500, 500))

	err := s.IsSuitable(vmSpec(0, 1000, 1))

	assert.True(t, errors.Is(err, ErrProvisionerExhausted))
}

func TestVmScheduler_SpaceShared_NeverOversubscribes(t *testing.T) {
	// GIVEN four PEs and more VM requests than PEs
	s := NewVmScheduler(VmSchedulerSpaceShared, NewPeList(1000, 1000, 1000, 1000))
	accepted := 0
	for i := 0; i < 6; i++ {
		if s.Allocate(vmSpec(i, 1000, 1)) == nil {
			accepted++
		}
	}

	// THEN only as many VMs as PEs are held
	assert.Equal(t, 4, accepted)
	assert.LessOrEqual(t, s.AllocatedTotal(), s.TotalMips())
}

func TestNewVmScheduler_UnknownPolicy_Panics(t *testing.T) {
	assert.Panics(t, func() { NewVmScheduler("round-robin", NewPeList(1000)) })
}

func TestNewVmScheduler_EmptyPolicy_DefaultsToTimeShared(t *testing.T) {
	s := NewVmScheduler("", NewPeList(1000))

	assert.Equal(t, VmSchedulerTimeShared, s.Policy())
}

func TestIsValidVmSchedulerPolicy(t *testing.T) {
	assert.True(t, IsValidVmSchedulerPolicy("time-shared"))
	assert.True(t, IsValidVmSchedulerPolicy("space-shared"))
	assert.True(t, IsValidVmSchedulerPolicy("time-shared-proportional"))
	assert.True(t, IsValidVmSchedulerPolicy(""))
	assert.False(t, IsValidVmSchedulerPolicy("TimeShared"))
}
