package cloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeProvisioner_AllocateForVm_RefusesOverCapacity(t *testing.T) {
	// GIVEN a 1000 MIPS PE with 600 reserved for vm a
	p := NewPeProvisioner(1000)
	a, b := VmKey{Owner: 1, ID: 0}, VmKey{Owner: 1, ID: 1}
	assert.True(t, p.AllocateForVm(a, 600))

	// WHEN vm b asks for more than is free
	ok := p.AllocateForVm(b, 500)

	// THEN it is refused and nothing changes
	assert.False(t, ok)
	assert.Equal(t, 400.0, p.Available())
	assert.Equal(t, 0.0, p.AllocatedForVm(b))
	assert.InDelta(t, 0.6, p.Utilization(), 1e-12)
}

func TestPeProvisioner_DeallocateForVm_ReturnsCapacity(t *testing.T) {
	p := NewPeProvisioner(1000)
	a := VmKey{Owner: 1, ID: 0}
	p.AllocateForVm(a, 300)
	p.AllocateForVm(a, 200)
	assert.Equal(t, 500.0, p.AllocatedForVm(a))

	p.DeallocateForVm(a)

	assert.Equal(t, 1000.0, p.Available())
	assert.Equal(t, 0.0, p.Allocated())
}

func TestPeProvisioner_NegativeRequest_Refused(t *testing.T) {
	p := NewPeProvisioner(1000)

	assert.False(t, p.AllocateForVm(VmKey{}, -1))
}

func TestProvisioner_AllocateForVm_ReplacesReservation(t *testing.T) {
	// GIVEN a 1024 MB RAM pool with 512 held by vm a
	ram := NewRamProvisioner(1024)
	a, b := VmKey{Owner: 1, ID: 0}, VmKey{Owner: 1, ID: 1}
	assert.True(t, ram.AllocateForVm(a, 512))

	// THEN vm b cannot take 600 but vm a can grow to the whole pool
	assert.False(t, ram.IsSuitableForVm(b, 600))
	assert.True(t, ram.AllocateForVm(a, 1024))
	assert.Equal(t, int64(0), ram.Available())
	assert.Equal(t, int64(1024), ram.AllocatedForVm(a))
	assert.False(t, ram.AllocateForVm(b, 1))
}

func TestProvisioner_DeallocateForVm_FreesPool(t *testing.T) {
	bw := NewBwProvisioner(10000)
	b := VmKey{Owner: 2, ID: 0}
	a := VmKey{Owner: 1, ID: 4}
	bw.AllocateForVm(b, 1000)
	bw.AllocateForVm(a, 1000)
	assert.Equal(t, []VmKey{a, b}, bw.Holders())

	bw.DeallocateForVm(a)

	assert.Equal(t, int64(9000), bw.Available())
	assert.Equal(t, []VmKey{b}, bw.Holders())
	assert.Equal(t, "bw", bw.Resource())
}

func TestNewPeList_NumbersFromZero(t *testing.T) {
	pes := NewPeList(1000, 2000)

	assert.Len(t, pes, 2)
	assert.Equal(t, 0, pes[0].ID)
	assert.Equal(t, 1, pes[1].ID)
	assert.Equal(t, 2000.0, pes[1].Mips())
	assert.Equal(t, PeFree, pes[0].Status())
}
