package cloud

import (
	"fmt"
	"math/rand"
)

// UtilizationModel returns the fraction of a requested resource a cloudlet
// uses at simulated time t, in [0, 1].
type UtilizationModel interface {
	Utilization(t float64) float64
}

// UtilizationFull always uses the whole resource.
type UtilizationFull struct{}

func (UtilizationFull) Utilization(float64) float64 { return 1 }

// UtilizationConstant uses a fixed fraction.
type UtilizationConstant struct {
	Value float64
}

func (u UtilizationConstant) Utilization(float64) float64 { return clampUnit(u.Value) }

// UtilizationStochastic uses a fraction drawn once from a seeded RNG, so a
// given seed always yields the same rate and projected finish times hold.
type UtilizationStochastic struct {
	value float64
}

// NewUtilizationStochastic draws a fraction uniformly from [floor, 1).
func NewUtilizationStochastic(rng *rand.Rand, floor float64) *UtilizationStochastic {
	floor = clampUnit(floor)
	return &UtilizationStochastic{value: floor + (1-floor)*rng.Float64()}
}

func (u *UtilizationStochastic) Utilization(float64) float64 { return u.value }

func (u *UtilizationStochastic) String() string {
	return fmt.Sprintf("stochastic(%.4f)", u.value)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// utilizationOrFull treats a nil model as UtilizationFull.
func utilizationOrFull(m UtilizationModel) UtilizationModel {
	if m == nil {
		return UtilizationFull{}
	}
	return m
}
