package sim

import "fmt"

// Clock holds simulated time in seconds. It only moves forward.
type Clock struct {
	now float64
}

// Now returns the current simulated time.
func (c *Clock) Now() float64 {
	return c.now
}

// AdvanceTo moves the clock to t. Panics if t is earlier than the current time.
func (c *Clock) AdvanceTo(t float64) {
	if t < c.now {
		panic(fmt.Sprintf("clock went backwards: %v < %v", t, c.now))
	}
	c.now = t
}
