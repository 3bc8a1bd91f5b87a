package sim

import (
	"hash/fnv"
	"math/rand"
)

// BrokerStream names the stream a broker's cloudlets draw utilization from.
func BrokerStream(broker string) string {
	return "broker/" + broker
}

// PartitionedRNG hands out one *rand.Rand per named stream. A stream is
// seeded with seed XOR fnv1a64(name), so draws on one stream never move
// another and two runs with the same seed see the same values.
//
// Not safe for concurrent use.
type PartitionedRNG struct {
	seed    int64
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates an RNG family rooted at seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, streams: make(map[string]*rand.Rand)}
}

// Stream returns the generator for name, creating it on first use.
func (p *PartitionedRNG) Stream(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.streams[name] = rng
	return rng
}

// ForBroker is Stream(BrokerStream(broker)).
func (p *PartitionedRNG) ForBroker(broker string) *rand.Rand {
	return p.Stream(BrokerStream(broker))
}

// Seed returns the root seed.
func (p *PartitionedRNG) Seed() int64 { return p.seed }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
