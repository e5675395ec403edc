// Package rng derives independent, reproducible random streams from a root
// seed and a path of integers (generation, individual, iteration, ant, ...).
// The same path always yields the same stream, no matter which goroutine asks
// for it or in which order.
package rng

import "math/rand"

const golden = 0x9e3779b97f4a7c15

// Derive mixes the root seed with every path element using splitmix64
// finalization.
func Derive(seed int64, path ...int) int64 {
	x := uint64(seed)
	x = mix(x + golden)
	for _, p := range path {
		x = mix(x ^ mix(uint64(int64(p))+golden))
	}
	return int64(x)
}

// New returns a *rand.Rand seeded from Derive(seed, path...).
func New(seed int64, path ...int) *rand.Rand {
	return rand.New(rand.NewSource(Derive(seed, path...)))
}

func mix(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
