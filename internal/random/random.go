// Package random derives reproducible per-subsystem random sources from a
// receiver seed.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"
)

// DeterministicSeedValue hashes the root seed and a subsystem label into a
// non-zero source seed.
func DeterministicSeedValue(rootSeed int64, label string) int64 {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], uint64(rootSeed))
	hasher := fnv.New64a()
	hasher.Write(raw[:])
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns a source that yields the same sequence for the
// same (rootSeed, label) pair.
func NewDeterministicRNG(rootSeed int64, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// Float returns a draw in [0, 1) from rng, falling back to the global source
// when rng is nil.
func Float(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
