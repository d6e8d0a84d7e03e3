// Package entropy provides the uniform random sources used for effect rolls.
// Seeded sources keep runs reproducible; crypto/rand backs the fallback.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mathrand "math/rand"
	"sync"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float() float64
}

// Seeded is a deterministic Source safe for concurrent use.
type Seeded struct {
	mu  sync.Mutex
	rng *mathrand.Rand
}

// NewSeeded creates a Source from a seed. A zero seed draws one from crypto/rand.
func NewSeeded(seed int64) *Seeded {
	if seed == 0 {
		seed = int64(cryptoRandFloat() * math.MaxInt64)
	}
	return &Seeded{rng: mathrand.New(mathrand.NewSource(seed))}
}

// Float returns the next value in [0, 1).
func (s *Seeded) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Sequence replays a fixed list of values, cycling when exhausted.
// Used to script exact roll outcomes.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence creates a Source that returns values in order.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float returns the next scripted value, or a crypto value if none were given.
func (s *Sequence) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return cryptoRandFloat()
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Crypto is a Source backed by crypto/rand.
type Crypto struct{}

// Float returns a crypto-random value.
func (Crypto) Float() float64 {
	return cryptoRandFloat()
}

// FloatFromSource returns a value from src, or crypto/rand when src is nil.
func FloatFromSource(src Source) float64 {
	if src != nil {
		return src.Float()
	}
	return cryptoRandFloat()
}

// cryptoRandFloat generates a random float64 using crypto/rand as fallback.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
