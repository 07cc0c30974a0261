// Package rng provides the randomness sources every game draws from.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source yields uniform values in [0, 1).
type Source interface {
	Float64() float64
}

// Locked is a seeded PCG source safe for concurrent use.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a deterministic source for the given seed.
func NewSeeded(seed uint64) *Locked {
	return &Locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// New returns a source seeded from crypto/rand.
func New() *Locked {
	return NewSeeded(NewSeed())
}

// NewSeed reads a random seed from the operating system.
func NewSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Uint64()
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Float64 implements Source.
func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// IntN draws a uniform integer in [0, n) from src.
func IntN(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	v := int(src.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Uniform draws a uniform float in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Fixed replays a list of values in order, wrapping around at the end.
// It is meant for reproducing exact outcomes in tests and simulations.
type Fixed struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewFixed returns a Fixed source over values.
func NewFixed(values ...float64) *Fixed {
	return &Fixed{values: values}
}

// Float64 implements Source.
func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return 0
	}
	v := f.values[f.next%len(f.values)]
	f.next++
	return v
}

// Draws reports how many values have been consumed.
func (f *Fixed) Draws() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}
