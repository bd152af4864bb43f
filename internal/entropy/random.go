// Package entropy provides the randomness behind every stochastic arena event:
// scam coin flips, cartel attempts, alliance pairing, redistribution winners.
// A seeded source makes runs reproducible; the crypto source is the default
// when no seed is wanted.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source is a concurrency-safe random number source.
type Source interface {
	Float64() float64 // [0, 1)
	Intn(n int) int   // [0, n)
}

// Seeded is a deterministic Source guarded by a mutex so matching goroutines
// can share it.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a deterministic source.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Float64 returns a float in [0, 1).
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Intn returns an int in [0, n). Returns 0 when n <= 0.
func (s *Seeded) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Crypto draws from crypto/rand. The zero value is ready to use.
type Crypto struct{}

// Float64 returns a float in [0, 1).
func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

// Intn returns an int in [0, n). Returns 0 when n <= 0.
func (Crypto) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(cryptoRandFloat() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// cryptoRandFloat generates a random float64 using crypto/rand.
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

// Between returns a uniform value in [lo, hi).
func Between(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Chance reports whether a draw lands under p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Fixed is a Source that replays a scripted sequence of floats, then repeats the
// last one. Intn maps the next float onto [0, n). Useful for pinning coin flips.
type Fixed struct {
	mu     sync.Mutex
	Values []float64
	next   int
}

// Float64 returns the next scripted value.
func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Values) == 0 {
		return 0
	}
	i := f.next
	if i >= len(f.Values) {
		i = len(f.Values) - 1
	} else {
		f.next++
	}
	return f.Values[i]
}

// Intn maps the next scripted value onto [0, n).
func (f *Fixed) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(f.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
