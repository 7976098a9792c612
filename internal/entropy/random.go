// Package entropy provides the uniform random source shared by every
// stochastic step of the simulation. Seeded sources make runs reproducible;
// the crypto source is used when no seed is configured.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	mrand "math/rand"
	"sync"
)

// Source is a uniform deviate generator. *math/rand.Rand satisfies it.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n). It panics if n <= 0.
	Intn(n int) int
	// Shuffle pseudo-randomizes the order of n elements using swap.
	Shuffle(n int, swap func(i, j int))
}

// NewSeeded returns a deterministic source for the given seed.
func NewSeeded(seed int64) Source {
	return mrand.New(mrand.NewSource(seed))
}

// Chance reports whether a fresh deviate falls below p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Pick returns a uniformly chosen element of items. The second result is
// false when items is empty; no deviate is consumed in that case.
func Pick[T any](src Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[src.Intn(len(items))], true
}

// Crypto draws from crypto/rand. It is safe for concurrent use but not
// reproducible.
type Crypto struct {
	mu sync.Mutex
}

// NewCrypto returns a crypto-backed source.
func NewCrypto() *Crypto {
	return &Crypto{}
}

// Float64 returns a value in [0, 1).
func (c *Crypto) Float64() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cryptoRandFloat()
}

// Intn returns a value in [0, n).
func (c *Crypto) Intn(n int) int {
	if n <= 0 {
		panic("entropy: invalid argument to Intn")
	}
	v := int(c.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Shuffle performs a Fisher-Yates shuffle.
func (c *Crypto) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := c.Intn(i + 1)
		swap(i, j)
	}
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(uint64(1)<<53)
}

// ForSeed returns a seeded source, or a crypto source when seed is zero.
func ForSeed(seed int64) Source {
	if seed == 0 {
		return NewCrypto()
	}
	return NewSeeded(seed)
}

// Scripted replays a fixed sequence of deviates, then repeats the last one.
// Intn maps each deviate onto [0, n). Shuffle is the identity. It exists for
// tests that need to force specific outcomes.
type Scripted struct {
	Values []float64
	pos    int
}

// Float64 returns the next scripted value.
func (s *Scripted) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	if s.pos >= len(s.Values) {
		return s.Values[len(s.Values)-1]
	}
	v := s.Values[s.pos]
	s.pos++
	return v
}

// Intn maps the next scripted value onto [0, n).
func (s *Scripted) Intn(n int) int {
	if n <= 0 {
		panic("entropy: invalid argument to Intn")
	}
	return int(math.Min(s.Float64()*float64(n), float64(n-1)))
}

// Shuffle leaves the order unchanged.
func (s *Scripted) Shuffle(int, func(i, j int)) {}
