// Package roll provides the random draws used by the game. Every draw goes
// through Source so tests can script outcomes.
package roll

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
	"time"
)

type Source interface {
	// Intn returns a value in [0,n). n must be > 0.
	Intn(n int) int
	// Float64 returns a value in [0,1).
	Float64() float64
}

type locked struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// New wraps rng so it can be shared between goroutines. A nil rng is
// seeded from crypto/rand.
func New(rng *mrand.Rand) Source {
	if rng == nil {
		rng = mrand.New(mrand.NewSource(seed()))
	}
	return &locked{rng: rng}
}

func (l *locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

func (l *locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

func seed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return int64(binary.LittleEndian.Uint64(b[:]))
	}
	return time.Now().UnixNano()
}

// Range returns a float in [lo,hi).
func Range(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

// Chance reports whether a draw in [0,outOf) lands below hits.
func Chance(src Source, hits, outOf int) bool {
	if outOf <= 0 {
		return false
	}
	return src.Intn(outOf) < hits
}
