package ratelimit

import (
	"sync"
	"time"

	"github.com/sk3pz/anglerbot/internal/clock"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/roll"
)

// Limiter hands out a jittered cooldown in [min, max) per bucket.
type Limiter struct {
	mu   sync.Mutex
	next map[string]time.Time
	min  time.Duration
	max  time.Duration
	clk  clock.Clock
	src  roll.Source
}

func NewLimiter(min, max time.Duration, clk clock.Clock, src roll.Source) *Limiter {
	if clk == nil {
		clk = clock.Real{}
	}
	if src == nil {
		src = roll.New(nil)
	}
	if max < min {
		max = min
	}

	return &Limiter{
		next: make(map[string]time.Time),
		min:  min,
		max:  max,
		clk:  clk,
		src:  src,
	}
}

// TryKey reports whether key is off cooldown, starting a new one if so.
// Otherwise it returns how long is left.
func (l *Limiter) TryKey(key string) (bool, time.Duration) {
	now := l.clk.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.next[key]; ok && now.Before(until) {
		return false, until.Sub(now)
	}

	if l.max <= 0 {
		return true, 0
	}
	l.next[key] = now.Add(l.nextCooldown())
	return true, 0
}

func (l *Limiter) Try(key ledger.Key) (bool, time.Duration) {
	return l.TryKey(key.String())
}

func (l *Limiter) TryGuild(guildId, bucket string) (bool, time.Duration) {
	return l.TryKey("g:" + guildId + "|b:" + bucket)
}

func (l *Limiter) nextCooldown() time.Duration {
	if l.min == l.max {
		return l.min
	}
	span := l.max - l.min

	jitter := time.Duration(float64(span) * l.src.Float64())
	return l.min + jitter
}

// Reset lifts the cooldown on key, e.g. when the command it guarded was
// refused.
func (l *Limiter) Reset(key ledger.Key) {
	l.mu.Lock()
	delete(l.next, key.String())
	l.mu.Unlock()
}

// Sweep forgets cooldowns that have run out.
func (l *Limiter) Sweep() int {
	now := l.clk.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, until := range l.next {
		if !now.Before(until) {
			delete(l.next, k)
			n++
		}
	}
	return n
}
