package roll

import "sync"

// Script replays fixed draws in order and then repeats the last one. It is
// meant for tests that need a specific outcome.
type Script struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
}

func NewScript(ints []int, floats []float64) *Script {
	return &Script{ints: ints, floats: floats}
}

func (s *Script) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := 0
	if len(s.ints) > 0 {
		v = s.ints[0]
		if len(s.ints) > 1 {
			s.ints = s.ints[1:]
		}
	}
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

func (s *Script) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := 0.0
	if len(s.floats) > 0 {
		v = s.floats[0]
		if len(s.floats) > 1 {
			s.floats = s.floats[1:]
		}
	}
	return v
}
