// Package combattest provides deterministic rollers for tests.
package combattest

import "sync"

// Script replays fixed values. Once a queue runs dry Float64 returns
// Fallback and Intn returns 0.
type Script struct {
	mu       sync.Mutex
	Floats   []float64
	Ints     []int
	Fallback float64
	calls    int
}

// Float64 pops the next scripted float.
func (s *Script) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.Floats) == 0 {
		return s.Fallback
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

// Intn pops the next scripted int, reduced modulo n.
func (s *Script) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.Ints) == 0 || n <= 0 {
		return 0
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	return v % n
}

// Calls reports how many rolls were consumed.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Always returns a roller that yields v for every Float64 call.
func Always(v float64) *Script {
	return &Script{Fallback: v}
}
