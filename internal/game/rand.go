package game

import (
	mathrand "math/rand"
	"sync"
	"time"
)

// RandSource yields uniform values in [0, 1).
type RandSource interface {
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *mathrand.Rand
}

// NewSeededRand returns a goroutine-safe source; equal seeds give equal sequences.
func NewSeededRand(seed int64) RandSource {
	return &lockedRand{r: mathrand.New(mathrand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func defaultRand() RandSource {
	return NewSeededRand(time.Now().UnixNano())
}

// SequenceRand replays a fixed list of values, repeating the last one when exhausted.
type SequenceRand struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func NewSequenceRand(values ...float64) *SequenceRand {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &SequenceRand{values: values}
}

func (s *SequenceRand) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next]
	if s.next < len(s.values)-1 {
		s.next++
	}
	return v
}
