package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StepClock returns Start, Start+Step, Start+2*Step, ... on successive calls.
type StepClock struct {
	mu    sync.Mutex
	Start time.Time
	Step  time.Duration
	n     int
}

func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{Start: start.UTC(), Step: step}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.Start.Add(time.Duration(c.n) * c.Step)
	c.n++
	return t
}

// Peek returns the instant the next call to Now will return.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Start.Add(time.Duration(c.n) * c.Step)
}

// SeqIDs mints "<prefix>-1", "<prefix>-2", ...
type SeqIDs struct {
	mu     sync.Mutex
	Prefix string
	n      int
}

func (s *SeqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	p := s.Prefix
	if p == "" {
		p = "id"
	}
	return fmt.Sprintf("%s-%d", p, s.n)
}
