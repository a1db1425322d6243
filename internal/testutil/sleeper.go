package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/kernforge/internal/artifact"
)

// Sleeper hands out actions that sleep and record when they ran. It is the
// shared fixture for concurrency tests.
type Sleeper struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewSleeper creates a sleeper. completionChan, when non-nil, receives the ID
// of every action as it finishes.
func NewSleeper(completionChan chan<- string, sleep time.Duration) *Sleeper {
	return &Sleeper{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

// Action returns an action for the node called id. A non-nil fail is
// returned after sleeping.
func (s *Sleeper) Action(id string, fail error) artifact.Action {
	return artifact.ActionFunc(func(ctx context.Context, _ *artifact.Env) error {
		startTime := time.Now()
		select {
		case <-time.After(s.sleepDuration):
		case <-ctx.Done():
			return ctx.Err()
		}
		endTime := time.Now()

		s.mu.Lock()
		s.ExecutionTimes[id] = &ExecutionRecord{Start: startTime, End: endTime}
		s.mu.Unlock()

		if s.completionChan != nil {
			s.completionChan <- id
		}
		return fail
	})
}

// Record returns the execution record for id, if it ran.
func (s *Sleeper) Record(id string) (*ExecutionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ExecutionTimes[id]
	return r, ok
}
