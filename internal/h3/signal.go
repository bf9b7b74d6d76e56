package h3

import "sync"

// completionSignal is the single-slot edge-triggered awaitable of spec.md
// §4.5/§9: StreamRegistry.OnStreamCompleted wakes every waiter blocked in
// the shutdown drain loop, which re-checks active_request_count itself.
// This is deliberately a broadcast, not a single-wakeup semaphore. The
// drain loop is the only consumer in practice, but nothing here assumes a
// single waiter.
type completionSignal struct {
	mu   sync.Mutex
	cond *sync.Cond
	gen  uint64 // bumped on every signal, lets waiters detect spurious wakeups
}

func newCompletionSignal() *completionSignal {
	s := &completionSignal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// signal wakes every waiter currently blocked in wait.
func (s *completionSignal) signal() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// wait blocks until done() returns true, re-checking after every signal.
// A single signal only means "something completed," not that the
// predicate now holds (e.g. active_request_count == 0 with several
// streams still active), so the predicate is rechecked in a loop rather
// than trusting the first wakeup.
func (s *completionSignal) wait(done func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !done() {
		startGen := s.gen
		for s.gen == startGen {
			s.cond.Wait()
		}
	}
}
