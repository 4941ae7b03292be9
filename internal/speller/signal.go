package speller

import "sync"

// signal is a one-shot notification: fired at most once by a single
// producer and awaited by a single consumer.
type signal struct {
	once sync.Once
	ch   chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// fire releases the waiter. Calls after the first are ignored and report false.
func (s *signal) fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.ch)
		fired = true
	})
	return fired
}

func (s *signal) done() <-chan struct{} {
	return s.ch
}
