package ipc

import "sync"

// StartupSignal is written once by the listener goroutine, either ready or
// carrying the failure that ended the bind phase.
type StartupSignal struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newStartupSignal() *StartupSignal {
	return &StartupSignal{done: make(chan struct{})}
}

// resolve publishes the outcome. Only the first call has any effect.
func (s *StartupSignal) resolve(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Wait blocks until the signal is written and returns the failure, if any.
func (s *StartupSignal) Wait() error {
	<-s.done
	return s.err
}
