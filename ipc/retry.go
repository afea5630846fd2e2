package ipc

import "time"

// RetryBudget bounds bind attempts. It is owned by the listener goroutine.
type RetryBudget struct {
	Remaining int
	Delay     time.Duration
}

// take consumes one attempt and reports whether it was available.
func (b *RetryBudget) take() bool {
	if b.Remaining <= 0 {
		return false
	}
	b.Remaining--
	return true
}

// exhausted reports whether no attempts are left.
func (b *RetryBudget) exhausted() bool { return b.Remaining <= 0 }
