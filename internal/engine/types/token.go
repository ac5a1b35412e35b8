package types

import "sync/atomic"

// CancelToken is a one-way cancellation flag shared between the
// orchestrator and a single worker. Once signalled it stays signalled.
type CancelToken struct {
	signalled atomic.Bool
	done      chan struct{}
}

func NewToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Signal marks the token. Repeated calls are no-ops.
func (t *CancelToken) Signal() {
	if t.signalled.CompareAndSwap(false, true) {
		close(t.done)
	}
}

func (t *CancelToken) IsSignalled() bool {
	return t.signalled.Load()
}

// Done is closed on the first Signal.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}
