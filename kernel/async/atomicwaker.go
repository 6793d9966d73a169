package async

import "sync"

// AtomicWaker holds at most one Waker, exposing register/take/wake
// operations that are safe to call concurrently from a polling task and
// from whatever interrupt or completion handler will eventually signal it.
// It plays the same role as futures_util::task::AtomicWaker does for the
// sleep and scancode futures.
type AtomicWaker struct {
	mu    sync.Mutex
	waker Waker
}

// Register stores w, replacing any previously registered waker.
func (a *AtomicWaker) Register(w Waker) {
	a.mu.Lock()
	a.waker = w
	a.mu.Unlock()
}

// Take removes and returns the currently registered waker, if any.
func (a *AtomicWaker) Take() Waker {
	a.mu.Lock()
	w := a.waker
	a.waker = nil
	a.mu.Unlock()
	return w
}

// Wake takes the registered waker, if any, and invokes Wake on it.
func (a *AtomicWaker) Wake() {
	if w := a.Take(); w != nil {
		w.Wake()
	}
}
