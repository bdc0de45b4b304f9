package chat

import "sync"

// Hook collects cleanup functions and runs them exactly once, in reverse
// registration order. Safe to arm from both a signal handler and a normal
// exit path.
type Hook struct {
	mu   sync.Mutex
	fns  []func()
	once sync.Once
}

func (h *Hook) Add(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

func (h *Hook) Run() {
	h.once.Do(func() {
		h.mu.Lock()
		fns := h.fns
		h.mu.Unlock()
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}
