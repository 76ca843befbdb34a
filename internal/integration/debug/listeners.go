package debug

import "sync"

// listeners is an ordered subscription list. Callbacks are invoked outside
// the lock, in subscription order.
type listeners[F any] struct {
	mu      sync.Mutex
	next    int
	entries []listener[F]
}

type listener[F any] struct {
	id int
	fn F
}

// add registers fn and returns a function that removes it. The returned
// function is safe to call more than once.
func (l *listeners[F]) add(fn F) func() {
	l.mu.Lock()
	id := l.next
	l.next++
	l.entries = append(l.entries, listener[F]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

// snapshot returns the current callbacks.
func (l *listeners[F]) snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()

	fns := make([]F, len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}
