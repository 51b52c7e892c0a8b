package dataset

import "sync"

// Locker hands out one mutex per piece label. Runs on the same label are
// serialized; distinct labels proceed in parallel.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker returns an empty lock registry. The zero value is also usable.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until label is free and returns the matching unlock func.
func (l *Locker) Lock(label string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[label]
	if !ok {
		m = &sync.Mutex{}
		l.locks[label] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
