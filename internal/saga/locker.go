package saga

import "sync"

// customerLocks enforces single-flight checkout per customer. TryAcquire
// never blocks: a second checkout while one is mid-saga fails fast instead
// of queueing behind it, which is what prevents double-charging from a
// double-click.
type customerLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newCustomerLocks() *customerLocks {
	return &customerLocks{held: make(map[string]struct{})}
}

func (l *customerLocks) TryAcquire(customerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[customerID]; busy {
		return false
	}
	l.held[customerID] = struct{}{}
	return true
}

func (l *customerLocks) Release(customerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, customerID)
}
