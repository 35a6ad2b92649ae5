package common

import "sync"

// SubnetLocks hands out one mutex per subnet so read-check-then-write
// sequences on the same subnet serialise while cross-subnet operations
// proceed in parallel.
type SubnetLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSubnetLocks constructs an empty lock table.
func NewSubnetLocks() *SubnetLocks {
	return &SubnetLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the subnet's mutex and returns the matching unlock function.
func (l *SubnetLocks) Lock(subnet string) func() {
	l.mu.Lock()
	m, ok := l.locks[subnet]
	if !ok {
		m = &sync.Mutex{}
		l.locks[subnet] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
