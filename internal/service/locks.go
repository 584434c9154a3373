package service

import "sync"

// showLocks hands out one mutex per show ID so that the check-then-
// commit sequence of a seat claim is serialized per show: reservations
// for different shows never block each other, while two claims on the
// same show can never interleave their read-modify-write.  Mutexes are
// created lazily on first use and never removed; the map grows with
// the number of distinct shows ever reserved, which is bounded by the
// catalog size.
type showLocks struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

func newShowLocks() *showLocks {
	return &showLocks{locks: make(map[uint64]*sync.Mutex)}
}

// forShow returns the mutex guarding the given show, creating it if
// this is the first claim on that show.
func (l *showLocks) forShow(showID uint64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[showID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[showID] = m
	}
	return m
}
