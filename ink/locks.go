package ink

import "sync"

// =============================================================================
// PER-USER LOCKS - Serialize read-then-write sequences per user
// =============================================================================

// userLocks hands out one mutex per user id. Operations on unrelated users
// never contend: the registry mutex is held only long enough to look up or
// create the per-user mutex, never across storage I/O.
//
// Locks are never removed. The set of active users is bounded and a bare
// mutex is 8 bytes; reclaiming them is not worth the release races.
type userLocks struct {
	mu    sync.Mutex
	locks map[UserID]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[UserID]*sync.Mutex)}
}

func (l *userLocks) get(id UserID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// lock acquires the user's mutex and returns the release func.
func (l *userLocks) lock(id UserID) func() {
	m := l.get(id)
	m.Lock()
	return m.Unlock
}

// lockPair acquires both users' mutexes in lexicographic id order, so two
// transfers running in opposite directions cannot deadlock.
func (l *userLocks) lockPair(a, b UserID) func() {
	if b < a {
		a, b = b, a
	}
	ma, mb := l.get(a), l.get(b)
	ma.Lock()
	mb.Lock()
	return func() {
		mb.Unlock()
		ma.Unlock()
	}
}
