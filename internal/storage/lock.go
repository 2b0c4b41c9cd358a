package storage

import "sync"

// Locker serializes work on one conversation. Ids are keyed by SafeName, so
// ids that share a stored record share a lock. Different conversations never
// contend. The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until the conversation is free and returns its unlock func.
func (l *Locker) Lock(conversationID string) (unlock func()) {
	key := SafeName(conversationID)

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	k, ok := l.locks[key]
	if !ok {
		k = &keyLock{}
		l.locks[key] = k
	}
	k.refs++
	l.mu.Unlock()

	k.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Unlock()
			l.mu.Lock()
			k.refs--
			if k.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// held reports how many callers hold or wait for conversationID.
func (l *Locker) held(conversationID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if k, ok := l.locks[SafeName(conversationID)]; ok {
		return k.refs
	}
	return 0
}
