package store

import "sync"

// KeyedMutex serializes profile access per user. The tick driver and the
// command layer share one instance, so a tick's read-modify-write for a user
// can never interleave with a configuration or manual-log write for the same
// user. Entries are never removed; cardinality is one mutex per known user.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewKeyedMutex returns an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*sync.Mutex)}
}

func (k *KeyedMutex) get(userID int64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		k.locks[userID] = l
	}
	return l
}

// Lock acquires the mutex for userID.
func (k *KeyedMutex) Lock(userID int64) { k.get(userID).Lock() }

// Unlock releases the mutex for userID.
func (k *KeyedMutex) Unlock(userID int64) { k.get(userID).Unlock() }
