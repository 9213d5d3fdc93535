package session

import "sync"

// keyedLocks serializes work per game id. Entries are dropped once nobody holds or
// waits on them, so idle games cost nothing.
type keyedLocks struct {
    mu    sync.Mutex
    locks map[string]*keyedLock
}

type keyedLock struct {
    mu   sync.Mutex
    refs int
}

func newKeyedLocks() *keyedLocks {
    return &keyedLocks{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the key is free and returns its release func.
func (k *keyedLocks) Lock(key string) func() {
    k.mu.Lock()
    l, ok := k.locks[key]
    if !ok {
        l = &keyedLock{}
        k.locks[key] = l
    }
    l.refs++
    k.mu.Unlock()

    l.mu.Lock()
    return func() {
        l.mu.Unlock()
        k.mu.Lock()
        l.refs--
        if l.refs == 0 {
            delete(k.locks, key)
        }
        k.mu.Unlock()
    }
}

func (k *keyedLocks) size() int {
    k.mu.Lock()
    defer k.mu.Unlock()
    return len(k.locks)
}
