package auction

import "sync"

// keyedMutex serializes work per key while letting different keys proceed
// independently. Entries are reference-counted and removed when the last
// holder unlocks, so the map doesn't grow with the number of auctions ever
// seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: map[string]*keyLock{},
	}
}

// lock acquires the mutex for key and returns the corresponding unlock.
func (km *keyedMutex) lock(key string) (unlock func()) {
	km.mu.Lock()
	kl, ok := km.locks[key]
	if !ok {
		kl = &keyLock{}
		km.locks[key] = kl
	}
	kl.refs++
	km.mu.Unlock()

	kl.Lock()

	return func() {
		kl.Unlock()

		km.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
