package auction

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	km := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		counter int
	)

	const n = 100

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := km.lock("k")
			defer unlock()

			counter++
		}()
	}

	wg.Wait()

	if want, have := n, counter; want != have {
		t.Errorf("counter: want %d, have %d", want, have)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock("a")
	defer unlockA()

	// Holding "a" must not block "b".
	done := make(chan struct{})
	go func() {
		unlockB := km.lock("b")
		unlockB()
		close(done)
	}()

	<-done
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	km.lock("a")()
	km.lock("b")()

	km.mu.Lock()
	defer km.mu.Unlock()

	if want, have := 0, len(km.locks); want != have {
		t.Errorf("live entries: want %d, have %d", want, have)
	}
}
