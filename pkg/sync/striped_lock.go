package sync

import (
	"sort"
	base "sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock partitions the account key space onto a fixed set of locks so
// that transactions touching disjoint accounts can execute concurrently.
type StripedLock struct {
	locks []base.RWMutex
	ring  *stripeRing
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	return &StripedLock{
		locks: make([]base.RWMutex, stripes),
		ring:  newStripeRing(stripes, hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.index(key)]
}

// LockKeys exclusively locks the stripes of every provided key and returns a
// function that releases them. Stripes shared by several keys are locked once,
// and stripes are always acquired in ascending order so that concurrent callers
// with overlapping key sets cannot deadlock.
func (l *StripedLock) LockKeys(keys ...[]byte) (unlock func()) {
	seen := make(map[int]struct{})
	var stripes []int
	for _, key := range keys {
		idx := l.index(key)
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		stripes = append(stripes, idx)
	}
	sort.Ints(stripes)

	for _, idx := range stripes {
		l.locks[idx].Lock()
	}

	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			l.locks[stripes[i]].Unlock()
		}
	}
}

func (l *StripedLock) index(key []byte) int {
	return l.ring.stripe(key)
}
