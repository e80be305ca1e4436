package sync

import (
	"fmt"
	"sync"
	base "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripedLock_HappyPath(t *testing.T) {
	workerCount := 64
	operationCount := 10000

	l := NewStripedLock(4)

	var workerWg base.WaitGroup
	startChan := make(chan struct{}, 0)
	data := make([]int, workerCount)

	for i := 0; i < workerCount; i++ {
		workerWg.Add(1)

		go func(workerID int) {
			defer workerWg.Done()

			var opWg sync.WaitGroup
			key := []byte(fmt.Sprintf("worker%d", workerID))
			for j := 0; j < operationCount; j++ {
				opWg.Add(1)

				go func() {
					defer opWg.Done()

					select {
					case <-startChan:
					}

					mu := l.Get([]byte(key))
					mu.Lock()
					data[workerID]++
					mu.Unlock()
				}()
			}
			opWg.Wait()
		}(i)
	}

	close(startChan)
	workerWg.Wait()

	for _, val := range data {
		assert.EqualValues(t, operationCount, val)
	}
}

func TestStripedLock_LockKeys(t *testing.T) {
	l := NewStripedLock(8)

	// Duplicate keys and keys sharing a stripe must not self-deadlock
	keys := make([][]byte, 0, 32)
	for i := 0; i < 16; i++ {
		key := []byte(fmt.Sprintf("account%d", i))
		keys = append(keys, key, key)
	}

	unlock := l.LockKeys(keys...)
	for _, key := range keys {
		assert.False(t, l.Get(key).TryLock())
	}
	unlock()

	for _, key := range keys {
		mu := l.Get(key)
		require.True(t, mu.TryLock())
		mu.Unlock()
	}
}

func TestStripedLock_LockKeysConcurrent(t *testing.T) {
	workerCount := 32
	operationCount := 1000

	l := NewStripedLock(4)

	keys := make([][]byte, 8)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("account%d", i))
	}

	var counter int
	var wg base.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			// Overlapping key sets in different orders
			first := keys[workerID%len(keys)]
			second := keys[(workerID+3)%len(keys)]
			for j := 0; j < operationCount; j++ {
				var unlock func()
				if j%2 == 0 {
					unlock = l.LockKeys(first, second, keys[0])
				} else {
					unlock = l.LockKeys(keys[0], second, first)
				}
				counter++
				unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workerCount*operationCount, counter)
}
