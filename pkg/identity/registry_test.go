package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireGeneratesFreshIdentities(t *testing.T) {
	r := New("worker", 0)

	a := r.Acquire()
	b := r.Acquire()

	assert.Equal(t, Identity("worker_1"), a)
	assert.Equal(t, Identity("worker_2"), b)
}

func TestReleaseThenAcquireRecyclesFIFO(t *testing.T) {
	r := New("worker", 0)

	a := r.Acquire()
	b := r.Acquire()
	r.Release(a)
	r.Release(b)

	assert.Equal(t, a, r.Acquire())
	assert.Equal(t, b, r.Acquire())
}

func TestIncrementRetryIsRaceFree(t *testing.T) {
	r := New("worker", 0)
	id := r.Acquire()

	const n = 200
	var wg sync.WaitGroup
	seen := make(chan int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- r.IncrementRetry(id)
		}()
	}
	wg.Wait()
	close(seen)

	values := make(map[int]bool)
	for v := range seen {
		assert.Falsef(t, values[v], "duplicate retry count %d observed", v)
		values[v] = true
	}
	assert.Equal(t, n, r.RetryCount(id))
}

func TestExceedsCap(t *testing.T) {
	r := New("worker", 3)

	assert.False(t, r.ExceedsCap(3))
	assert.True(t, r.ExceedsCap(4))

	unlimited := New("worker", 0)
	assert.False(t, unlimited.ExceedsCap(1000))
}

func TestRetireMarksIdentity(t *testing.T) {
	r := New("worker", 1)
	id := r.Acquire()

	assert.False(t, r.IsRetired(id))
	r.Retire(id)
	assert.True(t, r.IsRetired(id))
}
