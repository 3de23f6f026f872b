package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srprism/srprism-batch/internal/exception"
)

func TestAllocateWithinCap(t *testing.T) {
	a := New(1) // 1 MB
	buf, err := a.Allocate(1024)
	require.NoError(t, err)
	assert.Len(t, buf, 1024)
	assert.EqualValues(t, 1024, a.Used())
}

func TestAllocateOverCapFails(t *testing.T) {
	a := New(1) // 1 MB
	_, err := a.Allocate(2 * megabyte)
	require.Error(t, err)
	assert.True(t, exception.Is(err, exception.KindResourceExhausted))
}

func TestReleaseReturnsBudget(t *testing.T) {
	a := New(1)
	buf, err := a.Allocate(megabyte)
	require.NoError(t, err)
	a.Release(len(buf))
	assert.EqualValues(t, 0, a.Used())

	_, err = a.Allocate(megabyte)
	assert.NoError(t, err)
}

func TestConcurrentAllocationsNeverExceedCap(t *testing.T) {
	a := New(1) // 1 MB budget
	var wg sync.WaitGroup
	var successes int32
	var mu sync.Mutex

	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Allocate(32 * 1024); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int64(successes)*32*1024, a.Cap())
	assert.LessOrEqual(t, a.Used(), a.Cap())
}
