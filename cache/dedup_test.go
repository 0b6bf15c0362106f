package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicator_SharesPendingCall(t *testing.T) {
	d := NewDeduplicator()
	release := make(chan struct{})
	var calls atomic.Int32
	var leaders atomic.Int32

	fn := func() (any, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, leader, err := d.RunExclusive("k", fn)
			assert.NoError(t, err)
			if leader {
				leaders.Add(1)
			}
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), leaders.Load())
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
	assert.Zero(t, d.InFlight())
}

func TestDeduplicator_NewCallAfterRemoval(t *testing.T) {
	d := NewDeduplicator()
	boom := errors.New("boom")

	_, leader, err := d.RunExclusive("k", func() (any, error) { return nil, boom })
	assert.True(t, leader)
	assert.ErrorIs(t, err, boom)

	v, leader, err := d.RunExclusive("k", func() (any, error) { return 2, nil })
	assert.True(t, leader)
	assert.NoError(t, err)
	assert.Equal(t, 2, v)
}
