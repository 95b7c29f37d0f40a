package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_StartsAtEpoch(t *testing.T) {
	clock := NewStepClock(time.Millisecond)
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, int64(1), clock.Readings())
}

func TestStepClock_AdvancesByStep(t *testing.T) {
	clock := NewStepClock(10 * time.Millisecond)

	first := clock.Now()
	second := clock.Now()
	third := clock.Now()

	assert.Equal(t, 10*time.Millisecond, second.Sub(first))
	assert.Equal(t, 20*time.Millisecond, third.Sub(first))
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(time.Second)
	clock.Now()
	clock.Now()

	clock.Reset()

	assert.Equal(t, Epoch, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(time.Nanosecond)
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines), clock.Readings())
}
