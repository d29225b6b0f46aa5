package autosave_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/scribe/pkg/autosave"
)

func TestScheduler_CoalescesBurst(t *testing.T) {
	s := autosave.New(100 * time.Millisecond)
	var fired atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		v := int32(i)
		s.Schedule(func() {
			fired.Add(1)
			last.Store(v)
		})
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() > 1 }, 150*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, int32(5), last.Load(), "only the last scheduled callback may run")
	assert.False(t, s.Pending())
}

func TestScheduler_CancelPreventsFire(t *testing.T) {
	s := autosave.New(20 * time.Millisecond)
	var fired atomic.Bool

	s.Schedule(func() { fired.Store(true) })
	assert.True(t, s.Pending())
	assert.True(t, s.Cancel())
	assert.False(t, s.Cancel(), "nothing left to cancel")

	assert.Never(t, fired.Load, 80*time.Millisecond, 10*time.Millisecond)
}

func TestScheduler_StopRefusesSchedules(t *testing.T) {
	s := autosave.New(10 * time.Millisecond)
	var fired atomic.Bool

	s.Stop()
	s.Schedule(func() { fired.Store(true) })

	assert.False(t, s.Pending())
	assert.Never(t, fired.Load, 50*time.Millisecond, 10*time.Millisecond)
}

func TestScheduler_DefaultDelay(t *testing.T) {
	assert.Equal(t, autosave.DefaultDelay, autosave.New(0).Delay())
	assert.Equal(t, 2*time.Second, autosave.DefaultDelay)
}
