package warm

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_FiresAfterDebounce(t *testing.T) {
	var reloaded atomic.Int32
	w := New(20*time.Millisecond, func() error {
		reloaded.Add(1)
		return nil
	}, nil, nil)
	w.Start()
	defer w.Stop()

	w.Signal()
	require.Eventually(t, func() bool { return reloaded.Load() == 1 }, time.Second, time.Millisecond)
}

func TestWorker_CoalescesBurstSignals(t *testing.T) {
	var reloaded atomic.Int32
	w := New(30*time.Millisecond, func() error {
		reloaded.Add(1)
		return nil
	}, nil, nil)
	w.Start()
	defer w.Stop()

	for i := 0; i < 10; i++ {
		w.Signal()
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), reloaded.Load())
}

func TestWorker_TouchRunsAfterReload(t *testing.T) {
	order := make(chan string, 2)
	w := New(10*time.Millisecond, func() error {
		order <- "reload"
		return nil
	}, func() error {
		order <- "touch"
		return nil
	}, nil)
	w.Start()
	defer w.Stop()

	w.Signal()
	require.Equal(t, "reload", <-order)
	require.Equal(t, "touch", <-order)
}

func TestWorker_ReloadFailureCountsAndSkipsTouch(t *testing.T) {
	touched := false
	w := New(10*time.Millisecond, func() error {
		return errors.New("boom")
	}, func() error {
		touched = true
		return nil
	}, nil)
	w.Start()
	defer w.Stop()

	w.Signal()
	require.Eventually(t, func() bool {
		_, f := w.Stats()
		return f == 1
	}, time.Second, time.Millisecond)
	assert.False(t, touched)
}

func TestWorker_StopIsClean(t *testing.T) {
	w := New(10*time.Millisecond, func() error { return nil }, nil, nil)
	w.Start()
	w.Stop()
}
