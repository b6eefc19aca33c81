package widget

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicker_RunsUntilStopped(t *testing.T) {
	var n atomic.Int32
	tk := NewTicker(func() { n.Add(1) })

	tk.Reset(5 * time.Millisecond)
	assert.True(t, tk.Running())
	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)

	tk.Stop()
	assert.False(t, tk.Running())
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load())

	tk.Stop()
}

func TestTicker_ResetRunsImmediately(t *testing.T) {
	var n atomic.Int32
	tk := NewTicker(func() { n.Add(1) })
	defer tk.Stop()

	tk.Reset(time.Hour)
	assert.EqualValues(t, 1, n.Load())
	tk.Reset(time.Hour)
	assert.EqualValues(t, 2, n.Load())
}

func TestConfigReaders(t *testing.T) {
	cfg := Config{
		"interval": "2s",
		"ms":       1500,
		"float_ms": 250.0,
		"bad":      "soon",
		"name":     "lobby",
		"warn":     70,
	}
	assert.Equal(t, 2*time.Second, Duration(cfg, "interval", time.Second))
	assert.Equal(t, 1500*time.Millisecond, Duration(cfg, "ms", time.Second))
	assert.Equal(t, 250*time.Millisecond, Duration(cfg, "float_ms", time.Second))
	assert.Equal(t, time.Second, Duration(cfg, "bad", time.Second))
	assert.Equal(t, time.Second, Duration(cfg, "missing", time.Second))

	assert.Equal(t, "lobby", String(cfg, "name", "x"))
	assert.Equal(t, "x", String(cfg, "warn", "x"))

	assert.Equal(t, 70.0, Float(cfg, "warn", 80))
	assert.Equal(t, 80.0, Float(cfg, "missing", 80))
}

// Concurrent Resets, as two overlapping SetConfig calls produce, must not
// strand a goroutine that Stop can no longer reach.
func TestTicker_ConcurrentResetThenStop(t *testing.T) {
	var n atomic.Int64
	tk := NewTicker(func() { n.Add(1) })

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tk.Reset(time.Millisecond)
			}()
		}
		wg.Wait()
	}
	tk.Stop()
	assert.False(t, tk.Running())

	settled := n.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, n.Load(), "no ticker goroutine survives Stop")
}
