package widget

import (
	"sync"
	"time"
)

// Ticker runs fn on a fixed interval until Stop.  Widgets start one in
// Init and stop it in Destroy; Reset lets SetConfig change the interval
// without leaking the old goroutine.
//
// Reset and Stop are serialised by ctl, so concurrent SetConfig calls
// always leave exactly one goroutine behind.
type Ticker struct {
	ctl sync.Mutex

	mu   sync.Mutex
	fn   func()
	stop chan struct{}
	done chan struct{}
}

// NewTicker returns a stopped ticker for fn.
func NewTicker(fn func()) *Ticker { return &Ticker{fn: fn} }

// Reset (re)starts the ticker at every.  fn runs once immediately.
func (t *Ticker) Reset(every time.Duration) {
	if every <= 0 {
		every = time.Second
	}

	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.halt()

	stop, done := make(chan struct{}), make(chan struct{})
	t.mu.Lock()
	t.stop, t.done = stop, done
	t.mu.Unlock()

	t.fn()
	go func() {
		defer close(done)
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				t.fn()
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight fn to return.  It is
// safe to call on a stopped ticker.
func (t *Ticker) Stop() {
	t.ctl.Lock()
	defer t.ctl.Unlock()
	t.halt()
}

// halt must be called with ctl held.
func (t *Ticker) halt() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the ticker is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Duration reads a duration setting from cfg.  Strings are parsed with
// time.ParseDuration and numbers are taken as milliseconds; anything else
// yields def.
func Duration(cfg Config, key string, def time.Duration) time.Duration {
	switch v := cfg[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	case int:
		if v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	case int64:
		if v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Millisecond))
		}
	}
	return def
}

// String reads a string setting from cfg or returns def.
func String(cfg Config, key, def string) string {
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return def
}

// Float reads a numeric setting from cfg or returns def.
func Float(cfg Config, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}
