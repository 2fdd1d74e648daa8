package examsession

import (
	"context"
	"sync"
	"time"
)

// Ticker is the subset of time.Ticker the countdown needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// NewWallTicker is the default TickerFunc backed by time.NewTicker.
func NewWallTicker(d time.Duration) Ticker {
	return wallTicker{t: time.NewTicker(d)}
}

// countdown drives tick until it reports expiry, then calls expire once.
type countdown struct {
	ticker   Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func startCountdown(t Ticker, tick func() bool, expire func()) *countdown {
	c := &countdown{ticker: t, done: make(chan struct{})}
	go c.run(tick, expire)
	return c
}

func (c *countdown) run(tick func() bool, expire func()) {
	defer c.ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C():
			if tick() {
				expire()
				return
			}
		}
	}
}

func (c *countdown) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// tick decrements the clock and reports whether the auto-submit should fire.
// It fires at most once per session. At zero it waits while a manual submit
// is in flight; if that one fails the next tick fires instead.
func (s *Session) tick() bool {
	s.mu.Lock()
	if s.status != StatusInProgress || s.closed {
		s.mu.Unlock()
		return false
	}
	if s.secondsRemaining > 0 {
		s.secondsRemaining--
	}
	remaining := s.secondsRemaining
	fire := remaining == 0 && !s.submitting
	onTick := s.onTick
	s.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	return fire
}

func (s *Session) autoSubmit() {
	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()

	out, err := s.submit(ctx, true)
	if s.onAutoSubmit != nil {
		s.onAutoSubmit(out, err)
	}
}
