package app

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall-clock waiting so countdowns can be driven by hand in tests.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

// Ticker is the part of *time.Ticker a countdown uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// CountdownOptions configures a Countdown.
type CountdownOptions struct {
	// Interval between ticks, one second unless set.
	Interval time.Duration
	// SettleDelay is how long an auto-answer stays on screen before advancing.
	// A negative value disables the automatic advance.
	SettleDelay time.Duration
	// OnTick observes every tick, including expiry. Called from the countdown goroutine.
	OnTick func(TickEvent)
	// AdvanceTimeout bounds the automatic advance, including the best-score write when
	// it completes the quiz. Five seconds unless set.
	AdvanceTimeout time.Duration
}

// Countdown drives a Session's per-question timer with a recurring wake-up.
// It runs one goroutine per armed period and stops it on every disarm.
type Countdown struct {
	session  *Session
	clock    Clock
	interval time.Duration
	settle   time.Duration
	timeout  time.Duration
	onTick   func(TickEvent)

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewCountdown attaches a countdown to s. If s already has an armed timer it starts immediately.
func NewCountdown(s *Session, clock Clock, opts CountdownOptions) *Countdown {
	if clock == nil {
		clock = RealClock{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	timeout := opts.AdvanceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Countdown{
		session:  s,
		clock:    clock,
		interval: interval,
		settle:   opts.SettleDelay,
		timeout:  timeout,
		onTick:   opts.OnTick,
		done:     make(chan struct{}),
	}
	s.attachTimer(c)
	return c
}

// Arm starts ticking for generation gen, replacing any running period.
func (c *Countdown) Arm(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx, gen)
}

// Disarm stops the running period, if any. It does not wait.
func (c *Countdown) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Close stops the countdown for good and waits for its goroutines to exit.
// It must not be called from OnTick.
func (c *Countdown) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
}

func (c *Countdown) run(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C():
			ev, ok := c.session.tickGen(gen)
			if !ok {
				return
			}
			if c.onTick != nil {
				c.onTick(ev)
			}
			if !ev.Expired {
				continue
			}
			if ev.AutoAnswered && c.settle >= 0 {
				c.settleAndAdvance(ev)
			}
			return
		}
	}
}

// settleAndAdvance waits out the settle delay, then advances once if the session
// is still showing the auto-answered question.
func (c *Countdown) settleAndAdvance(ev TickEvent) {
	select {
	case <-c.clock.After(c.settle):
	case <-c.done:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.session.advanceAt(ctx, ev.epoch, ev.Index); err != nil {
		c.session.log.Warn().Err(err).Int("index", ev.Index).Msg("advance after timeout failed")
	}
}
