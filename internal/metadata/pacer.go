// internal/metadata/pacer.go
package metadata

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between outbound metadata fetches. One
// instance is shared by handle across all pipeline invocations; its only
// state is the time of the last paced call.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type PacerOption func(*Pacer)

// WithClock injects the clock and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) PacerOption {
	return func(p *Pacer) {
		p.now = now
		p.sleep = sleep
	}
}

func NewPacer(interval time.Duration, opts ...PacerOption) *Pacer {
	p := &Pacer{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pace blocks until at least the configured interval has passed since the
// previous paced call. The first call never blocks.
func (p *Pacer) Pace(ctx context.Context) error {
	p.mu.Lock()
	var wait time.Duration
	if !p.last.IsZero() {
		if elapsed := p.now().Sub(p.last); elapsed < p.interval {
			wait = p.interval - elapsed
		}
	}
	p.mu.Unlock()

	if wait > 0 {
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.last = p.now()
	p.mu.Unlock()
	return nil
}
