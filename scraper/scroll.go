package scraper

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/use-agent/adscope/config"
)

// SleepFunc pauses for d or until ctx ends, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter draws uniformly distributed delays and distances. It is safe for
// concurrent use; seed it for reproducible runs.
type Jitter struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewJitter returns a Jitter drawing from rnd. A nil rnd is seeded from
// the clock.
func NewJitter(rnd *rand.Rand) *Jitter {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Jitter{rnd: rnd}
}

// Duration returns a value in [lo, hi). It returns lo when the range is empty.
func (j *Jitter) Duration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return lo + time.Duration(j.rnd.Int63n(int64(hi-lo)))
}

// Float returns a value in [lo, hi). It returns lo when the range is empty.
func (j *Jitter) Float(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return lo + j.rnd.Float64()*(hi-lo)
}

// ScrollDriver performs one humanized scroll step: a randomized wheel
// distance followed by a randomized pause for lazy content to load.
type ScrollDriver struct {
	minDistance, maxDistance float64
	minDelay, maxDelay       time.Duration
	jitter                   *Jitter
	sleep                    SleepFunc
}

// NewScrollDriver builds a driver from the scraper config.
func NewScrollDriver(cfg config.ScraperConfig, jitter *Jitter, sleep SleepFunc) *ScrollDriver {
	if jitter == nil {
		jitter = NewJitter(nil)
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &ScrollDriver{
		minDistance: float64(cfg.ScrollDistanceMin),
		maxDistance: float64(cfg.ScrollDistanceMax),
		minDelay:    cfg.ScrollDelayMin,
		maxDelay:    cfg.ScrollDelayMax,
		jitter:      jitter,
		sleep:       sleep,
	}
}

// Step scrolls the session once and waits. The pause honors ctx.
func (d *ScrollDriver) Step(ctx context.Context, s Session) error {
	dy := d.jitter.Float(d.minDistance, d.maxDistance)
	if err := s.Scroll(ctx, dy); err != nil {
		return err
	}
	return d.sleep(ctx, d.jitter.Duration(d.minDelay, d.maxDelay))
}
