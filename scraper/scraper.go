package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/adscope/adlib"
	"github.com/use-agent/adscope/config"
	"github.com/use-agent/adscope/extractor"
	"github.com/use-agent/adscope/models"
	"golang.org/x/sync/semaphore"
)

// Scraper drives one browser session per request through the
// search-and-scroll sequence. It is safe for concurrent use; the number of
// simultaneous sessions is bounded by ScraperConfig.MaxSessions.
type Scraper struct {
	launcher   Launcher
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig

	agents   *adlib.UserAgentPool
	jitter   *Jitter
	sleep    SleepFunc
	scroller *ScrollDriver

	sem            *semaphore.Weighted
	maxSessions    int
	activeSessions atomic.Int32
	startTime      time.Time
	closeFn        func()
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithUserAgents replaces the user agent pool.
func WithUserAgents(p *adlib.UserAgentPool) Option {
	return func(s *Scraper) { s.agents = p }
}

// WithJitter replaces the source of randomized delays and distances.
func WithJitter(j *Jitter) Option {
	return func(s *Scraper) { s.jitter = j }
}

// WithSleep replaces the pause function used for settle and scroll delays.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scraper) { s.sleep = fn }
}

// New builds a Scraper on top of an existing Launcher.
func New(l Launcher, browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, opts ...Option) *Scraper {
	maxSessions := scraperCfg.MaxSessions
	if maxSessions < 1 {
		maxSessions = 1
	}
	s := &Scraper{
		launcher:    l,
		browserCfg:  browserCfg,
		scraperCfg:  scraperCfg,
		sleep:       Sleep,
		sem:         semaphore.NewWeighted(int64(maxSessions)),
		maxSessions: maxSessions,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.agents == nil {
		s.agents = adlib.NewUserAgentPool(nil)
	}
	if s.jitter == nil {
		s.jitter = NewJitter(nil)
	}
	s.scroller = NewScrollDriver(scraperCfg, s.jitter, s.sleep)
	return s
}

// NewScraper launches a headless browser and returns a Scraper using it.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, opts ...Option) (*Scraper, error) {
	rl, err := NewRodLauncher(browserCfg)
	if err != nil {
		return nil, err
	}
	s := New(rl, browserCfg, scraperCfg, opts...)
	s.closeFn = rl.Close
	return s, nil
}

// Stats returns a snapshot of session usage.
func (s *Scraper) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    s.maxSessions,
		ActiveSessions: int(s.activeSessions.Load()),
	}
}

// Uptime reports how long the scraper has been running.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close shuts down the browser, if this Scraper owns one.
func (s *Scraper) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Scrape runs one search-and-scroll sequence.
//
// Lifecycle:
//
//  1. Validate            – invalid requests never reach the browser
//  2. Acquire slot        – wait for a free session, honoring ctx
//  3. Launch              – isolated session with a fresh identity
//  4. DEFER: Close        – exactly once, on every exit path
//  5. Navigate            – hard ceiling of NavigationTimeout
//  6. Settle              – randomized pause for deferred rendering
//  7. Gate                – stop as rate limited if the page shows a block
//  8. Extract ⇄ Scroll    – merge new ads until the cap or scroll budget
//
// A blocked page is a result, not an error: the ads gathered before the
// block are returned with RateLimited set.
func (s *Scraper) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	// ── 1. Validate ───────────────────────────────────────────────────
	req.Defaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limit, scrollBudget := req.Limit(), req.Scrolls()
	log := slog.With("keyword", req.Keyword, "country", req.Country)

	// ── 2. Acquire session slot ───────────────────────────────────────
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, categorizeError(err, models.ErrCodeTimeout, "timed out waiting for a browser session")
	}
	defer s.sem.Release(1)
	s.activeSessions.Add(1)
	defer s.activeSessions.Add(-1)

	// ── 3. Launch ─────────────────────────────────────────────────────
	sess, err := s.launcher.Launch(ctx, s.sessionOptions())
	if err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), models.ErrCodeTimeout, "browser launch interrupted")
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser session", err)
	}

	// ── 4. Guaranteed teardown ────────────────────────────────────────
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("closing browser session failed", "error", err)
		}
	}()

	// ── 5. Navigate ───────────────────────────────────────────────────
	target := adlib.SearchURL(req.Keyword, req.Country)
	log.Info("navigating to ad library", "url", target)

	navCtx, cancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	err = sess.Navigate(navCtx, target)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, categorizeError(err, models.ErrCodeNavigation, "navigation to ad library failed")
	}

	// ── 6. Settle ─────────────────────────────────────────────────────
	if err := s.sleep(ctx, s.jitter.Duration(s.scraperCfg.SettleMin, s.scraperCfg.SettleMax)); err != nil {
		return nil, categorizeError(err, models.ErrCodeTimeout, "scrape interrupted")
	}

	// ── 7. Gate ───────────────────────────────────────────────────────
	run := newScrapeSession(limit)
	html, err := sess.Content(ctx)
	if err != nil {
		return nil, categorizeError(err, models.ErrCodeBrowserCrash, "failed to read page content")
	}
	if sig := adlib.BlockSignature(html); sig != "" {
		log.Warn("rate limit detected", "signature", sig, "scroll", run.scrolls)
		return run.result(true), nil
	}

	// ── 8. Extract ⇄ Scroll ───────────────────────────────────────────
	for {
		added := run.merge(extractor.Extract(html))
		log.Debug("extraction pass", "scroll", run.scrolls, "new", added, "ads", len(run.ads))

		if run.full() || run.scrolls >= scrollBudget {
			break
		}

		if err := s.scroller.Step(ctx, sess); err != nil {
			return nil, categorizeError(err, models.ErrCodeBrowserCrash, "scroll failed")
		}
		run.scrolls++

		html, err = sess.Content(ctx)
		if err != nil {
			return nil, categorizeError(err, models.ErrCodeBrowserCrash, "failed to read page content")
		}
		if sig := adlib.BlockSignature(html); sig != "" {
			log.Warn("rate limit detected", "signature", sig, "scroll", run.scrolls, "ads", len(run.ads))
			return run.result(true), nil
		}
	}

	res := run.result(false)
	log.Info("scrape complete", "ads", len(res.Ads), "scrolls", res.Scrolls)
	return res, nil
}

func (s *Scraper) sessionOptions() SessionOptions {
	return SessionOptions{
		UserAgent:      s.agents.Pick(),
		ViewportWidth:  s.browserCfg.ViewportWidth,
		ViewportHeight: s.browserCfg.ViewportHeight,
		Locale:         s.browserCfg.Locale,
		Timezone:       s.browserCfg.Timezone,
		Headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		},
	}
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes. Context errors always map
// to a timeout; anything else gets the fallback code.
func categorizeError(err error, fallback, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(fallback, msg, err)
	}
}
