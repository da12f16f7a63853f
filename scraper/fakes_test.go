package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/adscope/adlib"
	"github.com/use-agent/adscope/config"
)

// fakeSession replays a fixed sequence of page snapshots. Snapshot k is
// what the page shows after k scroll steps.
type fakeSession struct {
	mu        sync.Mutex
	pages     []string
	reads     int
	navigate  func(ctx context.Context) error
	scrollErr error
	scrolls   []float64
	navURL    string
	closed    int
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	f.navURL = url
	nav := f.navigate
	f.mu.Unlock()
	if nav != nil {
		return nav(ctx)
	}
	return nil
}

func (f *fakeSession) Content(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pages) == 0 {
		return "<html><body></body></html>", nil
	}
	idx := f.reads
	if idx >= len(f.pages) {
		idx = len(f.pages) - 1
	}
	f.reads++
	return f.pages[idx], nil
}

func (f *fakeSession) Scroll(ctx context.Context, dy float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scrollErr != nil {
		return f.scrollErr
	}
	f.scrolls = append(f.scrolls, dy)
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeLauncher struct {
	mu       sync.Mutex
	session  *fakeSession
	err      error
	launches int
	opts     []SessionOptions
}

func (l *fakeLauncher) Launch(ctx context.Context, opts SessionOptions) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	l.opts = append(l.opts, opts)
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// adPage renders a result page holding one structural card per id.
func adPage(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="results">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<div><a href="https://www.facebook.com/ads/library/?id=%d">See ad details</a><strong>Brand %d</strong></div>`, id, id)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// idRange returns ids in [from, to).
func idRange(from, to int) []int {
	ids := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, i)
	}
	return ids
}

const blockedPage = `<html><body><h1>You're Temporarily Blocked</h1><p>Please try again later.</p></body></html>`

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testConfig() (config.BrowserConfig, config.ScraperConfig) {
	return config.BrowserConfig{
			Locale:         "en-US",
			Timezone:       "America/New_York",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		}, config.ScraperConfig{
			MaxSessions:       2,
			NavigationTimeout: time.Minute,
			SettleMin:         2 * time.Second,
			SettleMax:         4 * time.Second,
			ScrollDelayMin:    1500 * time.Millisecond,
			ScrollDelayMax:    3 * time.Second,
			ScrollDistanceMin: 800,
			ScrollDistanceMax: 1200,
		}
}

func newTestScraper(l Launcher, opts ...Option) *Scraper {
	bc, sc := testConfig()
	base := []Option{
		WithSleep(noSleep),
		WithJitter(NewJitter(rand.New(rand.NewSource(1)))),
		WithUserAgents(adlib.NewUserAgentPool(rand.New(rand.NewSource(1)))),
	}
	return New(l, bc, sc, append(base, opts...)...)
}
