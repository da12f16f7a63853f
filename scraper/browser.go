package scraper

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/adscope/config"
	"github.com/use-agent/adscope/models"
)

// SessionOptions configures the identity of one browser session.
type SessionOptions struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	Timezone       string
	Headers        map[string]string
}

// Session is one isolated browsing context with a single page. A session
// serves exactly one scrape and is never reused.
type Session interface {
	// Navigate loads url and waits for the network to settle. It returns
	// ctx.Err() if ctx ends before the page settles.
	Navigate(ctx context.Context, url string) error

	// Content returns the current rendered markup.
	Content(ctx context.Context) (string, error)

	// Scroll moves the viewport down by dy pixels.
	Scroll(ctx context.Context, dy float64) error

	// Close releases every resource held by the session. It must not
	// depend on the context of the request that opened it.
	Close() error
}

// Launcher opens browser sessions.
type Launcher interface {
	Launch(ctx context.Context, opts SessionOptions) (Session, error)
}

// RodLauncher runs one Chromium process and opens every session in a
// fresh incognito context of it. It is safe for concurrent use.
type RodLauncher struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      config.BrowserConfig
}

// NewRodLauncher starts the browser process and connects to it.
func NewRodLauncher(cfg config.BrowserConfig) (*RodLauncher, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &RodLauncher{launcher: l, browser: browser, cfg: cfg}, nil
}

// Launch opens an incognito context and a configured page inside it.
// On any setup failure everything opened so far is released.
func (r *RodLauncher) Launch(ctx context.Context, opts SessionOptions) (Session, error) {
	incognito, err := r.browser.Incognito()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if r.cfg.Stealth {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = incognito.Close()
		return nil, err
	}

	s := &rodSession{browser: incognito, page: page}
	if err := s.configure(ctx, opts); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.router = setupHijack(page, r.cfg.BlockedResourceTypes, r.cfg.BlockTrackers)
	return s, nil
}

// Close kills the browser process. Call it on graceful shutdown to prevent
// zombie Chrome processes.
func (r *RodLauncher) Close() {
	slog.Info("launcher shutting down: closing browser")
	if err := r.browser.Close(); err != nil {
		slog.Warn("closing browser failed", "error", err)
	}
	r.launcher.Cleanup()
	slog.Info("launcher shutdown complete")
}
