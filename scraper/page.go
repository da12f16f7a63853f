package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// rodSession is a Session backed by one page in its own incognito context.
type rodSession struct {
	browser *rod.Browser // incognito context; closing it disposes the context
	page    *rod.Page
	router  *rod.HijackRouter
}

// configure applies identity, viewport, locale and headers. It must run
// before the first navigation so every request carries them.
func (s *rodSession) configure(ctx context.Context, opts SessionOptions) error {
	p := s.page.Context(ctx)

	if opts.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      opts.UserAgent,
			AcceptLanguage: opts.Headers["Accept-Language"],
		}); err != nil {
			return err
		}
	}

	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.ViewportWidth,
			Height:            opts.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return err
		}
	}

	if opts.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: opts.Timezone}).Call(p); err != nil {
			return err
		}
	}
	if opts.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: opts.Locale}).Call(p); err != nil {
			// Older Chromium builds reject locale overrides; the
			// Accept-Language header still applies.
			slog.Debug("locale override rejected", "locale", opts.Locale, "error", err)
		}
	}

	if len(opts.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(opts.Headers),
		}).Call(p); err != nil {
			return err
		}
	}
	return nil
}

// Navigate loads url and waits for network idle. With request hijacking
// active the idle waiter conflicts with the Fetch domain, so DOM stability
// is used instead.
func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)

	// The idle listener must be registered before Navigate or in-flight
	// requests are missed and the wait returns instantly.
	var waitIdle func()
	if s.router == nil {
		waitIdle = p.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	}

	if err := p.Navigate(url); err != nil {
		return err
	}

	if waitIdle != nil {
		waitIdle()
	} else if err := p.WaitDOMStable(500*time.Millisecond, 0.1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return ctx.Err()
}

// Content returns the page's current outer HTML.
func (s *rodSession) Content(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Scroll issues a mouse wheel gesture of dy pixels.
func (s *rodSession) Scroll(ctx context.Context, dy float64) error {
	p := s.page.Context(ctx)
	return p.Mouse.Scroll(0, dy, 4)
}

// Close stops the hijack router, closes the page and disposes the
// incognito context. It uses the session's own background context so it
// still runs after the request context is gone.
func (s *rodSession) Close() error {
	var errs []error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
