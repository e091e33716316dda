package scraper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/portal"
)

// Scraper owns the browser process and hands out isolated sessions.
// Each session lives in its own incognito context, so cookies and storage
// never leak between pipeline runs. It is safe for concurrent use.
type Scraper struct {
	browser        *rod.Browser
	launcher       *launcher.Launcher
	browserCfg     config.BrowserConfig
	defaultTimeout time.Duration
	activeSessions atomic.Int32
	startTime      time.Time
	closeOnce      sync.Once
}

// NewScraper launches (or connects to) Chrome.
func NewScraper(browserCfg config.BrowserConfig, portalCfg config.PortalConfig) (*Scraper, error) {
	s := &Scraper{
		browserCfg:     browserCfg,
		defaultTimeout: portalCfg.DefaultTimeout,
		startTime:      time.Now(),
	}

	controlURL := browserCfg.RemoteURL
	if controlURL == "" {
		l := newLauncher(browserCfg)
		u, err := l.Launch()
		if err != nil {
			return nil, models.NewExtractError(
				models.ErrCodeBrowserCrash,
				"failed to launch browser",
				err,
			)
		}
		slog.Info("browser launched", "controlURL", u, "headless", browserCfg.Headless)
		s.launcher = l
		controlURL = u
	} else {
		slog.Info("connecting to remote browser", "controlURL", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		s.killLauncher()
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}
	s.browser = browser
	return s, nil
}

func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
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
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	if cfg.AcceptLanguage != "" {
		l.Set(flags.Flag("lang"), firstLanguage(cfg.AcceptLanguage))
	}
	return l
}

// Open creates a fresh incognito session with stealth, resource blocking and
// the configured Accept-Language applied. The session must be closed by the
// caller.
func (s *Scraper) Open(ctx context.Context) (portal.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(err, "session open aborted")
	}
	// Session objects stay on the browser's background context so Close
	// works after ctx ends; each operation binds its own context.
	incognito, err := s.browser.Incognito()
	if err != nil {
		return nil, categorizeError(err, "failed to create browser context")
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}

	// ── Stealth injection (before any navigation) ─────────────────────
	if s.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	if s.browserCfg.AcceptLanguage != "" {
		if hErr := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": s.browserCfg.AcceptLanguage}),
		}).Call(page); hErr != nil {
			slog.Debug("could not set extra headers", "error", hErr)
		}
	}

	router := setupHijack(page, s.browserCfg.BlockedResourceTypes, true)

	s.activeSessions.Add(1)
	slog.Debug("browser session opened", "active", s.activeSessions.Load())

	return &Session{
		page:           page,
		incognito:      incognito,
		router:         router,
		defaultTimeout: s.defaultTimeout,
		onClose: func() {
			s.activeSessions.Add(-1)
		},
	}, nil
}

// ActiveSessions returns the number of open sessions.
func (s *Scraper) ActiveSessions() int {
	return int(s.activeSessions.Load())
}

// Uptime returns how long the browser has been running.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close shuts the browser down. A remote browser is left running.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	s.closeOnce.Do(func() {
		slog.Info("scraper shutting down: closing browser")
		if s.launcher == nil {
			slog.Info("leaving remote browser running")
			return
		}
		if err := s.browser.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
		s.killLauncher()
		slog.Info("scraper shutdown complete")
	})
}

func (s *Scraper) killLauncher() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
}

// Launcher returns a portal.Launcher that launches a dedicated browser for
// every session and shuts it down when the session closes. It suits one-shot
// runs where no long-lived Scraper exists.
func Launcher(browserCfg config.BrowserConfig, portalCfg config.PortalConfig) portal.Launcher {
	return launcherFunc(func(ctx context.Context) (portal.Driver, error) {
		s, err := NewScraper(browserCfg, portalCfg)
		if err != nil {
			return nil, err
		}
		d, err := s.Open(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		sess := d.(*Session)
		prev := sess.onClose
		sess.onClose = func() {
			prev()
			s.Close()
		}
		return sess, nil
	})
}

type launcherFunc func(ctx context.Context) (portal.Driver, error)

func (f launcherFunc) Open(ctx context.Context) (portal.Driver, error) { return f(ctx) }
