package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/portal"
)

// domStableDiff is the DOM change ratio under which the page counts as idle.
const domStableDiff = 0.1

// domStableInterval is how long the DOM must hold still.
const domStableInterval = 300 * time.Millisecond

// Session is one browser tab driven through portal.Driver. It is not safe
// for concurrent use; a pipeline run owns it exclusively.
type Session struct {
	page           *rod.Page
	incognito      *rod.Browser
	router         *rod.HijackRouter
	defaultTimeout time.Duration
	onClose        func()
	closeOnce      sync.Once
	closeErr       error
}

var _ portal.Driver = (*Session)(nil)

// bind returns the page bound to ctx with a deadline of timeout, falling
// back to the session default. The caller must call done.
func (s *Session) bind(ctx context.Context, timeout time.Duration) (p *rod.Page, done func()) {
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	p = s.page.Context(ctx).Timeout(timeout)
	return p, func() { p.CancelTimeout() }
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	p, done := s.bind(ctx, 0)
	defer done()

	slog.Debug("navigating", "url", url)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to "+url+" failed")
	}
	return nil
}

func (s *Session) Click(ctx context.Context, loc portal.Locator) error {
	el, err := s.Find(ctx, loc, s.defaultTimeout)
	if err != nil {
		return err
	}
	return el.Click()
}

func (s *Session) Fill(ctx context.Context, loc portal.Locator, value string) error {
	found, err := s.Find(ctx, loc, s.defaultTimeout)
	if err != nil {
		return err
	}
	el := found.(*element)
	e, done := el.bind()
	defer done()

	if err := e.SelectAllText(); err != nil {
		slog.Debug("could not select existing input text", "field", loc.Name, "error", err)
	}
	if err := e.Input(value); err != nil {
		return categorizeError(err, "typing into "+loc.Name+" failed")
	}
	return nil
}

func (s *Session) Select(ctx context.Context, loc portal.Locator, value string) error {
	found, err := s.Find(ctx, loc, s.defaultTimeout)
	if err != nil {
		return err
	}
	el := found.(*element)
	e, done := el.bind()
	defer done()

	option := `option[value="` + strings.ReplaceAll(value, `"`, `\"`) + `"]`
	if err := e.Select([]string{option}, true, rod.SelectorTypeCSSSector); err != nil {
		return models.NewExtractError(models.ErrCodeElementNotFound,
			"option "+value+" not selectable in "+loc.Name, err)
	}
	return nil
}

// matchTextJS selects the elements under selector whose innerText matches
// the pattern, in document order. With visibleOnly set, elements that are
// not rendered are skipped; with first set, the first match or null is
// returned instead of an array.
const matchTextJS = `(selector, source, flags, visibleOnly, first) => {
	const re = new RegExp(source, flags);
	const out = [];
	for (const el of document.querySelectorAll(selector)) {
		if (visibleOnly) {
			if (!el.getClientRects().length) continue;
			if (getComputedStyle(el).visibility === 'hidden') continue;
		}
		if (!re.test(el.innerText || '')) continue;
		if (first) return el;
		out.push(el);
	}
	return first ? null : out;
}`

// Find waits up to timeout for loc. A text locator only matches a rendered
// element, so a hidden template carrying the same text is ignored.
func (s *Session) Find(ctx context.Context, loc portal.Locator, timeout time.Duration) (portal.Element, error) {
	p, done := s.bind(ctx, timeout)
	defer done()

	var (
		el  *rod.Element
		err error
	)
	if loc.Text == "" {
		el, err = p.Element(loc.CSS)
	} else {
		source, flags := loc.TextSource()
		el, err = p.ElementByJS(rod.Eval(matchTextJS, loc.CSS, source, flags, true, true))
	}
	if err != nil {
		return nil, lookupError(ctx, err, loc)
	}
	return s.wrap(ctx, el), nil
}

// Query returns every current match of loc without waiting. Text matching
// runs in the page in a single round trip.
func (s *Session) Query(ctx context.Context, loc portal.Locator) ([]portal.Element, error) {
	p, done := s.bind(ctx, 0)
	defer done()

	var (
		els rod.Elements
		err error
	)
	if loc.Text == "" {
		els, err = p.Elements(loc.CSS)
	} else {
		source, flags := loc.TextSource()
		els, err = p.ElementsByJS(rod.Eval(matchTextJS, loc.CSS, source, flags, false, false))
	}
	if err != nil {
		return nil, lookupError(ctx, err, loc)
	}

	out := make([]portal.Element, 0, len(els))
	for _, el := range els {
		out = append(out, s.wrap(ctx, el))
	}
	return out, nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	p, done := s.bind(ctx, 0)
	defer done()

	markup, err := p.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read page HTML")
	}
	return markup, nil
}

func (s *Session) WaitIdle(ctx context.Context, timeout time.Duration) error {
	p, done := s.bind(ctx, timeout)
	defer done()

	if err := p.WaitDOMStable(domStableInterval, domStableDiff); err != nil {
		return categorizeError(err, "page did not settle")
	}
	return nil
}

func (s *Session) PressEscape(ctx context.Context) error {
	p, done := s.bind(ctx, 0)
	defer done()

	if err := p.Keyboard.Type(input.Escape); err != nil {
		return categorizeError(err, "escape keypress failed")
	}
	return nil
}

// Close stops request interception and disposes the incognito context,
// which also closes its page. It is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				slog.Debug("hijack router stop failed", "error", err)
			}
		}
		if err := s.page.Close(); err != nil {
			slog.Debug("page close failed", "error", err)
		}
		if err := s.incognito.Close(); err != nil {
			s.closeErr = models.NewExtractError(models.ErrCodeBrowserCrash, "failed to dispose browser context", err)
		}
		if s.onClose != nil {
			s.onClose()
		}
		slog.Debug("browser session closed")
	})
	return s.closeErr
}

func (s *Session) wrap(ctx context.Context, el *rod.Element) *element {
	return &element{el: el.Context(ctx), timeout: s.defaultTimeout}
}

// lookupError maps a failed element lookup. A lookup that ran out of its
// own wait is a missing element; one whose caller context ended is a timeout.
func lookupError(ctx context.Context, err error, loc portal.Locator) error {
	if ctx.Err() != nil {
		return categorizeError(ctx.Err(), loc.Name+" lookup aborted")
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, context.DeadlineExceeded) {
		return models.NewExtractError(models.ErrCodeElementNotFound, loc.Name+" not found", err)
	}
	return categorizeError(err, loc.Name+" lookup failed")
}

// element adapts *rod.Element to portal.Element. Every call is bounded by
// the session's default timeout.
type element struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *element) bind() (*rod.Element, func()) {
	el := e.el.Timeout(e.timeout)
	return el, func() { el.CancelTimeout() }
}

func (e *element) Attribute(name string) (string, bool, error) {
	el, done := e.bind()
	defer done()

	v, err := el.Attribute(name)
	if err != nil {
		return "", false, categorizeError(err, "attribute "+name+" unreadable")
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) Text() (string, error) {
	el, done := e.bind()
	defer done()

	text, err := el.Text()
	if err != nil {
		return "", categorizeError(err, "element text unreadable")
	}
	return text, nil
}

func (e *element) HTML() (string, error) {
	el, done := e.bind()
	defer done()

	markup, err := el.HTML()
	if err != nil {
		return "", categorizeError(err, "element HTML unreadable")
	}
	return markup, nil
}

// Click performs a real mouse click, and falls back to a DOM click for
// elements the mouse cannot reach, such as hidden or covered links.
func (e *element) Click() error {
	el, done := e.bind()
	defer done()

	err := el.Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	if !notClickable(err) {
		return categorizeError(err, "click failed")
	}
	slog.Debug("mouse click not possible, using DOM click", "error", err)
	if _, jsErr := el.Eval(`() => this.click()`); jsErr != nil {
		return categorizeError(jsErr, "click failed")
	}
	return nil
}

func notClickable(err error) bool {
	var (
		notInteractable *rod.NotInteractableError
		invisible       *rod.InvisibleShapeError
		covered         *rod.CoveredError
		noPointer       *rod.NoPointerEventsError
	)
	return errors.As(err, &notInteractable) ||
		errors.As(err, &invisible) ||
		errors.As(err, &covered) ||
		errors.As(err, &noPointer)
}

func (e *element) Elements(selector string) ([]portal.Element, error) {
	el, done := e.bind()
	defer done()

	els, err := el.Elements(selector)
	if err != nil {
		return nil, categorizeError(err, "descendant lookup failed")
	}
	out := make([]portal.Element, len(els))
	for i, child := range els {
		out[i] = &element{el: child.Context(e.el.GetContext()), timeout: e.timeout}
	}
	return out, nil
}

// categorizeError wraps raw errors into typed ExtractErrors so callers can
// map them to pipeline failures and HTTP status codes.
func categorizeError(err error, msg string) *models.ExtractError {
	var ee *models.ExtractError
	if errors.As(err, &ee) {
		return ee
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewExtractError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewExtractError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewExtractError(models.ErrCodeNavigation, msg, err)
	}
}
