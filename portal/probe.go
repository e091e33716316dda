package portal

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/rcvscrap/models"
)

// Interrupted returns a NAVIGATION_TIMEOUT error once ctx has ended, and nil
// otherwise. Best-effort steps swallow their own failures, so callers check
// it after each such step to keep a lapsed run from passing as complete.
func Interrupted(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return models.NewExtractError(models.ErrCodeTimeout, step+" interrupted", err)
	}
	return nil
}

// firstPresent tries each candidate in priority order and returns the first
// one present on the page. A zero wait checks the current DOM only; a
// positive wait gives each candidate that long to appear. ok is false when
// no candidate matched, which callers treat as "degrade to the fallback".
func firstPresent(ctx context.Context, d Driver, candidates []Locator, wait time.Duration) (el Element, matched Locator, ok bool) {
	for _, c := range candidates {
		if ctx.Err() != nil {
			return nil, Locator{}, false
		}
		if found, present := probe(ctx, d, c, wait); present {
			return found, c, true
		}
	}
	return nil, Locator{}, false
}

// probe checks a single locator, waiting up to wait when positive.
func probe(ctx context.Context, d Driver, loc Locator, wait time.Duration) (Element, bool) {
	if wait <= 0 {
		els, err := d.Query(ctx, loc)
		if err != nil || len(els) == 0 {
			return nil, false
		}
		return els[0], true
	}
	found, err := d.Find(ctx, loc, wait)
	if err != nil {
		return nil, false
	}
	return found, true
}

// clickFirstPresent clicks the first candidate that is present and accepts
// the click. A present candidate whose click fails counts as unavailable and
// the next one is tried.
func clickFirstPresent(ctx context.Context, d Driver, candidates []Locator, wait time.Duration) (Locator, bool) {
	for _, c := range candidates {
		if ctx.Err() != nil {
			return Locator{}, false
		}
		el, present := probe(ctx, d, c, wait)
		if !present {
			continue
		}
		if err := el.Click(); err != nil {
			slog.Debug("candidate present but click failed",
				"selector", c.Name,
				"error", err,
			)
			continue
		}
		return c, true
	}
	return Locator{}, false
}

// settle waits for the page to go idle, logging instead of failing.
func settle(ctx context.Context, d Driver, timeout time.Duration) {
	if err := d.WaitIdle(ctx, timeout); err != nil {
		slog.Debug("page did not settle, proceeding with current DOM", "error", err)
	}
}
