package portal

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/models"
)

// Navigator moves between the ledger module's summary and detail views.
type Navigator struct {
	cfg config.PortalConfig
}

// NewNavigator creates a Navigator for the configured portal.
func NewNavigator(cfg config.PortalConfig) *Navigator {
	return &Navigator{cfg: cfg}
}

// DetailURL is the fragment-addressed detail view of one category.
func (n *Navigator) DetailURL(code string) string {
	return strings.TrimRight(n.cfg.ModuleURL, "/") + "/#detalle/" + code
}

// OpenModule loads the ledger module and dismisses the interstitial.
func (n *Navigator) OpenModule(ctx context.Context, d Driver) error {
	slog.Info("opening ledger module", "url", n.cfg.ModuleURL)
	if err := d.Navigate(ctx, n.cfg.ModuleURL); err != nil {
		return err
	}
	settle(ctx, d, n.cfg.IdleTimeout)

	if el, present := probe(ctx, d, interstitialButton, n.cfg.CandidateTimeout); present {
		if err := el.Click(); err != nil {
			slog.Warn("interstitial present but could not be dismissed", "error", err)
		} else {
			slog.Debug("interstitial dismissed")
		}
	}

	settle(ctx, d, n.cfg.IdleTimeout)
	return nil
}

// SelectPeriod applies period to the summary view. It is best-effort: every
// failing step is logged and skipped, and a missing month selector leaves the
// portal's default period in place. It reports whether the query was
// submitted for the requested period.
func (n *Navigator) SelectPeriod(ctx context.Context, d Driver, period *models.Period) bool {
	if period == nil {
		slog.Info("no period requested, using portal default")
		return false
	}
	log := slog.With("period", period.String())

	if _, err := d.Find(ctx, monthSelect, n.cfg.PeriodTimeout); err != nil {
		log.Warn("month selector not found, continuing with default period", "error", err)
		return false
	}
	if err := d.Select(ctx, monthSelect, period.MonthValue()); err != nil {
		log.Warn("could not select month", "error", err)
	} else {
		log.Debug("month selected", "month", period.MonthValue())
	}

	yearSelected := false
	year := strconv.Itoa(period.Year)
	for _, cand := range yearSelectCandidates {
		if _, present := probe(ctx, d, cand, n.cfg.CandidateTimeout); !present {
			continue
		}
		if err := d.Select(ctx, cand, year); err != nil {
			log.Debug("year candidate rejected selection", "selector", cand.Name, "error", err)
			continue
		}
		log.Debug("year selected", "selector", cand.Name, "year", year)
		yearSelected = true
		break
	}
	if !yearSelected {
		log.Warn("could not select year")
	}

	matched, ok := clickFirstPresent(ctx, d, querySubmitCandidates, n.cfg.CandidateTimeout)
	if !ok {
		log.Warn("no query button found, period may not be applied")
		return false
	}
	settle(ctx, d, n.cfg.IdleTimeout)
	log.Info("period applied", "button", matched.Name)
	return true
}

// OpenCategoryDetail opens the detail view of code. Routing in the module is
// driven by in-page fragment clicks, so after navigating to the fragment URL
// the matching summary link is clicked too when present.
func (n *Navigator) OpenCategoryDetail(ctx context.Context, d Driver, code string) error {
	slog.Info("opening category detail", "category", code)
	if err := d.Navigate(ctx, n.DetailURL(code)); err != nil {
		return err
	}
	settle(ctx, d, n.cfg.IdleTimeout)

	if el, present := probe(ctx, d, detailAnchorFor(code), n.cfg.CandidateTimeout); present {
		if err := el.Click(); err != nil {
			slog.Warn("detail link click failed", "category", code, "error", err)
		}
		settle(ctx, d, n.cfg.IdleTimeout)
	}
	return nil
}

// ReturnToSummary goes back to the summary view, preferring the page's own
// back controls and falling back to reloading the module entry URL. An error
// means even the fallback navigation failed.
func (n *Navigator) ReturnToSummary(ctx context.Context, d Driver) error {
	if matched, ok := clickFirstPresent(ctx, d, backCandidates, 0); ok {
		settle(ctx, d, n.cfg.IdleTimeout)
		slog.Debug("returned to summary", "control", matched.Name)
		return nil
	}

	slog.Info("no back control found, reloading module")
	if err := d.Navigate(ctx, n.cfg.ModuleURL); err != nil {
		return err
	}
	settle(ctx, d, n.cfg.IdleTimeout)
	return nil
}
