// Package pipeline sequences one extraction run: login, period selection,
// category discovery, per-category extraction and deduplication.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/ledger"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/portal"
)

// Options are the inputs of one run.
type Options struct {
	// Period filters the ledger; nil keeps the portal's default period.
	Period *models.Period

	// Categories restricts the run to these codes; nil means all discovered.
	Categories []string

	// OnState, when set, is called on every state transition.
	OnState func(State)
}

// Orchestrator runs the extraction pipeline. Each Run opens its own browser
// session and releases it before returning; runs must not overlap.
type Orchestrator struct {
	launcher  portal.Launcher
	creds     models.Credentials
	auth      *portal.Authenticator
	nav       *portal.Navigator
	extractor *portal.Extractor
	now       func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator that logs in with creds.
func New(launcher portal.Launcher, cfg config.PortalConfig, creds models.Credentials, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		launcher:  launcher,
		creds:     creds,
		auth:      portal.NewAuthenticator(cfg),
		nav:       portal.NewNavigator(cfg),
		extractor: portal.NewExtractor(cfg),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ResolveTargets intersects the requested filter with the discovered codes.
// A nil filter selects every discovered code. Both results are ascending;
// unavailable lists requested codes the period does not have.
func ResolveTargets(filter, discovered []string) (targets, unavailable []string) {
	discovered = models.NormalizeCategoryCodes(discovered)
	if filter == nil {
		return discovered, nil
	}

	have := make(map[string]struct{}, len(discovered))
	for _, c := range discovered {
		have[c] = struct{}{}
	}
	targets = []string{}
	for _, c := range models.NormalizeCategoryCodes(filter) {
		if _, ok := have[c]; ok {
			targets = append(targets, c)
		} else {
			unavailable = append(unavailable, c)
		}
	}
	return targets, unavailable
}

// run carries the per-invocation state.
type run struct {
	o     *Orchestrator
	opts  Options
	state State
	log   *slog.Logger
}

func (r *run) enter(s State) {
	r.state = s
	r.log.Debug("pipeline state", "state", s)
	if r.opts.OnState != nil {
		r.opts.OnState(s)
	}
}

// fail moves the run to StateFailed and returns err as an ExtractError.
func (r *run) fail(err error) error {
	failedIn := r.state
	ee := models.AsExtractError(err)
	r.enter(StateFailed)
	r.log.Error("extraction failed", "state", failedIn, "code", ee.Code, "error", err)
	return ee
}

// Run executes the pipeline. It returns a completed result, possibly empty
// with NoData set, or a single *models.ExtractError. The browser session is
// closed on every path.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (result *models.ExtractionResult, err error) {
	r := &run{o: o, opts: opts, log: slog.With("period", models.PeriodKey(opts.Period))}
	r.enter(StateStart)

	if opts.Period != nil {
		if vErr := opts.Period.Validate(); vErr != nil {
			return nil, r.fail(vErr)
		}
	}

	driver, err := o.launcher.Open(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	defer func() {
		if closeErr := driver.Close(); closeErr != nil {
			r.log.Warn("session close failed", "error", closeErr)
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = r.fail(models.NewExtractError(models.ErrCodeInternal, fmt.Sprintf("panic: %v", p), nil))
		}
	}()

	return r.execute(ctx, driver)
}

func (r *run) execute(ctx context.Context, d portal.Driver) (*models.ExtractionResult, error) {
	o := r.o

	r.enter(StateAuthenticating)
	ok, err := o.auth.Login(ctx, d, o.creds)
	if err != nil {
		return nil, r.fail(err)
	}
	if !ok {
		return nil, r.fail(models.NewExtractError(models.ErrCodeAuthFailed,
			"credentials rejected by portal", nil))
	}

	r.enter(StateOpeningModule)
	if err := o.nav.OpenModule(ctx, d); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateSelectingPeriod)
	o.nav.SelectPeriod(ctx, d, r.opts.Period)
	if err := portal.Interrupted(ctx, "period selection"); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateDiscovering)
	discovered := o.nav.DiscoverCategories(ctx, d)
	if err := portal.Interrupted(ctx, "category discovery"); err != nil {
		return nil, r.fail(err)
	}

	result := models.NewExtractionResult(o.now(), r.opts.Period)
	targets, unavailable := ResolveTargets(r.opts.Categories, discovered)
	result.Unavailable = unavailable
	if len(unavailable) > 0 {
		r.log.Warn("requested categories not available for period", "categories", unavailable)
	}
	if len(targets) == 0 {
		result.NoData = true
		r.enter(StateCompleted)
		r.log.Info("no data available for period", "discovered", discovered)
		return result, nil
	}

	r.enter(StateExtracting)
	var all []*models.Record
	for i, code := range targets {
		label := models.CategoryLabel(code)
		r.log.Info("processing category",
			"category", code,
			"label", label,
			"index", i+1,
			"total", len(targets),
		)

		r.enter(StateOpenDetail)
		if err := o.nav.OpenCategoryDetail(ctx, d, code); err != nil {
			return nil, r.fail(err)
		}

		r.enter(StateParseAndEnrich)
		records, _, err := o.extractor.ExtractCategory(ctx, d, code, label)
		if err != nil {
			return nil, r.fail(err)
		}
		all = append(all, records...)
		result.Categories = append(result.Categories, code)

		if i < len(targets)-1 {
			r.enter(StateReturnToSummary)
			if err := o.nav.ReturnToSummary(ctx, d); err != nil {
				r.log.Warn("could not return to summary", "error", err)
			}
			if err := portal.Interrupted(ctx, "return to summary"); err != nil {
				return nil, r.fail(err)
			}
		}
	}

	r.enter(StateDeduping)
	result.Records = ledger.Dedupe(all)

	r.enter(StateCompleted)
	r.log.Info("extraction completed",
		"categories", result.Categories,
		"records", len(result.Records),
		"raw_records", len(all),
	)
	return result, nil
}
