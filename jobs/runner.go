// Package jobs runs extractions in the background, one at a time, and keeps
// the status and result of the latest run.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/rcvscrap/cache"
	"github.com/use-agent/rcvscrap/export"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/pipeline"
	"github.com/use-agent/rcvscrap/webhook"
)

// Status is the lifecycle of the current run slot.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Snapshot is a copy of the run slot at one point in time.
type Snapshot struct {
	ID           string              `json:"id,omitempty"`
	Status       Status              `json:"status"`
	State        pipeline.State      `json:"state,omitempty"`
	Message      string              `json:"message"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	Period       *models.Period      `json:"period,omitempty"`
	Requested    []string            `json:"categories_requested,omitempty"`
	Processed    []string            `json:"categories_processed,omitempty"`
	Unavailable  []string            `json:"categories_unavailable,omitempty"`
	TotalRecords int                 `json:"total_records"`
	Error        *models.ErrorDetail `json:"error,omitempty"`
}

// Running reports whether a run is in progress.
func (s Snapshot) Running() bool { return s.Status == StatusRunning }

// Request describes a run.
type Request struct {
	Period     *models.Period
	Categories []string
}

// Extractor runs the pipeline; *pipeline.Orchestrator implements it.
type Extractor interface {
	Run(ctx context.Context, opts pipeline.Options) (*models.ExtractionResult, error)
}

// Runner owns the single run slot. It is safe for concurrent use.
type Runner struct {
	extractor  Extractor
	writers    []export.Writer
	cache      *cache.Cache
	notifier   *webhook.Notifier
	runTimeout time.Duration
	now        func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	snap   Snapshot
	result *models.ExtractionResult
	done   chan struct{}
}

// Option customises a Runner.
type Option func(*Runner)

// WithWriters persists every completed result through ws.
func WithWriters(ws ...export.Writer) Option {
	return func(r *Runner) { r.writers = append(r.writers, ws...) }
}

// WithCache stores completed results in c, keyed by period.
func WithCache(c *cache.Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithNotifier sends webhook events when runs end.
func WithNotifier(n *webhook.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithRunTimeout bounds each run; zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(r *Runner) { r.runTimeout = d }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates an idle Runner.
func NewRunner(extractor Extractor, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		extractor: extractor,
		now:       time.Now,
		baseCtx:   ctx,
		cancel:    cancel,
		snap:      Snapshot{Status: StatusIdle, Message: "no extraction has run yet"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches a run in the background and returns its initial snapshot.
// It fails with ErrCodeAlreadyRunning while another run is in progress.
func (r *Runner) Start(req Request) (Snapshot, error) {
	if req.Period != nil {
		if err := req.Period.Validate(); err != nil {
			return Snapshot{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snap.Running() {
		return r.snap, models.NewExtractError(models.ErrCodeAlreadyRunning,
			"an extraction is already running", nil)
	}
	if r.baseCtx.Err() != nil {
		return r.snap, models.NewExtractError(models.ErrCodeInternal, "runner is shut down", nil)
	}

	started := r.now()
	r.snap = Snapshot{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		State:     pipeline.StateStart,
		Message:   "extraction started",
		StartedAt: &started,
		Period:    req.Period,
		Requested: req.Categories,
	}
	r.done = make(chan struct{})

	slog.Info("extraction job started",
		"job_id", r.snap.ID,
		"period", models.PeriodKey(req.Period),
		"categories", req.Categories,
	)
	go r.run(r.snap.ID, req, r.done)
	return r.snap, nil
}

// Status returns the current snapshot.
func (r *Runner) Status() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Result returns the last completed result, if any.
func (r *Runner) Result() (*models.ExtractionResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.result != nil
}

// Wait blocks until the current run ends or ctx is done, then returns the
// snapshot.
func (r *Runner) Wait(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return r.Status(), ctx.Err()
		}
	}
	return r.Status(), nil
}

// Shutdown cancels the running extraction, if any, and waits for it to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.cancel()
	_, err := r.Wait(ctx)
	return err
}

func (r *Runner) run(id string, req Request, done chan struct{}) {
	defer close(done)

	ctx := r.baseCtx
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	result, err := r.extractor.Run(ctx, pipeline.Options{
		Period:     req.Period,
		Categories: req.Categories,
		OnState:    func(s pipeline.State) { r.setState(id, s) },
	})
	if err != nil {
		r.fail(id, err)
		return
	}
	r.complete(id, result)
}

func (r *Runner) setState(id string, s pipeline.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap.ID != id {
		return
	}
	r.snap.State = s
	r.snap.Message = stateMessage(s)
}

func (r *Runner) complete(id string, result *models.ExtractionResult) {
	if len(r.writers) > 0 {
		if err := export.WriteAll(result, r.writers...); err != nil {
			slog.Error("extraction results not fully persisted", "job_id", id, "error", err)
		}
	}
	if r.cache != nil {
		r.cache.Set(cache.Key(result.Period), result)
	}

	finished := r.now()
	message := fmt.Sprintf("%d records extracted from %d categories", len(result.Records), len(result.Categories))
	if result.NoData {
		message = "no data available for the period"
	}

	r.mu.Lock()
	r.result = result
	r.snap.Status = StatusCompleted
	r.snap.State = pipeline.StateCompleted
	r.snap.Message = message
	r.snap.FinishedAt = &finished
	r.snap.Processed = result.Categories
	r.snap.Unavailable = result.Unavailable
	r.snap.TotalRecords = len(result.Records)
	snap := r.snap
	r.mu.Unlock()

	slog.Info("extraction job completed",
		"job_id", id,
		"records", snap.TotalRecords,
		"categories", snap.Processed,
		"duration", finished.Sub(*snap.StartedAt).Round(time.Millisecond),
	)
	r.notifier.DeliverAsync(&webhook.Event{
		Type:      webhook.EventExtractionCompleted,
		JobID:     id,
		Timestamp: finished.Unix(),
		Data:      snap,
	})
}

func (r *Runner) fail(id string, err error) {
	ee := models.AsExtractError(err)
	finished := r.now()

	r.mu.Lock()
	r.snap.Status = StatusFailed
	r.snap.State = pipeline.StateFailed
	r.snap.Message = ee.Message
	r.snap.FinishedAt = &finished
	r.snap.Error = ee.ToDetail()
	snap := r.snap
	r.mu.Unlock()

	slog.Error("extraction job failed", "job_id", id, "code", ee.Code, "error", err)
	r.notifier.DeliverAsync(&webhook.Event{
		Type:      webhook.EventExtractionFailed,
		JobID:     id,
		Timestamp: finished.Unix(),
		Data:      snap,
	})
}

func stateMessage(s pipeline.State) string {
	switch s {
	case pipeline.StateAuthenticating:
		return "logging in"
	case pipeline.StateOpeningModule:
		return "opening ledger module"
	case pipeline.StateSelectingPeriod:
		return "selecting period"
	case pipeline.StateDiscovering:
		return "discovering categories"
	case pipeline.StateExtracting, pipeline.StateOpenDetail, pipeline.StateParseAndEnrich, pipeline.StateReturnToSummary:
		return "extracting categories"
	case pipeline.StateDeduping:
		return "removing duplicates"
	default:
		return string(s)
	}
}
