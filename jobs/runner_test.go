package jobs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rcvscrap/cache"
	"github.com/use-agent/rcvscrap/export"
	"github.com/use-agent/rcvscrap/models"
	"github.com/use-agent/rcvscrap/pipeline"
	"github.com/use-agent/rcvscrap/webhook"
)

// extractorFunc adapts a function to Extractor.
type extractorFunc func(ctx context.Context, opts pipeline.Options) (*models.ExtractionResult, error)

func (f extractorFunc) Run(ctx context.Context, opts pipeline.Options) (*models.ExtractionResult, error) {
	return f(ctx, opts)
}

func okResult(opts pipeline.Options) *models.ExtractionResult {
	r := models.NewExtractionResult(time.Unix(1_700_000_000, 0), opts.Period)
	r.Categories = []string{"33", "39"}
	r.Records = []*models.Record{
		models.RecordOf("Folio", "1"),
		models.RecordOf("Folio", "2"),
		models.RecordOf("Folio", "3"),
	}
	return r
}

func waitDone(t *testing.T, r *Runner) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := r.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestRunner_IdleBeforeFirstRun(t *testing.T) {
	r := NewRunner(extractorFunc(func(context.Context, pipeline.Options) (*models.ExtractionResult, error) {
		return nil, nil
	}))

	assert.Equal(t, StatusIdle, r.Status().Status)
	_, ok := r.Result()
	assert.False(t, ok)

	snap, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, snap.Status)
}

func TestRunner_CompletesAndPersists(t *testing.T) {
	dir := t.TempDir()
	c := cache.New(4, time.Hour)
	defer c.Close()

	var seen []pipeline.State
	var mu sync.Mutex
	r := NewRunner(extractorFunc(func(_ context.Context, opts pipeline.Options) (*models.ExtractionResult, error) {
		for _, s := range []pipeline.State{pipeline.StateAuthenticating, pipeline.StateExtracting} {
			opts.OnState(s)
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		}
		return okResult(opts), nil
	}),
		WithWriters(export.NewJSONWriter(filepath.Join(dir, "out.json"))),
		WithCache(c),
	)

	period := &models.Period{Month: 3, Year: 2024}
	started, err := r.Start(Request{Period: period, Categories: []string{"33", "39"}})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, started.Status)
	assert.NotEmpty(t, started.ID)

	snap := waitDone(t, r)
	assert.Equal(t, started.ID, snap.ID)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, pipeline.StateCompleted, snap.State)
	assert.Equal(t, 3, snap.TotalRecords)
	assert.Equal(t, []string{"33", "39"}, snap.Processed)
	assert.NotNil(t, snap.FinishedAt)
	assert.Nil(t, snap.Error)

	res, ok := r.Result()
	require.True(t, ok)
	assert.Len(t, res.Records, 3)

	cached, ok := c.Get("2024-03")
	require.True(t, ok)
	assert.Same(t, res, cached)

	_, statErr := os.Stat(filepath.Join(dir, "out.json"))
	assert.NoError(t, statErr)
	assert.Len(t, seen, 2)
}

func TestRunner_RejectsConcurrentStart(t *testing.T) {
	release := make(chan struct{})
	r := NewRunner(extractorFunc(func(_ context.Context, opts pipeline.Options) (*models.ExtractionResult, error) {
		<-release
		return okResult(opts), nil
	}))

	first, err := r.Start(Request{})
	require.NoError(t, err)

	_, err = r.Start(Request{})
	assert.Equal(t, models.ErrCodeAlreadyRunning, models.CodeOf(err))
	assert.Equal(t, first.ID, r.Status().ID)

	close(release)
	waitDone(t, r)

	second, err := r.Start(Request{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	waitDone(t, r)
}

func TestRunner_InvalidPeriod(t *testing.T) {
	r := NewRunner(extractorFunc(func(context.Context, pipeline.Options) (*models.ExtractionResult, error) {
		t.Fatal("extractor must not run")
		return nil, nil
	}))

	_, err := r.Start(Request{Period: &models.Period{Month: 0, Year: 2024}})

	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
	assert.Equal(t, StatusIdle, r.Status().Status)
}

func TestRunner_FailureKeepsPreviousResult(t *testing.T) {
	fail := false
	r := NewRunner(extractorFunc(func(_ context.Context, opts pipeline.Options) (*models.ExtractionResult, error) {
		if fail {
			return nil, models.NewExtractError(models.ErrCodeAuthFailed, "credentials rejected by portal", nil)
		}
		return okResult(opts), nil
	}))

	_, err := r.Start(Request{})
	require.NoError(t, err)
	waitDone(t, r)

	fail = true
	_, err = r.Start(Request{})
	require.NoError(t, err)
	snap := waitDone(t, r)

	assert.Equal(t, StatusFailed, snap.Status)
	require.NotNil(t, snap.Error)
	assert.Equal(t, models.ErrCodeAuthFailed, snap.Error.Code)
	assert.Zero(t, snap.TotalRecords)

	res, ok := r.Result()
	require.True(t, ok)
	assert.Len(t, res.Records, 3)
}

func TestRunner_NoDataMessage(t *testing.T) {
	r := NewRunner(extractorFunc(func(_ context.Context, opts pipeline.Options) (*models.ExtractionResult, error) {
		res := models.NewExtractionResult(time.Now(), opts.Period)
		res.NoData = true
		return res, nil
	}))

	_, err := r.Start(Request{})
	require.NoError(t, err)
	snap := waitDone(t, r)

	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, "no data available for the period", snap.Message)
}

func TestRunner_NotifiesWebhook(t *testing.T) {
	events := make(chan webhook.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var ev webhook.Event
		_ = json.Unmarshal(body, &ev)
		events <- ev
	}))
	defer srv.Close()

	n := webhook.New(srv.URL, "")
	r := NewRunner(extractorFunc(func(_ context.Context, opts pipeline.Options) (*models.ExtractionResult, error) {
		return okResult(opts), nil
	}), WithNotifier(n))

	started, err := r.Start(Request{})
	require.NoError(t, err)
	waitDone(t, r)
	n.Wait()

	select {
	case ev := <-events:
		assert.Equal(t, webhook.EventExtractionCompleted, ev.Type)
		assert.Equal(t, started.ID, ev.JobID)
	default:
		t.Fatal("no webhook event received")
	}
}

func TestRunner_ShutdownCancelsRun(t *testing.T) {
	r := NewRunner(extractorFunc(func(ctx context.Context, _ pipeline.Options) (*models.ExtractionResult, error) {
		<-ctx.Done()
		return nil, models.NewExtractError(models.ErrCodeTimeout, "run canceled", ctx.Err())
	}))

	_, err := r.Start(Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	assert.Equal(t, StatusFailed, r.Status().Status)
	_, err = r.Start(Request{})
	assert.Error(t, err)
}
