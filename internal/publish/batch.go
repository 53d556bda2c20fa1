package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
)

// itemPublisher runs the publication protocol for one payload. Satisfied by
// *Publisher.
type itemPublisher interface {
	Publish(ctx context.Context, req Request) (*Result, error)
}

// BatchItemSuccess records one listing that made it to the marketplace.
type BatchItemSuccess struct {
	Title     string `json:"title"`
	ListingID int64  `json:"listing_id"`
}

// BatchItemFailure records one listing that did not.
type BatchItemFailure struct {
	Title string `json:"title"`
	Error string `json:"error"`
}

// BatchResult is the itemized outcome of a batch run. It only ever grows:
// every submitted payload ends up in exactly one of Success or Failed.
type BatchResult struct {
	Total     int                `json:"total"`
	Completed int                `json:"completed"`
	Success   []BatchItemSuccess `json:"success"`
	Failed    []BatchItemFailure `json:"failed"`
}

// batchProgress guards a BatchResult against concurrent item completions and
// mid-run polling.
type batchProgress struct {
	mu     sync.Mutex
	result BatchResult
}

func newBatchProgress(total int) *batchProgress {
	return &batchProgress{result: BatchResult{
		Total:   total,
		Success: []BatchItemSuccess{},
		Failed:  []BatchItemFailure{},
	}}
}

func (b *batchProgress) addSuccess(title string, listingID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result.Success = append(b.result.Success, BatchItemSuccess{Title: title, ListingID: listingID})
	b.result.Completed++
}

func (b *batchProgress) addFailure(title, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result.Failed = append(b.result.Failed, BatchItemFailure{Title: title, Error: errMsg})
	b.result.Completed++
}

func (b *batchProgress) snapshot() BatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.result
	out.Success = append([]BatchItemSuccess(nil), b.result.Success...)
	out.Failed = append([]BatchItemFailure(nil), b.result.Failed...)
	return out
}

// BatchConfig holds batch executor tunables.
type BatchConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// BatchExecutor runs BATCH_UPLOAD_LISTINGS jobs: payloads are split into
// fixed-size batches, items within a batch publish concurrently, and batches
// are separated by a delay so the marketplace rate limits are respected.
// One item's failure never aborts its siblings; the job itself succeeds as
// long as the run completes, with partial failure surfaced in BatchResult.
type BatchExecutor struct {
	pub    itemPublisher
	cfg    BatchConfig
	sleep  func(ctx context.Context, d time.Duration)
	logger *slog.Logger

	mu       sync.Mutex
	progress map[string]*batchProgress
}

// NewBatchExecutor creates the executor for batch jobs.
func NewBatchExecutor(pub *Publisher, cfg BatchConfig, logger *slog.Logger) *BatchExecutor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 2 * time.Second
	}
	return &BatchExecutor{
		pub:      pub,
		cfg:      cfg,
		sleep:    sleepContext,
		logger:   logger,
		progress: make(map[string]*batchProgress),
	}
}

// Execute runs the whole batch and returns the final BatchResult as the job
// result. The inter-batch delay is applied after every batch except the
// last, including on retried jobs.
func (e *BatchExecutor) Execute(ctx context.Context, job *queue.Job, _ queue.SaveFunc) (json.RawMessage, error) {
	payload, ok := job.Payload.(*queue.BatchUploadPayload)
	if !ok {
		return nil, &listing.ValidationError{Field: "payload", Reason: "expected batch upload payload"}
	}

	items := payload.Listings
	prog := newBatchProgress(len(items))

	e.mu.Lock()
	e.progress[job.ID] = prog
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.progress, job.ID)
		e.mu.Unlock()
	}()

	batches := (len(items) + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	e.logger.Info("Starting batch upload",
		slog.String("job_id", job.ID),
		slog.Int("total", len(items)),
		slog.Int("batch_size", e.cfg.BatchSize),
		slog.Int("batches", batches),
	)

	for start := 0; start < len(items); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(items))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				item := &items[idx]
				result, err := e.pub.Publish(ctx, Request{
					JobID:   fmt.Sprintf("%s#%d", job.ID, idx),
					ShopID:  job.ShopID,
					Listing: item,
				})
				if err != nil {
					prog.addFailure(item.Title, err.Error())
					return
				}
				prog.addSuccess(item.Title, result.ListingID)
			}(i)
		}
		wg.Wait()

		if end < len(items) {
			e.sleep(ctx, e.cfg.BatchDelay)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	final := prog.snapshot()
	raw, err := json.Marshal(final)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch result: %w", err)
	}

	e.logger.Info("Batch upload finished",
		slog.String("job_id", job.ID),
		slog.Int("total", final.Total),
		slog.Int("succeeded", len(final.Success)),
		slog.Int("failed", len(final.Failed)),
	)

	return raw, nil
}

// Progress returns the live BatchResult for a running batch job.
func (e *BatchExecutor) Progress(jobID string) (json.RawMessage, bool) {
	e.mu.Lock()
	prog, ok := e.progress[jobID]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(prog.snapshot())
	if err != nil {
		return nil, false
	}
	return raw, true
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
