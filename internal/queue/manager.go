// Package queue owns the job lifecycle: submission, timer-driven scheduling,
// dispatch to per-type executors, retry policy and durable persistence.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/marketplace"
)

// SaveFunc persists an in-flight job. Executors use it to checkpoint state
// mid-run, e.g. the external listing id right after draft creation.
type SaveFunc func(ctx context.Context, job *Job) error

// Executor runs one job of a given type to completion and returns the result
// payload stored on the job record.
type Executor interface {
	Execute(ctx context.Context, job *Job, save SaveFunc) (json.RawMessage, error)
}

// ProgressReader is implemented by executors that can report intermediate
// results for a running job, e.g. a batch run polled mid-flight.
type ProgressReader interface {
	Progress(jobID string) (json.RawMessage, bool)
}

// JobEvent describes a terminal job transition published to downstream
// consumers.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	ShopID     string    `json:"shop_id"`
	Type       JobType   `json:"job_type"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventSink receives terminal job events. Optional; a nil sink disables
// event publishing.
type EventSink interface {
	PublishJobEvent(ctx context.Context, event JobEvent) error
}

// ManagerConfig holds scheduler tunables.
type ManagerConfig struct {
	MaxConcurrent int
	TickInterval  time.Duration
	MaxRetries    int
}

// Manager is the queue scheduler. It ticks on a fixed interval (and after
// every submission), fills free slots up to MaxConcurrent from the pending
// pool, and drives each dispatched job through its executor. At most one
// manager process may run against a given repository; there is no
// cross-instance coordination.
type Manager struct {
	cfg       ManagerConfig
	repo      Repository
	executors map[JobType]Executor
	events    EventSink
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	jobs   map[string]*Job
	active map[string]struct{}

	ticking atomic.Bool
	wake    chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a scheduler. Executors are registered per job type;
// dispatch of a type without an executor fails the job permanently.
func NewManager(cfg ManagerConfig, repo Repository, executors map[JobType]Executor, events EventSink, logger *slog.Logger) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		repo:      repo,
		executors: executors,
		events:    events,
		logger:    logger,
		now:       time.Now,
		jobs:      make(map[string]*Job),
		active:    make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
	}
}

// AddJob validates the payload, persists the job as pending and returns
// without waiting for execution. A scheduling pass is nudged out of band.
func (m *Manager) AddJob(ctx context.Context, shopID string, jobType JobType, payload Payload) (*Job, error) {
	if shopID == "" {
		return nil, &listing.ValidationError{Field: "shop_id", Reason: "required"}
	}
	if _, ok := m.executors[jobType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	if payload == nil {
		return nil, &listing.ValidationError{Field: "payload", Reason: "required"}
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	job := NewJob(shopID, jobType, payload, m.cfg.MaxRetries, m.now())

	if err := m.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("Job queued",
		slog.String("job_id", job.ID),
		slog.String("shop_id", shopID),
		slog.String("job_type", string(jobType)),
	)

	// Nudge the run loop so fresh jobs don't wait out a full tick.
	select {
	case m.wake <- struct{}{}:
	default:
	}

	return job, nil
}

// GetJob returns the job by id, cache first, repository as fallback. For a
// running batch job the live progress snapshot is attached as the result.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	m.mu.Lock()
	cached, ok := m.jobs[jobID]
	var job Job
	if ok {
		job = *cached
	}
	m.mu.Unlock()

	if !ok {
		stored, err := m.repo.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		job = *stored
	}

	if job.Status == JobStatusProcessing {
		for _, ex := range m.executors {
			if pr, isReader := ex.(ProgressReader); isReader {
				if snapshot, inFlight := pr.Progress(jobID); inFlight {
					job.Result = snapshot
					break
				}
			}
		}
	}

	return &job, nil
}

// Run recovers persisted jobs and drives the scheduling loop until ctx is
// canceled. In-flight dispatches keep running after Run returns; use Drain
// to wait them out.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.recover(ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	m.logger.Info("Queue scheduler started",
		slog.Int("max_concurrent", m.cfg.MaxConcurrent),
		slog.Duration("tick_interval", m.cfg.TickInterval),
	)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Queue scheduler stopping - context canceled")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		case <-m.wake:
			m.Tick(ctx)
		}
	}
}

// Drain blocks until all in-flight dispatches have finished.
func (m *Manager) Drain() {
	m.wg.Wait()
}

// recover reloads the schedulable pool from the repository. Jobs stuck in
// PROCESSING belong to a previous process; no dispatch can be in flight, so
// they are demoted back to pending.
func (m *Manager) recover(ctx context.Context) error {
	stuck, err := m.repo.ListByStatus(ctx, JobStatusProcessing)
	if err != nil {
		return err
	}
	for i := range stuck {
		job, terr := Transition(stuck[i], Event{Kind: EventDefer, Err: "recovered after restart"}, m.now())
		if terr != nil {
			return terr
		}
		if err := m.repo.Update(ctx, &job); err != nil {
			return err
		}
		m.mu.Lock()
		m.jobs[job.ID] = &job
		m.mu.Unlock()

		m.logger.Warn("Recovered stale processing job",
			slog.String("job_id", job.ID),
		)
	}

	pending, err := m.repo.ListByStatus(ctx, JobStatusPending)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for i := range pending {
		job := pending[i]
		if _, exists := m.jobs[job.ID]; !exists {
			m.jobs[job.ID] = &job
		}
	}
	m.mu.Unlock()

	if len(stuck) > 0 || len(pending) > 0 {
		m.logger.Info("Job recovery complete",
			slog.Int("pending", len(pending)),
			slog.Int("recovered", len(stuck)),
		)
	}
	return nil
}

// Tick runs one scheduling pass: select pending jobs outside the active set
// and dispatch them until the concurrency cap is reached. Re-entrant calls
// while a pass is running are no-ops.
func (m *Manager) Tick(ctx context.Context) {
	if !m.ticking.CompareAndSwap(false, true) {
		return
	}
	defer m.ticking.Store(false)

	m.mu.Lock()
	slots := m.cfg.MaxConcurrent - len(m.active)
	if slots <= 0 {
		m.mu.Unlock()
		return
	}

	candidates := make([]*Job, 0, slots)
	for id, job := range m.jobs {
		if job.Status != JobStatusPending {
			continue
		}
		if _, busy := m.active[id]; busy {
			continue
		}
		candidates = append(candidates, job)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if len(candidates) > slots {
		candidates = candidates[:slots]
	}
	for _, job := range candidates {
		m.active[job.ID] = struct{}{}
	}
	m.mu.Unlock()

	for _, job := range candidates {
		j := *job
		m.wg.Add(1)
		go m.dispatch(ctx, j)
	}
}

// dispatch drives one job through its executor and applies the outcome.
func (m *Manager) dispatch(ctx context.Context, job Job) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.active, job.ID)
		m.mu.Unlock()
	}()

	job, err := Transition(job, Event{Kind: EventStart}, m.now())
	if err != nil {
		m.logger.Error("Failed to start job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := m.save(ctx, &job); err != nil {
		m.logger.Error("Failed to persist job start",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	m.logger.Info("Dispatching job",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.Int("retry_count", job.RetryCount),
	)

	executor, ok := m.executors[job.Type]
	if !ok {
		m.finish(ctx, job, Event{Kind: EventFailFinal, Err: ErrUnknownJobType.Error() + ": " + string(job.Type)})
		return
	}

	result, execErr := executor.Execute(ctx, &job, m.save)
	m.finish(ctx, job, m.classify(result, execErr))
}

// classify maps an execution outcome onto a state machine event per the
// error taxonomy: validation failures are final, rate limits defer without
// consuming a retry, everything else goes through the retry policy.
func (m *Manager) classify(result json.RawMessage, execErr error) Event {
	if execErr == nil {
		return Event{Kind: EventSucceed, Result: result}
	}

	var validationErr *listing.ValidationError
	if errors.As(execErr, &validationErr) {
		return Event{Kind: EventFailFinal, Err: execErr.Error()}
	}

	// Shutdown mid-dispatch is not a job failure; requeue for the next run.
	if errors.Is(execErr, context.Canceled) {
		return Event{Kind: EventDefer, Err: execErr.Error()}
	}

	var rateLimitErr *marketplace.RateLimitError
	if errors.As(execErr, &rateLimitErr) {
		return Event{Kind: EventDefer, Err: execErr.Error()}
	}

	return Event{Kind: EventFail, Err: execErr.Error()}
}

// finish applies the terminal (or requeue) event, persists it and emits a
// lifecycle event for terminal outcomes.
func (m *Manager) finish(ctx context.Context, job Job, ev Event) {
	updated, err := Transition(job, ev, m.now())
	if err != nil {
		m.logger.Error("Invalid job transition",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := m.save(ctx, &updated); err != nil {
		m.logger.Error("Failed to persist job outcome",
			slog.String("job_id", updated.ID),
			slog.String("status", string(updated.Status)),
			slog.String("error", err.Error()),
		)
		// The durable write failed and the cache copy is still PROCESSING.
		// Demote it so a later pass can redispatch instead of waiting for a
		// process restart.
		m.mu.Lock()
		if cached, ok := m.jobs[job.ID]; ok {
			demoted := *cached
			demoted.Status = JobStatusPending
			demoted.StartedAt = nil
			m.jobs[job.ID] = &demoted
		}
		m.mu.Unlock()
		return
	}

	// Terminal jobs live in the repository from here on; keeping them cached
	// would pin their payload blobs for the life of the process.
	if updated.Status == JobStatusCompleted || updated.Status == JobStatusFailed {
		m.mu.Lock()
		delete(m.jobs, updated.ID)
		m.mu.Unlock()
	}

	switch updated.Status {
	case JobStatusCompleted:
		m.logger.Info("Job completed",
			slog.String("job_id", updated.ID),
			slog.String("job_type", string(updated.Type)),
		)
	case JobStatusFailed:
		m.logger.Error("Job failed",
			slog.String("job_id", updated.ID),
			slog.String("job_type", string(updated.Type)),
			slog.String("error", updated.ErrorMessage),
			slog.Int("retry_count", updated.RetryCount),
		)
	case JobStatusPending:
		m.logger.Warn("Job requeued",
			slog.String("job_id", updated.ID),
			slog.Int("retry_count", updated.RetryCount),
			slog.Int("max_retries", updated.MaxRetries),
			slog.String("error", updated.ErrorMessage),
		)
	}

	if m.events != nil && (updated.Status == JobStatusCompleted || updated.Status == JobStatusFailed) {
		event := JobEvent{
			JobID:      updated.ID,
			ShopID:     updated.ShopID,
			Type:       updated.Type,
			Status:     updated.Status,
			Error:      updated.ErrorMessage,
			OccurredAt: m.now(),
		}
		if err := m.events.PublishJobEvent(ctx, event); err != nil {
			m.logger.Warn("Failed to publish job event",
				slog.String("job_id", updated.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// save persists the job and refreshes the cache copy.
func (m *Manager) save(ctx context.Context, job *Job) error {
	if err := m.repo.Update(ctx, job); err != nil {
		return err
	}
	copied := *job
	m.mu.Lock()
	m.jobs[job.ID] = &copied
	m.mu.Unlock()
	return nil
}
