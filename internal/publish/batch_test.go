package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
)

// stubItemPublisher fakes the per-item protocol for batch tests.
type stubItemPublisher struct {
	mu         sync.Mutex
	calls      int
	failTitles map[string]bool
	nextID     int64
}

func (s *stubItemPublisher) Publish(_ context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failTitles[req.Listing.Title] {
		return nil, errors.New("marketplace rejected listing")
	}
	s.nextID++
	return &Result{ListingID: 1000 + s.nextID, State: string(listing.StateActive)}, nil
}

func (s *stubItemPublisher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func batchPayload(n int) *queue.BatchUploadPayload {
	p := &queue.BatchUploadPayload{}
	for i := 0; i < n; i++ {
		p.Listings = append(p.Listings, listing.Payload{
			Title:          fmt.Sprintf("Canvas Print %02d", i+1),
			Description:    "Wall art.",
			Price:          39.00,
			Quantity:       1,
			RequestedState: listing.StateActive,
		})
	}
	return p
}

func batchJob(n int) *queue.Job {
	return &queue.Job{
		ID:      "batch-job-1",
		ShopID:  "shop-1",
		Type:    queue.JobTypeBatchUpload,
		Status:  queue.JobStatusProcessing,
		Payload: batchPayload(n),
	}
}

func noopSave(context.Context, *queue.Job) error { return nil }

func newTestBatchExecutor(pub itemPublisher, cfg BatchConfig) (*BatchExecutor, *[]time.Duration) {
	e := NewBatchExecutor(nil, cfg, testLogger())
	e.pub = pub

	var delays []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) {
		delays = append(delays, d)
	}
	return e, &delays
}

func TestBatchExecutor_Execute_SplitsIntoBatches(t *testing.T) {
	pub := &stubItemPublisher{}
	e, delays := newTestBatchExecutor(pub, BatchConfig{BatchSize: 5, BatchDelay: 2 * time.Second})

	raw, err := e.Execute(context.Background(), batchJob(12), noopSave)
	require.NoError(t, err)

	var result BatchResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, 12, result.Total)
	assert.Equal(t, 12, result.Completed)
	assert.Len(t, result.Success, 12)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 12, pub.callCount())

	// Three batches of 5+5+2 mean exactly two inter-batch delays.
	require.Len(t, *delays, 2)
	assert.Equal(t, 2*time.Second, (*delays)[0])
}

func TestBatchExecutor_Execute_SingleBatchNoDelay(t *testing.T) {
	pub := &stubItemPublisher{}
	e, delays := newTestBatchExecutor(pub, BatchConfig{BatchSize: 5, BatchDelay: 2 * time.Second})

	raw, err := e.Execute(context.Background(), batchJob(3), noopSave)
	require.NoError(t, err)

	var result BatchResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 3, result.Completed)
	assert.Empty(t, *delays)
}

func TestBatchExecutor_Execute_ItemFailuresDontAbortSiblings(t *testing.T) {
	pub := &stubItemPublisher{failTitles: map[string]bool{
		"Canvas Print 02": true,
		"Canvas Print 07": true,
	}}
	e, _ := newTestBatchExecutor(pub, BatchConfig{BatchSize: 5, BatchDelay: time.Second})

	raw, err := e.Execute(context.Background(), batchJob(10), noopSave)
	require.NoError(t, err)

	var result BatchResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, 10, result.Total)
	assert.Equal(t, 10, result.Completed)
	assert.Len(t, result.Success, 8)
	require.Len(t, result.Failed, 2)

	failedTitles := []string{result.Failed[0].Title, result.Failed[1].Title}
	assert.ElementsMatch(t, []string{"Canvas Print 02", "Canvas Print 07"}, failedTitles)
	assert.Contains(t, result.Failed[0].Error, "rejected")
}

func TestBatchExecutor_Execute_CanceledBetweenBatches(t *testing.T) {
	pub := &stubItemPublisher{}
	e := NewBatchExecutor(nil, BatchConfig{BatchSize: 5, BatchDelay: time.Second}, testLogger())
	e.pub = pub

	ctx, cancel := context.WithCancel(context.Background())
	e.sleep = func(context.Context, time.Duration) { cancel() }

	_, err := e.Execute(ctx, batchJob(12), noopSave)
	require.ErrorIs(t, err, context.Canceled)

	// Only the first batch ran before the cancellation was observed.
	assert.Equal(t, 5, pub.callCount())
}

func TestBatchExecutor_Execute_RejectsWrongPayload(t *testing.T) {
	e, _ := newTestBatchExecutor(&stubItemPublisher{}, BatchConfig{BatchSize: 5})

	job := &queue.Job{
		ID:      "job-1",
		ShopID:  "shop-1",
		Payload: &queue.CreateListingPayload{},
	}

	_, err := e.Execute(context.Background(), job, noopSave)

	var vErr *listing.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestBatchExecutor_Progress(t *testing.T) {
	pub := &stubItemPublisher{}
	e := NewBatchExecutor(nil, BatchConfig{BatchSize: 5, BatchDelay: time.Second}, testLogger())
	e.pub = pub

	var midRun json.RawMessage
	var midRunOK bool
	e.sleep = func(context.Context, time.Duration) {
		// Poll between batches, while the run is still registered.
		midRun, midRunOK = e.Progress("batch-job-1")
	}

	_, err := e.Execute(context.Background(), batchJob(8), noopSave)
	require.NoError(t, err)

	require.True(t, midRunOK)
	var snapshot BatchResult
	require.NoError(t, json.Unmarshal(midRun, &snapshot))
	assert.Equal(t, 8, snapshot.Total)
	assert.Equal(t, 5, snapshot.Completed)

	// Once the run finishes the progress entry is gone.
	_, ok := e.Progress("batch-job-1")
	assert.False(t, ok)
}
