package publish

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
)

func TestListingExecutor_Execute(t *testing.T) {
	api := newFakeMarketplace()
	pub := NewPublisher(api, nil, testLogger())
	e := NewListingExecutor(pub, testLogger())

	job := &queue.Job{
		ID:      "job-1",
		ShopID:  "shop-1",
		Status:  queue.JobStatusProcessing,
		Payload: &queue.CreateListingPayload{Listing: *fullPayload()},
	}

	var saved []int64
	save := func(_ context.Context, j *queue.Job) error {
		saved = append(saved, j.ExternalListingID)
		return nil
	}

	raw, err := e.Execute(context.Background(), job, save)
	require.NoError(t, err)

	var result Result
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, int64(5551), result.ListingID)

	// The listing id is checkpointed the moment the draft exists.
	assert.Equal(t, int64(5551), job.ExternalListingID)
	assert.Equal(t, []int64{5551}, saved)
}

func TestListingExecutor_Execute_ResumesWithExistingDraft(t *testing.T) {
	api := newFakeMarketplace()
	pub := NewPublisher(api, nil, testLogger())
	e := NewListingExecutor(pub, testLogger())

	job := &queue.Job{
		ID:                "job-1",
		ShopID:            "shop-1",
		Status:            queue.JobStatusProcessing,
		Payload:           &queue.CreateListingPayload{Listing: *fullPayload()},
		ExternalListingID: 4242,
	}

	raw, err := e.Execute(context.Background(), job, noopSave)
	require.NoError(t, err)

	var result Result
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, int64(4242), result.ListingID)
	assert.NotContains(t, api.callList(), "create_draft")
}

func TestListingExecutor_Execute_RejectsWrongPayload(t *testing.T) {
	pub := NewPublisher(newFakeMarketplace(), nil, testLogger())
	e := NewListingExecutor(pub, testLogger())

	job := &queue.Job{
		ID:      "job-1",
		ShopID:  "shop-1",
		Payload: &queue.BatchUploadPayload{},
	}

	_, err := e.Execute(context.Background(), job, noopSave)

	var vErr *listing.ValidationError
	require.ErrorAs(t, err, &vErr)
}
