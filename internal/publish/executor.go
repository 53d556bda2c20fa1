package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
)

// ListingExecutor runs CREATE_LISTING jobs through the publication protocol.
type ListingExecutor struct {
	pub    *Publisher
	logger *slog.Logger
}

// NewListingExecutor creates the executor for single-listing jobs.
func NewListingExecutor(pub *Publisher, logger *slog.Logger) *ListingExecutor {
	return &ListingExecutor{pub: pub, logger: logger}
}

// Execute publishes the job's listing. The external listing id is
// checkpointed to the repository as soon as draft creation succeeds, so a
// later retry resumes instead of creating a duplicate draft.
func (e *ListingExecutor) Execute(ctx context.Context, job *queue.Job, save queue.SaveFunc) (json.RawMessage, error) {
	payload, ok := job.Payload.(*queue.CreateListingPayload)
	if !ok {
		return nil, &listing.ValidationError{Field: "payload", Reason: "expected create listing payload"}
	}

	result, err := e.pub.Publish(ctx, Request{
		JobID:     job.ID,
		ShopID:    job.ShopID,
		Listing:   &payload.Listing,
		ListingID: job.ExternalListingID,
		OnDraftCreated: func(listingID int64) {
			job.ExternalListingID = listingID
			if saveErr := save(ctx, job); saveErr != nil {
				e.logger.Warn("Failed to checkpoint listing id",
					slog.String("job_id", job.ID),
					slog.Int64("listing_id", listingID),
					slog.String("error", saveErr.Error()),
				)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode publication result: %w", err)
	}
	return raw, nil
}
