// Package publish drives one listing payload through the ordered marketplace
// call sequence (draft, media, inventory, activation) and runs batches of
// payloads with bounded concurrency and inter-batch delays.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/marketplace"
)

// MarketplaceAPI is the slice of the marketplace client the protocol drives.
type MarketplaceAPI interface {
	CreateDraftListing(ctx context.Context, shopID string, draft *marketplace.DraftListing) (int64, error)
	UploadListingImage(ctx context.Context, shopID string, listingID int64, img *listing.ImageAsset, rank int, altText string) (int64, error)
	UploadListingVideo(ctx context.Context, shopID string, listingID int64, vid *listing.VideoAsset) (int64, error)
	UpdateInventory(ctx context.Context, shopID string, listingID int64, variations []listing.Variation) error
	ActivateListing(ctx context.Context, shopID string, listingID int64) error
}

// Record maps a published marketplace listing back to the job and shop that
// produced it.
type Record struct {
	ListingID      int64
	JobID          string
	ShopID         string
	State          listing.State
	UploadedImages int
	CreatedAt      time.Time
}

// RecordStore persists published-listing records for later lookup.
type RecordStore interface {
	SaveListingRecord(ctx context.Context, rec *Record) error
}

// FatalStepError marks a protocol step whose failure aborts the remaining
// steps. Only draft creation is fatal; the whole job may still be retried
// from the top by the scheduler.
type FatalStepError struct {
	Step string
	Err  error
}

func (e *FatalStepError) Error() string {
	return fmt.Sprintf("fatal failure at step %s: %v", e.Step, e.Err)
}

func (e *FatalStepError) Unwrap() error {
	return e.Err
}

// Result summarizes one publication run. Non-fatal step failures land in
// StepErrors; the run still counts as completed.
type Result struct {
	ListingID          int64    `json:"listing_id"`
	State              string   `json:"state"`
	UploadedImages     int      `json:"uploaded_images"`
	VideoUploaded      bool     `json:"video_uploaded"`
	VariationsAttached bool     `json:"variations_attached"`
	Activated          bool     `json:"activated"`
	StepErrors         []string `json:"step_errors,omitempty"`
}

// Request carries one payload into the protocol. ListingID is nonzero when a
// prior attempt already created the draft; the draft step is then skipped so
// retries never duplicate listings.
type Request struct {
	JobID          string
	ShopID         string
	Listing        *listing.Payload
	ListingID      int64
	OnDraftCreated func(listingID int64)
}

// Publisher runs the listing publication protocol.
type Publisher struct {
	api     MarketplaceAPI
	records RecordStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewPublisher creates a publisher. The record store may be nil; record
// persistence is then skipped.
func NewPublisher(api MarketplaceAPI, records RecordStore, logger *slog.Logger) *Publisher {
	return &Publisher{
		api:     api,
		records: records,
		logger:  logger,
		now:     time.Now,
	}
}

// Publish runs the full protocol for one payload. Steps run strictly in
// order: price and tag resolution, draft creation (fatal on failure), image
// uploads, video upload, inventory, activation. Media and inventory failures
// are recorded but do not abort the run; activation is attempted only when
// the seller requested an active listing and at least one image made it up.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	payload := req.Listing
	result := &Result{State: string(listing.StateDraft)}

	price := listing.ResolvePrice(payload)
	tags := listing.SanitizeTags(payload.Tags)
	materials := listing.SanitizeTerms(payload.Materials)

	listingID := req.ListingID
	if listingID == 0 {
		draft := &marketplace.DraftListing{
			Title:             payload.Title,
			Description:       payload.Description,
			Price:             price,
			Quantity:          payload.Quantity,
			Tags:              tags,
			Materials:         materials,
			TaxonomyID:        payload.TaxonomyID,
			ShippingProfileID: payload.ShippingProfileID,
			WhoMade:           payload.WhoMade,
			WhenMade:          payload.WhenMade,
			ProcessingMin:     payload.ProcessingMin,
			ProcessingMax:     payload.ProcessingMax,
			IsPersonalizable:  payload.Personalization.Enabled,
		}

		id, err := p.api.CreateDraftListing(ctx, req.ShopID, draft)
		if err != nil {
			return nil, &FatalStepError{Step: "create_draft", Err: err}
		}
		listingID = id
		if req.OnDraftCreated != nil {
			req.OnDraftCreated(id)
		}
	} else {
		p.logger.Info("Draft already exists from prior attempt, skipping creation",
			slog.String("job_id", req.JobID),
			slog.Int64("listing_id", listingID),
		)
	}
	result.ListingID = listingID

	for i := range payload.Images {
		rank := i + 1
		altText := imageAltText(payload.Title, rank)
		if _, err := p.api.UploadListingImage(ctx, req.ShopID, listingID, &payload.Images[i], rank, altText); err != nil {
			result.StepErrors = append(result.StepErrors, fmt.Sprintf("image %d: %v", rank, err))
			p.logger.Warn("Image upload failed",
				slog.String("job_id", req.JobID),
				slog.Int64("listing_id", listingID),
				slog.Int("rank", rank),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.UploadedImages++
	}

	if payload.Video != nil {
		if _, err := p.api.UploadListingVideo(ctx, req.ShopID, listingID, payload.Video); err != nil {
			result.StepErrors = append(result.StepErrors, fmt.Sprintf("video: %v", err))
			p.logger.Warn("Video upload failed",
				slog.String("job_id", req.JobID),
				slog.Int64("listing_id", listingID),
				slog.String("error", err.Error()),
			)
		} else {
			result.VideoUploaded = true
		}
	}

	if len(payload.Variations) > 0 {
		if err := p.api.UpdateInventory(ctx, req.ShopID, listingID, payload.Variations); err != nil {
			// The listing survives without variations rather than aborting.
			result.StepErrors = append(result.StepErrors, fmt.Sprintf("inventory: %v", err))
			p.logger.Warn("Inventory update failed",
				slog.String("job_id", req.JobID),
				slog.Int64("listing_id", listingID),
				slog.String("error", err.Error()),
			)
		} else {
			result.VariationsAttached = true
		}
	}

	// A listing with zero images cannot be activated on the marketplace.
	if payload.RequestedState == listing.StateActive && result.UploadedImages > 0 {
		if err := p.api.ActivateListing(ctx, req.ShopID, listingID); err != nil {
			result.StepErrors = append(result.StepErrors, fmt.Sprintf("activate: %v", err))
			p.logger.Warn("Activation failed, listing remains in draft",
				slog.String("job_id", req.JobID),
				slog.Int64("listing_id", listingID),
				slog.String("error", err.Error()),
			)
		} else {
			result.Activated = true
			result.State = string(listing.StateActive)
		}
	}

	if p.records != nil {
		rec := &Record{
			ListingID:      listingID,
			JobID:          req.JobID,
			ShopID:         req.ShopID,
			State:          listing.State(result.State),
			UploadedImages: result.UploadedImages,
			CreatedAt:      p.now(),
		}
		if err := p.records.SaveListingRecord(ctx, rec); err != nil {
			result.StepErrors = append(result.StepErrors, fmt.Sprintf("record: %v", err))
			p.logger.Warn("Failed to save listing record",
				slog.String("job_id", req.JobID),
				slog.Int64("listing_id", listingID),
				slog.String("error", err.Error()),
			)
		}
	}

	p.logger.Info("Listing published",
		slog.String("job_id", req.JobID),
		slog.Int64("listing_id", listingID),
		slog.String("state", result.State),
		slog.Int("uploaded_images", result.UploadedImages),
		slog.Int("step_errors", len(result.StepErrors)),
	)

	return result, nil
}

func imageAltText(title string, rank int) string {
	return fmt.Sprintf("%s - product photo %d", title, rank)
}
