package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
)

// JobType enumerates the supported job kinds.
type JobType string

const (
	JobTypeCreateListing JobType = "CREATE_LISTING"
	JobTypeBatchUpload   JobType = "BATCH_UPLOAD_LISTINGS"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job is one queued unit of work: a single listing publication or a batch.
// The repository is the durable source of truth; the in-memory copy held by
// the manager is a cache.
type Job struct {
	ID           string
	ShopID       string
	Type         JobType
	Status       JobStatus
	Payload      Payload
	Result       json.RawMessage
	ErrorMessage string

	// ExternalListingID is persisted the moment draft creation succeeds so a
	// retried job skips the draft step instead of creating a duplicate.
	ExternalListingID int64

	RetryCount int
	MaxRetries int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// NewJob builds a pending job with a fresh id.
func NewJob(shopID string, jobType JobType, payload Payload, maxRetries int, now time.Time) *Job {
	return &Job{
		ID:         uuid.New().String(),
		ShopID:     shopID,
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Payload is the tagged union of per-type job payloads.
type Payload interface {
	Validate() error
	jobPayload()
}

// CreateListingPayload publishes one listing.
type CreateListingPayload struct {
	Listing listing.Payload `json:"listing"`
}

func (p *CreateListingPayload) jobPayload() {}

func (p *CreateListingPayload) Validate() error {
	return p.Listing.Validate()
}

// BatchUploadPayload publishes an ordered list of listings in batches.
type BatchUploadPayload struct {
	Listings []listing.Payload `json:"listings"`
}

func (p *BatchUploadPayload) jobPayload() {}

func (p *BatchUploadPayload) Validate() error {
	if len(p.Listings) == 0 {
		return &listing.ValidationError{Field: "listings", Reason: "at least one listing is required"}
	}
	for i := range p.Listings {
		if err := p.Listings[i].Validate(); err != nil {
			return fmt.Errorf("listing %d: %w", i, err)
		}
	}
	return nil
}

// DecodePayload unmarshals a raw payload into its typed form. Unknown job
// types are rejected here so dispatch can stay exhaustive.
func DecodePayload(jobType JobType, raw []byte) (Payload, error) {
	switch jobType {
	case JobTypeCreateListing:
		var p CreateListingPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode create listing payload: %w", err)
		}
		return &p, nil
	case JobTypeBatchUpload:
		var p BatchUploadPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode batch upload payload: %w", err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
}

// EncodePayload marshals a typed payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return raw, nil
}
