package dto

import "encoding/json"

// SubmitJobRequest queues a listing publication job. Payload is decoded
// against the job type before the job is accepted.
type SubmitJobRequest struct {
	ShopID  string          `json:"shop_id" binding:"required"`
	JobType string          `json:"job_type" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type ListJobsRequest struct {
	ShopID   string `form:"shop_id"`
	JobType  string `form:"job_type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type ListingRecordDTO struct {
	ListingID      int64  `json:"listing_id"`
	JobID          string `json:"job_id"`
	ShopID         string `json:"shop_id"`
	State          string `json:"state"`
	UploadedImages int    `json:"uploaded_images"`
	CreatedAt      string `json:"created_at"`
}

type JobDTO struct {
	JobID             string          `json:"job_id"`
	ShopID            string          `json:"shop_id"`
	JobType           string          `json:"job_type"`
	Status            string          `json:"status"`
	Result            json.RawMessage `json:"result,omitempty"`
	Error             string          `json:"error,omitempty"`
	ExternalListingID int64           `json:"external_listing_id,omitempty"`
	RetryCount        int             `json:"retry_count"`
	MaxRetries        int             `json:"max_retries"`
	CreatedAt         string          `json:"created_at"`
	StartedAt         string          `json:"started_at,omitempty"`
	CompletedAt       string          `json:"completed_at,omitempty"`
}
