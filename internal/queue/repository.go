package queue

import (
	"context"
	"time"
)

// Cursor marks a position in the job list for keyset pagination.
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListFilter narrows and paginates job listings.
type ListFilter struct {
	ShopID   string
	Type     JobType
	Status   JobStatus
	PageSize int
	Cursor   *Cursor
}

// Repository is the durable job store. The scheduler treats it as the source
// of truth across restarts; the in-memory map is only a cache in front of it.
type Repository interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context, filter ListFilter) ([]Job, error)
	ListByStatus(ctx context.Context, status JobStatus) ([]Job, error)
}
