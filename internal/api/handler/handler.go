package handler

import (
	"context"
	"log/slog"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/publish"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
	"github.com/yunusdemirbag/dolphinmanager-sub002/shared/postgresql"
)

// ListingRecordReader looks up published-listing records by marketplace id.
type ListingRecordReader interface {
	GetByListingID(ctx context.Context, listingID int64) (*publish.Record, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Manager  *queue.Manager
	Repo     queue.Repository
	Records  ListingRecordReader
	DBClient *postgresql.Client
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger  *slog.Logger
	manager *queue.Manager
	repo    queue.Repository
	records ListingRecordReader
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:  deps.Logger,
		manager: deps.Manager,
		repo:    deps.Repo,
		records: deps.Records,
	}
}
