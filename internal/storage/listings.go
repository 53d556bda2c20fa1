package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/listing"
	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/publish"
	"github.com/yunusdemirbag/dolphinmanager-sub002/shared/postgresql"
)

// ErrListingRecordNotFound is returned when no record exists for a listing id.
var ErrListingRecordNotFound = errors.New("listing record not found")

// ListingRecordStore persists published-listing records in PostgreSQL.
type ListingRecordStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewListingRecordStore creates a record store on the shared client.
func NewListingRecordStore(pg *postgresql.Client, logger *slog.Logger) *ListingRecordStore {
	return &ListingRecordStore{
		db:     pg.GetDB(),
		logger: logger,
	}
}

type listingRecordRow struct {
	ListingID      int64     `db:"listing_id"`
	JobID          string    `db:"job_id"`
	ShopID         string    `db:"shop_id"`
	State          string    `db:"state"`
	UploadedImages int       `db:"uploaded_images"`
	CreatedAt      time.Time `db:"created_at"`
}

// SaveListingRecord upserts the record for a published listing. A retried
// job republishing the same listing id overwrites state and image count.
func (s *ListingRecordStore) SaveListingRecord(ctx context.Context, rec *publish.Record) error {
	query := `
		INSERT INTO listing_records (listing_id, job_id, shop_id, state, uploaded_images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (listing_id) DO UPDATE
		SET state = EXCLUDED.state,
		    uploaded_images = EXCLUDED.uploaded_images
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ListingID,
		rec.JobID,
		rec.ShopID,
		string(rec.State),
		rec.UploadedImages,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save listing record: %w", err)
	}

	s.logger.Debug("Listing record saved",
		slog.Int64("listing_id", rec.ListingID),
		slog.String("job_id", rec.JobID),
	)
	return nil
}

// GetByListingID returns the record for a marketplace listing id.
func (s *ListingRecordStore) GetByListingID(ctx context.Context, listingID int64) (*publish.Record, error) {
	query := `
		SELECT listing_id, job_id, shop_id, state, uploaded_images, created_at
		FROM listing_records
		WHERE listing_id = $1
	`

	var row listingRecordRow
	if err := s.db.GetContext(ctx, &row, query, listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingRecordNotFound
		}
		return nil, fmt.Errorf("failed to get listing record: %w", err)
	}

	return &publish.Record{
		ListingID:      row.ListingID,
		JobID:          row.JobID,
		ShopID:         row.ShopID,
		State:          listing.State(row.State),
		UploadedImages: row.UploadedImages,
		CreatedAt:      row.CreatedAt,
	}, nil
}
