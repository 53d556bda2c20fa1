// Package storage implements the durable stores on PostgreSQL: the job
// repository the scheduler treats as its source of truth, and the record of
// published marketplace listings.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yunusdemirbag/dolphinmanager-sub002/internal/queue"
	"github.com/yunusdemirbag/dolphinmanager-sub002/shared/postgresql"
)

// JobRepository is the PostgreSQL implementation of queue.Repository.
type JobRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobRepository creates a job repository on the shared client.
func NewJobRepository(pg *postgresql.Client, logger *slog.Logger) *JobRepository {
	return &JobRepository{
		db:     pg.GetDB(),
		logger: logger,
	}
}

type jobRow struct {
	JobID             string       `db:"job_id"`
	ShopID            string       `db:"shop_id"`
	JobType           string       `db:"job_type"`
	Status            string       `db:"status"`
	Payload           []byte       `db:"payload"`
	Result            []byte       `db:"result"`
	ErrorMessage      string       `db:"error_message"`
	ExternalListingID int64        `db:"external_listing_id"`
	RetryCount        int          `db:"retry_count"`
	MaxRetries        int          `db:"max_retries"`
	CreatedAt         time.Time    `db:"created_at"`
	StartedAt         sql.NullTime `db:"started_at"`
	CompletedAt       sql.NullTime `db:"completed_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

const jobColumns = `
	job_id, shop_id, job_type, status, payload, result, error_message,
	external_listing_id, retry_count, max_retries,
	created_at, started_at, completed_at, updated_at
`

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *queue.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO listing_jobs (` + jobColumns + `)
		VALUES (
			:job_id, :shop_id, :job_type, :status, :payload, :result, :error_message,
			:external_listing_id, :retry_count, :max_retries,
			:created_at, :started_at, :completed_at, :updated_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Update persists the current state of a job.
func (r *JobRepository) Update(ctx context.Context, job *queue.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}

	query := `
		UPDATE listing_jobs
		SET status = :status,
		    result = :result,
		    error_message = :error_message,
		    external_listing_id = :external_listing_id,
		    retry_count = :retry_count,
		    started_at = :started_at,
		    completed_at = :completed_at,
		    updated_at = :updated_at
		WHERE job_id = :job_id
	`

	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return queue.ErrJobNotFound
	}
	return nil
}

// GetByID returns one job by id.
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM listing_jobs WHERE job_id = $1`

	var row jobRow
	if err := r.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return toDomain(&row)
}

// List returns jobs matching the filter, newest first, using keyset
// pagination on (created_at, job_id).
func (r *JobRepository) List(ctx context.Context, filter queue.ListFilter) ([]queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM listing_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.ShopID != "" {
		query += fmt.Sprintf(" AND shop_id = $%d", argIdx)
		args = append(args, filter.ShopID)
		argIdx++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	// Fetch one extra row so the caller can tell whether more results exist.
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, pageSize+1)

	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]queue.Job, 0, len(rows))
	for i := range rows {
		job, err := toDomain(&rows[i])
		if err != nil {
			r.logger.Warn("Skipping undecodable job row",
				slog.String("job_id", rows[i].JobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// ListByStatus returns all jobs in the given status, oldest first. Used by
// the scheduler to rebuild its pool on startup.
func (r *JobRepository) ListByStatus(ctx context.Context, status queue.JobStatus) ([]queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM listing_jobs WHERE status = $1 ORDER BY created_at ASC`

	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list jobs by status: %w", err)
	}

	jobs := make([]queue.Job, 0, len(rows))
	for i := range rows {
		job, err := toDomain(&rows[i])
		if err != nil {
			r.logger.Warn("Skipping undecodable job row",
				slog.String("job_id", rows[i].JobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func toRow(job *queue.Job) (*jobRow, error) {
	payload, err := queue.EncodePayload(job.Payload)
	if err != nil {
		return nil, err
	}

	row := &jobRow{
		JobID:             job.ID,
		ShopID:            job.ShopID,
		JobType:           string(job.Type),
		Status:            string(job.Status),
		Payload:           payload,
		Result:            []byte(job.Result),
		ErrorMessage:      job.ErrorMessage,
		ExternalListingID: job.ExternalListingID,
		RetryCount:        job.RetryCount,
		MaxRetries:        job.MaxRetries,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
	if job.StartedAt != nil {
		row.StartedAt = sql.NullTime{Time: *job.StartedAt, Valid: true}
	}
	if job.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *job.CompletedAt, Valid: true}
	}
	return row, nil
}

func toDomain(row *jobRow) (*queue.Job, error) {
	payload, err := queue.DecodePayload(queue.JobType(row.JobType), row.Payload)
	if err != nil {
		return nil, err
	}

	job := &queue.Job{
		ID:                row.JobID,
		ShopID:            row.ShopID,
		Type:              queue.JobType(row.JobType),
		Status:            queue.JobStatus(row.Status),
		Payload:           payload,
		Result:            json.RawMessage(row.Result),
		ErrorMessage:      row.ErrorMessage,
		ExternalListingID: row.ExternalListingID,
		RetryCount:        row.RetryCount,
		MaxRetries:        row.MaxRetries,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.StartedAt.Valid {
		t := row.StartedAt.Time
		job.StartedAt = &t
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}
