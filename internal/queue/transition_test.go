package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		job        Job
		event      Event
		wantStatus JobStatus
		wantRetry  int
		wantErr    bool
	}{
		{
			name:       "start pending job",
			job:        Job{ID: "j1", Status: JobStatusPending},
			event:      Event{Kind: EventStart},
			wantStatus: JobStatusProcessing,
		},
		{
			name:    "start processing job fails",
			job:     Job{ID: "j1", Status: JobStatusProcessing},
			event:   Event{Kind: EventStart},
			wantErr: true,
		},
		{
			name:    "start completed job fails",
			job:     Job{ID: "j1", Status: JobStatusCompleted},
			event:   Event{Kind: EventStart},
			wantErr: true,
		},
		{
			name:       "succeed processing job",
			job:        Job{ID: "j1", Status: JobStatusProcessing},
			event:      Event{Kind: EventSucceed, Result: json.RawMessage(`{"listing_id":7}`)},
			wantStatus: JobStatusCompleted,
		},
		{
			name:    "succeed pending job fails",
			job:     Job{ID: "j1", Status: JobStatusPending},
			event:   Event{Kind: EventSucceed},
			wantErr: true,
		},
		{
			name:       "fail with retries remaining requeues",
			job:        Job{ID: "j1", Status: JobStatusProcessing, RetryCount: 0, MaxRetries: 3},
			event:      Event{Kind: EventFail, Err: "boom"},
			wantStatus: JobStatusPending,
			wantRetry:  1,
		},
		{
			name:       "fail with retries exhausted is terminal",
			job:        Job{ID: "j1", Status: JobStatusProcessing, RetryCount: 3, MaxRetries: 3},
			event:      Event{Kind: EventFail, Err: "boom"},
			wantStatus: JobStatusFailed,
			wantRetry:  3,
		},
		{
			name:       "fail final skips remaining retries",
			job:        Job{ID: "j1", Status: JobStatusProcessing, RetryCount: 0, MaxRetries: 3},
			event:      Event{Kind: EventFailFinal, Err: "invalid payload"},
			wantStatus: JobStatusFailed,
			wantRetry:  0,
		},
		{
			name:       "defer requeues without consuming a retry",
			job:        Job{ID: "j1", Status: JobStatusProcessing, RetryCount: 1, MaxRetries: 3},
			event:      Event{Kind: EventDefer, Err: "rate limited"},
			wantStatus: JobStatusPending,
			wantRetry:  1,
		},
		{
			name:    "defer pending job fails",
			job:     Job{ID: "j1", Status: JobStatusPending},
			event:   Event{Kind: EventDefer},
			wantErr: true,
		},
		{
			name:    "completed job never regresses",
			job:     Job{ID: "j1", Status: JobStatusCompleted},
			event:   Event{Kind: EventFail, Err: "boom"},
			wantErr: true,
		},
		{
			name:    "failed job never regresses",
			job:     Job{ID: "j1", Status: JobStatusFailed},
			event:   Event{Kind: EventSucceed},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.job, tt.event, now)

			if tt.wantErr {
				require.Error(t, err)
				// The input copy is returned untouched on a rejected event.
				assert.Equal(t, tt.job.Status, got.Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantRetry, got.RetryCount)
			assert.Equal(t, now, got.UpdatedAt)
		})
	}
}

func TestTransition_StampsTimes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	job := Job{ID: "j1", Status: JobStatusPending}

	job, err := Transition(job, Event{Kind: EventStart}, now)
	require.NoError(t, err)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, now, *job.StartedAt)

	later := now.Add(3 * time.Second)
	job, err = Transition(job, Event{Kind: EventSucceed, Result: json.RawMessage(`{}`)}, later)
	require.NoError(t, err)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, later, *job.CompletedAt)
	assert.Empty(t, job.ErrorMessage)
}

func TestTransition_RequeueClearsStartedAt(t *testing.T) {
	now := time.Now()

	job := Job{ID: "j1", Status: JobStatusPending, MaxRetries: 2}
	job, err := Transition(job, Event{Kind: EventStart}, now)
	require.NoError(t, err)

	job, err = Transition(job, Event{Kind: EventFail, Err: "boom"}, now)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.StartedAt)
	assert.Equal(t, "boom", job.ErrorMessage)
}
