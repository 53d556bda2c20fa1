package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind enumerates scheduler events applied to a job.
type EventKind int

const (
	// EventStart moves a pending job into processing.
	EventStart EventKind = iota
	// EventSucceed completes a processing job with a result.
	EventSucceed
	// EventFail records a failure, requeueing while retries remain.
	EventFail
	// EventFailFinal fails a job immediately, ignoring remaining retries.
	// Used for validation failures and unknown job types.
	EventFailFinal
	// EventDefer returns a processing job to pending without consuming a
	// retry attempt. Used for rate-limit deferrals and restart recovery.
	EventDefer
)

// Event is one input to the job state machine.
type Event struct {
	Kind   EventKind
	Result json.RawMessage
	Err    string
}

// Transition applies an event to a job and returns the updated copy. It is a
// pure function: all persistence and I/O happen at the caller. Terminal
// states never regress to processing; the only exit from a failure is the
// retry requeue encoded in EventFail.
func Transition(job Job, ev Event, now time.Time) (Job, error) {
	switch ev.Kind {
	case EventStart:
		if job.Status != JobStatusPending {
			return job, fmt.Errorf("cannot start job %s in status %s", job.ID, job.Status)
		}
		started := now
		job.Status = JobStatusProcessing
		job.StartedAt = &started

	case EventSucceed:
		if job.Status != JobStatusProcessing {
			return job, fmt.Errorf("cannot complete job %s in status %s", job.ID, job.Status)
		}
		completed := now
		job.Status = JobStatusCompleted
		job.Result = ev.Result
		job.ErrorMessage = ""
		job.CompletedAt = &completed

	case EventFail:
		if job.Status != JobStatusProcessing {
			return job, fmt.Errorf("cannot fail job %s in status %s", job.ID, job.Status)
		}
		job.ErrorMessage = ev.Err
		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = JobStatusPending
			job.StartedAt = nil
		} else {
			completed := now
			job.Status = JobStatusFailed
			job.CompletedAt = &completed
		}

	case EventFailFinal:
		if job.Status != JobStatusProcessing {
			return job, fmt.Errorf("cannot fail job %s in status %s", job.ID, job.Status)
		}
		completed := now
		job.Status = JobStatusFailed
		job.ErrorMessage = ev.Err
		job.CompletedAt = &completed

	case EventDefer:
		if job.Status != JobStatusProcessing {
			return job, fmt.Errorf("cannot defer job %s in status %s", job.ID, job.Status)
		}
		job.Status = JobStatusPending
		job.StartedAt = nil
		if ev.Err != "" {
			job.ErrorMessage = ev.Err
		}

	default:
		return job, fmt.Errorf("unknown event kind %d", ev.Kind)
	}

	job.UpdatedAt = now
	return job, nil
}
