package model

import (
	"time"

	"telegram-media-courier/internal/domain"
)

type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusDownloading     JobStatus = "downloading"
	JobStatusUploading       JobStatus = "uploading"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusPartiallyFailed JobStatus = "partially_failed"
	JobStatusFailed          JobStatus = "failed"
	JobStatusCancelled       JobStatus = "cancelled"
	JobStatusInterrupted     JobStatus = "interrupted"
)

// IsTerminal reports whether no further item work can change the status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartiallyFailed, JobStatusFailed,
		JobStatusCancelled, JobStatusInterrupted:
		return true
	}
	return false
}

// Job is one user submission: a single content link expanded into an ordered
// set of media items. Items are stored separately and referenced by JobID
// (arena-style, no embedded back-references).
type Job struct {
	ID          string
	OwnerID     string
	SourceURL   string
	Status      JobStatus
	TotalItems  int
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func NewJob(id, ownerID, sourceURL string) (*Job, error) {
	if id == "" || ownerID == "" || sourceURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Job{
		ID:        id,
		OwnerID:   ownerID,
		SourceURL: sourceURL,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Duration is wall time from creation to completion, or to now while running.
func (j *Job) Duration() time.Duration {
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(j.CreatedAt)
	}
	return time.Since(j.CreatedAt)
}

// FoldStatus derives the aggregate job status from its item states.
//
// The fold is pure: re-running it on an unchanged item set yields the same
// result, so concurrent item updates can each recompute it safely instead of
// incrementing counters. While some items are non-terminal the result is a
// live projection (pending/downloading/uploading); once every item is
// terminal the result is final (completed/partially_failed/failed).
//
// Cancellation is not foldable: a cancelled job stays cancelled regardless of
// late item completions. Callers must check Job.Status before applying the
// fold result.
func FoldStatus(items []*MediaItem) JobStatus {
	if len(items) == 0 {
		return JobStatusPending
	}

	allTerminal := true
	sent := 0
	anyFetchStarted := false
	anyDeliveryStarted := false
	for _, it := range items {
		if !it.IsTerminal() {
			allTerminal = false
		}
		switch it.DeliveryStatus {
		case ItemDeliverySent:
			sent++
			anyDeliveryStarted = true
		case ItemDeliverySending, ItemDeliverySendFailed:
			anyDeliveryStarted = true
		}
		if it.FetchStatus != ItemFetchQueued {
			anyFetchStarted = true
		}
	}

	if allTerminal {
		switch {
		case sent == len(items):
			return JobStatusCompleted
		case sent == 0:
			return JobStatusFailed
		default:
			return JobStatusPartiallyFailed
		}
	}

	// Live projection: report the furthest-progressed visible stage.
	switch {
	case anyDeliveryStarted:
		return JobStatusUploading
	case anyFetchStarted:
		return JobStatusDownloading
	default:
		return JobStatusPending
	}
}
