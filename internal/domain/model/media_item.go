package model

import (
	"time"

	"telegram-media-courier/internal/domain"

	"github.com/google/uuid"
)

type ItemFetchStatus string

const (
	ItemFetchQueued    ItemFetchStatus = "queued"
	ItemFetchFetching  ItemFetchStatus = "fetching"
	ItemFetchFetched   ItemFetchStatus = "fetched"
	ItemFetchFailed    ItemFetchStatus = "fetch_failed"
	ItemFetchCancelled ItemFetchStatus = "cancelled"
)

type ItemDeliveryStatus string

const (
	ItemDeliveryQueued     ItemDeliveryStatus = "queued"
	ItemDeliverySending    ItemDeliveryStatus = "sending"
	ItemDeliverySent       ItemDeliveryStatus = "sent"
	ItemDeliverySendFailed ItemDeliveryStatus = "send_failed"
	// ItemDeliverySkipped marks items whose delivery was never attempted
	// because the fetch failed or the job aborted before their turn.
	ItemDeliverySkipped   ItemDeliveryStatus = "skipped"
	ItemDeliveryCancelled ItemDeliveryStatus = "cancelled"
)

// MediaItem is one media file within a job. Seq defines the delivery order to
// the destination. StagingKey is the handle to locally staged content; it is
// owned by the item between a successful fetch and the end of delivery and
// must be released exactly once on every exit path.
type MediaItem struct {
	ID             string
	JobID          string
	Seq            int
	RemoteURL      string
	Filename       string
	FetchStatus    ItemFetchStatus
	DeliveryStatus ItemDeliveryStatus
	SizeBytes      int64
	StagingKey     string
	Retries        int
	FailureCause   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewMediaItem(jobID string, seq int, remoteURL, filename string) (*MediaItem, error) {
	if jobID == "" || remoteURL == "" || seq < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &MediaItem{
		ID:             uuid.NewString(),
		JobID:          jobID,
		Seq:            seq,
		RemoteURL:      remoteURL,
		Filename:       filename,
		FetchStatus:    ItemFetchQueued,
		DeliveryStatus: ItemDeliveryQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (i *MediaItem) fetchTerminal() bool {
	switch i.FetchStatus {
	case ItemFetchFetched, ItemFetchFailed, ItemFetchCancelled:
		return true
	}
	return false
}

func (i *MediaItem) deliveryTerminal() bool {
	switch i.DeliveryStatus {
	case ItemDeliverySent, ItemDeliverySendFailed, ItemDeliverySkipped, ItemDeliveryCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether both stages have reached a final state.
func (i *MediaItem) IsTerminal() bool {
	return i.fetchTerminal() && i.deliveryTerminal()
}

// MarkFetching transitions the item into the fetching stage.
func (i *MediaItem) MarkFetching() {
	i.FetchStatus = ItemFetchFetching
	i.UpdatedAt = time.Now()
}

// MarkFetched records a successful fetch with its staged handle and size.
func (i *MediaItem) MarkFetched(stagingKey string, size int64) {
	i.FetchStatus = ItemFetchFetched
	i.StagingKey = stagingKey
	i.SizeBytes = size
	i.UpdatedAt = time.Now()
}

// MarkFetchFailed records the failure cause and skips delivery, which may
// only start after a successful fetch.
func (i *MediaItem) MarkFetchFailed(cause string) {
	i.FetchStatus = ItemFetchFailed
	i.DeliveryStatus = ItemDeliverySkipped
	i.FailureCause = cause
	i.UpdatedAt = time.Now()
}

func (i *MediaItem) MarkSending() {
	i.DeliveryStatus = ItemDeliverySending
	i.UpdatedAt = time.Now()
}

func (i *MediaItem) MarkSent() {
	i.DeliveryStatus = ItemDeliverySent
	i.StagingKey = ""
	i.UpdatedAt = time.Now()
}

func (i *MediaItem) MarkSendFailed(cause string) {
	i.DeliveryStatus = ItemDeliverySendFailed
	i.StagingKey = ""
	i.FailureCause = cause
	i.UpdatedAt = time.Now()
}

// MarkSkipped short-circuits an un-started item to its terminal state
// without touching the gateways (job-level fatal conditions).
func (i *MediaItem) MarkSkipped(cause string) {
	i.FetchStatus = ItemFetchFailed
	i.DeliveryStatus = ItemDeliverySkipped
	i.FailureCause = cause
	i.UpdatedAt = time.Now()
}

// MarkCancelled moves any non-terminal stage to cancelled. Terminal stages
// are left untouched so completed work stays visible in the report.
func (i *MediaItem) MarkCancelled() {
	if !i.fetchTerminal() {
		i.FetchStatus = ItemFetchCancelled
	}
	if !i.deliveryTerminal() {
		i.DeliveryStatus = ItemDeliveryCancelled
	}
	i.UpdatedAt = time.Now()
}
