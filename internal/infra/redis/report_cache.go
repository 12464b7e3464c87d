package redis

import (
	"context"
	"encoding/json"
	"time"

	"telegram-media-courier/internal/usecase"
)

var _ usecase.ReportCache = (*ReportCache)(nil)

// ReportCache keeps recent job reports so repeated /job polls do not hammer
// Postgres. Entries are short-lived; the database stays authoritative.
type ReportCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewReportCache(client RedisClient, ttl time.Duration) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ReportCache) Store(ctx context.Context, report *usecase.JobReport) error {
	key := "job_report:" + report.JobID
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl)
}

func (c *ReportCache) Get(ctx context.Context, jobID string) (*usecase.JobReport, error) {
	key := "job_report:" + jobID
	data, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var report usecase.JobReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *ReportCache) Invalidate(ctx context.Context, jobID string) error {
	return c.client.Del(ctx, "job_report:"+jobID)
}
