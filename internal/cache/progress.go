package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "traffboard:import:"

// Progress is the live counter snapshot published while a job runs.
type Progress struct {
	Status        string
	ProcessedRows int
	TotalRows     int
	UpdatedAt     time.Time
}

// ProgressCache publishes in-flight job counters to Redis so status polls
// see row-level progress between database flushes.
type ProgressCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewProgressCache wraps client. Entries expire after ttl.
func NewProgressCache(client redis.Cmdable, ttl time.Duration) *ProgressCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ProgressCache{client: client, ttl: ttl}
}

func key(jobID uuid.UUID) string {
	return keyPrefix + jobID.String()
}

// Set stores p for jobID and refreshes its expiry.
func (c *ProgressCache) Set(ctx context.Context, jobID uuid.UUID, p Progress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	k := key(jobID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, k, map[string]any{
		"status":         p.Status,
		"processed_rows": p.ProcessedRows,
		"total_rows":     p.TotalRows,
		"updated_at":     p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, k, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish progress for %s: %w", jobID, err)
	}
	return nil
}

// Get returns the cached snapshot for jobID, or false when none exists.
func (c *ProgressCache) Get(ctx context.Context, jobID uuid.UUID) (Progress, bool, error) {
	values, err := c.client.HGetAll(ctx, key(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Progress{}, false, nil
		}
		return Progress{}, false, fmt.Errorf("read progress for %s: %w", jobID, err)
	}
	if len(values) == 0 {
		return Progress{}, false, nil
	}

	p := Progress{Status: values["status"]}
	if p.ProcessedRows, err = strconv.Atoi(values["processed_rows"]); err != nil {
		return Progress{}, false, fmt.Errorf("decode processed rows: %w", err)
	}
	if p.TotalRows, err = strconv.Atoi(values["total_rows"]); err != nil {
		return Progress{}, false, fmt.Errorf("decode total rows: %w", err)
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, values["updated_at"]); parseErr == nil {
		p.UpdatedAt = ts
	}
	return p, true, nil
}

// Delete drops the snapshot for jobID.
func (c *ProgressCache) Delete(ctx context.Context, jobID uuid.UUID) error {
	if err := c.client.Del(ctx, key(jobID)).Err(); err != nil {
		return fmt.Errorf("clear progress for %s: %w", jobID, err)
	}
	return nil
}
