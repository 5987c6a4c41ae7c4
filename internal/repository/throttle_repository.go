package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThrottleRepository counts self-enrollment attempts per student per UTC
// day using Redis day-bucket keys.
type ThrottleRepository struct {
	client *redis.Client
}

// NewThrottleRepository constructs the repository.
func NewThrottleRepository(client *redis.Client) *ThrottleRepository {
	return &ThrottleRepository{client: client}
}

// IncrDaily increments today's counter for the student and returns the
// new value. The key expires at the end of the UTC day.
func (r *ThrottleRepository) IncrDaily(ctx context.Context, studentID string, now time.Time) (int64, error) {
	now = now.UTC()
	key := fmt.Sprintf("enroll:daily:%s:%s", studentID, now.Format("2006-01-02"))

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr daily enroll counter: %w", err)
	}
	if count == 1 {
		midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		if err := r.client.ExpireAt(ctx, key, midnight).Err(); err != nil {
			return count, fmt.Errorf("expire daily enroll counter: %w", err)
		}
	}
	return count, nil
}
