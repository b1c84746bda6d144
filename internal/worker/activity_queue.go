package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
)

// activityPayload is one last-activity sighting of an attempt.
type activityPayload struct {
	AttemptID int64 `json:"attempt_id"`
	At        int64 `json:"at"` // unix milliseconds
}

// ActivityQueue pushes last-activity sightings for ActivityWorker.
// Pushing never fails the caller: the column it feeds is advisory.
type ActivityQueue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewActivityQueue creates a new ActivityQueue.
func NewActivityQueue(rdb *redis.Client, log zerolog.Logger) *ActivityQueue {
	return &ActivityQueue{
		rdb: rdb,
		log: log.With().Str("component", "activity_queue").Logger(),
	}
}

// Touch records that attemptID was active at the given time.
func (q *ActivityQueue) Touch(ctx context.Context, attemptID int64, at time.Time) {
	raw, _ := json.Marshal(activityPayload{AttemptID: attemptID, At: at.UnixMilli()})
	if err := q.rdb.RPush(ctx, config.WorkerKey.TouchAttemptQueue, raw).Err(); err != nil {
		q.log.Warn().Err(err).Int64("attempt_id", attemptID).Msg("Failed to queue activity")
	}
}
