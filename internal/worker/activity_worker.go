package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
)

const (
	ActivityBatchSize    = 100
	ActivityBatchTimeout = 2 * time.Second
	ActivityPollTimeout  = 1 * time.Second
)

// ActivityWorker drains touch_attempt_queue into quiz_attempts.last_activity_time.
type ActivityWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewActivityWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ActivityWorker {
	return &ActivityWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "activity_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ActivityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ActivityWorker started")

	batch := make(map[int64]time.Time, ActivityBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ActivityBatchSize || time.Since(lastFlush) >= ActivityBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = make(map[int64]time.Time, ActivityBatchSize)
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.drain(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ActivityPollTimeout, config.WorkerKey.TouchAttemptQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}
			addToBatch(batch, item[1], w.log)
		}
	}
}

// addToBatch keeps only the latest sighting per attempt.
func addToBatch(batch map[int64]time.Time, raw string, log zerolog.Logger) {
	var p activityPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.AttemptID <= 0 {
		log.Error().Str("payload", raw).Msg("Invalid activity payload")
		return
	}
	at := time.UnixMilli(p.At)
	if prev, ok := batch[p.AttemptID]; !ok || at.After(prev) {
		batch[p.AttemptID] = at
	}
}

// drain empties whatever is still queued, then flushes once.
func (w *ActivityWorker) drain(ctx context.Context, batch map[int64]time.Time) {
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.TouchAttemptQueue).Result()
		if err != nil {
			break
		}
		addToBatch(batch, raw, w.log)
	}
	w.flushSafe(ctx, batch)
	w.log.Info().Msg("ActivityWorker stopped")
}

// ----------------------------------------------------------------
// Batch update wrapper
// ----------------------------------------------------------------

func (w *ActivityWorker) flushSafe(ctx context.Context, batch map[int64]time.Time) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkTouch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk activity update failed, using fallback")

		for id, at := range batch {
			if err := w.touchSingle(ctx, id, at); err != nil {
				w.log.Error().Err(err).Int64("attempt_id", id).Msg("touchSingle failed, requeueing")
				raw, _ := json.Marshal(activityPayload{AttemptID: id, At: at.UnixMilli()})
				w.rdb.RPush(ctx, config.WorkerKey.TouchAttemptQueue, raw)
			}
		}
	}
}

// ----------------------------------------------------------------
// BULK PostgreSQL UPDATE using UNNEST
// ----------------------------------------------------------------

func (w *ActivityWorker) bulkTouch(ctx context.Context, batch map[int64]time.Time) error {
	ids := make([]int64, 0, len(batch))
	ats := make([]time.Time, 0, len(batch))
	for id, at := range batch {
		ids = append(ids, id)
		ats = append(ats, at)
	}

	_, err := w.pool.Exec(ctx, `
		UPDATE quiz_attempts AS a
		SET last_activity_time = GREATEST(a.last_activity_time, t.at)
		FROM UNNEST($1::bigint[], $2::timestamptz[]) AS t (attempt_id, at)
		WHERE a.attempt_id = t.attempt_id
		  AND a.status = 'in_progress'
	`, ids, ats)
	return err
}

// ----------------------------------------------------------------
// FALLBACK single update
// ----------------------------------------------------------------

func (w *ActivityWorker) touchSingle(ctx context.Context, attemptID int64, at time.Time) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET last_activity_time = GREATEST(last_activity_time, $2)
		 WHERE attempt_id = $1 AND status = 'in_progress'`,
		attemptID, at)
	return err
}
