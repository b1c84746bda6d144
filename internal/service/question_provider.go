package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/model"
)

// QuestionSource is the question bank table.
type QuestionSource interface {
	DrawIDs(ctx context.Context, role, level string, n int) ([]int64, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Question, error)
}

// CachedQuestionProvider serves questions and answer keys from Redis, loading
// misses from the question bank. Payload and key are cached under separate keys
// so the key never travels with client data.
type CachedQuestionProvider struct {
	source QuestionSource
	rdb    *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedQuestionProvider creates a new CachedQuestionProvider.
func NewCachedQuestionProvider(source QuestionSource, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedQuestionProvider {
	return &CachedQuestionProvider{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With().Str("component", "question_cache").Logger(),
	}
}

// FetchQuestions draws a random set. Draws are never cached.
func (p *CachedQuestionProvider) FetchQuestions(ctx context.Context, role, level string, count int) ([]int64, error) {
	return p.source.DrawIDs(ctx, role, level, count)
}

// FetchByIDs returns client-safe questions in the order of ids. IDs no longer
// in the bank are skipped.
func (p *CachedQuestionProvider) FetchByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}

	byID := make(map[int64]model.Question, len(ids))
	var missing []int64

	cached, err := p.mget(ctx, ids, config.CacheKey.QuestionPayloadKey)
	if err != nil {
		p.log.Warn().Err(err).Msg("Question cache read failed, using database")
		missing = ids
	} else {
		for i, raw := range cached {
			if raw == "" {
				missing = append(missing, ids[i])
				continue
			}
			var q model.Question
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			byID[ids[i]] = q
		}
	}

	if len(missing) > 0 {
		loaded, err := p.load(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, q := range loaded {
			byID[q.ID] = q
		}
	}

	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			q.CorrectOption = ""
			out = append(out, q)
		}
	}
	return out, nil
}

// FetchAnswerKey maps question ID to its correct option.
func (p *CachedQuestionProvider) FetchAnswerKey(ctx context.Context, ids []int64) (map[int64]string, error) {
	key := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return key, nil
	}

	var missing []int64
	cached, err := p.mget(ctx, ids, config.CacheKey.QuestionAnswerKey)
	if err != nil {
		p.log.Warn().Err(err).Msg("Answer key cache read failed, using database")
		missing = ids
	} else {
		for i, v := range cached {
			if v == "" {
				missing = append(missing, ids[i])
				continue
			}
			key[ids[i]] = v
		}
	}

	if len(missing) > 0 {
		loaded, err := p.load(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, q := range loaded {
			key[q.ID] = q.CorrectOption
		}
	}
	return key, nil
}

// mget reads one key per id. Absent keys come back as "".
func (p *CachedQuestionProvider) mget(ctx context.Context, ids []int64, keyFn func(int64) string) ([]string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyFn(id)
	}

	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

// load reads questions from the bank and caches payload and key in one pipeline.
func (p *CachedQuestionProvider) load(ctx context.Context, ids []int64) ([]model.Question, error) {
	questions, err := p.source.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	if len(questions) == 0 {
		return questions, nil
	}

	pipe := p.rdb.Pipeline()
	for _, q := range questions {
		payload, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("marshal question %d: %w", q.ID, err)
		}
		pipe.Set(ctx, config.CacheKey.QuestionPayloadKey(q.ID), payload, p.ttl)
		pipe.Set(ctx, config.CacheKey.QuestionAnswerKey(q.ID), q.CorrectOption, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn().Err(err).Int("questions", len(questions)).Msg("Failed to cache questions")
	}

	p.log.Debug().Int("requested", len(ids)).Int("loaded", len(questions)).Msg("Questions loaded from database")
	return questions, nil
}
