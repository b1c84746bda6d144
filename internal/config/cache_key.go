package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key holding a candidate's bound session
func (r *CacheKeyStruct) CandidateSessionKey(candidateID int64) string {
	return fmt.Sprintf("candidate:%d:session", candidateID)
}

// QuestionPayloadKey returns the cache key for a question without its answer
func (r *CacheKeyStruct) QuestionPayloadKey(questionID int64) string {
	return fmt.Sprintf("question:%d:payload", questionID)
}

// QuestionAnswerKey returns the cache key for a question's correct option
func (r *CacheKeyStruct) QuestionAnswerKey(questionID int64) string {
	return fmt.Sprintf("question:%d:key", questionID)
}

// RateLimitKey returns the fixed-window counter key for a client and scope
func (r *CacheKeyStruct) RateLimitKey(scope, clientIP string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, clientIP, window)
}

var CacheKey = NewCacheKeyStruct()
