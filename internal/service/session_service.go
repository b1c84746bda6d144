package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tossconsultancy/assessment-backend/internal/config"
)

// TokenType distinguishes candidate vs admin tokens.
type TokenType string

const (
	TokenTypeCandidate TokenType = "candidate"
	TokenTypeAdmin     TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	CandidateID int64     `json:"candidate_id,omitempty"` // Candidate only
	AttemptID   int64     `json:"attempt_id,omitempty"`   // Candidate only
	AdminID     int64     `json:"admin_id,omitempty"`     // Admin only
}

// boundSession is what Redis remembers about a candidate's current token.
type boundSession struct {
	JTI       string `json:"jti"`
	AttemptID int64  `json:"attempt_id"`
}

// SessionService issues and checks tokens. A candidate has one live session:
// issuing a new one replaces the previous token ID.
type SessionService struct {
	secret []byte
	ttl    time.Duration
	rdb    *redis.Client
}

// NewSessionService creates a new SessionService.
func NewSessionService(cfg *config.Config, rdb *redis.Client) *SessionService {
	return &SessionService{secret: []byte(cfg.JWTSecret), ttl: cfg.SessionTTL, rdb: rdb}
}

// TTL is the lifetime of issued tokens.
func (s *SessionService) TTL() time.Duration { return s.ttl }

// IssueCandidateToken signs a token bound to (candidateID, attemptID) and makes it
// the candidate's only valid session.
func (s *SessionService) IssueCandidateToken(ctx context.Context, candidateID, attemptID int64) (string, error) {
	jti := uuid.NewString()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(candidateID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		TokenType:   TokenTypeCandidate,
		CandidateID: candidateID,
		AttemptID:   attemptID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	raw, _ := json.Marshal(boundSession{JTI: jti, AttemptID: attemptID})
	if err := s.rdb.Set(ctx, config.CacheKey.CandidateSessionKey(candidateID), raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

// IssueAdminToken signs an admin token. Admin sessions are not tracked.
func (s *SessionService) IssueAdminToken(adminID int64) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(adminID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		TokenType: TokenTypeAdmin,
		AdminID:   adminID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *SessionService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateCandidateSession checks that the token is still the candidate's bound session.
func (s *SessionService) ValidateCandidateSession(ctx context.Context, claims *Claims) error {
	raw, err := s.rdb.Get(ctx, config.CacheKey.CandidateSessionKey(claims.CandidateID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrSessionInvalidated
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	var bound boundSession
	if err := json.Unmarshal(raw, &bound); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if bound.JTI != claims.ID || bound.AttemptID != claims.AttemptID {
		return ErrSessionInvalidated
	}
	return nil
}

// Revoke drops the bound sessions of the given candidates.
func (s *SessionService) Revoke(ctx context.Context, candidateIDs ...int64) error {
	if len(candidateIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		keys = append(keys, config.CacheKey.CandidateSessionKey(id))
	}
	return s.rdb.Del(ctx, keys...).Err()
}
