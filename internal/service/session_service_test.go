package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tossconsultancy/assessment-backend/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newTestSessions(t *testing.T) (*SessionService, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	cfg := &config.Config{JWTSecret: "test-secret", SessionTTL: time.Hour}
	return NewSessionService(cfg, rdb), mr
}

func TestCandidateSession_BoundToLatestToken(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	first, err := sessions.IssueCandidateToken(ctx, 7, 70)
	require.NoError(t, err)

	claims, err := sessions.ValidateToken(first)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeCandidate, claims.TokenType)
	assert.Equal(t, int64(7), claims.CandidateID)
	assert.Equal(t, int64(70), claims.AttemptID)
	require.NoError(t, sessions.ValidateCandidateSession(ctx, claims))
	assert.True(t, mr.Exists(config.CacheKey.CandidateSessionKey(7)))

	// Registering again from another browser replaces the binding.
	second, err := sessions.IssueCandidateToken(ctx, 7, 70)
	require.NoError(t, err)

	assert.ErrorIs(t, sessions.ValidateCandidateSession(ctx, claims), ErrSessionInvalidated)

	claims2, err := sessions.ValidateToken(second)
	require.NoError(t, err)
	assert.NoError(t, sessions.ValidateCandidateSession(ctx, claims2))
}

func TestCandidateSession_AttemptMustMatch(t *testing.T) {
	sessions, _ := newTestSessions(t)
	ctx := context.Background()

	token, err := sessions.IssueCandidateToken(ctx, 7, 70)
	require.NoError(t, err)
	claims, err := sessions.ValidateToken(token)
	require.NoError(t, err)

	claims.AttemptID = 71
	assert.ErrorIs(t, sessions.ValidateCandidateSession(ctx, claims), ErrSessionInvalidated)
}

func TestCandidateSession_Revoke(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	token, err := sessions.IssueCandidateToken(ctx, 7, 70)
	require.NoError(t, err)
	claims, _ := sessions.ValidateToken(token)

	require.NoError(t, sessions.Revoke(ctx, 7, 8))
	assert.False(t, mr.Exists(config.CacheKey.CandidateSessionKey(7)))
	assert.ErrorIs(t, sessions.ValidateCandidateSession(ctx, claims), ErrSessionInvalidated)
	assert.NoError(t, sessions.Revoke(ctx))
}

func TestCandidateSession_ExpiresWithTTL(t *testing.T) {
	sessions, mr := newTestSessions(t)
	ctx := context.Background()

	token, err := sessions.IssueCandidateToken(ctx, 7, 70)
	require.NoError(t, err)
	claims, _ := sessions.ValidateToken(token)

	mr.FastForward(2 * time.Hour)
	assert.ErrorIs(t, sessions.ValidateCandidateSession(ctx, claims), ErrSessionInvalidated)
}

func TestValidateToken(t *testing.T) {
	sessions, _ := newTestSessions(t)

	admin, err := sessions.IssueAdminToken(3)
	require.NoError(t, err)
	claims, err := sessions.ValidateToken(admin)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)
	assert.Equal(t, int64(3), claims.AdminID)

	other := &SessionService{secret: []byte("other-secret"), ttl: time.Hour}
	_, err = other.ValidateToken(admin)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		TokenType:        TokenTypeAdmin,
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = sessions.ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = sessions.ValidateToken("garbage")
	assert.Error(t, err)
}
