package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// AdminStore is the admin table.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
	Create(ctx context.Context, a *model.Admin) error
}

// CandidatePurger deletes candidates with everything they own.
type CandidatePurger interface {
	Purge(ctx context.Context, ids []int64) ([]string, error)
}

// AdminService handles admin authentication and maintenance.
type AdminService struct {
	admins     AdminStore
	purger     CandidatePurger
	sessions   *SessionService
	bcryptCost int
	log        zerolog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(admins AdminStore, purger CandidatePurger, sessions *SessionService, bcryptCost int, log zerolog.Logger) *AdminService {
	return &AdminService{
		admins:     admins,
		purger:     purger,
		sessions:   sessions,
		bcryptCost: bcryptCost,
		log:        log.With().Str("component", "admin").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Login verifies credentials and issues an admin token.
func (s *AdminService) Login(ctx context.Context, req model.AdminLoginRequest) (*model.AdminLoginResponse, error) {
	admin, err := s.admins.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}

	if err := CheckPassword(admin.PasswordHash, req.Password); err != nil {
		s.log.Warn().Str("email", admin.Email).Msg("Admin login failed")
		return nil, err
	}

	token, err := s.sessions.IssueAdminToken(admin.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &model.AdminLoginResponse{Token: token, Admin: *admin}, nil
}

// Create stores a new admin or resets an existing one's name and password.
func (s *AdminService) Create(ctx context.Context, name, email, password string) (*model.Admin, error) {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	admin := &model.Admin{Name: name, Email: strings.TrimSpace(email), PasswordHash: hash}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return admin, nil
}

// PurgeCandidates deletes candidates and their attempts, answers and results,
// then drops their sessions.
func (s *AdminService) PurgeCandidates(ctx context.Context, adminID int64, ids []int64) ([]string, error) {
	names, err := s.purger.Purge(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("purge candidates: %w", err)
	}

	if err := s.sessions.Revoke(ctx, ids...); err != nil {
		s.log.Warn().Err(err).Msg("Failed to revoke purged sessions")
	}

	s.log.Info().
		Int64("admin_id", adminID).
		Ints64("candidate_ids", ids).
		Strs("deleted", names).
		Msg("Candidates purged")

	if names == nil {
		names = []string{}
	}
	return names, nil
}
