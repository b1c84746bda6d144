package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/tossconsultancy/assessment-backend/internal/config"
	"github.com/tossconsultancy/assessment-backend/internal/model"
	"github.com/tossconsultancy/assessment-backend/internal/repository"
)

var (
	nonDigits     = regexp.MustCompile(`\D`)
	indianMobile  = regexp.MustCompile(`^[6-9]\d{9}$`)
	collapseSpace = regexp.MustCompile(`\s+`)
	fieldCheck    = govalidator.New()
)

// NormalizeMobile strips everything but digits and checks the 10-digit format.
func NormalizeMobile(raw string) (string, bool) {
	m := nonDigits.ReplaceAllString(raw, "")
	return m, indianMobile.MatchString(m)
}

// NormalizeEmail is the form used for matching.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeName(raw string) string {
	return collapseSpace.ReplaceAllString(strings.TrimSpace(raw), " ")
}

// Registration is a resolved identity ready for StartOrResume.
type Registration struct {
	Candidate *model.Candidate
	Role      string
	Level     string
	// Resume is true when an existing attempt will be continued.
	Resume bool
}

// IdentityService resolves a registration to a new, resumed or blocked candidate.
type IdentityService struct {
	candidates CandidateStore
	attempts   *AttemptService
	catalog    *config.Catalog
	now        func() time.Time
	log        zerolog.Logger
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(candidates CandidateStore, attempts *AttemptService, catalog *config.Catalog, log zerolog.Logger) *IdentityService {
	return &IdentityService{
		candidates: candidates,
		attempts:   attempts,
		catalog:    catalog,
		now:        time.Now,
		log:        log.With().Str("component", "identity").Logger(),
	}
}

// normalizedRegistration is a RegisterRequest after validation.
type normalizedRegistration struct {
	name, email, emailNormalized, mobile, role, level, location string
}

func (s *IdentityService) normalize(req model.RegisterRequest) (*normalizedRegistration, error) {
	fields := make(map[string]string)

	n := &normalizedRegistration{
		name:            normalizeName(req.Name),
		email:           strings.TrimSpace(req.Email),
		emailNormalized: NormalizeEmail(req.Email),
		location:        strings.TrimSpace(req.Location),
	}

	if n.name == "" {
		fields["name"] = "name is a required field"
	}
	if err := fieldCheck.Var(n.emailNormalized, "required,email"); err != nil {
		fields["email"] = "email must be a valid email address"
	}

	mobile, ok := NormalizeMobile(req.Mobile)
	if !ok {
		fields["mobile"] = "mobile must be a 10-digit number starting with 6, 7, 8 or 9"
	}
	n.mobile = mobile

	if role, ok := s.catalog.CanonicalRole(req.Role); ok {
		n.role = role
	} else {
		fields["role"] = "role is not offered"
	}
	if level, ok := s.catalog.CanonicalLevel(req.Level); ok {
		n.level = level
	} else {
		fields["level"] = "level is not offered"
	}
	if n.location == "" {
		fields["location"] = "location is a required field"
	}

	if len(fields) > 0 {
		return nil, &InputError{Fields: fields}
	}
	return n, nil
}

// RegisterOrResume decides whether a registration starts a new attempt, resumes the
// one in progress, or is refused.
func (s *IdentityService) RegisterOrResume(ctx context.Context, req model.RegisterRequest) (*Registration, error) {
	n, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	matches, err := s.candidates.FindByEmailOrMobile(ctx, n.emailNormalized, n.mobile)
	if err != nil {
		return nil, fmt.Errorf("find candidate: %w", err)
	}

	if len(matches) == 0 {
		c := &model.Candidate{
			Name:     n.name,
			Email:    n.email,
			Mobile:   n.mobile,
			Role:     n.role,
			Level:    n.level,
			Location: n.location,
		}
		err := s.candidates.Create(ctx, c)
		if err == nil {
			s.log.Info().Int64("candidate_id", c.ID).Str("role", n.role).Str("level", n.level).Msg("Candidate registered")
			return &Registration{Candidate: c, Role: n.role, Level: n.level}, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCandidate) {
			return nil, fmt.Errorf("create candidate: %w", err)
		}

		// Concurrent registration with the same email or mobile: judge against the winner.
		matches, err = s.candidates.FindByEmailOrMobile(ctx, n.emailNormalized, n.mobile)
		if err != nil {
			return nil, fmt.Errorf("concurrent registration detected, but fetch failed: %w", err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("concurrent registration detected, but no candidate found")
		}
	}

	if len(matches) > 1 {
		return nil, s.splitIdentity(ctx, matches)
	}

	c := &matches[0]
	dup, err := s.attempts.CheckDuplicate(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	switch dup.Verdict {
	case VerdictAttempted:
		return nil, ErrAlreadyAttempted

	case VerdictResumable:
		a := dup.Attempt
		if !sameIdentity(c, n) || !strings.EqualFold(a.Role, n.role) || !strings.EqualFold(a.Level, n.level) {
			s.log.Info().Int64("candidate_id", c.ID).Int64("attempt_id", a.ID).Msg("Resume refused: credential mismatch")
			return nil, ErrCredentialMismatch
		}
		return &Registration{Candidate: c, Role: a.Role, Level: a.Level, Resume: true}, nil
	}

	// Known identity without an attempt: reuse it with the new choice of role and level.
	if c.Location != n.location {
		if err := s.candidates.UpdateLocation(ctx, c.ID, n.location, s.now()); err != nil {
			return nil, fmt.Errorf("update location: %w", err)
		}
		c.Location = n.location
	}
	return &Registration{Candidate: c, Role: n.role, Level: n.level}, nil
}

// splitIdentity handles an email owned by one candidate and a mobile owned by another.
func (s *IdentityService) splitIdentity(ctx context.Context, matches []model.Candidate) error {
	for i := range matches {
		dup, err := s.attempts.CheckDuplicate(ctx, matches[i].ID)
		if err != nil {
			return err
		}
		if dup.Verdict == VerdictAttempted {
			return ErrAlreadyAttempted
		}
	}
	return ErrCredentialMismatch
}

func sameIdentity(c *model.Candidate, n *normalizedRegistration) bool {
	return strings.EqualFold(normalizeName(c.Name), n.name) &&
		NormalizeEmail(c.Email) == n.emailNormalized &&
		c.Mobile == n.mobile
}

// CheckAttempt is the pre-registration lookup by email or mobile.
func (s *IdentityService) CheckAttempt(ctx context.Context, req model.CheckAttemptRequest) (*model.CheckAttemptResponse, error) {
	email := NormalizeEmail(req.Email)
	mobile := ""
	if strings.TrimSpace(req.Mobile) != "" {
		m, ok := NormalizeMobile(req.Mobile)
		if !ok {
			return nil, invalidField("mobile", "mobile must be a 10-digit number starting with 6, 7, 8 or 9")
		}
		mobile = m
	}
	if email == "" && mobile == "" {
		return nil, invalidField("email", "email or mobile is required")
	}

	matches, err := s.candidates.FindByEmailOrMobile(ctx, email, mobile)
	if err != nil {
		return nil, fmt.Errorf("find candidate: %w", err)
	}

	resp := &model.CheckAttemptResponse{Exists: len(matches) > 0}
	for i := range matches {
		dup, err := s.attempts.CheckDuplicate(ctx, matches[i].ID)
		if err != nil {
			return nil, err
		}
		if dup.Verdict == VerdictAttempted {
			resp.Attempted = true
			break
		}
	}
	return resp, nil
}
