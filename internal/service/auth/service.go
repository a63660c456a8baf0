package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/internal/service/referral"
	"github.com/nextlogic/remix-api/pkg/auth"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidAccessCode  = errors.New("invalid access code")
	// ErrSessionRevoked is also an auth.ErrInvalidToken, so callers treat it as no session.
	ErrSessionRevoked = fmt.Errorf("%w: session has been revoked", auth.ErrInvalidToken)
)

const maxCodeAttempts = 5

type Service struct {
	accounts    repository.AccountRepository
	cohorts     repository.CohortRepository
	referrals   referral.Ledger
	revocations repository.SessionRevocationStore
	hasher      security.PasswordHasher
	jwtSvc      auth.JWTService
	freeUses    int
	logger      *logger.Logger
}

func NewService(accounts repository.AccountRepository, cohorts repository.CohortRepository,
	referrals referral.Ledger, revocations repository.SessionRevocationStore,
	hasher security.PasswordHasher, jwtSvc auth.JWTService, freeUses int, log *logger.Logger) *Service {
	return &Service{
		accounts:    accounts,
		cohorts:     cohorts,
		referrals:   referrals,
		revocations: revocations,
		hasher:      hasher,
		jwtSvc:      jwtSvc,
		freeUses:    freeUses,
		logger:      log,
	}
}

// NewReferralCode returns 8 upper-case hex characters.
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a student account. It does not log the new account in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.RegisterResponse, error) {
	email := normalizeEmail(req.Email)

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	account := &model.Account{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Role:     model.RoleStudent,
		UsesLeft: s.freeUses,
	}

	if code := strings.ToUpper(strings.TrimSpace(req.AccessCode)); code != "" {
		ac, err := s.cohorts.GetAccessCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidAccessCode
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check access code: %w", err)
		}
		if !ac.Active {
			return nil, ErrInvalidAccessCode
		}
		account.AccessCode = &ac.Code
		account.School = ac.SchoolName
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	account.PasswordHash = hash

	if err := s.create(ctx, account); err != nil {
		return nil, err
	}

	resp := &model.RegisterResponse{
		Account:      account.Summary(time.Now()),
		ReferralCode: account.ReferralCode,
	}

	// the account exists at this point; a failed referral must not undo it
	rec, err := s.referrals.RecordReferralIfPresent(ctx, account, req.ReferralCode)
	if err != nil {
		s.logger.Error(err, "failed to record referral", "account_id", account.ID.String())
	}
	resp.Referred = rec != nil

	s.logger.Info("account registered",
		"account_id", account.ID.String(),
		"cohort", account.InCohort())
	return resp, nil
}

// create retries with a fresh referral code when the code, not the email, collided.
func (s *Service) create(ctx context.Context, account *model.Account) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		account.ReferralCode = NewReferralCode()

		err := s.accounts.Create(ctx, account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("failed to create account: %w", err)
		}
		if _, lookupErr := s.accounts.GetByEmail(ctx, account.Email); lookupErr == nil {
			return ErrEmailTaken
		}
	}
	return fmt.Errorf("failed to allocate a referral code after %d attempts", maxCodeAttempts)
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Account, string, *auth.Claims, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return nil, "", nil, ErrInvalidCredentials
	}

	token, claims, err := s.jwtSvc.Issue(account.ID, account.Role)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("login", "account_id", account.ID.String())
	return account, token, claims, nil
}

// Authenticate validates a session token and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtSvc.Validate(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// EnsureAdmin creates the configured admin account if no account uses its email.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin() {
			s.logger.Warn("admin email belongs to a non-admin account", "account_id", existing.ID.String())
		}
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &model.Account{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		UsesLeft:     s.freeUses,
	}
	if err := s.create(ctx, admin); err != nil {
		return err
	}

	s.logger.Info("admin account created", "account_id", admin.ID.String())
	return nil
}
