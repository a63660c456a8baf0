package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

// ErrUnknownAccount is returned for a session whose account no longer exists.
var ErrUnknownAccount = errors.New("account not found")

// Resolver is what the HTTP layer needs from this package.
type Resolver interface {
	Resolve(ctx context.Context, subject model.Subject, tool string) (*model.Decision, error)
	Snapshot(ctx context.Context, subject model.Subject) (*model.Entitlement, error)
	InvalidateCohort(code string)
}

type Config struct {
	FreeUses           int
	PermissionCacheTTL time.Duration
}

type Service struct {
	accounts repository.AccountRepository
	cohorts  repository.CohortRepository
	guests   repository.GuestQuotaStore
	perms    *cache.Cache
	freeUses int
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(accounts repository.AccountRepository, cohorts repository.CohortRepository,
	guests repository.GuestQuotaStore, cfg Config, m *metrics.Metrics, log *logger.Logger) *Service {
	ttl := cfg.PermissionCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		accounts: accounts,
		cohorts:  cohorts,
		guests:   guests,
		perms:    cache.New(ttl, 2*ttl),
		freeUses: cfg.FreeUses,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
}

// Resolve decides whether subject may run tool, taking one use when it may.
// The first failing check wins. A taken use is never given back.
func (s *Service) Resolve(ctx context.Context, subject model.Subject, tool string) (*model.Decision, error) {
	var (
		decision *model.Decision
		err      error
	)
	if subject.IsGuest() {
		decision, err = s.resolveGuest(ctx, subject.GuestID, tool)
	} else {
		decision, err = s.resolveAccount(ctx, subject.AccountID, tool)
	}
	if err != nil {
		return nil, err
	}

	s.observe(tool, decision)
	return decision, nil
}

func (s *Service) resolveAccount(ctx context.Context, accountID uuid.UUID, tool string) (*model.Decision, error) {
	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}

	reason, err := s.gate(ctx, account, tool)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return deny(reason), nil
	}

	if account.PremiumActive(s.now()) {
		return &model.Decision{Allow: true, Unlimited: true}, nil
	}
	if account.UsesLeft <= 0 {
		return deny(model.ReasonQuotaExhausted), nil
	}

	left, err := s.accounts.DecrementUses(ctx, account.ID)
	if errors.Is(err, repository.ErrQuotaExhausted) {
		return deny(model.ReasonQuotaExhausted), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take use: %w", err)
	}
	return &model.Decision{Allow: true, QuotaAfter: left}, nil
}

func (s *Service) resolveGuest(ctx context.Context, guestID, tool string) (*model.Decision, error) {
	t, ok := model.LookupTool(tool)
	if !ok {
		return deny(model.ReasonUnknownCapability), nil
	}
	if t.Premium {
		return deny(model.ReasonPremiumRequired), nil
	}

	left, ok, err := s.guests.Consume(ctx, guestID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return deny(model.ReasonQuotaExhausted), nil
	}
	return &model.Decision{Allow: true, QuotaAfter: left}, nil
}

// gate runs the checks shared by Resolve and Snapshot: course, capability,
// cohort allow-list, premium. It returns the denial reason, or "".
// An unfinished course denies every tool, known or not.
func (s *Service) gate(ctx context.Context, account *model.Account, tool string) (string, error) {
	if account.InCohort() && !account.CourseCompleted {
		return model.ReasonCourseIncomplete, nil
	}

	t, ok := model.LookupTool(tool)
	if !ok {
		return model.ReasonUnknownCapability, nil
	}

	if account.InCohort() {
		enabled, err := s.cohortTools(ctx, *account.AccessCode)
		if err != nil {
			return "", err
		}
		if _, ok := enabled[tool]; !ok {
			return model.ReasonToolNotPermitted, nil
		}
	}

	if t.Premium && !account.PremiumActive(s.now()) {
		return model.ReasonPremiumRequired, nil
	}
	return "", nil
}

// Snapshot reports what subject may do without taking any use.
func (s *Service) Snapshot(ctx context.Context, subject model.Subject) (*model.Entitlement, error) {
	if subject.IsGuest() {
		left := s.freeUses
		if subject.GuestID != "" {
			var err error
			if left, err = s.guests.Peek(ctx, subject.GuestID); err != nil {
				return nil, err
			}
		}
		return &model.Entitlement{
			UsesLeft:     left,
			AllowedTools: model.FreeToolIDs(),
		}, nil
	}

	account, err := s.load(ctx, subject.AccountID)
	if err != nil {
		return nil, err
	}

	allowed := []string{}
	for _, t := range model.Tools() {
		reason, err := s.gate(ctx, account, t.ID)
		if err != nil {
			return nil, err
		}
		if reason == "" {
			allowed = append(allowed, t.ID)
		}
	}

	premium := account.PremiumActive(s.now())
	return &model.Entitlement{
		LoggedIn:         true,
		IsPremium:        premium,
		PremiumExpiresAt: account.PremiumExpiresAt,
		UsesLeft:         account.UsesLeft,
		Unlimited:        premium,
		AllowedTools:     allowed,
	}, nil
}

// Normalize persists the demotion of a lapsed premium flag and returns the
// account as it now stands. Calling it again is a no-op.
func (s *Service) Normalize(ctx context.Context, account *model.Account) (*model.Account, error) {
	now := s.now()
	if !account.PremiumLapsed(now) {
		return account, nil
	}

	if _, err := s.accounts.DemotePremium(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("failed to demote lapsed premium: %w", err)
	}
	s.logger.Info("premium expired", "account_id", account.ID.String())
	return account.Normalized(now), nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, err
	}
	return s.Normalize(ctx, account)
}

func (s *Service) cohortTools(ctx context.Context, code string) (map[string]struct{}, error) {
	if cached, found := s.perms.Get(code); found {
		return cached.(map[string]struct{}), nil
	}

	tools, err := s.cohorts.EnabledTools(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load cohort tools: %w", err)
	}

	set := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		set[t] = struct{}{}
	}
	s.perms.Set(code, set, cache.DefaultExpiration)
	return set, nil
}

// InvalidateCohort drops the cached allow-list after an admin change.
func (s *Service) InvalidateCohort(code string) {
	s.perms.Delete(code)
}

func (s *Service) observe(tool string, d *model.Decision) {
	if s.metrics == nil {
		return
	}
	if _, ok := model.LookupTool(tool); !ok {
		tool = "unknown"
	}
	outcome := "allow"
	if !d.Allow {
		outcome = d.Reason
	}
	s.metrics.Decisions.WithLabelValues(tool, outcome).Inc()
}

func deny(reason string) *model.Decision {
	return &model.Decision{Allow: false, Reason: reason}
}
