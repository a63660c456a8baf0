package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

// DefaultReward is the premium time granted to a referrer.
const DefaultReward = 30 * 24 * time.Hour

type Ledger interface {
	RecordReferralIfPresent(ctx context.Context, referee *model.Account, code string) (*model.ReferralRecord, error)
	CompleteReferral(ctx context.Context, account *model.Account) (*model.ReferralRecord, error)
}

type Service struct {
	accounts  repository.AccountRepository
	referrals repository.ReferralRepository
	reward    time.Duration
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(accounts repository.AccountRepository, referrals repository.ReferralRepository,
	reward time.Duration, m *metrics.Metrics, log *logger.Logger) *Service {
	if reward <= 0 {
		reward = DefaultReward
	}
	return &Service{
		accounts:  accounts,
		referrals: referrals,
		reward:    reward,
		metrics:   m,
		logger:    log,
		now:       time.Now,
	}
}

// RecordReferralIfPresent links referee to the owner of code. Unknown, empty
// and self codes record nothing and are not errors.
func (s *Service) RecordReferralIfPresent(ctx context.Context, referee *model.Account, code string) (*model.ReferralRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	referrer, err := s.accounts.GetByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Debug("referral code not found", "code", code)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}
	if referrer.ID == referee.ID {
		return nil, nil
	}

	record, err := s.referrals.CreatePending(ctx, referrer.ID, referee.ID, code)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record referral: %w", err)
	}

	referee.ReferredBy = &record.ReferrerID
	s.count(model.ReferralPending)
	s.logger.Info("referral recorded",
		"referrer_id", referrer.ID.String(),
		"referee_id", referee.ID.String())
	return record, nil
}

// CompleteReferral rewards the referrer of account, once. Calling it again,
// or for an account nobody referred, does nothing. A reward that makes the
// referrer premium settles the referrer's own referral in turn.
func (s *Service) CompleteReferral(ctx context.Context, account *model.Account) (*model.ReferralRecord, error) {
	if account.ReferredBy == nil {
		return nil, nil
	}

	referrer, err := s.accounts.Get(ctx, *account.ReferredBy)
	if err != nil {
		return nil, fmt.Errorf("failed to load referrer: %w", err)
	}
	now := s.now()
	wasPremium := referrer.PremiumActive(now)

	record, err := s.referrals.Complete(ctx, referrer.ID, account.ID, now, s.reward)
	if err != nil {
		return nil, fmt.Errorf("failed to complete referral: %w", err)
	}
	if record == nil {
		return nil, nil
	}

	s.count(model.ReferralCompleted)
	s.logger.Info("referral completed",
		"referrer_id", record.ReferrerID.String(),
		"referee_id", record.RefereeID.String())

	if !wasPremium {
		s.promoted(ctx, referrer.ID)
	}
	return record, nil
}

// promoted completes the referral of an account that just became premium
// through a reward. Referral chains follow registration order, so this ends.
func (s *Service) promoted(ctx context.Context, id uuid.UUID) {
	referrer, err := s.accounts.Get(ctx, id)
	if err != nil {
		s.logger.Error(err, "failed to reload rewarded referrer", "account_id", id.String())
		return
	}
	if _, err := s.CompleteReferral(ctx, referrer); err != nil {
		s.logger.Error(err, "failed to complete referral of rewarded referrer", "account_id", id.String())
	}
}

func (s *Service) count(status string) {
	if s.metrics != nil {
		s.metrics.Referrals.WithLabelValues(status).Inc()
	}
}
