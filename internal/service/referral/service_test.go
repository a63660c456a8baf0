package referral

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository/memory"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
)

var now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store, *model.Account, *model.Account) {
	t.Helper()
	store := memory.New(3)
	svc := NewService(store.AccountRepo(), store.ReferralRepo(), DefaultReward, metrics.NewTestMetrics(), logger.Nop())
	svc.now = func() time.Time { return now }

	referrer := &model.Account{ID: uuid.New(), Email: "referrer@example.com", ReferralCode: "REF00001", Role: model.RoleStudent}
	referee := &model.Account{ID: uuid.New(), Email: "referee@example.com", ReferralCode: "REF00002", Role: model.RoleStudent}
	store.PutAccount(referrer)
	store.PutAccount(referee)
	return svc, store, referrer, referee
}

func TestRecordReferralIfPresent(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code records pending", func(t *testing.T) {
		svc, store, referrer, referee := setup(t)

		rec, err := svc.RecordReferralIfPresent(ctx, referee, "REF00001")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, model.ReferralPending, rec.Status)
		assert.Equal(t, referrer.ID, rec.ReferrerID)
		assert.Equal(t, referee.ID, rec.RefereeID)
		assert.False(t, rec.RewardGiven)

		require.NotNil(t, referee.ReferredBy)
		stored := store.Account(referee.ID)
		require.NotNil(t, stored.ReferredBy)
		assert.Equal(t, referrer.ID, *stored.ReferredBy)
	})

	for name, code := range map[string]string{
		"empty code":   "",
		"unknown code": "NOPE0000",
		"self code":    "REF00002",
	} {
		t.Run(name, func(t *testing.T) {
			svc, store, _, referee := setup(t)

			rec, err := svc.RecordReferralIfPresent(ctx, referee, code)
			require.NoError(t, err)
			assert.Nil(t, rec)
			assert.Empty(t, store.Referrals())
			assert.Nil(t, store.Account(referee.ID).ReferredBy)
		})
	}

	t.Run("second referral of the same account is ignored", func(t *testing.T) {
		svc, store, _, referee := setup(t)
		other := &model.Account{ID: uuid.New(), Email: "other@example.com", ReferralCode: "REF00003"}
		store.PutAccount(other)

		_, err := svc.RecordReferralIfPresent(ctx, referee, "REF00001")
		require.NoError(t, err)
		rec, err := svc.RecordReferralIfPresent(ctx, referee, "REF00003")
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.Len(t, store.Referrals(), 1)
	})
}

func TestCompleteReferral(t *testing.T) {
	ctx := context.Background()

	t.Run("rewards referrer from now", func(t *testing.T) {
		svc, store, referrer, referee := setup(t)
		_, err := svc.RecordReferralIfPresent(ctx, referee, "REF00001")
		require.NoError(t, err)

		rec, err := svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, model.ReferralCompleted, rec.Status)
		assert.True(t, rec.RewardGiven)

		got := store.Account(referrer.ID)
		assert.True(t, got.IsPremium)
		require.NotNil(t, got.PremiumExpiresAt)
		assert.Equal(t, now.Add(DefaultReward), *got.PremiumExpiresAt)
	})

	t.Run("stacks on an unexpired expiry", func(t *testing.T) {
		svc, store, referrer, referee := setup(t)
		current := now.Add(5 * 24 * time.Hour)
		referrer.IsPremium = true
		referrer.PremiumExpiresAt = &current
		store.PutAccount(referrer)
		_, err := svc.RecordReferralIfPresent(ctx, referee, "REF00001")
		require.NoError(t, err)

		_, err = svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)
		assert.Equal(t, current.Add(DefaultReward), *store.Account(referrer.ID).PremiumExpiresAt)
	})

	t.Run("lifetime referrer stays lifetime", func(t *testing.T) {
		svc, store, referrer, referee := setup(t)
		referrer.IsPremium = true
		store.PutAccount(referrer)
		_, err := svc.RecordReferralIfPresent(ctx, referee, "REF00001")
		require.NoError(t, err)

		_, err = svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)
		got := store.Account(referrer.ID)
		assert.True(t, got.IsPremium)
		assert.Nil(t, got.PremiumExpiresAt)
	})

	t.Run("second completion is a no-op", func(t *testing.T) {
		svc, store, referrer, referee := setup(t)
		_, err := svc.RecordReferralIfPresent(ctx, referee, "REF00001")
		require.NoError(t, err)

		_, err = svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)
		first := *store.Account(referrer.ID).PremiumExpiresAt

		rec, err := svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.Equal(t, first, *store.Account(referrer.ID).PremiumExpiresAt)
	})

	t.Run("reward that makes the referrer premium completes the referrer's referral", func(t *testing.T) {
		svc, store, grand, referrer := setup(t)
		referee := &model.Account{ID: uuid.New(), Email: "third@example.com", ReferralCode: "REF00003", Role: model.RoleStudent}
		store.PutAccount(referee)
		_, err := svc.RecordReferralIfPresent(ctx, referrer, "REF00001")
		require.NoError(t, err)
		_, err = svc.RecordReferralIfPresent(ctx, referee, "REF00002")
		require.NoError(t, err)

		_, err = svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)

		for _, rec := range store.Referrals() {
			assert.Equal(t, model.ReferralCompleted, rec.Status)
		}
		got := store.Account(grand.ID)
		assert.True(t, got.IsPremium)
		require.NotNil(t, got.PremiumExpiresAt)
		assert.Equal(t, now.Add(DefaultReward), *got.PremiumExpiresAt)
	})

	t.Run("reward to an already premium referrer leaves its referral pending", func(t *testing.T) {
		svc, store, grand, referrer := setup(t)
		current := now.Add(5 * 24 * time.Hour)
		referee := &model.Account{ID: uuid.New(), Email: "third@example.com", ReferralCode: "REF00003", Role: model.RoleStudent}
		store.PutAccount(referee)
		_, err := svc.RecordReferralIfPresent(ctx, referrer, "REF00001")
		require.NoError(t, err)
		_, err = svc.RecordReferralIfPresent(ctx, referee, "REF00002")
		require.NoError(t, err)
		stored := store.Account(referrer.ID)
		stored.IsPremium = true
		stored.PremiumExpiresAt = &current
		store.PutAccount(stored)

		_, err = svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)

		assert.False(t, store.Account(grand.ID).IsPremium)
		assert.Equal(t, 1, store.CallCount("referrals.Complete"))
	})

	t.Run("account without referrer", func(t *testing.T) {
		svc, store, _, referee := setup(t)

		rec, err := svc.CompleteReferral(ctx, referee)
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.Equal(t, 0, store.CallCount("referrals.Complete"))
	})
}
