package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestAccountPremiumState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	lifetime := &Account{IsPremium: true}
	assert.True(t, lifetime.PremiumActive(now))
	assert.True(t, lifetime.Lifetime())
	assert.False(t, lifetime.PremiumLapsed(now))

	current := &Account{IsPremium: true, PremiumExpiresAt: ptrTime(now.Add(time.Hour))}
	assert.True(t, current.PremiumActive(now))
	assert.False(t, current.PremiumLapsed(now))

	lapsed := &Account{IsPremium: true, PremiumExpiresAt: ptrTime(now.Add(-time.Second))}
	assert.False(t, lapsed.PremiumActive(now))
	assert.True(t, lapsed.PremiumLapsed(now))

	normalized := lapsed.Normalized(now)
	assert.False(t, normalized.IsPremium)
	assert.True(t, lapsed.IsPremium, "Normalized must not mutate the receiver")

	free := &Account{}
	assert.False(t, free.PremiumActive(now))
	assert.False(t, free.Lifetime())
}

func TestRewardedExpiryStacks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	month := 30 * 24 * time.Hour

	future := now.Add(10 * 24 * time.Hour)
	a := &Account{IsPremium: true, PremiumExpiresAt: &future}
	assert.Equal(t, future.Add(month), *a.RewardedExpiry(now, month))

	past := now.Add(-24 * time.Hour)
	b := &Account{IsPremium: false, PremiumExpiresAt: &past}
	assert.Equal(t, now.Add(month), *b.RewardedExpiry(now, month))

	c := &Account{}
	assert.Equal(t, now.Add(month), *c.RewardedExpiry(now, month))

	assert.Nil(t, (&Account{IsPremium: true}).RewardedExpiry(now, month))
}

func TestActivatedExpiryKeepsLater(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	month := 30 * 24 * time.Hour

	assert.Equal(t, now.Add(month), *(&Account{}).ActivatedExpiry(now, month))

	later := now.Add(90 * 24 * time.Hour)
	a := &Account{IsPremium: true, PremiumExpiresAt: &later}
	assert.Equal(t, later, *a.ActivatedExpiry(now, month))

	assert.Nil(t, (&Account{IsPremium: true}).ActivatedExpiry(now, month))
}

func TestLookupTool(t *testing.T) {
	tool, ok := LookupTool("tweet")
	require.True(t, ok)
	assert.False(t, tool.Premium)

	tool, ok = LookupTool("blog")
	require.True(t, ok)
	assert.True(t, tool.Premium)

	_, ok = LookupTool("haiku")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"tweet", "linkedin", "summary"}, FreeToolIDs())
}

func TestHistoryEntryPreview(t *testing.T) {
	r := &UsageRecord{InputText: strings.Repeat("é", 150), OutputText: "out"}
	entry := r.HistoryEntry()
	assert.Equal(t, strings.Repeat("é", 100)+"...", entry.InputPreview)

	short := &UsageRecord{InputText: "hello"}
	assert.Equal(t, "hello", short.HistoryEntry().InputPreview)
}

func TestEntitlementJSON(t *testing.T) {
	raw, err := json.Marshal(Entitlement{LoggedIn: true, UsesLeft: 2, AllowedTools: []string{"tweet"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"logged_in":true,"is_premium":false,"allowed_tools":["tweet"],"uses_left":2}`, string(raw))

	raw, err = json.Marshal(Entitlement{LoggedIn: true, IsPremium: true, Unlimited: true, AllowedTools: []string{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"logged_in":true,"is_premium":true,"allowed_tools":[],"uses_left":"unlimited"}`, string(raw))
}
