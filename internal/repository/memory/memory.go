// Package memory holds map-backed repositories. Services and handlers use them
// in tests; they follow the same contracts as the postgres and redis stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlogic/remix-api/internal/model"
	"github.com/nextlogic/remix-api/internal/repository"
)

type Store struct {
	mu sync.Mutex

	accounts  map[uuid.UUID]*model.Account
	referrals []*model.ReferralRecord
	codes     map[string]*model.AccessCode
	tools     map[string]map[string]bool
	usage     []*model.UsageRecord
	course    map[uuid.UUID]map[int]*model.CourseProgress
	contacts  []*model.ContactMessage
	guests    map[string]int
	revoked   map[string]time.Time

	guestDefault int
	nextUsageID  int64
	failures     map[string]error

	// Calls counts operations by name.
	Calls map[string]int
}

func New(guestDefault int) *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]*model.Account),
		codes:        make(map[string]*model.AccessCode),
		tools:        make(map[string]map[string]bool),
		course:       make(map[uuid.UUID]map[int]*model.CourseProgress),
		guests:       make(map[string]int),
		revoked:      make(map[string]time.Time),
		guestDefault: guestDefault,
		failures:     make(map[string]error),
		Calls:        make(map[string]int),
	}
}

// Fail makes every later call of op return err. A nil err clears it.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// enter must be called with mu held.
func (s *Store) enter(op string) error {
	s.Calls[op]++
	return s.failures[op]
}

// CallCount is safe to use while other goroutines hit the store.
func (s *Store) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[op]
}

// PutAccount stores a copy of a.
func (s *Store) PutAccount(a *model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
}

// Account returns a copy of the stored account, or nil.
func (s *Store) Account(id uuid.UUID) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *Store) Referrals() []model.ReferralRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ReferralRecord, 0, len(s.referrals))
	for _, r := range s.referrals {
		out = append(out, *r)
	}
	return out
}

func (s *Store) UsageRecords() []model.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UsageRecord, 0, len(s.usage))
	for _, r := range s.usage {
		out = append(out, *r)
	}
	return out
}

func (s *Store) ContactMessages() []model.ContactMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ContactMessage, 0, len(s.contacts))
	for _, m := range s.contacts {
		out = append(out, *m)
	}
	return out
}

func (s *Store) AccountRepo() repository.AccountRepository      { return accountRepo{s} }
func (s *Store) ReferralRepo() repository.ReferralRepository    { return referralRepo{s} }
func (s *Store) CohortRepo() repository.CohortRepository        { return cohortRepo{s} }
func (s *Store) UsageRepo() repository.UsageRepository          { return usageRepo{s} }
func (s *Store) CourseRepo() repository.CourseRepository        { return courseRepo{s} }
func (s *Store) ContactRepo() repository.ContactRepository      { return contactRepo{s} }
func (s *Store) GuestQuota() repository.GuestQuotaStore         { return guestQuota{s} }
func (s *Store) Revocations() repository.SessionRevocationStore { return revocations{s} }

type accountRepo struct{ s *Store }

func (r accountRepo) Create(_ context.Context, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("accounts.Create"); err != nil {
		return err
	}
	for _, other := range r.s.accounts {
		if other.Email == a.Email || other.ReferralCode == a.ReferralCode {
			return repository.ErrDuplicate
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	r.s.accounts[a.ID] = &cp
	return nil
}

func (r accountRepo) find(op string, match func(*model.Account) bool) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter(op); err != nil {
		return nil, err
	}
	for _, a := range r.s.accounts {
		if match(a) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r accountRepo) Get(_ context.Context, id uuid.UUID) (*model.Account, error) {
	return r.find("accounts.Get", func(a *model.Account) bool { return a.ID == id })
}

func (r accountRepo) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	return r.find("accounts.GetByEmail", func(a *model.Account) bool { return a.Email == email })
}

func (r accountRepo) GetByReferralCode(_ context.Context, code string) (*model.Account, error) {
	return r.find("accounts.GetByReferralCode", func(a *model.Account) bool { return a.ReferralCode == code })
}

func (r accountRepo) GetBySubscriptionID(_ context.Context, id string) (*model.Account, error) {
	return r.find("accounts.GetBySubscriptionID", func(a *model.Account) bool {
		return a.StripeSubscriptionID != nil && *a.StripeSubscriptionID == id
	})
}

func (r accountRepo) DemotePremium(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("accounts.DemotePremium"); err != nil {
		return false, err
	}
	a, ok := r.s.accounts[id]
	if !ok || !a.PremiumLapsed(now) {
		return false, nil
	}
	a.IsPremium = false
	a.UpdatedAt = now
	return true, nil
}

func (r accountRepo) DecrementUses(_ context.Context, id uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("accounts.DecrementUses"); err != nil {
		return 0, err
	}
	a, ok := r.s.accounts[id]
	if !ok || a.UsesLeft <= 0 {
		return 0, repository.ErrQuotaExhausted
	}
	a.UsesLeft--
	return a.UsesLeft, nil
}

func (r accountRepo) ActivatePremium(_ context.Context, id uuid.UUID, expiresAt *time.Time, subscriptionID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("accounts.ActivatePremium"); err != nil {
		return err
	}
	a, ok := r.s.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if subscriptionID != nil {
		for _, other := range r.s.accounts {
			if other.ID != id && other.StripeSubscriptionID != nil && *other.StripeSubscriptionID == *subscriptionID {
				return repository.ErrDuplicate
			}
		}
		sub := *subscriptionID
		a.StripeSubscriptionID = &sub
	}
	a.IsPremium = true
	a.PremiumExpiresAt = copyTime(expiresAt)
	return nil
}

func (r accountRepo) ListStudentsByCreator(_ context.Context, adminID uuid.UUID) ([]*model.StudentActivity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("accounts.ListStudentsByCreator"); err != nil {
		return nil, err
	}
	var out []*model.StudentActivity
	for _, a := range r.s.accounts {
		if !a.InCohort() || a.Role != model.RoleStudent {
			continue
		}
		code, ok := r.s.codes[*a.AccessCode]
		if !ok || code.CreatedBy != adminID {
			continue
		}
		st := &model.StudentActivity{
			ID:              a.ID,
			Name:            a.Name,
			Email:           a.Email,
			AccessCode:      *a.AccessCode,
			CourseCompleted: a.CourseCompleted,
			CreatedAt:       a.CreatedAt,
		}
		for _, u := range r.s.usage {
			if u.AccountID != a.ID {
				continue
			}
			st.TotalUses++
			if st.LastActive == nil || !u.CreatedAt.Before(*st.LastActive) {
				at, tool := u.CreatedAt, u.Tool
				st.LastActive, st.LastTool = &at, &tool
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type referralRepo struct{ s *Store }

func (r referralRepo) CreatePending(_ context.Context, referrerID, refereeID uuid.UUID, code string) (*model.ReferralRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("referrals.CreatePending"); err != nil {
		return nil, err
	}
	referee, ok := r.s.accounts[refereeID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, rec := range r.s.referrals {
		if rec.RefereeID == refereeID {
			return nil, repository.ErrDuplicate
		}
	}
	rec := &model.ReferralRecord{
		ID:         uuid.New(),
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		CodeUsed:   code,
		Status:     model.ReferralPending,
		CreatedAt:  time.Now().UTC(),
	}
	r.s.referrals = append(r.s.referrals, rec)
	ref := referrerID
	referee.ReferredBy = &ref
	cp := *rec
	return &cp, nil
}

func (r referralRepo) Complete(_ context.Context, referrerID, refereeID uuid.UUID, now time.Time, reward time.Duration) (*model.ReferralRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("referrals.Complete"); err != nil {
		return nil, err
	}
	for _, rec := range r.s.referrals {
		if rec.ReferrerID != referrerID || rec.RefereeID != refereeID || rec.Status != model.ReferralPending {
			continue
		}
		referrer, ok := r.s.accounts[referrerID]
		if !ok {
			return nil, repository.ErrNotFound
		}
		referrer.PremiumExpiresAt = referrer.RewardedExpiry(now, reward)
		referrer.IsPremium = true

		rec.Status = model.ReferralCompleted
		rec.RewardGiven = true
		at := now
		rec.CompletedAt = &at
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (r referralRepo) GetByReferee(_ context.Context, refereeID uuid.UUID) (*model.ReferralRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("referrals.GetByReferee"); err != nil {
		return nil, err
	}
	for _, rec := range r.s.referrals {
		if rec.RefereeID == refereeID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type cohortRepo struct{ s *Store }

func (r cohortRepo) CreateAccessCode(_ context.Context, code *model.AccessCode, tools []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("cohorts.CreateAccessCode"); err != nil {
		return err
	}
	if _, ok := r.s.codes[code.Code]; ok {
		return repository.ErrDuplicate
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	cp := *code
	r.s.codes[code.Code] = &cp
	r.s.tools[code.Code] = make(map[string]bool)
	for _, t := range tools {
		r.s.tools[code.Code][t] = true
	}
	return nil
}

func (r cohortRepo) GetAccessCode(_ context.Context, code string) (*model.AccessCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("cohorts.GetAccessCode"); err != nil {
		return nil, err
	}
	ac, ok := r.s.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ac
	return &cp, nil
}

func (r cohortRepo) ListAccessCodes(_ context.Context, createdBy uuid.UUID) ([]*model.AccessCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("cohorts.ListAccessCodes"); err != nil {
		return nil, err
	}
	var out []*model.AccessCode
	for _, ac := range r.s.codes {
		if ac.CreatedBy == createdBy {
			cp := *ac
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r cohortRepo) EnabledTools(_ context.Context, code string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("cohorts.EnabledTools"); err != nil {
		return nil, err
	}
	var out []string
	for t, on := range r.s.tools[code] {
		if on {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r cohortRepo) SetTools(_ context.Context, code string, tools []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("cohorts.SetTools"); err != nil {
		return err
	}
	perms := make(map[string]bool, len(tools))
	for t := range r.s.tools[code] {
		perms[t] = false
	}
	for _, t := range tools {
		perms[t] = true
	}
	r.s.tools[code] = perms
	return nil
}

type usageRepo struct{ s *Store }

func (r usageRepo) Create(_ context.Context, rec *model.UsageRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("usage.Create"); err != nil {
		return err
	}
	r.s.nextUsageID++
	rec.ID = r.s.nextUsageID
	rec.CreatedAt = time.Now().UTC()
	cp := *rec
	r.s.usage = append(r.s.usage, &cp)
	return nil
}

func (r usageRepo) ListByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]*model.UsageRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("usage.ListByAccount"); err != nil {
		return nil, err
	}
	var out []*model.UsageRecord
	for i := len(r.s.usage) - 1; i >= 0 && len(out) < limit; i-- {
		if rec := r.s.usage[i]; rec.AccountID == accountID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

type courseRepo struct{ s *Store }

func (r courseRepo) List(_ context.Context, accountID uuid.UUID) ([]*model.CourseProgress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("course.List"); err != nil {
		return nil, err
	}
	var out []*model.CourseProgress
	for _, p := range r.s.course[accountID] {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleNumber < out[j].ModuleNumber })
	return out, nil
}

// markModule must be called with mu held.
func (r courseRepo) markModule(accountID uuid.UUID, module int, now time.Time) {
	if r.s.course[accountID] == nil {
		r.s.course[accountID] = make(map[int]*model.CourseProgress)
	}
	p, ok := r.s.course[accountID][module]
	if !ok {
		p = &model.CourseProgress{AccountID: accountID, ModuleNumber: module}
		r.s.course[accountID][module] = p
	}
	if p.CompletedAt == nil {
		at := now
		p.CompletedAt = &at
	}
	p.Completed = true
}

func (r courseRepo) CompleteModule(_ context.Context, accountID uuid.UUID, module int, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("course.CompleteModule"); err != nil {
		return false, err
	}
	a, ok := r.s.accounts[accountID]
	if !ok {
		return false, repository.ErrNotFound
	}
	r.markModule(accountID, module, now)
	done := 0
	for _, p := range r.s.course[accountID] {
		if p.Completed {
			done++
		}
	}
	if done < model.CourseModules {
		return false, nil
	}
	a.CourseCompleted = true
	return true, nil
}

func (r courseRepo) CompleteAll(_ context.Context, accountID uuid.UUID, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("course.CompleteAll"); err != nil {
		return err
	}
	a, ok := r.s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	for m := 1; m <= model.CourseModules; m++ {
		r.markModule(accountID, m, now)
	}
	a.CourseCompleted = true
	return nil
}

type contactRepo struct{ s *Store }

func (r contactRepo) Enqueue(_ context.Context, msg *model.ContactMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("contacts.Enqueue"); err != nil {
		return err
	}
	msg.ID = uuid.New()
	msg.Status = model.ContactPending
	msg.Attempts = 0
	msg.CreatedAt = time.Now().UTC()
	cp := *msg
	r.s.contacts = append(r.s.contacts, &cp)
	return nil
}

func (r contactRepo) ProcessPending(ctx context.Context, limit, maxAttempts int, deliver func(context.Context, *model.ContactMessage) error) (repository.DeliveryStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var stats repository.DeliveryStats
	if err := r.s.enter("contacts.ProcessPending"); err != nil {
		return stats, err
	}
	for _, msg := range r.s.contacts {
		if stats.Sent+stats.Failed >= limit {
			break
		}
		if msg.Status != model.ContactPending || msg.Attempts >= maxAttempts {
			continue
		}
		cp := *msg
		err := deliver(ctx, &cp)
		msg.Attempts++
		if err != nil {
			stats.Failed++
			e := err.Error()
			msg.LastError = &e
			if msg.Attempts >= maxAttempts {
				msg.Status = model.ContactFailed
			}
			continue
		}
		stats.Sent++
		now := time.Now().UTC()
		msg.Status = model.ContactSent
		msg.SentAt = &now
		msg.LastError = nil
	}
	return stats, nil
}

func (r contactRepo) DeleteSentBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("contacts.DeleteSentBefore"); err != nil {
		return 0, err
	}
	kept := r.s.contacts[:0]
	var n int64
	for _, m := range r.s.contacts {
		if m.Status == model.ContactSent && m.SentAt != nil && m.SentAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.s.contacts = kept
	return n, nil
}

type guestQuota struct{ s *Store }

func (g guestQuota) Peek(_ context.Context, guestID string) (int, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.s.enter("guests.Peek"); err != nil {
		return 0, err
	}
	if n, ok := g.s.guests[guestID]; ok {
		return n, nil
	}
	return g.s.guestDefault, nil
}

func (g guestQuota) Consume(_ context.Context, guestID string) (int, bool, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.s.enter("guests.Consume"); err != nil {
		return 0, false, err
	}
	n, ok := g.s.guests[guestID]
	if !ok {
		n = g.s.guestDefault
	}
	if n <= 0 {
		g.s.guests[guestID] = 0
		return 0, false, nil
	}
	n--
	g.s.guests[guestID] = n
	return n, true, nil
}

type revocations struct{ s *Store }

func (r revocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("sessions.Revoke"); err != nil {
		return err
	}
	r.s.revoked[tokenID] = until
	return nil
}

func (r revocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.enter("sessions.IsRevoked"); err != nil {
		return false, err
	}
	until, ok := r.s.revoked[tokenID]
	return ok && time.Now().Before(until), nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
