package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"dealflow/internal/adapters/persistence/models"
	"dealflow/internal/adapters/persistence/repositories"
	"dealflow/internal/config"
	"dealflow/internal/core/domain"
)

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore backs every fake repository. WithDealLock serialises callers and
// restores a snapshot when fn fails, like a rolled back transaction.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	deals       map[string]domain.Deal
	transitions []domain.DealTransition
	recipients  map[string]domain.Recipient
	invitations map[string]domain.Invitation
	contracts   map[string]domain.Contract
	sessions    map[string]domain.SigningSession
	disputes    []domain.Dispute
	users       map[uint]*models.User
	tokens      []*models.RefreshToken
}

func newMemStore() *memStore {
	return &memStore{
		deals:       map[string]domain.Deal{},
		recipients:  map[string]domain.Recipient{},
		invitations: map[string]domain.Invitation{},
		contracts:   map[string]domain.Contract{},
		sessions:    map[string]domain.SigningSession{},
		users:       map[uint]*models.User{},
	}
}

type snapshot struct {
	deals       map[string]domain.Deal
	transitions []domain.DealTransition
	recipients  map[string]domain.Recipient
	invitations map[string]domain.Invitation
	contracts   map[string]domain.Contract
	sessions    map[string]domain.SigningSession
	disputes    []domain.Dispute
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		deals:       cloneMap(s.deals),
		transitions: append([]domain.DealTransition(nil), s.transitions...),
		recipients:  cloneMap(s.recipients),
		invitations: cloneMap(s.invitations),
		contracts:   cloneMap(s.contracts),
		sessions:    cloneMap(s.sessions),
		disputes:    append([]domain.Dispute(nil), s.disputes...),
	}
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals = snap.deals
	s.transitions = snap.transitions
	s.recipients = snap.recipients
	s.invitations = snap.invitations
	s.contracts = snap.contracts
	s.sessions = snap.sessions
	s.disputes = snap.disputes
}

func (s *memStore) inTx(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ---- deals ----

type fakeDeals struct{ s *memStore }

func (r fakeDeals) Create(_ context.Context, deal domain.Deal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deals[deal.ID] = deal
	return nil
}

func (r fakeDeals) GetByID(_ context.Context, id string) (domain.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deals[id]
	if !ok {
		return domain.Deal{}, domain.ErrNotFound
	}
	return d, nil
}

func (r fakeDeals) Update(_ context.Context, deal *domain.Deal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.deals[deal.ID]
	if !ok || stored.Version != deal.Version {
		return domain.ErrConcurrentUpdate
	}
	deal.Version++
	r.s.deals[deal.ID] = *deal
	return nil
}

func (r fakeDeals) List(_ context.Context, f repositories.DealFilter, offset, limit int) ([]domain.Deal, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Deal
	for _, d := range r.s.deals {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.ParticipantUserID != 0 && d.AgentUserID != f.ParticipantUserID && !r.sharesLocked(d.ID, f.ParticipantUserID) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (r fakeDeals) sharesLocked(dealID string, userID uint) bool {
	for _, rec := range r.s.recipients {
		if rec.DealID == dealID && rec.UserID != nil && *rec.UserID == userID {
			return true
		}
	}
	return false
}

func (r fakeDeals) WithDealLock(ctx context.Context, id string, fn func(context.Context, domain.Deal) error) error {
	return r.s.inTx(func() error {
		d, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, d)
	})
}

func (r fakeDeals) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return r.s.inTx(func() error { return fn(ctx) })
}

func (r fakeDeals) AppendTransition(_ context.Context, t domain.DealTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.transitions = append(r.s.transitions, t)
	return nil
}

func (r fakeDeals) ListTransitions(_ context.Context, dealID string) ([]domain.DealTransition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.DealTransition
	for _, t := range r.s.transitions {
		if t.DealID == dealID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ---- recipients ----

type fakeRecipients struct{ s *memStore }

func (r fakeRecipients) ListByDeal(_ context.Context, dealID string) ([]domain.Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Recipient
	for _, rec := range r.s.recipients {
		if rec.DealID == dealID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r fakeRecipients) Save(_ context.Context, rec domain.Recipient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.recipients[rec.ID] = rec
	return nil
}

func (r fakeRecipients) SaveAll(ctx context.Context, rs []domain.Recipient) error {
	for _, rec := range rs {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// ---- invitations ----

type fakeInvitations struct{ s *memStore }

func (r fakeInvitations) Create(_ context.Context, inv domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invitations[inv.ID] = inv
	return nil
}

func (r fakeInvitations) Update(ctx context.Context, inv domain.Invitation) error {
	return r.Create(ctx, inv)
}

func (r fakeInvitations) GetByID(_ context.Context, id string) (domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return domain.Invitation{}, domain.ErrNotFound
	}
	return inv, nil
}

func (r fakeInvitations) ListByDeal(_ context.Context, dealID string) ([]domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range r.s.invitations {
		if inv.DealID == dealID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeInvitations) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Invitation
	for _, inv := range r.s.invitations {
		if inv.Status == domain.InvitationPending && inv.ExpiresAt.Before(now) {
			out = append(out, inv)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- contracts ----

type fakeContracts struct{ s *memStore }

func (r fakeContracts) Create(_ context.Context, c domain.Contract) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.RequiredSigners = append([]domain.Signer(nil), c.RequiredSigners...)
	r.s.contracts[c.ID] = c
	return nil
}

func (r fakeContracts) Update(ctx context.Context, c domain.Contract) error {
	return r.Create(ctx, c)
}

func (r fakeContracts) GetByID(_ context.Context, id string) (domain.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

func (r fakeContracts) ListByDeal(_ context.Context, dealID string) ([]domain.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Contract
	for _, c := range r.s.contracts {
		if c.DealID == dealID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeContracts) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Contract, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Contract
	for _, c := range r.s.contracts {
		live := c.Status == domain.ContractPendingSignature || c.Status == domain.ContractPartiallySigned
		if live && c.ExpiresAt.Before(now) {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- sessions and disputes ----

type fakeSessions struct{ s *memStore }

func (r fakeSessions) Create(_ context.Context, sess domain.SigningSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[sess.Token] = sess
	return nil
}

func (r fakeSessions) Update(ctx context.Context, sess domain.SigningSession) error {
	return r.Create(ctx, sess)
}

func (r fakeSessions) GetByToken(_ context.Context, token string) (domain.SigningSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok {
		return domain.SigningSession{}, domain.ErrNotFound
	}
	return sess, nil
}

func (r fakeSessions) ListByContract(_ context.Context, contractID string) ([]domain.SigningSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.SigningSession
	for _, sess := range r.s.sessions {
		if sess.ContractID == contractID {
			out = append(out, sess)
		}
	}
	return out, nil
}

type fakeDisputes struct{ s *memStore }

func (r fakeDisputes) Create(_ context.Context, d domain.Dispute) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.disputes = append(r.s.disputes, d)
	return nil
}

func (r fakeDisputes) ListByDeal(_ context.Context, dealID string) ([]domain.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Dispute
	for _, d := range r.s.disputes {
		if d.DealID == dealID {
			out = append(out, d)
		}
	}
	return out, nil
}

// ---- users and tokens ----

type fakeUsers struct{ s *memStore }

func (r fakeUsers) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == 0 {
		u.ID = uint(len(r.s.users) + 100)
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r fakeUsers) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Phone == phone })
}

func (r fakeUsers) Update(ctx context.Context, u *models.User) error {
	return r.Create(ctx, u)
}

func (r fakeUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r fakeUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

type fakeTokens struct{ s *memStore }

func (r fakeTokens) Create(_ context.Context, t *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = uint(len(r.s.tokens) + 1)
	r.s.tokens = append(r.s.tokens, t)
	return nil
}

func (r fakeTokens) GetByTokenHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.TokenHash == hash && t.RevokedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeTokens) RevokeByTokenHash(_ context.Context, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for _, t := range r.s.tokens {
		if t.TokenHash == hash {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (r fakeTokens) RevokeAllByUserID(_ context.Context, userID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for _, t := range r.s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

func (r fakeTokens) DeleteExpired(_ context.Context) error { return nil }

// ---- mocks ----

type mockEffects struct{ mock.Mock }

func (m *mockEffects) OnTransition(ctx context.Context, deal domain.Deal, from, to domain.DealStatus) error {
	return m.Called(ctx, deal, from, to).Error(0)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) SendOTP(ctx context.Context, key, phone string) (int, error) {
	args := m.Called(ctx, key, phone)
	return args.Int(0), args.Error(1)
}

func (m *mockDispatcher) ValidateOTP(ctx context.Context, key, code string) (bool, error) {
	args := m.Called(ctx, key, code)
	return args.Bool(0), args.Error(1)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) Send(ctx context.Context, phone, message string) error {
	return m.Called(ctx, phone, message).Error(0)
}

// ---- harness ----

const (
	ownerID   uint = 1
	coagentID uint = 2
	financeID uint = 3
	strangerI uint = 9
)

var (
	owner    = domain.Actor{UserID: ownerID, Role: domain.RoleAgent}
	coagent  = domain.Actor{UserID: coagentID, Role: domain.RoleAgent}
	finance  = domain.Actor{UserID: financeID, Role: domain.RoleFinance}
	stranger = domain.Actor{UserID: strangerI, Role: domain.RoleAgent}
)

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		PlatformFeeRate:    dec("0.1"),
		InvitationTTL:      72 * time.Hour,
		OTPTTL:             5 * time.Minute,
		OTPResendCooldown:  time.Minute,
		OTPMaxAttempts:     3,
		HoldPeriod:         7 * 24 * time.Hour,
		ContractTTL:        30 * 24 * time.Hour,
		DisputeWindow:      7 * 24 * time.Hour,
		ExpiryCron:         "*/5 * * * *",
		DefaultOwnerSplit:  dec("100"),
		SigningLinkBaseURL: "https://sign.example.test/s/",
	}
}

type harness struct {
	store       *memStore
	clock       *fakeClock
	effects     *mockEffects
	dispatcher  *mockDispatcher
	sms         *mockSMS
	deals       *DealService
	contracts   *ContractService
	invitations *InvitationService
	signing     *SigningService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	clock := &fakeClock{now: t0}
	h := &harness{
		store:      store,
		clock:      clock,
		effects:    &mockEffects{},
		dispatcher: &mockDispatcher{},
		sms:        &mockSMS{},
	}
	policy := testPolicy()

	users := fakeUsers{store}
	for _, u := range []*models.User{
		{ID: ownerID, Username: "owner", Email: "owner@example.test", FullName: "Olga Owner", Phone: "+79990000001", Role: "AGENT", IsActive: true},
		{ID: coagentID, Username: "coagent", Email: "co@example.test", FullName: "Carl Coagent", Phone: "+79990000002", Role: "AGENT", IsActive: true},
		{ID: financeID, Username: "finance", Email: "fin@example.test", FullName: "Fiona Finance", Phone: "+79990000003", Role: "FINANCE", IsActive: true},
	} {
		require.NoError(t, users.Create(context.Background(), u))
	}

	h.contracts = NewContractService(fakeDeals{store}, fakeRecipients{store}, fakeContracts{store}, fakeSessions{store}, users, h.sms, policy, clock.Now)
	h.deals = NewDealService(fakeDeals{store}, fakeRecipients{store}, fakeInvitations{store}, h.contracts, h.effects, policy, clock.Now)
	h.invitations = NewInvitationService(fakeDeals{store}, fakeRecipients{store}, fakeInvitations{store}, users, h.sms, policy, clock.Now)
	h.signing = NewSigningService(fakeDeals{store}, fakeContracts{store}, fakeSessions{store}, fakeDisputes{store}, h.dispatcher, h.deals, clock.Now)
	return h
}

func sampleDealInput() domain.NewDealInput {
	return domain.NewDealInput{
		Type:            domain.DealTypeSell,
		PropertyAddress: "1 Main St",
		Price:           dec("10000000"),
		Terms: domain.CommissionTerms{
			PaymentType:       domain.PaymentPercent,
			CommissionPercent: decp("3"),
			AdvanceType:       domain.AdvanceNone,
		},
		ClientName:  "Cora Client",
		ClientPhone: "+7 999 000-00-09",
	}
}

// createDeal opens a draft deal owned by owner.
func (h *harness) createDeal(t *testing.T) domain.Deal {
	t.Helper()
	view, err := h.deals.Create(context.Background(), owner, sampleDealInput())
	require.NoError(t, err)
	return view.Deal
}

// forceStatus puts a stored deal straight into status, bypassing the state machine.
func (h *harness) forceStatus(t *testing.T, id string, status domain.DealStatus) {
	t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	d, ok := h.store.deals[id]
	require.True(t, ok)
	d.Status = status
	h.store.deals[id] = d
}

func (h *harness) deal(t *testing.T, id string) domain.Deal {
	t.Helper()
	d, err := fakeDeals{h.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return d
}
