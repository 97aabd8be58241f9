package credit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ignite/veribatch/internal/credit"
	"github.com/ignite/veribatch/internal/domain"
)

// memRepo is an in-memory credit repository for unit testing. It models
// exactly one subscription row and one account balance per (user, check
// type), matching the primary design in spec.md §4.2.
type memRepo struct {
	mu            sync.Mutex
	subscriptions map[string]*domain.SubscriptionCredits
	accounts      map[string]int
	associations  map[int64]int // batchID -> association count
	history       []domain.CreditHistory
	now           time.Time
}

func key(userID string, ct domain.CheckType) string { return userID + "|" + string(ct) }

func newMemRepo(now time.Time) *memRepo {
	return &memRepo{
		subscriptions: make(map[string]*domain.SubscriptionCredits),
		accounts:      make(map[string]int),
		associations:  make(map[int64]int),
		now:           now,
	}
}

func (m *memRepo) ReserveOnly(_ context.Context, userID string, ct domain.CheckType, n int) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.accounts[key(userID, ct)]
	if sub, ok := m.subscriptions[key(userID, ct)]; ok && !sub.Expired(m.now) {
		total += sub.CreditsLeft
	}
	return total >= n, total, nil
}

func (m *memRepo) DeductForBatch(_ context.Context, userID string, ct domain.CheckType, batchID int64) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.associations[batchID]
	k := key(userID, ct)

	subLeft := 0
	sub, hasSub := m.subscriptions[k]
	if hasSub && !sub.Expired(m.now) {
		subLeft = sub.CreditsLeft
	}
	accountBal := m.accounts[k]

	fromSub := n
	if fromSub > subLeft {
		fromSub = subLeft
	}
	remainder := n - fromSub
	if remainder > accountBal {
		return 0, 0, credit.ErrInsufficientCredits
	}

	if hasSub {
		sub.CreditsLeft -= fromSub
	}
	m.accounts[k] = accountBal - remainder
	m.history = append(m.history, domain.CreditHistory{
		UserID: userID, CheckType: ct, CreditsUsed: n,
		EventType: domain.EventUsage, BatchID: &batchID, UsageTS: m.now,
	})
	return m.accounts[k], n, nil
}

func TestReserveOnly_SumsSubscriptionAndAccount(t *testing.T) {
	now := time.Now()
	repo := newMemRepo(now)
	repo.accounts[key("u1", domain.Deliverable)] = 5
	repo.subscriptions[key("u1", domain.Deliverable)] = &domain.SubscriptionCredits{
		UserID: "u1", CheckType: domain.Deliverable, CreditsLeft: 10, ExpiryTS: now.Add(time.Hour),
	}

	svc := credit.NewService(repo)
	ok, total, err := svc.ReserveOnly(context.Background(), "u1", domain.Deliverable, 12)
	if err != nil {
		t.Fatalf("ReserveOnly error: %v", err)
	}
	if !ok || total != 15 {
		t.Errorf("ReserveOnly: ok=%v total=%d, want ok=true total=15", ok, total)
	}

	ok, _, err = svc.ReserveOnly(context.Background(), "u1", domain.Deliverable, 16)
	if err != nil {
		t.Fatalf("ReserveOnly error: %v", err)
	}
	if ok {
		t.Error("ReserveOnly should fail for 16 when only 15 available")
	}
}

func TestReserveOnly_IgnoresExpiredSubscription(t *testing.T) {
	now := time.Now()
	repo := newMemRepo(now)
	repo.accounts[key("u1", domain.Deliverable)] = 2
	repo.subscriptions[key("u1", domain.Deliverable)] = &domain.SubscriptionCredits{
		UserID: "u1", CheckType: domain.Deliverable, CreditsLeft: 100, ExpiryTS: now.Add(-time.Hour),
	}

	svc := credit.NewService(repo)
	ok, total, err := svc.ReserveOnly(context.Background(), "u1", domain.Deliverable, 3)
	if err != nil {
		t.Fatalf("ReserveOnly error: %v", err)
	}
	if ok || total != 2 {
		t.Errorf("ReserveOnly: ok=%v total=%d, want ok=false total=2", ok, total)
	}
}

func TestDeductForBatch_SubscriptionFirst(t *testing.T) {
	now := time.Now()
	repo := newMemRepo(now)
	repo.accounts[key("u1", domain.Deliverable)] = 100
	repo.subscriptions[key("u1", domain.Deliverable)] = &domain.SubscriptionCredits{
		UserID: "u1", CheckType: domain.Deliverable, CreditsLeft: 7, ExpiryTS: now.Add(time.Hour),
	}
	repo.associations[42] = 10

	svc := credit.NewService(repo)
	newTotal, actualN, err := svc.DeductForBatch(context.Background(), "u1", domain.Deliverable, 42)
	if err != nil {
		t.Fatalf("DeductForBatch error: %v", err)
	}
	if actualN != 10 {
		t.Errorf("actualN = %d, want 10", actualN)
	}
	// 7 from subscription, 3 from account: 100-3=97
	if newTotal != 97 {
		t.Errorf("newTotal = %d, want 97", newTotal)
	}
	if repo.subscriptions[key("u1", domain.Deliverable)].CreditsLeft != 0 {
		t.Errorf("subscription should be fully drained, got %d", repo.subscriptions[key("u1", domain.Deliverable)].CreditsLeft)
	}

	if len(repo.history) != 1 || repo.history[0].CreditsUsed != 10 {
		t.Errorf("expected one history row for 10 credits, got %+v", repo.history)
	}
}

func TestDeductForBatch_InsufficientCredits(t *testing.T) {
	now := time.Now()
	repo := newMemRepo(now)
	repo.accounts[key("u1", domain.Deliverable)] = 2
	repo.associations[42] = 10

	svc := credit.NewService(repo)
	_, _, err := svc.DeductForBatch(context.Background(), "u1", domain.Deliverable, 42)
	if err == nil {
		t.Fatal("expected ErrInsufficientCredits")
	}
	// balance and history must be untouched on failure
	if repo.accounts[key("u1", domain.Deliverable)] != 2 {
		t.Errorf("account balance mutated on failed deduction: %d", repo.accounts[key("u1", domain.Deliverable)])
	}
	if len(repo.history) != 0 {
		t.Errorf("history written on failed deduction: %+v", repo.history)
	}
}

func TestDeductForBatch_ExactToAssociationCount(t *testing.T) {
	now := time.Now()
	repo := newMemRepo(now)
	repo.accounts[key("u1", domain.Deliverable)] = 1000
	repo.associations[42] = 3 // including cached ones, per spec

	svc := credit.NewService(repo)
	_, actualN, err := svc.DeductForBatch(context.Background(), "u1", domain.Deliverable, 42)
	if err != nil {
		t.Fatalf("DeductForBatch error: %v", err)
	}
	if actualN != 3 {
		t.Errorf("actualN = %d, want 3", actualN)
	}
}

// ordering sanity check: history rows remain in the order the deductions
// were made.
func TestCreditHistoryOrdering(t *testing.T) {
	now := time.Now()
	repo := newMemRepo(now)
	repo.accounts[key("u1", domain.Deliverable)] = 1000
	repo.associations[1] = 1
	repo.associations[2] = 2

	svc := credit.NewService(repo)
	svc.DeductForBatch(context.Background(), "u1", domain.Deliverable, 1)
	svc.DeductForBatch(context.Background(), "u1", domain.Deliverable, 2)

	var sizes []int
	for _, h := range repo.history {
		sizes = append(sizes, h.CreditsUsed)
	}
	if len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 2 {
		t.Errorf("unexpected history sizes: %v", sizes)
	}
}
