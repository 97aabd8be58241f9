package packer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"testing"

	"github.com/ignite/veribatch/internal/domain"
)

type memRepo struct {
	mu        sync.Mutex
	inFlight  int
	pool      []PoolRow
	submitted []submission
}

type submission struct {
	providerBatchID string
	pool            []PoolRow
}

func (m *memRepo) CountInFlight(_ context.Context, _ domain.CheckType) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight, nil
}

func (m *memRepo) SelectPool(_ context.Context, _ domain.CheckType, limit int) ([]PoolRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pool) > limit {
		return append([]PoolRow{}, m.pool[:limit]...), nil
	}
	out := m.pool
	m.pool = nil
	return out, nil
}

func (m *memRepo) SubmitPool(_ context.Context, _ domain.CheckType, providerBatchID string, pool []PoolRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
	m.submitted = append(m.submitted, submission{providerBatchID: providerBatchID, pool: pool})
	return nil
}

type memProvider struct {
	calls int
}

func (p *memProvider) CreateBatch(_ context.Context, _ domain.CheckType, emails []string) (string, error) {
	p.calls++
	return fmt.Sprintf("provider-batch-%d", p.calls), nil
}

type memGate struct {
	allow bool
	calls int
}

func (g *memGate) Check(_ context.Context, _ domain.CheckType, _ domain.RequestKind, _ int) (bool, int, error) {
	g.calls++
	return g.allow, 0, nil
}

func (g *memGate) Record(_ context.Context, _ domain.CheckType, _ domain.RequestKind, _ int) error {
	return nil
}

func newPoolRows(n int) []PoolRow {
	rows := make([]PoolRow, n)
	for i := range rows {
		rows[i] = PoolRow{UserBatchID: 1, EmailGlobalID: int64(i), EmailStripped: fmt.Sprintf("u%d@example.com", i)}
	}
	return rows
}

func TestPacker_PacksAvailablePool(t *testing.T) {
	repo := &memRepo{pool: newPoolRows(5)}
	provider := &memProvider{}
	gate := &memGate{allow: true}

	p := New(repo, provider, gate, domain.Deliverable, time.Minute)
	p.ctx = context.Background()
	p.runOnce()

	if len(repo.submitted) != 1 {
		t.Fatalf("expected 1 provider batch submitted, got %d", len(repo.submitted))
	}
	if len(repo.submitted[0].pool) != 5 {
		t.Errorf("expected pool of 5, got %d", len(repo.submitted[0].pool))
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls)
	}
}

func TestPacker_StopsWhenRateGateDenies(t *testing.T) {
	repo := &memRepo{pool: newPoolRows(5)}
	provider := &memProvider{}
	gate := &memGate{allow: false}

	p := New(repo, provider, gate, domain.Deliverable, time.Minute)
	p.ctx = context.Background()
	p.runOnce()

	if len(repo.submitted) != 0 {
		t.Errorf("expected no submissions when rate gate denies, got %d", len(repo.submitted))
	}
	if gate.calls != 1 {
		t.Errorf("expected exactly 1 rate check, got %d", gate.calls)
	}
}

func TestPacker_StopsWhenPoolEmpty(t *testing.T) {
	repo := &memRepo{pool: nil}
	provider := &memProvider{}
	gate := &memGate{allow: true}

	p := New(repo, provider, gate, domain.Deliverable, time.Minute)
	p.ctx = context.Background()
	p.runOnce()

	if len(repo.submitted) != 0 {
		t.Errorf("expected no submissions with empty pool, got %d", len(repo.submitted))
	}
}

func TestPacker_RespectsInFlightCapacity(t *testing.T) {
	repo := &memRepo{inFlight: MaxInFlightProviderBatches, pool: newPoolRows(5)}
	provider := &memProvider{}
	gate := &memGate{allow: true}

	p := New(repo, provider, gate, domain.Deliverable, time.Minute)
	p.ctx = context.Background()
	p.runOnce()

	if len(repo.submitted) != 0 {
		t.Errorf("expected no submissions at full capacity, got %d", len(repo.submitted))
	}
}

func TestPacker_MultipleBatchesUntilCapacityExhausted(t *testing.T) {
	repo := &memRepo{inFlight: MaxInFlightProviderBatches - 2, pool: newPoolRows(3 * MaxPoolSize)}
	provider := &memProvider{}
	gate := &memGate{allow: true}

	p := New(repo, provider, gate, domain.Deliverable, time.Minute)
	p.ctx = context.Background()
	p.runOnce()

	// capacity for 2 more batches; the pool holds more than 2 full pools'
	// worth of rows, so the in-flight cap, not the pool, is what stops the
	// loop after at most 2 submissions.
	if len(repo.submitted) > 2 {
		t.Errorf("expected at most 2 submissions (capacity), got %d", len(repo.submitted))
	}
}
