package rategovernor

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/veribatch/internal/domain"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

type memRateRepo struct {
	mu     sync.Mutex
	grants []int
}

func (m *memRateRepo) RecordGrant(_ context.Context, _ domain.CheckType, _ domain.RequestKind, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = append(m.grants, n)
	return nil
}

func (m *memRateRepo) SumWindow(_ context.Context, _ domain.CheckType, _ domain.RequestKind) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, g := range m.grants {
		sum += g
	}
	return sum, nil
}

func TestGate_AllowsUpToLimit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	repo := &memRateRepo{}
	gate := NewGate(client, repo).WithLimit(5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, _, err := gate.Check(ctx, domain.Deliverable, domain.RequestCreateBatch, 1)
		if err != nil {
			t.Fatalf("Check error: %v", err)
		}
		if !ok {
			t.Fatalf("expected admission %d to succeed", i)
		}
		if err := gate.Record(ctx, domain.Deliverable, domain.RequestCreateBatch, 1); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	ok, current, err := gate.Check(ctx, domain.Deliverable, domain.RequestCreateBatch, 1)
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if ok {
		t.Error("expected 6th request to be denied at limit 5")
	}
	if current != 5 {
		t.Errorf("current = %d, want 5", current)
	}

	if len(repo.grants) != 5 {
		t.Errorf("expected 5 recorded grants, got %d", len(repo.grants))
	}
}

func TestGate_SeparateWindowsPerCheckTypeAndKind(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	gate := NewGate(client, &memRateRepo{}).WithLimit(1)
	ctx := context.Background()

	ok, _, err := gate.Check(ctx, domain.Deliverable, domain.RequestCreateBatch, 1)
	if err != nil || !ok {
		t.Fatalf("expected first deliverable/create admission: ok=%v err=%v", ok, err)
	}

	ok, _, err = gate.Check(ctx, domain.Catchall, domain.RequestCreateBatch, 1)
	if err != nil || !ok {
		t.Fatalf("expected catchall window to be independent: ok=%v err=%v", ok, err)
	}

	ok, _, err = gate.Check(ctx, domain.Deliverable, domain.RequestCheckStatus, 1)
	if err != nil || !ok {
		t.Fatalf("expected check-status window to be independent: ok=%v err=%v", ok, err)
	}
}

func TestGate_DeniesOverLimitWithoutMutating(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	gate := NewGate(client, &memRateRepo{}).WithLimit(3)
	ctx := context.Background()

	ok, current, err := gate.Check(ctx, domain.Deliverable, domain.RequestCreateBatch, 10)
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if ok {
		t.Error("expected a request larger than the limit to be denied")
	}
	if current != 0 {
		t.Errorf("current = %d, want 0 (denied request must not increment)", current)
	}
}
