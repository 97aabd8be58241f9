package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/ignite/veribatch/internal/domain"
)

type memRepo struct {
	result []domain.UserBatch
	err    error
	calls  int
}

func (m *memRepo) SweepStuckBatches(_ context.Context, _ domain.CheckType) ([]domain.UserBatch, error) {
	m.calls++
	return m.result, m.err
}

type memNotifier struct {
	notified []int64
}

func (n *memNotifier) NotifyCompletion(_ context.Context, _ string, _ domain.CheckType, batchID int64, _ string) error {
	n.notified = append(n.notified, batchID)
	return nil
}

type memLauncher struct {
	launched []int64
}

func (l *memLauncher) LaunchForBatch(_ context.Context, batchID int64, _ domain.CheckType) {
	l.launched = append(l.launched, batchID)
}

func TestSweeper_ClosesStuckBatches(t *testing.T) {
	repo := &memRepo{result: []domain.UserBatch{{ID: 7, UserID: "u1", Title: "t"}}}
	notifier := &memNotifier{}
	launcher := &memLauncher{}

	sw := New(repo, notifier, launcher, domain.Deliverable, time.Minute)
	sw.ctx = context.Background()
	sw.runOnce()

	if len(notifier.notified) != 1 || notifier.notified[0] != 7 {
		t.Errorf("expected batch 7 notified, got %v", notifier.notified)
	}
	if len(launcher.launched) != 1 || launcher.launched[0] != 7 {
		t.Errorf("expected batch 7 enrichment launched, got %v", launcher.launched)
	}
}

func TestSweeper_NoStuckBatches_NoOp(t *testing.T) {
	repo := &memRepo{}
	notifier := &memNotifier{}
	sw := New(repo, notifier, &memLauncher{}, domain.Deliverable, time.Minute)
	sw.ctx = context.Background()
	sw.runOnce()

	if len(notifier.notified) != 0 {
		t.Error("expected no notifications when nothing is stuck")
	}
	if repo.calls != 1 {
		t.Errorf("expected sweep called once, got %d", repo.calls)
	}
}

func TestSweeper_MarksUnhealthyOnRepoError(t *testing.T) {
	repo := &memRepo{err: context.DeadlineExceeded}
	sw := New(repo, &memNotifier{}, &memLauncher{}, domain.Deliverable, time.Minute)
	sw.ctx = context.Background()
	sw.runOnce()

	if sw.IsHealthy() {
		t.Error("expected sweeper to report unhealthy after repository error")
	}
}
