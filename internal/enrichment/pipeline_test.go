package enrichment

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/veribatch/internal/domain"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

type memRepo struct {
	mu sync.Mutex

	batch   *domain.UserBatch
	results map[string]*domain.GlobalResult

	progressUpdates []int64
	completed       map[domain.ExportKind]domain.ExportArtifact
	failedMsg       string

	done chan struct{} // closed once MarkCompleted or MarkFailed is called
}

func newMemRepo(batch *domain.UserBatch, results map[string]*domain.GlobalResult) *memRepo {
	return &memRepo{batch: batch, results: results, done: make(chan struct{})}
}

func (r *memRepo) GetBatch(ctx context.Context, batchID int64) (*domain.UserBatch, error) {
	return r.batch, nil
}

func (r *memRepo) LoadResults(ctx context.Context, batchID int64, checkType domain.CheckType) (map[string]*domain.GlobalResult, error) {
	return r.results, nil
}

func (r *memRepo) MarkProcessing(ctx context.Context, batchID int64, checkType domain.CheckType) error {
	return nil
}

func (r *memRepo) UpdateProgress(ctx context.Context, batchID int64, checkType domain.CheckType, rowsProcessed int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progressUpdates = append(r.progressUpdates, rowsProcessed)
	return nil
}

func (r *memRepo) MarkCompleted(ctx context.Context, batchID int64, checkType domain.CheckType, exports map[domain.ExportKind]domain.ExportArtifact) error {
	r.mu.Lock()
	r.completed = exports
	r.mu.Unlock()
	close(r.done)
	return nil
}

func (r *memRepo) MarkFailed(ctx context.Context, batchID int64, checkType domain.CheckType, errMsg string) error {
	r.mu.Lock()
	r.failedMsg = errMsg
	r.mu.Unlock()
	close(r.done)
	return nil
}

func (r *memRepo) await(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("enrichment run did not finish in time")
	}
}

type memStore struct {
	mu       sync.Mutex
	source   []byte
	uploaded map[string][]byte
}

func newMemStore(source string) *memStore {
	return &memStore{source: []byte(source), uploaded: map[string][]byte{}}
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.source)), nil
}

func (s *memStore) UploadExport(ctx context.Context, key, contentType string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.uploaded[key] = data
	s.mu.Unlock()
	return nil
}

func baseBatch() *domain.UserBatch {
	return &domain.UserBatch{
		ID:        1,
		UserID:    "user-1",
		CheckType: domain.Deliverable,
		S3Metadata: &domain.S3Metadata{
			Original: &domain.SourceFileMetadata{
				S3Key:         "uploads/1/source.csv",
				MimeType:      "text/csv",
				ColumnMapping: map[string]int{"email": 0},
			},
		},
	}
}

func TestService_WritesPartitionedExports(t *testing.T) {
	batch := baseBatch()
	results := map[string]*domain.GlobalResult{
		"a@x.com": {Status: domain.StatusDeliverable, Provider: "gmail"},
		"b@x.com": {Status: domain.StatusUndeliverable},
	}
	repo := newMemRepo(batch, results)
	store := newMemStore("email,name\na@x.com,Alice\nb@x.com,Bob\n")
	svc := NewService(repo, store, setupTestRedis(t))

	svc.LaunchForBatch(context.Background(), batch.ID, domain.Deliverable)
	repo.await(t)

	if repo.failedMsg != "" {
		t.Fatalf("unexpected failure: %s", repo.failedMsg)
	}
	if len(repo.completed) != 3 {
		t.Fatalf("expected 3 export partitions (all/valid/invalid), got %d: %v", len(repo.completed), repo.completed)
	}
	all, ok := repo.completed[domain.ExportAllEmails]
	if !ok || all.Size != 2 {
		t.Fatalf("expected all_emails with 2 rows, got %+v", all)
	}
	valid, ok := repo.completed[domain.ExportValidOnly]
	if !ok || valid.Size != 1 {
		t.Fatalf("expected valid_only with 1 row, got %+v", valid)
	}
	invalid, ok := repo.completed[domain.ExportInvalidOnly]
	if !ok || invalid.Size != 1 {
		t.Fatalf("expected invalid_only with 1 row, got %+v", invalid)
	}

	allBody := string(store.uploaded[all.S3Key])
	if !strings.Contains(allBody, "Alice") || !strings.Contains(allBody, "Valid") {
		t.Fatalf("all_emails export missing expected content: %q", allBody)
	}
	if allBody[0] != 0xEF {
		t.Fatalf("all_emails export missing UTF-8 BOM")
	}
}

func TestService_SkipsRowsWithoutCachedResult(t *testing.T) {
	batch := baseBatch()
	results := map[string]*domain.GlobalResult{
		"a@x.com": {Status: domain.StatusDeliverable},
	}
	repo := newMemRepo(batch, results)
	store := newMemStore("email\na@x.com\nunknown@x.com\n")
	svc := NewService(repo, store, setupTestRedis(t))

	svc.LaunchForBatch(context.Background(), batch.ID, domain.Deliverable)
	repo.await(t)

	all := repo.completed[domain.ExportAllEmails]
	if all.Size != 1 {
		t.Fatalf("expected 1 row (unknown@x.com dropped), got %d", all.Size)
	}
}

func TestService_MissingEmailColumn_MarksFailed(t *testing.T) {
	batch := baseBatch()
	batch.S3Metadata.Original.ColumnMapping = map[string]int{}
	repo := newMemRepo(batch, nil)
	store := newMemStore("email\na@x.com\n")
	svc := NewService(repo, store, setupTestRedis(t))

	svc.LaunchForBatch(context.Background(), batch.ID, domain.Deliverable)
	repo.await(t)

	if repo.failedMsg == "" {
		t.Fatal("expected MarkFailed to be called")
	}
}

func TestService_DeduplicatesRepeatedAddress(t *testing.T) {
	batch := baseBatch()
	results := map[string]*domain.GlobalResult{
		"a@x.com": {Status: domain.StatusDeliverable},
	}
	repo := newMemRepo(batch, results)
	store := newMemStore("email\na@x.com\na@x.com\n")
	svc := NewService(repo, store, setupTestRedis(t))

	svc.LaunchForBatch(context.Background(), batch.ID, domain.Deliverable)
	repo.await(t)

	all := repo.completed[domain.ExportAllEmails]
	if all.Size != 1 {
		t.Fatalf("expected duplicate address counted once, got %d", all.Size)
	}
}
