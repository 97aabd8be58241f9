package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/userbatch"
)

type memRepo struct {
	batches map[int64]*domain.UserBatch
	nextID  int64
}

func newMemRepo() *memRepo { return &memRepo{batches: make(map[int64]*domain.UserBatch)} }

func (m *memRepo) ResolveGlobalIDs(ctx context.Context, checkType domain.CheckType, stripped []string) (map[string]int64, map[string]bool, error) {
	ids := make(map[string]int64, len(stripped))
	cached := make(map[string]bool, len(stripped))
	for i, s := range stripped {
		ids[s] = int64(i + 1)
	}
	return ids, cached, nil
}

func (m *memRepo) CreateWithAssociations(ctx context.Context, b *domain.UserBatch, globalIDs map[string]int64, rows []userbatch.NewAssociation) (int64, error) {
	m.nextID++
	cp := *b
	cp.ID = m.nextID
	m.batches[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memRepo) Get(ctx context.Context, id int64) (*domain.UserBatch, error) {
	b, ok := m.batches[id]
	if !ok {
		return nil, userbatch.ErrNotFound
	}
	return b, nil
}

func (m *memRepo) ListForUser(ctx context.Context, userID string, checkType domain.CheckType) ([]domain.UserBatch, error) {
	var out []domain.UserBatch
	for _, b := range m.batches {
		if b.UserID == userID && b.CheckType == checkType {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memRepo) TransitionStatus(ctx context.Context, id int64, from, to domain.UserBatchStatus) error {
	b, ok := m.batches[id]
	if !ok {
		return userbatch.ErrNotFound
	}
	if b.Status != from {
		return userbatch.ErrInvalidTransition
	}
	b.Status = to
	return nil
}

func (m *memRepo) CountAssociations(ctx context.Context, id int64) (int, int, error) {
	b, ok := m.batches[id]
	if !ok {
		return 0, 0, userbatch.ErrNotFound
	}
	return b.TotalEmails, 0, nil
}

func (m *memRepo) GetEnrichmentProgress(ctx context.Context, id int64, checkType domain.CheckType) (*domain.EnrichmentProgress, error) {
	return nil, nil
}

type memCredits struct{}

func (memCredits) ReserveOnly(ctx context.Context, userID string, checkType domain.CheckType, n int) (bool, int, error) {
	return true, n, nil
}

func (memCredits) DeductForBatch(ctx context.Context, userID string, checkType domain.CheckType, batchID int64) (int, int, error) {
	return 0, 0, nil
}

type memStore struct{}

func (memStore) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	return "https://example-bucket.s3.amazonaws.com/" + key, nil
}

func setupTestServer() *Server {
	svc := userbatch.NewService(newMemRepo(), memCredits{}, nil, nil)
	handlers := NewBatchHandlers(svc, memStore{})
	return NewServer(NewHealthChecker(nil, nil, nil, ""), handlers)
}

func TestHandleSubmit_CreatesBatch(t *testing.T) {
	srv := setupTestServer()

	body, _ := json.Marshal(map[string]interface{}{
		"check_type":     "deliverable",
		"title":          "q3 list",
		"source":         domain.SourceFileMetadata{S3Key: "uploads/x.csv"},
		"nominal_emails": []string{"a@example.com", "b@example.com"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/batches", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got domain.UserBatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, domain.BatchQueued, got.Status)
	require.Equal(t, 2, got.TotalEmails)
}

func TestHandleSubmit_RequiresUserID(t *testing.T) {
	srv := setupTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/batches", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus_NotFound(t *testing.T) {
	srv := setupTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/batches/999", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateUpload_ReturnsPresignedURL(t *testing.T) {
	srv := setupTestServer()

	body, _ := json.Marshal(map[string]string{
		"check_type":   "deliverable",
		"file_name":    "list.csv",
		"content_type": "text/csv",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Contains(t, got["upload_url"], "list.csv")
}
