package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/veribatch/internal/credit"
	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/pkg/httputil"
	"github.com/ignite/veribatch/internal/userbatch"
)

// PresignStore is the subset of objectstorage.Store the API needs to hand
// callers a direct-upload URL for their source file.
type PresignStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
}

// BatchHandlers wires HTTP requests to the user-batch service and object
// store. Authentication and multi-tenant isolation are explicitly out of
// scope (spec.md §1); the caller identifies itself via the X-User-ID
// header, the way an internal admin tool would.
type BatchHandlers struct {
	batches *userbatch.Service
	store   PresignStore
}

// NewBatchHandlers creates the batch submission and status HTTP handlers.
func NewBatchHandlers(batches *userbatch.Service, store PresignStore) *BatchHandlers {
	return &BatchHandlers{batches: batches, store: store}
}

type createUploadRequest struct {
	CheckType   domain.CheckType `json:"check_type"`
	FileName    string           `json:"file_name"`
	ContentType string           `json:"content_type"`
}

type submitRequest struct {
	CheckType     domain.CheckType         `json:"check_type"`
	Title         string                   `json:"title"`
	Source        domain.SourceFileMetadata `json:"source"`
	NominalEmails []string                 `json:"nominal_emails"`
}

// HandleSubmit creates a new user batch from already-extracted email
// addresses and reserves/deducts credits for it.
//
//	POST /api/batches
func (h *BatchHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.CheckType.Valid() {
		httputil.Error(w, http.StatusBadRequest, "check_type must be deliverable or catchall")
		return
	}

	batch, err := h.batches.Submit(r.Context(), userID, req.CheckType, req.Title, req.Source, req.NominalEmails)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.JSON(w, http.StatusCreated, batch)
}

// HandlePause moves a batch to paused.
//
//	POST /api/batches/{id}/pause
func (h *BatchHandlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	id, ok := pathBatchID(w, r)
	if !ok {
		return
	}
	if err := h.batches.Pause(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// HandleResume moves a paused batch back to queued.
//
//	POST /api/batches/{id}/resume
func (h *BatchHandlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := pathBatchID(w, r)
	if !ok {
		return
	}
	if err := h.batches.Resume(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// HandleStatus returns a batch's progress snapshot.
//
//	GET /api/batches/{id}
func (h *BatchHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathBatchID(w, r)
	if !ok {
		return
	}
	status, err := h.batches.GetStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, status)
}

// HandleList returns a user's batches for a check type.
//
//	GET /api/batches?check_type=deliverable
func (h *BatchHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}
	checkType := domain.CheckType(r.URL.Query().Get("check_type"))
	if !checkType.Valid() {
		httputil.Error(w, http.StatusBadRequest, "check_type must be deliverable or catchall")
		return
	}
	list, err := h.batches.List(r.Context(), userID, checkType)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "list batches: "+err.Error())
		return
	}
	httputil.JSON(w, http.StatusOK, list)
}

func requireUserID(w http.ResponseWriter, r *http.Request) string {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httputil.Error(w, http.StatusBadRequest, "X-User-ID header is required")
	}
	return userID
}

func pathBatchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid batch id")
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, userbatch.ErrNotFound):
		httputil.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, userbatch.ErrEmptySource), errors.Is(err, userbatch.ErrInvalidTransition),
		errors.Is(err, userbatch.ErrArchived):
		httputil.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, credit.ErrInsufficientCredits):
		httputil.Error(w, http.StatusPaymentRequired, err.Error())
	default:
		httputil.Error(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleCreateUpload returns a presigned PUT URL for a new source file, so
// the caller uploads directly to object storage before calling Submit.
//
//	POST /api/uploads
func (h *BatchHandlers) HandleCreateUpload(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req createUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.CheckType.Valid() {
		httputil.Error(w, http.StatusBadRequest, "check_type must be deliverable or catchall")
		return
	}

	key := fmt.Sprintf("uploads/%s/%s/%s-%s", req.CheckType, userID, uuid.NewString(), req.FileName)
	url, err := h.store.PresignUpload(r.Context(), key, req.ContentType)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "presign upload: "+err.Error())
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"upload_url": url,
		"s3_key":     key,
		"source": domain.SourceFileMetadata{
			S3Key:      key,
			UploadTime: time.Now(),
			MimeType:   req.ContentType,
			FileName:   req.FileName,
		},
	})
}
