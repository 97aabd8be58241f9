package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// stub-api is a local-only stand-in for the external email-verification
// provider (spec.md §6). It accepts create_batch submissions, reports
// progress on subsequent status polls, and eventually serves a completed
// results payload — enough to exercise the packer and lifecycle poller
// without a live provider contract.
func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  WARNING: This is a STUB verification provider, for local  ║")
	log.Println("║  testing only. Batches \"complete\" after a short fixed      ║")
	log.Println("║  delay with randomly generated results.                    ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	srv := newStubProvider()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "stub-verification-provider"})
	})
	mux.HandleFunc("POST /v1/batches", srv.handleCreateBatch)
	mux.HandleFunc("GET /v1/batches/{id}/status", srv.handleStatus)
	mux.HandleFunc("GET /v1/batches/{id}/results", srv.handleResults)

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	httpSrv := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("stub verification provider listening on :%s", port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down stub provider...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	log.Println("stub provider stopped")
}

type stubBatch struct {
	emails    []string
	checkType string
	createdAt time.Time
}

type stubProvider struct {
	mu      sync.Mutex
	batches map[string]*stubBatch
	delay   time.Duration
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		batches: make(map[string]*stubBatch),
		delay:   10 * time.Second,
	}
}

type createBatchRequest struct {
	CheckType string   `json:"check_type"`
	Emails    []string `json:"emails"`
}

func (s *stubProvider) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.batches[id] = &stubBatch{emails: req.Emails, checkType: req.CheckType, createdAt: time.Now()}
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"provider_batch_id": id})
}

func (s *stubProvider) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := batchIDFromPath(r.URL.Path)
	s.mu.Lock()
	b, ok := s.batches[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
		return
	}

	elapsed := time.Since(b.createdAt)
	switch {
	case elapsed < s.delay/2:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "processing", "processed": 0})
	case elapsed < s.delay:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "processing", "processed": len(b.emails) / 2})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "completed", "processed": len(b.emails)})
	}
}

func (s *stubProvider) handleResults(w http.ResponseWriter, r *http.Request) {
	id := batchIDFromPath(r.URL.Path)
	s.mu.Lock()
	b, ok := s.batches[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
		return
	}

	type result struct {
		Email      string `json:"email"`
		Status     string `json:"status,omitempty"`
		Reason     string `json:"reason,omitempty"`
		IsCatchall string `json:"is_catchall,omitempty"`
		Score      int    `json:"score,omitempty"`
		Provider   string `json:"provider,omitempty"`
		Toxicity   int    `json:"toxicity,omitempty"`
	}
	results := make([]result, 0, len(b.emails))
	deliverableStatuses := []string{"deliverable", "undeliverable", "risky", "unknown"}
	for _, email := range b.emails {
		if b.checkType == "catchall" {
			results = append(results, result{Email: email, Toxicity: rand.Intn(6)})
			continue
		}
		status := deliverableStatuses[rand.Intn(len(deliverableStatuses))]
		isCatchall := "no"
		if rand.Intn(5) == 0 {
			isCatchall = "yes"
		}
		results = append(results, result{
			Email:      email,
			Status:     status,
			Reason:     "unknown",
			IsCatchall: isCatchall,
			Score:      rand.Intn(101),
			Provider:   "stub",
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func batchIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == "batches" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("X-Server-Identity", "stub-verification-provider")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
