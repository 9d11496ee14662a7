// Package httpapi exposes the verification engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/infodancer/everify/internal/metrics"
	"github.com/infodancer/everify/internal/verifier"
)

// Fetcher serves verdicts, normally the result cache.
type Fetcher interface {
	Fetch(ctx context.Context, email string) (verifier.Verdict, error)
	AllByCategory(ctx context.Context, category string) ([]verifier.Verdict, error)
}

// Registry is the primary address store behind /email/process-from-db.
type Registry interface {
	All(ctx context.Context) ([]string, error)
	MarkProcessed(ctx context.Context, email string) error
}

// Server is the HTTP façade.
type Server struct {
	cache     Fetcher
	registry  Registry
	workers   int
	logger    *slog.Logger
	collector metrics.Collector
	srv       *http.Server
}

// New creates a Server listening on addr. workers bounds the concurrency
// of /email/batch-async.
func New(addr string, cache Fetcher, registry Registry, workers int, logger *slog.Logger, collector metrics.Collector) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	if workers <= 0 {
		workers = 10
	}
	s := &Server{
		cache:     cache,
		registry:  registry,
		workers:   workers,
		logger:    logger,
		collector: collector,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /email", s.handleVerify)
	mux.HandleFunc("POST /email/batch", s.handleBatch)
	mux.HandleFunc("POST /email/batch-async", s.handleBatchAsync)
	mux.HandleFunc("POST /email/process-from-db", s.handleProcessFromDB)
	mux.HandleFunc("GET /email/validation-results/by-category", s.handleByCategory)
	mux.HandleFunc("POST /email/stream-batch", s.handleStreamBatch)
	return mux
}

// Start runs the server in the background and begins shutdown when the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing email parameter"})
		return
	}
	verdict, err := s.cache.Fetch(r.Context(), email)
	if err != nil {
		s.logger.Error("verification failed", "email", email, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	emails, ok := decodeEmails(w, r)
	if !ok {
		return
	}
	verdicts := make([]verifier.Verdict, 0, len(emails))
	for _, email := range emails {
		verdicts = append(verdicts, s.verdictFor(r.Context(), email))
	}
	s.collector.BatchProcessed(len(emails))
	writeJSON(w, http.StatusOK, verdicts)
}

func (s *Server) handleBatchAsync(w http.ResponseWriter, r *http.Request) {
	emails, ok := decodeEmails(w, r)
	if !ok {
		return
	}

	verdicts := make([]verifier.Verdict, len(emails))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.workers)
	for i, email := range emails {
		i, email := i, email
		g.Go(func() error {
			verdicts[i] = s.verdictFor(ctx, email)
			return nil
		})
	}
	_ = g.Wait()

	s.collector.BatchProcessed(len(emails))
	writeJSON(w, http.StatusOK, verdicts)
}

func (s *Server) handleProcessFromDB(w http.ResponseWriter, r *http.Request) {
	emails, err := s.registry.All(r.Context())
	if err != nil {
		s.logger.Error("listing registered addresses failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if len(emails) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "no addresses registered"})
		return
	}

	verdicts := make([]verifier.Verdict, 0, len(emails))
	for _, email := range emails {
		verdict := s.verdictFor(r.Context(), email)
		verdicts = append(verdicts, verdict)
		if verdict.Category != verifier.CategoryError {
			if err := s.registry.MarkProcessed(r.Context(), email); err != nil {
				s.logger.Warn("marking address processed failed", "email", email, "error", err)
			}
		}
	}
	s.collector.BatchProcessed(len(emails))
	writeJSON(w, http.StatusOK, verdicts)
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing category parameter"})
		return
	}
	verdicts, err := s.cache.AllByCategory(r.Context(), category)
	if err != nil {
		s.logger.Error("listing verdicts by category failed", "category", category, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if verdicts == nil {
		verdicts = []verifier.Verdict{}
	}
	writeJSON(w, http.StatusOK, verdicts)
}

func (s *Server) handleStreamBatch(w http.ResponseWriter, r *http.Request) {
	emails, ok := decodeEmails(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for _, email := range emails {
		verdict := s.verdictFor(r.Context(), email)
		data, err := json.Marshal(verdict)
		if err != nil {
			s.logger.Error("encoding verdict failed", "email", email, "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if canFlush {
			flusher.Flush()
		}
	}
	s.collector.BatchProcessed(len(emails))
}

// verdictFor fetches one verdict, converting failures into an Error
// verdict so one bad address never fails a whole batch.
func (s *Server) verdictFor(ctx context.Context, email string) verifier.Verdict {
	verdict, err := s.cache.Fetch(ctx, email)
	if err != nil {
		s.logger.Warn("verification failed", "email", email, "error", err)
		return verifier.ErrorVerdict(email, err)
	}
	return verdict
}

func decodeEmails(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var emails []string
	if err := json.NewDecoder(r.Body).Decode(&emails); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON array of addresses"})
		return nil, false
	}
	return emails, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("writing response failed", "error", err)
	}
}
