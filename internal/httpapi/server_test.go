package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/infodancer/everify/internal/verifier"
)

type fakeCache struct {
	errFor     map[string]error
	byCategory []verifier.Verdict
	delay      time.Duration
}

func (f *fakeCache) Fetch(_ context.Context, email string) (verifier.Verdict, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.errFor[email]; err != nil {
		return verifier.Verdict{}, err
	}
	return verifier.Verdict{Email: email, Category: verifier.CategoryValid}, nil
}

func (f *fakeCache) AllByCategory(_ context.Context, _ string) ([]verifier.Verdict, error) {
	return f.byCategory, nil
}

type fakeRegistry struct {
	emails    []string
	processed []string
}

func (f *fakeRegistry) All(context.Context) ([]string, error) {
	return f.emails, nil
}

func (f *fakeRegistry) MarkProcessed(_ context.Context, email string) error {
	f.processed = append(f.processed, email)
	return nil
}

func testServer(cache Fetcher, registry Registry) *Server {
	return New(":0", cache, registry, 4, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeVerdicts(t *testing.T, rec *httptest.ResponseRecorder) []verifier.Verdict {
	t.Helper()
	var verdicts []verifier.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdicts); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return verdicts
}

func TestVerifyMissingParam(t *testing.T) {
	s := testServer(&fakeCache{}, &fakeRegistry{})
	rec := do(t, s, http.MethodGet, "/email", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Errorf("body = %q, want an error object", rec.Body.String())
	}
}

func TestVerifyOK(t *testing.T) {
	s := testServer(&fakeCache{}, &fakeRegistry{})
	rec := do(t, s, http.MethodGet, "/email?email=user@example.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var verdict verifier.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if verdict.Email != "user@example.com" || verdict.Category != verifier.CategoryValid {
		t.Errorf("verdict = %+v", verdict)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestVerifyInternalError(t *testing.T) {
	cache := &fakeCache{errFor: map[string]error{"user@example.com": errors.New("redis down")}}
	s := testServer(cache, &fakeRegistry{})
	rec := do(t, s, http.MethodGet, "/email?email=user@example.com", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestBatchBadBody(t *testing.T) {
	s := testServer(&fakeCache{}, &fakeRegistry{})
	rec := do(t, s, http.MethodPost, "/email/batch", `{"not":"an array"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBatchOrderAndErrors(t *testing.T) {
	cache := &fakeCache{errFor: map[string]error{"b@example.com": errors.New("boom")}}
	s := testServer(cache, &fakeRegistry{})

	rec := do(t, s, http.MethodPost, "/email/batch",
		`["a@example.com","b@example.com","c@example.com"]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	verdicts := decodeVerdicts(t, rec)
	if len(verdicts) != 3 {
		t.Fatalf("got %d verdicts, want 3", len(verdicts))
	}
	if verdicts[0].Email != "a@example.com" || verdicts[2].Email != "c@example.com" {
		t.Errorf("order not preserved: %+v", verdicts)
	}
	if verdicts[1].Category != verifier.CategoryError {
		t.Errorf("failed address category = %q, want Error", verdicts[1].Category)
	}
	if len(verdicts[1].Errors) == 0 {
		t.Error("failed address carries no error text")
	}
}

func TestBatchAsyncPreservesOrder(t *testing.T) {
	cache := &fakeCache{delay: 5 * time.Millisecond}
	s := testServer(cache, &fakeRegistry{})

	emails := []string{
		"a@example.com", "b@example.com", "c@example.com", "d@example.com",
		"e@example.com", "f@example.com", "g@example.com", "h@example.com",
	}
	body, _ := json.Marshal(emails)
	rec := do(t, s, http.MethodPost, "/email/batch-async", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	verdicts := decodeVerdicts(t, rec)
	if len(verdicts) != len(emails) {
		t.Fatalf("got %d verdicts, want %d", len(verdicts), len(emails))
	}
	for i, email := range emails {
		if verdicts[i].Email != email {
			t.Errorf("verdicts[%d].Email = %q, want %q", i, verdicts[i].Email, email)
		}
	}
}

func TestProcessFromDBEmpty(t *testing.T) {
	s := testServer(&fakeCache{}, &fakeRegistry{})
	rec := do(t, s, http.MethodPost, "/email/process-from-db", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "message") {
		t.Errorf("body = %q, want a message object", rec.Body.String())
	}
}

func TestProcessFromDB(t *testing.T) {
	registry := &fakeRegistry{emails: []string{"a@example.com", "b@example.com"}}
	s := testServer(&fakeCache{}, registry)

	rec := do(t, s, http.MethodPost, "/email/process-from-db", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	verdicts := decodeVerdicts(t, rec)
	if len(verdicts) != 2 {
		t.Fatalf("got %d verdicts, want 2", len(verdicts))
	}
	if len(registry.processed) != 2 {
		t.Errorf("processed %v, want both addresses marked", registry.processed)
	}
}

func TestByCategoryMissingParam(t *testing.T) {
	s := testServer(&fakeCache{}, &fakeRegistry{})
	rec := do(t, s, http.MethodGet, "/email/validation-results/by-category", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestByCategoryEmptyIsArray(t *testing.T) {
	s := testServer(&fakeCache{}, &fakeRegistry{})
	rec := do(t, s, http.MethodGet, "/email/validation-results/by-category?category=Valid", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want an empty JSON array", rec.Body.String())
	}
}

func TestByCategory(t *testing.T) {
	cache := &fakeCache{byCategory: []verifier.Verdict{
		{Email: "a@example.com", Category: verifier.CategoryValid},
	}}
	s := testServer(cache, &fakeRegistry{})
	rec := do(t, s, http.MethodGet, "/email/validation-results/by-category?category=valid", "")
	verdicts := decodeVerdicts(t, rec)
	if len(verdicts) != 1 || verdicts[0].Email != "a@example.com" {
		t.Errorf("verdicts = %+v", verdicts)
	}
}

func TestStreamBatch(t *testing.T) {
	s := testServer(&fakeCache{}, &fakeRegistry{})
	rec := do(t, s, http.MethodPost, "/email/stream-batch",
		`["a@example.com","b@example.com"]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %q", len(events), rec.Body.String())
	}
	for i, event := range events {
		if !strings.HasPrefix(event, "data: ") {
			t.Fatalf("event %d = %q, want data: prefix", i, event)
		}
		var verdict verifier.Verdict
		if err := json.Unmarshal([]byte(strings.TrimPrefix(event, "data: ")), &verdict); err != nil {
			t.Fatalf("decoding event %d: %v", i, err)
		}
	}
}
