package httpmw

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChain_RequestIDAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			t.Fatalf("request id missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	})
	h := Chain(inner, WithAccessLog(logger), WithRequestID)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lists", nil))

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("access log is not one JSON line: %v (%s)", err, buf.String())
	}
	if line["event"] != "http_request" || line["service"] != "chorekeep" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if line["status"] != float64(http.StatusNoContent) || line["path"] != "/api/lists" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestWithRecover_RespondsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	})
	h := Chain(inner, WithRequestID, WithRecover(logger))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body, got %q", rec.Body.String())
	}
	if body["error"] != "internal server error" {
		t.Fatalf("unexpected body: %v", body)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("panic log is not one JSON line: %v", err)
	}
	if line["event"] != "panic_recovered" || line["panic"] != "handler bug" {
		t.Fatalf("unexpected log line: %v", line)
	}
}
