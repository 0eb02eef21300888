package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/R3E-Network/raffle_layer/internal/httputil"
)

func TestRequestLoggerAssignsID(t *testing.T) {
	var seen string
	handler := NewRequestLogger(testLogger()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httputil.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raffles", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected generated uuid, got %q", seen)
	}
	if rec.Header().Get(httputil.RequestIDHeader) != seen {
		t.Errorf("response header %q does not match %q", rec.Header().Get(httputil.RequestIDHeader), seen)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/raffles", nil)
	req.Header.Set(httputil.RequestIDHeader, incoming)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Errorf("expected incoming id %s to be kept, got %s", incoming, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/raffles", nil)
	req.Header.Set(httputil.RequestIDHeader, "not-a-uuid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not-a-uuid" {
		t.Error("malformed ids should be replaced")
	}
}
