package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

var testSecret = []byte("test-secret")

func testLogger() *logger.Logger {
	l := logger.New(logger.LoggingConfig{Level: "debug", Format: "json"})
	l.SetOutput(&bytes.Buffer{})
	return l
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Identity", GetIdentity(r.Context()))
		w.Header().Set("X-Role", GetRole(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Handler(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, testLogger(), []string{"/health"})

	valid, err := IssueToken(testSecret, "alice", "", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	expired, err := IssueToken(testSecret, "alice", "", -time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	foreign, err := IssueToken([]byte("other"), "alice", "", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	anonymous, err := IssueToken(testSecret, "", "", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
	}{
		{name: "skip path", path: "/health", wantCode: http.StatusOK},
		{name: "missing header", path: "/raffles", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/raffles", header: "Basic " + valid, wantCode: http.StatusUnauthorized},
		{name: "valid", path: "/raffles", header: "Bearer " + valid, wantCode: http.StatusOK},
		{name: "expired", path: "/raffles", header: "Bearer " + expired, wantCode: http.StatusUnauthorized},
		{name: "foreign secret", path: "/raffles", header: "Bearer " + foreign, wantCode: http.StatusUnauthorized},
		{name: "no subject", path: "/raffles", header: "Bearer " + anonymous, wantCode: http.StatusUnauthorized},
		{name: "alg none", path: "/raffles", header: "Bearer " + none, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw.Handler(identityEcho()).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.name == "valid" && rec.Header().Get("X-Identity") != "alice" {
				t.Errorf("identity = %q, want alice", rec.Header().Get("X-Identity"))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, testLogger(), nil)
	handler := mw.Handler(RequireRole("governance")(identityEcho()))

	gov, _ := IssueToken(testSecret, "chain", "governance", time.Hour)
	user, _ := IssueToken(testSecret, "alice", "", time.Hour)

	for name, tc := range map[string]struct {
		token string
		want  int
	}{
		"governance": {token: gov, want: http.StatusOK},
		"plain user": {token: user, want: http.StatusForbidden},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sudo/locks", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	rec := httptest.NewRecorder()
	RequireRole("governance")(identityEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sudo/locks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestAuthFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.LoggingConfig{Level: "warn", Format: "json"})
	log.SetOutput(&buf)

	mw := NewAuthMiddleware(testSecret, log, nil)
	rec := httptest.NewRecorder()
	mw.Handler(identityEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raffles", nil))

	if !bytes.Contains(buf.Bytes(), []byte("authentication failed")) {
		t.Fatalf("expected warning, got %q", buf.String())
	}
	if log.GetLevel() != logrus.WarnLevel {
		t.Fatalf("unexpected level %s", log.GetLevel())
	}
}
