package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/raffle_layer/internal/app/services/raffles"
	"github.com/R3E-Network/raffle_layer/internal/chain"
	"github.com/R3E-Network/raffle_layer/internal/httputil"
	"github.com/R3E-Network/raffle_layer/internal/middleware"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

var (
	secret = []byte("api-test-secret")
	t0     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type apiHarness struct {
	handler  http.Handler
	now      time.Time
	executor *raffles.RecordingExecutor
}

func quietLogger() *logger.Logger {
	l := logger.New(logger.LoggingConfig{Level: "debug"})
	l.SetOutput(&bytes.Buffer{})
	return l
}

func newAPI(t *testing.T, opts Options) *apiHarness {
	t.Helper()
	h := &apiHarness{now: t0, executor: raffles.NewRecordingExecutor()}
	log := quietLogger()

	svc := raffles.New(raffle.NewEngine(raffle.NewMemoryStore(), raffle.NewMockAccountQuerier()), "escrow", log)
	svc.WithClock(func() time.Time { return h.now })
	svc.WithExecutor(h.executor)
	_, err := svc.Instantiate(context.Background(), "admin", raffle.InstantiateMsg{
		Name:          "raffles",
		CreationCoins: []raffle.Coin{},
		RaffleFee:     raffle.MustRate("0.1"),
		Oracle:        "oracle",
	})
	require.NoError(t, err)

	opts.Service = svc
	opts.Log = log
	opts.JWTSecret = secret
	if opts.GovernanceRole == "" {
		opts.GovernanceRole = "governance"
	}
	if opts.Addresses == "" {
		opts.Addresses = chain.FormatOpaque
	}
	h.handler, err = NewHandler(opts)
	require.NoError(t, err)
	return h
}

func token(t *testing.T, identity, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, identity, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *apiHarness) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func createBody(token string) map[string]interface{} {
	return map[string]interface{}{
		"assets":       []map[string]interface{}{{"kind": "nft", "address": "punks", "token_id": token}},
		"ticket_price": map[string]string{"denom": "X", "amount": "4"},
		"options":      map[string]interface{}{"duration_seconds": 3600},
	}
}

func buyBody(count int) map[string]interface{} {
	paid := map[string]string{"denom": "X", "amount": strconv.Itoa(4 * count)}
	return map[string]interface{}{"count": count, "paid": paid, "funds": []interface{}{paid}}
}

func TestRaffleLifecycleOverHTTP(t *testing.T) {
	h := newAPI(t, Options{})
	creator := token(t, "creator", "")
	alice := token(t, "alice", "")
	oracle := token(t, "oracle", "")

	rec := h.do(t, http.MethodPost, "/v1/raffles", creator, createBody("1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/v1/raffles/0", rec.Header().Get("Location"))
	var created raffle.Created
	decode(t, rec, &created)
	assert.Equal(t, raffle.Identity("creator"), created.Raffle.Owner)
	assert.Equal(t, "raffle-0", created.Randomness.JobID)

	rec = h.do(t, http.MethodPost, "/v1/raffles/0/tickets", alice, buyBody(3))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p raffle.Purchase
	decode(t, rec, &p)
	assert.Equal(t, uint32(3), p.Total)

	rec = h.do(t, http.MethodGet, "/v1/raffles/0/tickets/alice/count", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"raffle_id":0,"owner":"alice","count":3}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/v1/raffles/0/tickets?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"raffle_id":0,"tickets":["alice","alice"]}`, rec.Body.String())

	h.now = t0.Add(time.Hour)
	seed := strings.Repeat("ab", 32)
	rec = h.do(t, http.MethodPost, "/v1/raffles/0/randomness", alice, map[string]string{"seed": seed})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = h.do(t, http.MethodPost, "/v1/raffles/0/randomness", oracle, map[string]string{"seed": seed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	h.now = t0.Add(time.Hour + 10*time.Second)
	rec = h.do(t, http.MethodPost, "/v1/raffles/0/finalize", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s raffle.Settlement
	decode(t, rec, &s)
	assert.Equal(t, []raffle.Identity{"alice"}, s.Winners)
	assert.Equal(t, "1", s.TreasuryCut.Amount.String())

	rec = h.do(t, http.MethodGet, "/v1/raffles/0", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view raffle.RaffleView
	decode(t, rec, &view)
	assert.Equal(t, raffle.StateClaimed, view.State)

	assert.Len(t, h.executor.Batches(), 2)
}

func TestErrorMapping(t *testing.T) {
	h := newAPI(t, Options{})
	creator := token(t, "creator", "")
	bob := token(t, "bob", "")

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/v1/raffles", creator, createBody("1")).Code)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		body   interface{}
		status int
		code   string
	}{
		{name: "missing token", method: http.MethodPost, path: "/v1/raffles/0/tickets", body: buyBody(1), status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "not found", method: http.MethodGet, path: "/v1/raffles/9", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "not owner", method: http.MethodPost, path: "/v1/raffles/0/cancel", bearer: bob, status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "wrong state", method: http.MethodPost, path: "/v1/raffles/0/finalize", bearer: bob, status: http.StatusConflict, code: "WRONG_STATE"},
		{name: "payment mismatch", method: http.MethodPost, path: "/v1/raffles/0/tickets", bearer: bob, body: map[string]interface{}{
			"count": 2, "paid": map[string]string{"denom": "X", "amount": "4"},
		}, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "unknown field", method: http.MethodPost, path: "/v1/raffles/0/tickets", bearer: bob, body: map[string]interface{}{"tickets": 1}, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "bad seed", method: http.MethodPost, path: "/v1/raffles/0/randomness", bearer: bob, body: map[string]string{"seed": "00"}, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "bad state filter", method: http.MethodGet, path: "/v1/raffles?state=pending", status: http.StatusBadRequest, code: "INVALID_REQUEST"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(t, tc.method, tc.path, tc.bearer, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body httputil.ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}

	rec := h.do(t, http.MethodPost, "/v1/raffles/0/finalize", bob, nil)
	var body httputil.ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "started", body.Details["state"])
}

func TestListRafflesFilters(t *testing.T) {
	h := newAPI(t, Options{})
	creator := token(t, "creator", "")
	other := token(t, "other", "")

	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/v1/raffles", creator, createBody("1")).Code)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/v1/raffles", other, createBody("2")).Code)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/v1/raffles/1/tickets", creator, buyBody(1)).Code)

	list := func(query string) []raffle.RaffleView {
		rec := h.do(t, http.MethodGet, "/v1/raffles"+query, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out struct {
			Raffles []raffle.RaffleView `json:"raffles"`
		}
		decode(t, rec, &out)
		return out.Raffles
	}

	all := list("")
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1), all[0].ID, "newest first")

	assert.Len(t, list("?owner=creator"), 1)
	assert.Len(t, list("?depositor=creator"), 1)
	assert.Equal(t, uint64(1), list("?depositor=creator")[0].ID)
	assert.Len(t, list("?contains_token=punks"), 2)
	assert.Len(t, list("?state=started,created"), 2)
	assert.Len(t, list("?state=closed"), 0)
	assert.Len(t, list("?start_after=1"), 1)
	assert.Len(t, list("?limit=1"), 1)
}

func TestGovernanceRoutes(t *testing.T) {
	dir := t.TempDir()
	auditFile := filepath.Join(dir, "audit.jsonl")
	h := newAPI(t, Options{AuditFile: auditFile})
	gov := token(t, "chain", "governance")
	admin := token(t, "admin", "")

	rec := h.do(t, http.MethodPost, "/v1/sudo/locks", admin, map[string]bool{"lock": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/sudo/locks", gov, map[string]bool{"lock": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"lock":false,"sudo_lock":true}`, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/v1/raffles", admin, createBody("1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/locks", admin, map[string]bool{"lock": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPut, "/v1/config", admin, map[string]interface{}{"raffle_fee": "0.2", "randomness_timeout_seconds": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cfg raffle.Config
	decode(t, rec, &cfg)
	assert.Equal(t, "0.2", cfg.RaffleFee.String())
	assert.Equal(t, 30*time.Second, cfg.RandomnessTimeout)

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodGet, "/v1/audit", admin, nil).Code)
	rec = h.do(t, http.MethodGet, "/v1/audit?limit=2", gov, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var audit struct {
		Entries []auditEntry `json:"entries"`
	}
	decode(t, rec, &audit)
	require.Len(t, audit.Entries, 2)
	assert.Equal(t, "/v1/config", audit.Entries[1].Route)
	assert.Equal(t, "admin", audit.Entries[1].Identity)

	raw, err := os.ReadFile(auditFile)
	require.NoError(t, err)
	assert.Equal(t, 5, bytes.Count(raw, []byte("\n")))
}

func TestNeoAddressValidation(t *testing.T) {
	h := newAPI(t, Options{Addresses: chain.FormatNeo})
	addr, err := chain.NewAddress()
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/v1/raffles", token(t, "creator", ""), createBody("1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/fee-discounts/alice", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/fee-discounts/"+addr, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report raffle.DiscountReport
	decode(t, rec, &report)
	assert.Equal(t, raffle.Identity(addr), report.Participant)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newAPI(t, Options{})

	rec := h.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "raffle_layer_http_requests_total")
}
