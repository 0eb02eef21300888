package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/raffles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/raffles/{id}", "404"))
	for _, id := range []string{"1", "2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/raffles/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/raffles/{id}", "404"))

	if after-before != 2 {
		t.Fatalf("expected two requests on the templated route, got %v", after-before)
	}
}

func TestRecorders(t *testing.T) {
	RecordOperation("buy_tickets", "")
	RecordOperation("buy_tickets", "state")
	RecordTicketsSold(3)
	RecordSettlement("drawn")
	RecordTransfer("nft")
	RecordKeeperRun(0, true)

	if got := testutil.ToFloat64(operations.WithLabelValues("buy_tickets", "ok")); got < 1 {
		t.Errorf("expected ok operation recorded, got %v", got)
	}
	if got := testutil.ToFloat64(ticketsSold); got < 3 {
		t.Errorf("expected tickets recorded, got %v", got)
	}
	if got := testutil.ToFloat64(keeperRuns.WithLabelValues("true")); got < 1 {
		t.Errorf("expected keeper run recorded, got %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordKeeperRun(time.Second, false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "raffle_layer_keeper_runs_total") {
		t.Fatalf("keeper series missing from exposition")
	}
}
