// Package httpapi exposes the raffle service over HTTP.
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/raffle_layer/internal/app/metrics"
	"github.com/R3E-Network/raffle_layer/internal/app/services/raffles"
	"github.com/R3E-Network/raffle_layer/internal/chain"
	"github.com/R3E-Network/raffle_layer/internal/httputil"
	"github.com/R3E-Network/raffle_layer/internal/middleware"
	"github.com/R3E-Network/raffle_layer/pkg/logger"
)

// Options wires the handler.
type Options struct {
	Service        *raffles.Service
	Log            *logger.Logger
	JWTSecret      []byte
	GovernanceRole string
	// Addresses validates identities in requests and tokens.
	Addresses chain.Format
	// RateLimiter is optional.
	RateLimiter *middleware.RateLimiter
	// AuditFile, when set, receives every audited call as a JSON line.
	AuditFile string
}

type handler struct {
	svc       *raffles.Service
	log       *logger.Logger
	addresses chain.Format
	auditLog  *auditLog
}

// NewHandler returns the API router. Reads are public; writes need a bearer
// token whose subject is the caller's address.
func NewHandler(opts Options) (http.Handler, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	addresses := opts.Addresses
	if addresses == "" {
		addresses = chain.FormatNeo
	}
	var sink auditSink
	if opts.AuditFile != "" {
		fs, err := newFileAuditSink(opts.AuditFile)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		sink = fs
	}
	h := &handler{
		svc:       opts.Service,
		log:       log,
		addresses: addresses,
		auditLog:  newAuditLog(500, sink),
	}

	auth := middleware.NewAuthMiddleware(opts.JWTSecret, log, nil)
	governance := middleware.RequireRole(opts.GovernanceRole)
	limit := func(next http.Handler) http.Handler { return next }
	if opts.RateLimiter != nil {
		limit = opts.RateLimiter.Handler
	}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()

	read := api.Methods(http.MethodGet).Subrouter()
	read.Use(limit)
	read.HandleFunc("/config", h.getConfig)
	read.HandleFunc("/raffles", h.listRaffles)
	read.HandleFunc("/raffles/{id:[0-9]+}", h.getRaffle)
	read.HandleFunc("/raffles/{id:[0-9]+}/tickets", h.listTickets)
	read.HandleFunc("/raffles/{id:[0-9]+}/tickets/{owner}/count", h.ticketCount)
	read.HandleFunc("/fee-discounts/{user}", h.feeDiscount)
	read.Handle("/audit", auth.Handler(governance(http.HandlerFunc(h.listAudit))))

	write := api.Methods(http.MethodPost, http.MethodPut, http.MethodPatch).Subrouter()
	write.Use(auth.Handler, limit, h.audit)
	write.HandleFunc("/config", h.updateConfig).Methods(http.MethodPut)
	write.HandleFunc("/locks", h.toggleLock).Methods(http.MethodPost)
	write.Handle("/sudo/locks", governance(http.HandlerFunc(h.sudoToggleLock))).Methods(http.MethodPost)
	write.HandleFunc("/raffles", h.createRaffle).Methods(http.MethodPost)
	write.HandleFunc("/raffles/{id:[0-9]+}", h.modifyRaffle).Methods(http.MethodPatch)
	write.HandleFunc("/raffles/{id:[0-9]+}/cancel", h.cancelRaffle).Methods(http.MethodPost)
	write.HandleFunc("/raffles/{id:[0-9]+}/tickets", h.buyTickets).Methods(http.MethodPost)
	write.HandleFunc("/raffles/{id:[0-9]+}/randomness/request", h.requestRandomness).Methods(http.MethodPost)
	write.HandleFunc("/raffles/{id:[0-9]+}/randomness", h.receiveRandomness).Methods(http.MethodPost)
	write.HandleFunc("/raffles/{id:[0-9]+}/finalize", h.finalize).Methods(http.MethodPost)

	return middleware.NewRequestLogger(log).Handler(r), nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   h.svc.Now().Format(time.RFC3339),
	})
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalUint32(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	n := 100
	if limit != nil {
		n = int(*limit)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": h.auditLog.recent(n)})
}
