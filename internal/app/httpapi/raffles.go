package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/raffle_layer/internal/httputil"
	"github.com/R3E-Network/raffle_layer/internal/middleware"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

// sender returns the normalized identity of the authenticated caller.
func (h *handler) sender(w http.ResponseWriter, r *http.Request) (raffle.Identity, bool) {
	id, err := h.identity(middleware.GetIdentity(r.Context()))
	if err != nil {
		httputil.Unauthorized(w, r, fmt.Sprintf("token subject: %v", err))
		return "", false
	}
	return id, true
}

// decode reads the JSON body into v, answering 400 when it is malformed.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		h.badRequest(w, r, fmt.Errorf("invalid body: %w", err))
		return false
	}
	return true
}

func (h *handler) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := raffleID(r)
	if err != nil {
		h.badRequest(w, r, err)
		return 0, false
	}
	return id, true
}

func (h *handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Config(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	var req updateConfigRequest
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.updateConfigMsg(req)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	cfg, err := h.svc.UpdateConfig(r.Context(), sender, msg)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *handler) toggleLock(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if !h.decode(w, r, &req) {
		return
	}
	locks, err := h.svc.ToggleLock(r.Context(), sender, req.Lock)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, locks)
}

func (h *handler) sudoToggleLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !h.decode(w, r, &req) {
		return
	}
	locks, err := h.svc.SudoToggleLock(r.Context(), req.Lock)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, locks)
}

func (h *handler) createRaffle(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	owner, err := h.optionalIdentity(req.Owner)
	if err != nil {
		h.badRequest(w, r, fmt.Errorf("owner: %w", err))
		return
	}
	opts, err := h.options(req.Options)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	created, err := h.svc.CreateRaffle(r.Context(), sender, req.Funds, raffle.CreateMsg{
		Owner:       owner,
		Assets:      req.Assets,
		TicketPrice: req.TicketPrice,
		Options:     opts,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/raffles/%d", created.Raffle.ID))
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) modifyRaffle(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req modifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	opts, err := h.options(req.Options)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	updated, err := h.svc.ModifyRaffle(r.Context(), sender, raffle.ModifyMsg{
		RaffleID:    id,
		Options:     opts,
		TicketPrice: req.TicketPrice,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) cancelRaffle(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	transfers, err := h.svc.CancelRaffle(r.Context(), sender, id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"raffle_id": id, "transfers": transfers})
}

func (h *handler) buyTickets(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if !h.decode(w, r, &req) {
		return
	}
	beneficiary, err := h.optionalIdentity(req.OnBehalfOf)
	if err != nil {
		h.badRequest(w, r, fmt.Errorf("on_behalf_of: %w", err))
		return
	}
	p, err := h.svc.BuyTickets(r.Context(), sender, req.Funds, raffle.BuyMsg{
		RaffleID:   id,
		Count:      req.Count,
		Paid:       req.Paid,
		OnBehalfOf: beneficiary,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) requestRandomness(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	req, err := h.svc.RequestRandomness(r.Context(), sender, id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, req)
}

func (h *handler) receiveRandomness(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req randomnessRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.svc.ReceiveRandomness(r.Context(), sender, id, req.Seed)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) finalize(w http.ResponseWriter, r *http.Request) {
	sender, ok := h.sender(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Finalize(r.Context(), sender, id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s)
}

func (h *handler) getRaffle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Raffle(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) listRaffles(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	startAfter, err := optionalUint64(r, "start_after")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	limit, err := optionalUint32(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	views, err := h.svc.Raffles(r.Context(), filters, startAfter, limit)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if views == nil {
		views = []raffle.RaffleView{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"raffles": views})
}

func (h *handler) listTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	startAfter, err := optionalUint32(r, "start_after")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	limit, err := optionalUint32(r, "limit")
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	owners, err := h.svc.Tickets(r.Context(), id, startAfter, limit)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if owners == nil {
		owners = []raffle.Identity{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"raffle_id": id, "tickets": owners})
}

func (h *handler) ticketCount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	owner, err := h.identity(mux.Vars(r)["owner"])
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	n, err := h.svc.TicketCount(r.Context(), owner, id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"raffle_id": id, "owner": owner, "count": n})
}

func (h *handler) feeDiscount(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity(mux.Vars(r)["user"])
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	report, err := h.svc.FeeDiscount(r.Context(), user)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
