package httpapi

import (
	"errors"
	"net/http"

	"github.com/R3E-Network/raffle_layer/internal/httputil"
	"github.com/R3E-Network/raffle_layer/internal/raffle"
)

var kindStatus = map[raffle.Kind]int{
	raffle.KindValidation:    http.StatusBadRequest,
	raffle.KindAuthorization: http.StatusForbidden,
	raffle.KindState:         http.StatusConflict,
	raffle.KindEligibility:   http.StatusForbidden,
	raffle.KindArithmetic:    http.StatusUnprocessableEntity,
	raffle.KindNotFound:      http.StatusNotFound,
}

var kindCode = map[raffle.Kind]string{
	raffle.KindValidation:    "INVALID_REQUEST",
	raffle.KindAuthorization: "FORBIDDEN",
	raffle.KindState:         "WRONG_STATE",
	raffle.KindEligibility:   "INELIGIBLE",
	raffle.KindArithmetic:    "ARITHMETIC",
	raffle.KindNotFound:      "NOT_FOUND",
}

// writeEngineError maps an engine failure onto a status by its kind.
// Unclassified errors are storage or transport faults and are not echoed.
func (h *handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	kind := raffle.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		httputil.WriteError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}

	var details map[string]interface{}
	var se *raffle.StateError
	var ie *raffle.IneligibleError
	switch {
	case errors.As(err, &se):
		details = map[string]interface{}{"operation": se.Op, "state": se.State.String()}
	case errors.As(err, &ie):
		details = map[string]interface{}{"participant": ie.Participant, "condition": ie.Index}
	}
	httputil.WriteError(w, r, status, kindCode[kind], err.Error(), details)
}

func (h *handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
}
