package httpapi

import (
	"errors"
	"net/http"

	"github.com/example/party-rides/internal/ledger"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{ledger.ErrInvalidCapacity, http.StatusBadRequest, "invalid_capacity"},
	{ledger.ErrInvalidMode, http.StatusBadRequest, "invalid_mode"},
	{ledger.ErrInvalidLocation, http.StatusBadRequest, "invalid_location"},
	{ledger.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{ledger.ErrNotFound, http.StatusNotFound, "not_found"},
	{ledger.ErrOfferNotActive, http.StatusConflict, "offer_not_active"},
	{ledger.ErrOfferFull, http.StatusConflict, "offer_full"},
	{ledger.ErrRequestNotActive, http.StatusConflict, "request_not_active"},
	{ledger.ErrNotActive, http.StatusConflict, "not_active"},
	{ledger.ErrAlreadyOnOffer, http.StatusConflict, "already_on_offer"},
	{ledger.ErrDuplicateActiveRequest, http.StatusConflict, "duplicate_active_request"},
	{ledger.ErrConflict, http.StatusConflict, "conflict"},
}

func statusFor(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// fail maps a ledger error to its response. Internal errors are logged and
// not echoed to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}
