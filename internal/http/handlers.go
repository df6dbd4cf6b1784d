package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/party-rides/internal/ledger"
	"github.com/example/party-rides/internal/matcher"
	"github.com/example/party-rides/internal/models"
)

type createOfferRequest struct {
	DriverMode models.DriverMode `json:"driver_mode"`
	Location   string            `json:"location"`
	Capacity   int               `json:"capacity"`
}

type createOfferResponse struct {
	Offer   *models.RideEntry   `json:"offer"`
	Matches []matcher.Candidate `json:"matches"`
}

type createRideRequest struct {
	Location string `json:"location"`
}

type pickUpRequest struct {
	RequestID string `json:"request_id"`
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var body createOfferRequest
	if !decode(w, r, &body) {
		return
	}
	offer, matches, err := s.ledger.CreateOffer(r.Context(), partyID(r), userFromContext(r.Context()), body.DriverMode, body.Location, body.Capacity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if matches == nil {
		matches = []matcher.Candidate{}
	}
	writeJSON(w, http.StatusCreated, createOfferResponse{Offer: offer, Matches: matches})
}

// handleCreateRequest answers a repeated submit with the request that is
// already active instead of an error.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRideRequest
	if !decode(w, r, &body) {
		return
	}
	req, err := s.ledger.CreateRequest(r.Context(), partyID(r), userFromContext(r.Context()), body.Location)
	switch {
	case errors.Is(err, ledger.ErrDuplicateActiveRequest):
		writeJSON(w, http.StatusOK, req)
	case err != nil:
		s.fail(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, req)
	}
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	kinds := []models.Kind{models.KindOffer, models.KindRequest}
	if k := models.Kind(r.URL.Query().Get("kind")); k != "" {
		if !k.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_kind", "kind must be offer or request")
			return
		}
		kinds = []models.Kind{k}
	}
	rides := make([]*models.RideEntry, 0)
	for _, k := range kinds {
		es, err := s.ledger.ListActive(r.Context(), partyID(r), k)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		rides = append(rides, es...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": rides})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.ledger.FindMatches(r.Context(), partyID(r), mux.Vars(r)["offer_id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if matches == nil {
		matches = []matcher.Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handlePickUp(w http.ResponseWriter, r *http.Request) {
	var body pickUpRequest
	if !decode(w, r, &body) {
		return
	}
	if body.RequestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "request_id is required")
		return
	}
	offer, err := s.ledger.PickUp(r.Context(), partyID(r), mux.Vars(r)["offer_id"], body.RequestID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	offer, err := s.ledger.KickPassenger(r.Context(), partyID(r), vars["offer_id"], vars["passenger_id"], userFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	offer, err := s.ledger.LeaveRide(r.Context(), partyID(r), mux.Vars(r)["offer_id"], userFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleCancelOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := s.ledger.CancelOffer(r.Context(), partyID(r), mux.Vars(r)["offer_id"], userFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.ledger.CancelRequest(r.Context(), partyID(r), mux.Vars(r)["request_id"], userFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func partyID(r *http.Request) string { return mux.Vars(r)["party_id"] }

const maxBodyBytes = 64 << 10

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
