package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/party-rides/internal/matcher"
	"github.com/example/party-rides/internal/models"
	"github.com/example/party-rides/internal/notify"
	"github.com/example/party-rides/internal/observability"
	"github.com/example/party-rides/internal/storage"
)

// Matcher ranks active requests for a new offer. Results are advisory.
type Matcher interface {
	FindNearby(ctx context.Context, offer *models.RideEntry, requests []*models.RideEntry) []matcher.Candidate
}

type Options struct {
	Matcher     Matcher
	Logger      *slog.Logger
	MaxAttempts int
	Now         func() time.Time
	NewID       func() string
}

// Service owns every write to offers and requests of a party. Each mutation
// reads the entries it needs, validates, and commits the whole change guarded
// by the versions it read; on a version conflict it starts over.
type Service struct {
	store       storage.LedgerStore
	dispatcher  *notify.Dispatcher
	matcher     Matcher
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
	newID       func() string
}

func New(store storage.LedgerStore, dispatcher *notify.Dispatcher, opts Options) *Service {
	s := &Service{
		store:       store,
		dispatcher:  dispatcher,
		matcher:     opts.Matcher,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 8
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Service) CreateOffer(ctx context.Context, partyID, ownerID string, mode models.DriverMode, location string, capacity int) (offer *models.RideEntry, matches []matcher.Candidate, err error) {
	defer observe("create_offer", &err)
	if capacity < 1 {
		return nil, nil, ErrInvalidCapacity
	}
	if !mode.Valid() {
		return nil, nil, ErrInvalidMode
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, nil, ErrInvalidLocation
	}

	now := s.now()
	offer = &models.RideEntry{
		ID:                s.newID(),
		PartyID:           partyID,
		Kind:              models.KindOffer,
		DriverMode:        mode,
		OwnerID:           ownerID,
		DepartureLocation: location,
		Capacity:          capacity,
		Status:            models.StatusActive,
		CreatedBy:         ownerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Commit(ctx, storage.Changeset{Inserts: []*models.RideEntry{offer}}); err != nil {
		return nil, nil, fmt.Errorf("create offer: %w", err)
	}
	s.logger.Info("offer created", "party_id", partyID, "offer_id", offer.ID, "owner_id", ownerID, "mode", mode, "capacity", capacity)

	return offer, s.match(ctx, offer), nil
}

// CreateRequest publishes a pickup need. When the owner already has an
// active request in the party, that request is returned together with
// ErrDuplicateActiveRequest.
func (s *Service) CreateRequest(ctx context.Context, partyID, ownerID, location string) (req *models.RideEntry, err error) {
	defer observe("create_request", &err)
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrInvalidLocation
	}

	existing, err := s.store.ActiveRequestsByOwners(ctx, partyID, []string{ownerID})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r, ok := existing[ownerID]; ok {
		return r, ErrDuplicateActiveRequest
	}

	req = s.newRequest(partyID, ownerID, location, ownerID, s.now())
	if err := s.store.Commit(ctx, storage.Changeset{Inserts: []*models.RideEntry{req}}); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.logger.Info("request created", "party_id", partyID, "request_id", req.ID, "owner_id", ownerID)
	return req, nil
}

// PickUp seats the request's owner on the offer and completes the request in
// a single commit.
func (s *Service) PickUp(ctx context.Context, partyID, offerID, requestID string) (offer *models.RideEntry, err error) {
	defer observe("pickup", &err)
	var req *models.RideEntry
	err = s.retry(ctx, "pickup", func() error {
		o, err := s.load(ctx, partyID, offerID, models.KindOffer)
		if err != nil {
			return err
		}
		r, err := s.load(ctx, partyID, requestID, models.KindRequest)
		if err != nil {
			return err
		}
		if !o.IsActive() {
			return ErrOfferNotActive
		}
		if o.SeatsLeft() <= 0 {
			return ErrOfferFull
		}
		if !r.IsActive() {
			return ErrRequestNotActive
		}
		if r.OwnerID == o.OwnerID || o.PassengerIndex(r.OwnerID) >= 0 {
			return ErrAlreadyOnOffer
		}

		now := s.now()
		o.Passengers = append(o.Passengers, models.Passenger{
			PassengerID:    r.OwnerID,
			PickupLocation: r.DepartureLocation,
			JoinedAt:       now,
		})
		o.UpdatedAt = now
		r.Status = models.StatusCompleted
		r.UpdatedAt = now
		if err := s.store.Commit(ctx, storage.Changeset{Updates: []*models.RideEntry{o, r}}); err != nil {
			return err
		}
		offer, req = o, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request picked up", "party_id", partyID, "offer_id", offer.ID, "request_id", req.ID, "passenger_id", req.OwnerID)
	s.dispatcher.Dispatch(context.WithoutCancel(ctx),
		notify.PickupConfirmed{
			PartyID:        partyID,
			PassengerID:    req.OwnerID,
			DriverID:       offer.OwnerID,
			OfferID:        offer.ID,
			RequestID:      req.ID,
			PickupLocation: req.DepartureLocation,
		},
		notify.PassengerAdded{
			PartyID:     partyID,
			DriverID:    offer.OwnerID,
			OfferID:     offer.ID,
			PassengerID: req.OwnerID,
			SeatsLeft:   offer.SeatsLeft(),
		},
	)
	return offer, nil
}

func (s *Service) KickPassenger(ctx context.Context, partyID, offerID, passengerID, actingOwnerID string) (offer *models.RideEntry, err error) {
	defer observe("kick", &err)
	owner := func(o *models.RideEntry) error {
		if o.OwnerID != actingOwnerID {
			return ErrUnauthorized
		}
		return nil
	}
	res, err := s.removePassenger(ctx, "kick", partyID, offerID, passengerID, actingOwnerID, owner)
	if err != nil {
		return nil, err
	}

	s.logger.Info("passenger kicked", "party_id", partyID, "offer_id", offerID, "passenger_id", passengerID,
		"request_id", res.requestID, "request_created", res.created)
	s.dispatcher.Dispatch(context.WithoutCancel(ctx),
		notify.PassengerRemoved{
			PartyID:     partyID,
			PassengerID: passengerID,
			DriverID:    res.offer.OwnerID,
			OfferID:     offerID,
			RequestID:   res.requestID,
		},
		notify.KickConfirmed{
			PartyID:     partyID,
			DriverID:    res.offer.OwnerID,
			OfferID:     offerID,
			PassengerID: passengerID,
		},
	)
	return res.offer, nil
}

// LeaveRide is the passenger's own way off an offer; passengerID is the
// acting user.
func (s *Service) LeaveRide(ctx context.Context, partyID, offerID, passengerID string) (offer *models.RideEntry, err error) {
	defer observe("leave", &err)
	res, err := s.removePassenger(ctx, "leave", partyID, offerID, passengerID, passengerID, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("passenger left", "party_id", partyID, "offer_id", offerID, "passenger_id", passengerID,
		"request_id", res.requestID, "request_created", res.created)
	s.dispatcher.Dispatch(context.WithoutCancel(ctx), notify.PassengerLeft{
		PartyID:     partyID,
		DriverID:    res.offer.OwnerID,
		OfferID:     offerID,
		PassengerID: passengerID,
	})
	return res.offer, nil
}

type removal struct {
	offer     *models.RideEntry
	passenger models.Passenger
	requestID string
	created   bool
}

// removePassenger takes passengerID off the offer and, in the same commit,
// opens a request at their pickup location unless they already have one.
func (s *Service) removePassenger(ctx context.Context, op, partyID, offerID, passengerID, actor string, authorize func(*models.RideEntry) error) (removal, error) {
	var res removal
	err := s.retry(ctx, op, func() error {
		o, err := s.load(ctx, partyID, offerID, models.KindOffer)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(o); err != nil {
				return err
			}
		}
		if !o.IsActive() {
			return ErrOfferNotActive
		}
		idx := o.PassengerIndex(passengerID)
		if idx < 0 {
			return ErrNotFound
		}
		p := o.Passengers[idx]
		now := s.now()
		o.Passengers = append(o.Passengers[:idx:idx], o.Passengers[idx+1:]...)
		o.UpdatedAt = now

		existing, err := s.store.ActiveRequestsByOwners(ctx, partyID, []string{passengerID})
		if err != nil {
			return fmt.Errorf("%s: active request lookup: %w", op, err)
		}
		cs := storage.Changeset{Updates: []*models.RideEntry{o}}
		res = removal{offer: o, passenger: p}
		if r, ok := existing[passengerID]; ok {
			res.requestID = r.ID
		} else {
			r := s.newRequest(partyID, passengerID, p.PickupLocation, actor, now)
			cs.Inserts = append(cs.Inserts, r)
			res.requestID, res.created = r.ID, true
		}
		return s.store.Commit(ctx, cs)
	})
	return res, err
}

// CancelOffer cancels the offer first, then makes sure every passenger it
// carried has an active request. The second step is best effort per
// passenger and never undoes the cancellation.
func (s *Service) CancelOffer(ctx context.Context, partyID, offerID, actingOwnerID string) (offer *models.RideEntry, err error) {
	defer observe("cancel_offer", &err)
	err = s.retry(ctx, "cancel_offer", func() error {
		o, err := s.load(ctx, partyID, offerID, models.KindOffer)
		if err != nil {
			return err
		}
		if o.OwnerID != actingOwnerID {
			return ErrUnauthorized
		}
		if !o.IsActive() {
			return ErrOfferNotActive
		}
		o.Status = models.StatusCancelled
		o.UpdatedAt = s.now()
		if err := s.store.Commit(ctx, storage.Changeset{Updates: []*models.RideEntry{o}}); err != nil {
			return err
		}
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	// the cancellation is committed; finish the follow-up even if the caller goes away
	bg := context.WithoutCancel(ctx)
	requestIDs := s.rehomePassengers(bg, offer, actingOwnerID)

	notes := make([]notify.Notification, 0, len(offer.Passengers)+1)
	for _, p := range offer.Passengers {
		notes = append(notes, notify.OfferCancelled{
			PartyID:     partyID,
			PassengerID: p.PassengerID,
			DriverID:    offer.OwnerID,
			OfferID:     offer.ID,
			RequestID:   requestIDs[p.PassengerID],
		})
	}
	notes = append(notes, notify.OfferCancelConfirmed{
		PartyID:        partyID,
		DriverID:       offer.OwnerID,
		OfferID:        offer.ID,
		PassengerCount: len(offer.Passengers),
	})
	s.logger.Info("offer cancelled", "party_id", partyID, "offer_id", offer.ID, "passengers", len(offer.Passengers))
	s.dispatcher.Dispatch(bg, notes...)
	return offer, nil
}

// rehomePassengers returns passenger id -> active request id for every
// passenger that has (or now got) one.
func (s *Service) rehomePassengers(ctx context.Context, offer *models.RideEntry, actor string) map[string]string {
	out := make(map[string]string, len(offer.Passengers))
	if len(offer.Passengers) == 0 {
		return out
	}
	logger := s.logger.With("party_id", offer.PartyID, "offer_id", offer.ID)

	ids := make([]string, 0, len(offer.Passengers))
	for _, p := range offer.Passengers {
		ids = append(ids, p.PassengerID)
	}
	existing, err := s.store.ActiveRequestsByOwners(ctx, offer.PartyID, ids)
	if err != nil {
		logger.Error("batched active request lookup failed, checking passengers one by one", "error", err)
		existing = nil
	}

	for _, p := range offer.Passengers {
		known := existing
		if known == nil {
			known, err = s.store.ActiveRequestsByOwners(ctx, offer.PartyID, []string{p.PassengerID})
			if err != nil {
				observability.CancelFanoutFailures.Inc()
				logger.Error("active request lookup failed", "passenger_id", p.PassengerID, "error", err)
				continue
			}
		}
		if r, ok := known[p.PassengerID]; ok {
			out[p.PassengerID] = r.ID
			continue
		}
		r := s.newRequest(offer.PartyID, p.PassengerID, p.PickupLocation, actor, s.now())
		if err := s.store.Commit(ctx, storage.Changeset{Inserts: []*models.RideEntry{r}}); err != nil {
			observability.CancelFanoutFailures.Inc()
			logger.Error("request re-creation failed", "passenger_id", p.PassengerID, "error", err)
			continue
		}
		out[p.PassengerID] = r.ID
	}
	return out
}

// CancelRequest withdraws an active request. A request that was completed
// or cancelled in the meantime yields ErrNotActive.
func (s *Service) CancelRequest(ctx context.Context, partyID, requestID, actingOwnerID string) (req *models.RideEntry, err error) {
	defer observe("cancel_request", &err)
	err = s.retry(ctx, "cancel_request", func() error {
		r, err := s.load(ctx, partyID, requestID, models.KindRequest)
		if err != nil {
			return err
		}
		if r.OwnerID != actingOwnerID {
			return ErrUnauthorized
		}
		if !r.IsActive() {
			return ErrNotActive
		}
		r.Status = models.StatusCancelled
		r.UpdatedAt = s.now()
		if err := s.store.Commit(ctx, storage.Changeset{Updates: []*models.RideEntry{r}}); err != nil {
			return err
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request cancelled", "party_id", partyID, "request_id", req.ID)
	s.dispatcher.Dispatch(context.WithoutCancel(ctx), notify.RequestCancelledByUser{
		PartyID:   partyID,
		OwnerID:   req.OwnerID,
		RequestID: req.ID,
	})
	return req, nil
}

func (s *Service) Get(ctx context.Context, partyID, id string) (*models.RideEntry, error) {
	e, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && e.PartyID != partyID) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *Service) ListActive(ctx context.Context, partyID string, kind models.Kind) ([]*models.RideEntry, error) {
	return s.store.ListActive(ctx, partyID, kind)
}

// FindMatches reruns matching for an existing active offer. A full offer
// has no candidates.
func (s *Service) FindMatches(ctx context.Context, partyID, offerID string) ([]matcher.Candidate, error) {
	o, err := s.load(ctx, partyID, offerID, models.KindOffer)
	if err != nil {
		return nil, err
	}
	if !o.IsActive() {
		return nil, ErrOfferNotActive
	}
	// every pickup into a full offer would fail with ErrOfferFull
	if o.SeatsLeft() <= 0 {
		return nil, nil
	}
	return s.match(ctx, o), nil
}

func (s *Service) match(ctx context.Context, offer *models.RideEntry) []matcher.Candidate {
	if s.matcher == nil {
		return nil
	}
	requests, err := s.store.ListActive(ctx, offer.PartyID, models.KindRequest)
	if err != nil {
		s.logger.Warn("listing requests for match failed", "offer_id", offer.ID, "error", err)
		return nil
	}
	return s.matcher.FindNearby(ctx, offer, requests)
}

func (s *Service) load(ctx context.Context, partyID, id string, kind models.Kind) (*models.RideEntry, error) {
	e, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.PartyID != partyID || e.Kind != kind {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Service) newRequest(partyID, ownerID, location, createdBy string, now time.Time) *models.RideEntry {
	return &models.RideEntry{
		ID:                s.newID(),
		PartyID:           partyID,
		Kind:              models.KindRequest,
		OwnerID:           ownerID,
		DepartureLocation: location,
		Status:            models.StatusActive,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// retry reruns fn while it loses version races, up to maxAttempts times.
// Every conflict means another writer committed, so the loop makes progress.
func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
		observability.LedgerConflictsTotal.WithLabelValues(op).Inc()
		if attempt >= s.maxAttempts {
			s.logger.Warn("giving up after version conflicts", "op", op, "attempts", attempt)
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func observe(op string, err *error) {
	observability.LedgerOpsTotal.WithLabelValues(op, outcome(*err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicateActiveRequest):
		return "duplicate"
	case errors.Is(err, ErrOfferFull):
		return "offer_full"
	case errors.Is(err, ErrOfferNotActive), errors.Is(err, ErrRequestNotActive), errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidCapacity), errors.Is(err, ErrInvalidMode), errors.Is(err, ErrInvalidLocation), errors.Is(err, ErrAlreadyOnOffer):
		return "rejected"
	default:
		return "error"
	}
}
