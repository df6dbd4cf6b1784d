package matcher

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/party-rides/internal/geo"
	"github.com/example/party-rides/internal/models"
	"github.com/example/party-rides/internal/observability"
)

// DefaultRadiusKm is how far a personal-vehicle driver is asked to go.
const DefaultRadiusKm = 15.0

type Geocoder interface {
	Resolve(ctx context.Context, address string) (models.Coordinates, error)
}

type PartyDirectory interface {
	VenueAddress(ctx context.Context, partyID string) (string, bool, error)
}

type Candidate struct {
	Request             *models.RideEntry `json:"request"`
	DistanceKm          float64           `json:"distance_km"`
	RideShareCompatible bool              `json:"rideshare_compatible"`
}

type Service struct {
	Geocoder       Geocoder
	Parties        PartyDirectory // optional, only needed for commercial offers
	RadiusKm       float64
	MaxDetourRatio float64
	Concurrency    int
	Logger         *slog.Logger
}

// FindNearby ranks active requests against a freshly created offer. It never
// fails: any address that cannot be resolved is left out, and an offer whose
// own location cannot be resolved yields no candidates.
func (s *Service) FindNearby(ctx context.Context, offer *models.RideEntry, requests []*models.RideEntry) []Candidate {
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	logger := s.logger().With("offer_id", offer.ID, "party_id", offer.PartyID)
	origin, err := s.Geocoder.Resolve(ctx, offer.DepartureLocation)
	if err != nil {
		logger.Info("offer location unresolved, skipping match", "error", err)
		observability.MatchCandidates.Observe(0)
		return nil
	}

	var (
		venue    models.Coordinates
		hasVenue bool
	)
	if offer.DriverMode == models.CommercialRideShare {
		venue, hasVenue = s.resolveVenue(ctx, offer.PartyID, logger)
	}

	pool := make([]*models.RideEntry, 0, len(requests))
	for _, r := range requests {
		if r.Kind != models.KindRequest || !r.IsActive() || r.PartyID != offer.PartyID || r.OwnerID == offer.OwnerID {
			continue
		}
		pool = append(pool, r)
	}

	locs := make([]*models.Coordinates, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, r := range pool {
		i, r := i, r
		g.Go(func() error {
			c, err := s.Geocoder.Resolve(gctx, r.DepartureLocation)
			if err != nil {
				logger.Debug("request location unresolved", "request_id", r.ID, "error", err)
				return nil
			}
			locs[i] = &c
			return nil
		})
	}
	_ = g.Wait()

	radius := s.radius()
	out := make([]Candidate, 0, len(pool))
	for i, r := range pool {
		if locs[i] == nil {
			continue
		}
		pickup := *locs[i]
		d := geo.DistanceKm(origin, pickup)
		switch {
		case hasVenue:
			if geo.IsDetourAcceptable(origin, pickup, venue, s.MaxDetourRatio) {
				out = append(out, Candidate{Request: r, DistanceKm: d, RideShareCompatible: true})
			}
		case d <= radius:
			out = append(out, Candidate{Request: r, DistanceKm: d})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if !a.Request.CreatedAt.Equal(b.Request.CreatedAt) {
			return a.Request.CreatedAt.Before(b.Request.CreatedAt)
		}
		return a.Request.ID < b.Request.ID
	})
	observability.MatchCandidates.Observe(float64(len(out)))
	return out
}

func (s *Service) resolveVenue(ctx context.Context, partyID string, logger *slog.Logger) (models.Coordinates, bool) {
	if s.Parties == nil {
		return models.Coordinates{}, false
	}
	addr, ok, err := s.Parties.VenueAddress(ctx, partyID)
	if err != nil {
		logger.Warn("venue lookup failed, using radius fallback", "error", err)
		return models.Coordinates{}, false
	}
	if !ok {
		return models.Coordinates{}, false
	}
	c, err := s.Geocoder.Resolve(ctx, addr)
	if err != nil {
		logger.Info("venue unresolved, using radius fallback", "error", err)
		return models.Coordinates{}, false
	}
	return c, true
}

func (s *Service) radius() float64 {
	if s.RadiusKm <= 0 {
		return DefaultRadiusKm
	}
	return s.RadiusKm
}

func (s *Service) concurrency() int {
	if s.Concurrency <= 0 {
		return 8
	}
	return s.Concurrency
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
