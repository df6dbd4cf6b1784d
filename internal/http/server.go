package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/party-rides/internal/config"
	"github.com/example/party-rides/internal/dispatch"
	"github.com/example/party-rides/internal/geocode"
	"github.com/example/party-rides/internal/ledger"
	"github.com/example/party-rides/internal/logging"
	"github.com/example/party-rides/internal/matcher"
	"github.com/example/party-rides/internal/notify"
	"github.com/example/party-rides/internal/storage"
)

type Server struct {
	ledger  *ledger.Service
	ws      *dispatch.WSRegistry
	logger  *slog.Logger
	mux     *mux.Router
	closers []io.Closer
}

// New builds a server around an already wired ledger. ws may be nil, in
// which case /ws is not served.
func New(l *ledger.Service, ws *dispatch.WSRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ledger: l, ws: ws, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

// NewServerFromConfig wires storage, geocoding, matching and notification
// transports from cfg, picking the in-memory fallback for anything not
// configured.
func NewServerFromConfig(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var (
		store   storage.LedgerStore
		parties matcher.PartyDirectory
		cache   geocode.Cache
		closers []io.Closer
	)

	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.RunMigrations {
			if err := ps.Migrate(ctx); err != nil {
				_ = ps.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema migrated")
		}
		store, parties, cache = ps, ps, geocode.NewPostgresCache(ps.DB())
		closers = append(closers, ps)
	} else {
		store, parties, cache = storage.NewMemoryStore(), storage.NewMemoryParties(cfg.PartyVenues), geocode.NewMemoryCache()
		logger.Warn("PG_DSN not set, ride ledger is in memory only")
	}

	if cfg.RedisAddr != "" {
		rc := geocode.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.GeocodeCachePrefix)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, keeping previous geocode cache", "addr", cfg.RedisAddr, "error", err)
			_ = rc.Close()
		} else {
			cache = rc
			closers = append(closers, rc)
		}
	}
	if cfg.GeocodeLRUSize > 0 {
		lc, err := geocode.NewLRUCache(cfg.GeocodeLRUSize, cache)
		if err != nil {
			return nil, fmt.Errorf("geocode lru: %w", err)
		}
		cache = lc
	}

	var provider geocode.Provider
	switch {
	case cfg.GoogleMapsAPIKey != "":
		gp, err := geocode.NewGoogleProvider(cfg.GoogleMapsAPIKey)
		if err != nil {
			return nil, fmt.Errorf("google maps client: %w", err)
		}
		provider = gp
	case cfg.NominatimURL != "":
		provider = geocode.NewNominatimProvider(cfg.NominatimURL)
	default:
		logger.Warn("no geocoding provider configured, matching only sees cached addresses")
	}
	resolver := geocode.NewResolver(provider, cache, cfg.GeocodeTimeout, logging.Component(logger, "geocode"))

	ws := dispatch.NewWSRegistry()
	var push notify.Notifier
	switch {
	case len(cfg.KafkaBrokers) > 0:
		kn := dispatch.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotifyTopic)
		push = kn
		closers = append(closers, kn)
	case cfg.FirebaseCredentials != "":
		fn, err := dispatch.NewFCMNotifier(ctx, cfg.FirebaseCredentials)
		if err != nil {
			return nil, err
		}
		push = fn
	default:
		push = dispatch.LogNotifier{Logger: logging.Component(logger, "notify")}
	}
	notifier := dispatch.NewFallbackNotifier(logging.Component(logger, "notify"), ws, push)

	m := &matcher.Service{
		Geocoder:       resolver,
		Parties:        parties,
		RadiusKm:       cfg.MatchRadiusKm,
		MaxDetourRatio: cfg.MaxDetourRatio,
		Concurrency:    cfg.MatchConcurrency,
		Logger:         logging.Component(logger, "matcher"),
	}
	l := ledger.New(store, notify.NewDispatcher(notifier, logging.Component(logger, "notify")), ledger.Options{
		Matcher:     m,
		Logger:      logging.Component(logger, "ledger"),
		MaxAttempts: cfg.LedgerMaxAttempts,
	})

	s := New(l, ws, logging.Component(logger, "http"))
	s.closers = closers
	return s, nil
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1/parties/{party_id}").Subrouter()
	api.Use(s.requireUser)
	api.HandleFunc("/offers", s.handleCreateOffer).Methods(http.MethodPost)
	api.HandleFunc("/requests", s.handleCreateRequest).Methods(http.MethodPost)
	api.HandleFunc("/rides", s.handleListRides).Methods(http.MethodGet)
	api.HandleFunc("/offers/{offer_id}/matches", s.handleMatches).Methods(http.MethodGet)
	api.HandleFunc("/offers/{offer_id}/pickups", s.handlePickUp).Methods(http.MethodPost)
	api.HandleFunc("/offers/{offer_id}/passengers/{passenger_id}", s.handleKick).Methods(http.MethodDelete)
	api.HandleFunc("/offers/{offer_id}/leave", s.handleLeave).Methods(http.MethodPost)
	api.HandleFunc("/offers/{offer_id}/cancel", s.handleCancelOffer).Methods(http.MethodPost)
	api.HandleFunc("/requests/{request_id}/cancel", s.handleCancelRequest).Methods(http.MethodPost)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.ws != nil {
		s.mux.Handle("/ws", s.requireUser(http.HandlerFunc(s.handleWS))).Methods(http.MethodGet)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Close releases the connections opened by NewServerFromConfig.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

// handleWS subscribes the acting user to live notifications. The user comes
// only from X-User-ID, set by the gateway once it has authenticated the socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	go s.ws.Serve(userID, conn)
}
