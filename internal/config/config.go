package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup. A .env file in the
// working directory is honoured but never overrides the real environment.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr          string
	RedisPassword      string
	GeocodeCachePrefix string
	GeocodeLRUSize     int
	GeocodeTimeout     time.Duration
	GoogleMapsAPIKey   string
	NominatimURL       string

	KafkaBrokers []string
	NotifyTopic  string

	FirebaseCredentials string

	PGDSN string

	// PartyVenues seeds the in-memory party directory when PG_DSN is unset.
	PartyVenues map[string]string

	MatchRadiusKm     float64
	MaxDetourRatio    float64
	MatchConcurrency  int
	LedgerMaxAttempts int

	LogLevel      string
	LogFormat     string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:           ":8080",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		GeocodeCachePrefix: "geocode:",
		GeocodeLRUSize:     4096,
		GeocodeTimeout:     3 * time.Second,
		NotifyTopic:        "ride-notifications",
		MatchRadiusKm:      15,
		MaxDetourRatio:     1.5,
		MatchConcurrency:   8,
		LedgerMaxAttempts:  8,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load()

	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.GeocodeCachePrefix, "GEOCODE_CACHE_PREFIX")
	setIntFromEnv(&cfg.GeocodeLRUSize, "GEOCODE_LRU_SIZE", &errs)
	setDurationFromEnv(&cfg.GeocodeTimeout, "GEOCODE_TIMEOUT", &errs)
	cfg.GoogleMapsAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY"))
	cfg.NominatimURL = strings.TrimSpace(os.Getenv("NOMINATIM_URL"))

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.NotifyTopic, "NOTIFY_TOPIC")
	cfg.FirebaseCredentials = strings.TrimSpace(os.Getenv("FIREBASE_CREDENTIALS"))

	cfg.PGDSN = os.Getenv("PG_DSN")
	if v := os.Getenv("PARTY_VENUES"); v != "" {
		venues, err := parseVenues(v)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.PartyVenues = venues
	}

	setFloatFromEnv(&cfg.MatchRadiusKm, "MATCH_RADIUS_KM", &errs)
	setFloatFromEnv(&cfg.MaxDetourRatio, "MAX_DETOUR_RATIO", &errs)
	setIntFromEnv(&cfg.MatchConcurrency, "MATCH_CONCURRENCY", &errs)
	setIntFromEnv(&cfg.LedgerMaxAttempts, "LEDGER_MAX_ATTEMPTS", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MatchRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_RADIUS_KM must be > 0"))
	}
	if cfg.MaxDetourRatio < 1 {
		errs = append(errs, fmt.Errorf("MAX_DETOUR_RATIO must be >= 1"))
	}
	if cfg.MatchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_CONCURRENCY must be > 0"))
	}
	if cfg.LedgerMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("LEDGER_MAX_ATTEMPTS must be > 0"))
	}
	if cfg.GeocodeLRUSize < 0 {
		errs = append(errs, fmt.Errorf("GEOCODE_LRU_SIZE must be >= 0"))
	}

	return cfg, errors.Join(errs...)
}

// ConsumerConfig drives the notification delivery worker.
type ConsumerConfig struct {
	KafkaBrokers        []string
	NotifyTopic         string
	KafkaGroup          string
	FirebaseCredentials string
	MetricsAddr         string
	DeliveryAttempts    int
	DeliveryBackoff     time.Duration
	LogLevel            string
	LogFormat           string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	_ = godotenv.Load()

	cfg := ConsumerConfig{
		KafkaBrokers:     []string{"localhost:9092"},
		NotifyTopic:      "ride-notifications",
		KafkaGroup:       "party-rides-notifier",
		MetricsAddr:      ":2112",
		DeliveryAttempts: 3,
		DeliveryBackoff:  200 * time.Millisecond,
		LogLevel:         "info",
		LogFormat:        "json",
	}
	var errs []error

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.NotifyTopic, "NOTIFY_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	cfg.FirebaseCredentials = strings.TrimSpace(os.Getenv("FIREBASE_CREDENTIALS"))
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	setIntFromEnv(&cfg.DeliveryAttempts, "DELIVERY_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.DeliveryBackoff, "DELIVERY_BACKOFF", &errs)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	if len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, fmt.Errorf("KAFKA_BROKERS must list at least one broker"))
	}
	if cfg.DeliveryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("DELIVERY_ATTEMPTS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// parseVenues reads "party_id=address;party_id=address". Addresses may
// contain commas, hence the semicolon separator.
func parseVenues(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, addr, ok := strings.Cut(pair, "=")
		id, addr = strings.TrimSpace(id), strings.TrimSpace(addr)
		if !ok || id == "" || addr == "" {
			return out, fmt.Errorf("invalid PARTY_VENUES entry %q, want party_id=address", pair)
		}
		out[id] = addr
	}
	return out, nil
}
