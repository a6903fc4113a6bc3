package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config lists the tunable parameters of the demand service.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFile         string
	UpstreamTimeout time.Duration

	SerpAPIKey string
	SerpAPIURL string

	OverpassURL string

	NominatimURL       string
	NominatimUserAgent string

	OpenMeteoURL string
	NagerURL     string

	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusURL          string

	ReconHeadless bool

	JournalDriver string
	JournalDSN    string

	KafkaBrokers []string
	KafkaTopic   string

	DefaultCountry string
	DefaultLat     float64
	DefaultLng     float64

	BreakerMaxFailures int
	BreakerReset       time.Duration
}

const (
	defaultHTTPAddr           = ":8080"
	defaultLogLevel           = "info"
	defaultUpstreamTimeout    = 8 * time.Second
	defaultSerpAPIURL         = "https://serpapi.com/search.json"
	defaultNominatimURL       = "https://nominatim.openstreetmap.org"
	defaultNominatimUserAgent = "demand-service/1.0"
	defaultOpenMeteoURL       = "https://api.open-meteo.com"
	defaultNagerURL           = "https://date.nager.at"
	defaultAmadeusURL         = "https://test.api.amadeus.com"
	defaultJournalDriver      = "postgres"
	defaultKafkaTopic         = "demand.estimates"
	defaultCountry            = "IT"
	defaultLat                = 41.9028
	defaultLng                = 12.4964
	defaultBreakerMaxFailures = 5
	defaultBreakerReset       = 30 * time.Second
)

// Load derives configuration values from environment variables, falling back to defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:           defaultHTTPAddr,
		LogLevel:           defaultLogLevel,
		UpstreamTimeout:    defaultUpstreamTimeout,
		SerpAPIURL:         defaultSerpAPIURL,
		NominatimURL:       defaultNominatimURL,
		NominatimUserAgent: defaultNominatimUserAgent,
		OpenMeteoURL:       defaultOpenMeteoURL,
		NagerURL:           defaultNagerURL,
		AmadeusURL:         defaultAmadeusURL,
		JournalDriver:      defaultJournalDriver,
		KafkaTopic:         defaultKafkaTopic,
		DefaultCountry:     defaultCountry,
		DefaultLat:         defaultLat,
		DefaultLng:         defaultLng,
		BreakerMaxFailures: defaultBreakerMaxFailures,
		BreakerReset:       defaultBreakerReset,
	}

	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFile, "LOG_FILE")
	setString(&cfg.SerpAPIKey, "SERPAPI_KEY")
	setString(&cfg.SerpAPIURL, "SERPAPI_URL")
	setString(&cfg.OverpassURL, "OVERPASS_URL")
	setString(&cfg.NominatimURL, "NOMINATIM_URL")
	setString(&cfg.NominatimUserAgent, "NOMINATIM_USER_AGENT")
	setString(&cfg.OpenMeteoURL, "OPEN_METEO_URL")
	setString(&cfg.NagerURL, "NAGER_URL")
	setString(&cfg.AmadeusClientID, "AMADEUS_CLIENT_ID")
	setString(&cfg.AmadeusClientSecret, "AMADEUS_CLIENT_SECRET")
	setString(&cfg.AmadeusURL, "AMADEUS_URL")
	setString(&cfg.JournalDriver, "JOURNAL_DRIVER")
	setString(&cfg.JournalDSN, "JOURNAL_DSN")
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setString(&cfg.DefaultCountry, "DEFAULT_COUNTRY")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		cfg.UpstreamTimeout = d
	}

	if v := os.Getenv("BREAKER_RESET"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BREAKER_RESET: %w", err)
		}
		cfg.BreakerReset = d
	}

	if v := os.Getenv("BREAKER_MAX_FAILURES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BREAKER_MAX_FAILURES: %w", err)
		}
		cfg.BreakerMaxFailures = n
	}

	if v := os.Getenv("RECON_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RECON_HEADLESS: %w", err)
		}
		cfg.ReconHeadless = b
	}

	var err error
	if cfg.DefaultLat, err = floatEnv("DEFAULT_LAT", cfg.DefaultLat); err != nil {
		return Config{}, err
	}
	if cfg.DefaultLng, err = floatEnv("DEFAULT_LNG", cfg.DefaultLng); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0")
	}
	if c.BreakerMaxFailures < 1 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must be >= 1")
	}
	if c.DefaultLat < -90 || c.DefaultLat > 90 || c.DefaultLng < -180 || c.DefaultLng > 180 {
		return fmt.Errorf("DEFAULT_LAT/DEFAULT_LNG out of range")
	}
	if len(c.DefaultCountry) != 2 {
		return fmt.Errorf("DEFAULT_COUNTRY must be an ISO 3166-1 alpha-2 code")
	}
	switch c.JournalDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported JOURNAL_DRIVER %q", c.JournalDriver)
	}
	return nil
}

// AmadeusEnabled reports whether both OAuth credentials are present.
func (c Config) AmadeusEnabled() bool {
	return c.AmadeusClientID != "" && c.AmadeusClientSecret != ""
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
