package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demand_service/internal/api"
	"demand_service/internal/cache"
	"demand_service/internal/config"
	"demand_service/internal/core"
	"demand_service/internal/domain/model"
	"demand_service/internal/domain/repository"
	"demand_service/internal/infrastructure/amadeus"
	"demand_service/internal/infrastructure/breaker"
	"demand_service/internal/infrastructure/events"
	"demand_service/internal/infrastructure/geocoder"
	"demand_service/internal/infrastructure/holidays"
	"demand_service/internal/infrastructure/places"
	"demand_service/internal/infrastructure/recon"
	"demand_service/internal/infrastructure/trends"
	"demand_service/internal/infrastructure/upstream"
	"demand_service/internal/infrastructure/weather"
	"demand_service/internal/logging"
	"demand_service/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("init logger", "error", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.Logger); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	newUpstream := func(name string) *upstream.Client {
		brk := breaker.New(name, breaker.Config{
			MaxFailures:  cfg.BreakerMaxFailures,
			ResetTimeout: cfg.BreakerReset,
		}, metrics, logger)
		return upstream.New(name, httpClient, brk, metrics)
	}

	deps := core.Dependencies{Observer: metrics}

	nominatim := newUpstream("nominatim").WithUserAgent(cfg.NominatimUserAgent)
	deps.Geocoder = geocoder.NewNominatim(cfg.NominatimURL, nominatim,
		cache.New[model.Coordinates]("geocode", 24*time.Hour, metrics))

	var sources []core.PlaceSource
	if cfg.SerpAPIKey != "" {
		sources = append(sources, places.NewSerpMaps(cfg.SerpAPIURL, cfg.SerpAPIKey, newUpstream("serpapi-maps")))
		deps.Trends = trends.NewSerpTrends(cfg.SerpAPIURL, cfg.SerpAPIKey, newUpstream("serpapi-trends"),
			cache.New[[]model.TrendPoint]("trends", 6*time.Hour, metrics))
	}
	if cfg.OverpassURL != "" {
		sources = append(sources, repository.NewOverpassRepository(cfg.OverpassURL, cfg.UpstreamTimeout, newUpstream("overpass")))
	}
	if len(sources) > 0 {
		deps.Places = places.NewChain(logger, sources...)
	}

	deps.Weather = weather.NewOpenMeteo(cfg.OpenMeteoURL, newUpstream("open-meteo"),
		cache.New[[]model.WeatherDay]("weather", 30*time.Minute, metrics))
	deps.Holidays = holidays.NewNager(cfg.NagerURL, newUpstream("nager"),
		cache.New[[]model.Holiday]("holidays", 24*time.Hour, metrics))

	if cfg.AmadeusEnabled() {
		client := newUpstream("amadeus")
		tokens := amadeus.NewTokenCache(cfg.AmadeusURL, cfg.AmadeusClientID, cfg.AmadeusClientSecret, client)
		deps.Offers = amadeus.NewClient(cfg.AmadeusURL, tokens, client, logger)
	}

	// Recon targets are arbitrary competitor sites: no shared breaker, public addresses only.
	pageClient := upstream.New("recon", recon.NewPublicClient(cfg.UpstreamTimeout), nil, metrics)
	pages := recon.NewHTTPFetcher(pageClient.WithUserAgent(cfg.NominatimUserAgent))
	deps.Pages = pages
	if cfg.ReconHeadless {
		chrome := upstream.New("recon-chrome", nil, nil, metrics)
		deps.Pages = recon.NewChromeFetcher(3*cfg.UpstreamTimeout, chrome, pages, logger)
	}

	if cfg.JournalDSN != "" {
		journal, err := repository.OpenEstimateJournal(ctx, cfg.JournalDriver, cfg.JournalDSN)
		if err != nil {
			return err
		}
		defer journal.Close()
		if err := journal.InitSchema(ctx); err != nil {
			return err
		}
		deps.Journal = journal
		logger.Info("estimate journal enabled", "driver", cfg.JournalDriver)
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer publisher.Close()
		deps.Events = publisher
		logger.Info("estimate events enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	service := core.NewDemandService(deps, core.Options{
		DefaultCountry: cfg.DefaultCountry,
		FallbackCenter: model.Coordinates{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng},
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(api.NewHandler(service, logger), metrics, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr,
			"serpapi", cfg.SerpAPIKey != "", "overpass", cfg.OverpassURL != "", "amadeus", cfg.AmadeusEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
