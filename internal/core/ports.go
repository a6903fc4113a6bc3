package core

import (
	"context"
	"time"

	"demand_service/internal/domain/model"
)

// Geocoder resolves free text to a point.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (model.Coordinates, error)
}

// PlaceSource searches comparable properties around a center.
type PlaceSource interface {
	SearchPlaces(ctx context.Context, center model.Coordinates, category string, radiusKm float64) ([]model.Candidate, error)
}

type TrendSource interface {
	InterestOverTime(ctx context.Context, query string, geo string) ([]model.TrendPoint, error)
}

type WeatherSource interface {
	DailyForecast(ctx context.Context, at model.Coordinates) ([]model.WeatherDay, error)
}

type HolidaySource interface {
	PublicHolidays(ctx context.Context, year int, country string) ([]model.Holiday, error)
}

// OfferSource returns nightly price samples near a point and the number of lookups it made.
type OfferSource interface {
	NightlyPrices(ctx context.Context, center model.Coordinates, checkIn time.Time) ([]model.PriceSample, int, error)
}

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type EstimateJournal interface {
	Record(ctx context.Context, rec model.EstimateRecord) error
	Recent(ctx context.Context, limit int) ([]model.EstimateRecord, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// DegradationObserver is told every time a component falls back to demo data.
type DegradationObserver interface {
	Degraded(component string)
}
