package places

import (
	"context"
	"errors"
	"log/slog"

	"demand_service/internal/core"
	"demand_service/internal/domain/model"
)

// Chain queries sources in order and returns the first non-empty result.
type Chain struct {
	sources []core.PlaceSource
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, sources ...core.PlaceSource) *Chain {
	return &Chain{sources: sources, logger: logger.With("component", "places")}
}

func (c *Chain) SearchPlaces(ctx context.Context, center model.Coordinates, category string, radiusKm float64) ([]model.Candidate, error) {
	var errs []error
	for i, src := range c.sources {
		found, err := src.SearchPlaces(ctx, center, category, radiusKm)
		if err != nil {
			c.logger.Warn("place source failed", "index", i, "error", err)
			errs = append(errs, err)
			continue
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, errors.Join(errs...)
}
