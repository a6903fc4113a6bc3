package places

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

var ErrMissingKey = errors.New("serpapi key not configured")

type mapsResponse struct {
	Error        string        `json:"error"`
	LocalResults []localResult `json:"local_results"`
}

type localResult struct {
	Title          string `json:"title"`
	GPSCoordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"gps_coordinates"`
	Address string   `json:"address"`
	Rating  *float64 `json:"rating"`
	Reviews *int     `json:"reviews"`
	Website string   `json:"website"`
}

// SerpMaps searches Google Maps local results through SerpAPI.
type SerpMaps struct {
	baseURL string
	apiKey  string
	client  *upstream.Client
}

func NewSerpMaps(baseURL, apiKey string, client *upstream.Client) *SerpMaps {
	return &SerpMaps{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (s *SerpMaps) SearchPlaces(ctx context.Context, center model.Coordinates, category string, radiusKm float64) ([]model.Candidate, error) {
	if s.apiKey == "" {
		return nil, ErrMissingKey
	}

	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("type", "search")
	params.Set("q", category)
	params.Set("ll", fmt.Sprintf("@%.6f,%.6f,%dz", center.Lat, center.Lng, zoomFor(radiusKm)))
	params.Set("api_key", s.apiKey)

	var resp mapsResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("serpapi maps search: %w", err)
	}
	if resp.Error != "" && len(resp.LocalResults) == 0 {
		if strings.Contains(strings.ToLower(resp.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, fmt.Errorf("serpapi maps search: %s", resp.Error)
	}

	out := make([]model.Candidate, 0, len(resp.LocalResults))
	for _, r := range resp.LocalResults {
		if r.Title == "" {
			continue
		}
		out = append(out, model.Candidate{
			Name:    r.Title,
			Lat:     r.GPSCoordinates.Latitude,
			Lng:     r.GPSCoordinates.Longitude,
			Address: r.Address,
			Rating:  r.Rating,
			Reviews: r.Reviews,
			Website: r.Website,
			Source:  "google_maps",
		})
	}
	return out, nil
}

// zoomFor picks a map zoom level whose viewport roughly covers the radius.
func zoomFor(radiusKm float64) int {
	if radiusKm <= 0 {
		return 14
	}
	z := int(math.Round(15 - math.Log2(radiusKm)))
	if z < 8 {
		return 8
	}
	if z > 16 {
		return 16
	}
	return z
}
