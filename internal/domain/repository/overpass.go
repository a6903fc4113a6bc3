package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"

	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

// OverpassRepository finds accommodation features in OpenStreetMap around a point.
type OverpassRepository struct {
	client  *overpass.Client
	guard   *upstream.Client
	timeout time.Duration
}

func NewOverpassRepository(endpoint string, timeout time.Duration, guard *upstream.Client) *OverpassRepository {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{
		client:  &client,
		guard:   guard,
		timeout: timeout,
	}
}

func (r *OverpassRepository) SearchPlaces(ctx context.Context, center model.Coordinates, category string, radiusKm float64) ([]model.Candidate, error) {
	query := buildTourismQuery(center, category, radiusKm)

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute tourism query: %w", err)
	}
	return convertToCandidates(result), nil
}

func buildTourismQuery(center model.Coordinates, category string, radiusKm float64) string {
	around := fmt.Sprintf("around:%.0f,%.6f,%.6f", radiusKm*1000, center.Lat, center.Lng)
	filter := tourismFilter(category)
	return fmt.Sprintf(`
		[out:json][timeout:25];
		(
			node["tourism"~"%s"](%s);
			way["tourism"~"%s"](%s);
		);
		out body;
		>;
		out skel qt;
	`, filter, around, filter, around)
}

// executeQuery runs the blocking client call under the breaker and stops waiting when ctx ends.
func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var result overpass.Result
	op := func(ctx context.Context) error {
		type reply struct {
			res overpass.Result
			err error
		}
		done := make(chan reply, 1)
		go func() {
			res, err := r.client.Query(query)
			done <- reply{res, err}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case rep := <-done:
			if rep.err != nil {
				return fmt.Errorf("overpass query failed: %w", rep.err)
			}
			result = rep.res
			return nil
		}
	}

	var err error
	if r.guard != nil {
		err = r.guard.Guard(ctx, op)
	} else {
		err = op(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func convertToCandidates(result *overpass.Result) []model.Candidate {
	var out []model.Candidate

	for _, node := range result.Nodes {
		name := node.Tags["name"]
		if name == "" {
			continue
		}
		out = append(out, candidateFromTags(name, node.Lat, node.Lon, node.Tags))
	}

	for _, way := range result.Ways {
		name := way.Tags["name"]
		if name == "" {
			continue
		}
		var lat, lon float64
		count := 0
		for _, node := range way.Nodes {
			if node == nil {
				continue
			}
			lat += node.Lat
			lon += node.Lon
			count++
		}
		if count == 0 {
			if way.Bounds == nil {
				continue
			}
			lat = (way.Bounds.Min.Lat + way.Bounds.Max.Lat) / 2
			lon = (way.Bounds.Min.Lon + way.Bounds.Max.Lon) / 2
		} else {
			lat /= float64(count)
			lon /= float64(count)
		}
		out = append(out, candidateFromTags(name, lat, lon, way.Tags))
	}

	return out
}

func candidateFromTags(name string, lat, lon float64, tags map[string]string) model.Candidate {
	website := tags["website"]
	if website == "" {
		website = tags["contact:website"]
	}
	return model.Candidate{
		Name:    name,
		Lat:     lat,
		Lng:     lon,
		Address: addressFromTags(tags),
		Website: website,
		Source:  "openstreetmap",
	}
}

func addressFromTags(tags map[string]string) string {
	street := strings.TrimSpace(tags["addr:street"] + " " + tags["addr:housenumber"])
	parts := make([]string, 0, 2)
	if street != "" {
		parts = append(parts, street)
	}
	if city := tags["addr:city"]; city != "" {
		parts = append(parts, city)
	}
	return strings.Join(parts, ", ")
}

func tourismFilter(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "hotel":
		return "hotel|motel"
	case "b&b", "bnb", "guest_house":
		return "guest_house"
	case "hostel":
		return "hostel"
	case "apartment":
		return "apartment"
	case "agriturismo":
		return "guest_house|chalet"
	default:
		return "hotel|guest_house|hostel|motel|apartment"
	}
}
