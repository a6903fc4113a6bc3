package trends

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"demand_service/internal/cache"
	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

var ErrMissingKey = errors.New("serpapi key not configured")

type trendsResponse struct {
	Error            string `json:"error"`
	InterestOverTime struct {
		TimelineData []struct {
			Timestamp string `json:"timestamp"`
			Values    []struct {
				ExtractedValue float64 `json:"extracted_value"`
			} `json:"values"`
		} `json:"timeline_data"`
	} `json:"interest_over_time"`
}

// SerpTrends reads Google Trends interest over the last twelve months.
type SerpTrends struct {
	baseURL string
	apiKey  string
	client  *upstream.Client
	cache   *cache.Cache[[]model.TrendPoint]
}

func NewSerpTrends(baseURL, apiKey string, client *upstream.Client, c *cache.Cache[[]model.TrendPoint]) *SerpTrends {
	return &SerpTrends{baseURL: baseURL, apiKey: apiKey, client: client, cache: c}
}

func (s *SerpTrends) InterestOverTime(ctx context.Context, query, geo string) ([]model.TrendPoint, error) {
	if s.apiKey == "" {
		return nil, ErrMissingKey
	}
	key := cache.Key(query, geo)
	if pts, ok := s.cache.Get(key); ok {
		return pts, nil
	}

	params := url.Values{}
	params.Set("engine", "google_trends")
	params.Set("data_type", "TIMESERIES")
	params.Set("date", "today 12-m")
	params.Set("q", query)
	if geo != "" {
		params.Set("geo", geo)
	}
	params.Set("api_key", s.apiKey)

	var resp trendsResponse
	if err := s.client.GetJSON(ctx, s.baseURL+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("serpapi trends %q: %w", query, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("serpapi trends %q: %s", query, resp.Error)
	}

	points := make([]model.TrendPoint, 0, len(resp.InterestOverTime.TimelineData))
	for _, d := range resp.InterestOverTime.TimelineData {
		sec, err := strconv.ParseInt(d.Timestamp, 10, 64)
		if err != nil || len(d.Values) == 0 {
			continue
		}
		points = append(points, model.TrendPoint{
			Time:  time.Unix(sec, 0).UTC(),
			Value: d.Values[0].ExtractedValue,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	s.cache.Set(key, points)
	return points, nil
}
