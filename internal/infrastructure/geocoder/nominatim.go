package geocoder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"demand_service/internal/cache"
	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

var ErrNotFound = errors.New("location not found")

// Nominatim asks at most one request per second of the public instance.
const minInterval = time.Second

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type Nominatim struct {
	baseURL string
	client  *upstream.Client
	cache   *cache.Cache[model.Coordinates]
	pacer   *pacer
}

func NewNominatim(baseURL string, client *upstream.Client, c *cache.Cache[model.Coordinates]) *Nominatim {
	return &Nominatim{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		cache:   c,
		pacer:   &pacer{interval: minInterval},
	}
}

func (n *Nominatim) Geocode(ctx context.Context, query string) (model.Coordinates, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.Coordinates{}, ErrNotFound
	}
	key := cache.Key(query)
	if c, ok := n.cache.Get(key); ok {
		return c, nil
	}

	if err := n.pacer.wait(ctx); err != nil {
		return model.Coordinates{}, err
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("q", query)

	var results []searchResult
	if err := n.client.GetJSON(ctx, n.baseURL+"/search?"+params.Encode(), nil, &results); err != nil {
		return model.Coordinates{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(results) == 0 {
		return model.Coordinates{}, fmt.Errorf("geocode %q: %w", query, ErrNotFound)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("geocode %q: bad lat: %w", query, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("geocode %q: bad lon: %w", query, err)
	}
	c := model.Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return model.Coordinates{}, fmt.Errorf("geocode %q: coordinates out of range", query)
	}

	n.cache.Set(key, c)
	return c, nil
}

// pacer spaces calls at least interval apart across goroutines.
type pacer struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elapsed := time.Since(p.lastCall); elapsed < p.interval {
		timer := time.NewTimer(p.interval - elapsed)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.lastCall = time.Now()
	return nil
}
