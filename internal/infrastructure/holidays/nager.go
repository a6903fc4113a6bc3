package holidays

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"demand_service/internal/cache"
	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

type publicHoliday struct {
	Date        string `json:"date"`
	LocalName   string `json:"localName"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
}

// Nager reads public holidays from date.nager.at.
type Nager struct {
	baseURL string
	client  *upstream.Client
	cache   *cache.Cache[[]model.Holiday]
}

func NewNager(baseURL string, client *upstream.Client, c *cache.Cache[[]model.Holiday]) *Nager {
	return &Nager{baseURL: strings.TrimRight(baseURL, "/"), client: client, cache: c}
}

func (n *Nager) PublicHolidays(ctx context.Context, year int, country string) ([]model.Holiday, error) {
	country = strings.ToUpper(country)
	key := cache.Key(strconv.Itoa(year), country)
	if list, ok := n.cache.Get(key); ok {
		return list, nil
	}

	var resp []publicHoliday
	endpoint := fmt.Sprintf("%s/api/v3/PublicHolidays/%d/%s", n.baseURL, year, country)
	if err := n.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("nager holidays %s/%d: %w", country, year, err)
	}

	out := make([]model.Holiday, 0, len(resp))
	for _, h := range resp {
		out = append(out, model.Holiday{
			Date:      h.Date,
			LocalName: h.LocalName,
			Name:      h.Name,
			Country:   h.CountryCode,
		})
	}

	n.cache.Set(key, out)
	return out, nil
}
