package weather

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"demand_service/internal/cache"
	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

const forecastDays = 7

type forecastResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

type OpenMeteo struct {
	baseURL string
	client  *upstream.Client
	cache   *cache.Cache[[]model.WeatherDay]
}

func NewOpenMeteo(baseURL string, client *upstream.Client, c *cache.Cache[[]model.WeatherDay]) *OpenMeteo {
	return &OpenMeteo{baseURL: strings.TrimRight(baseURL, "/"), client: client, cache: c}
}

func (o *OpenMeteo) DailyForecast(ctx context.Context, at model.Coordinates) ([]model.WeatherDay, error) {
	lat := fmt.Sprintf("%.3f", at.Lat)
	lng := fmt.Sprintf("%.3f", at.Lng)
	key := cache.Key(lat, lng)
	if days, ok := o.cache.Get(key); ok {
		return days, nil
	}

	params := url.Values{}
	params.Set("latitude", lat)
	params.Set("longitude", lng)
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	params.Set("forecast_days", fmt.Sprint(forecastDays))
	params.Set("timezone", "auto")

	var resp forecastResponse
	if err := o.client.GetJSON(ctx, o.baseURL+"/v1/forecast?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("open-meteo forecast: %w", err)
	}

	d := resp.Daily
	n := len(d.Time)
	if len(d.TemperatureMax) < n || len(d.TemperatureMin) < n || len(d.PrecipitationSum) < n {
		return nil, fmt.Errorf("open-meteo forecast: daily series have mismatched lengths")
	}
	days := make([]model.WeatherDay, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, model.WeatherDay{
			Date:            d.Time[i],
			TempMax:         d.TemperatureMax[i],
			TempMin:         d.TemperatureMin[i],
			PrecipitationMM: d.PrecipitationSum[i],
		})
	}

	o.cache.Set(key, days)
	return days, nil
}
