package amadeus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"demand_service/internal/domain/model"
	"demand_service/internal/infrastructure/upstream"
)

const maxHotelIDs = 20

// attempt is one (radius, check-in shift) variation of the offer lookup.
type attempt struct {
	radiusKm  int
	shiftDays int
}

var retryPlan = []attempt{
	{radiusKm: 5, shiftDays: 0},
	{radiusKm: 15, shiftDays: 0},
	{radiusKm: 15, shiftDays: 7},
	{radiusKm: 30, shiftDays: 14},
}

type hotelListResponse struct {
	Data []struct {
		HotelID string `json:"hotelId"`
		Name    string `json:"name"`
	} `json:"data"`
}

type offersResponse struct {
	Data []struct {
		Hotel struct {
			HotelID string `json:"hotelId"`
			Name    string `json:"name"`
		} `json:"hotel"`
		Available bool `json:"available"`
		Offers    []struct {
			CheckInDate  string `json:"checkInDate"`
			CheckOutDate string `json:"checkOutDate"`
			Price        struct {
				Currency string `json:"currency"`
				Total    string `json:"total"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

// Client looks up live hotel offer prices around a point.
type Client struct {
	baseURL string
	tokens  *TokenCache
	client  *upstream.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, tokens *TokenCache, client *upstream.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  client,
		logger:  logger.With("component", "amadeus"),
	}
}

// NightlyPrices walks the retry plan until an attempt yields samples.
// It returns the samples of the winning attempt and how many attempts were made.
func (c *Client) NightlyPrices(ctx context.Context, center model.Coordinates, checkIn time.Time) ([]model.PriceSample, int, error) {
	var lastErr error
	made := 0
	for _, a := range retryPlan {
		if err := ctx.Err(); err != nil {
			return nil, made, err
		}
		made++
		day := checkIn.AddDate(0, 0, a.shiftDays)

		samples, err := c.lookup(ctx, center, a.radiusKm, day)
		if err != nil {
			c.logger.Warn("offer attempt failed", "attempt", made, "radius_km", a.radiusKm, "check_in", day.Format("2006-01-02"), "error", err)
			lastErr = err
			continue
		}
		if len(samples) > 0 {
			return samples, made, nil
		}
		c.logger.Debug("offer attempt empty", "attempt", made, "radius_km", a.radiusKm)
	}
	return nil, made, lastErr
}

func (c *Client) lookup(ctx context.Context, center model.Coordinates, radiusKm int, checkIn time.Time) ([]model.PriceSample, error) {
	ids, err := c.hotelsByGeocode(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.offers(ctx, ids, checkIn)
}

func (c *Client) hotelsByGeocode(ctx context.Context, center model.Coordinates, radiusKm int) ([]string, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(center.Lat, 'f', 5, 64))
	params.Set("longitude", strconv.FormatFloat(center.Lng, 'f', 5, 64))
	params.Set("radius", strconv.Itoa(radiusKm))
	params.Set("radiusUnit", "KM")

	var resp hotelListResponse
	if err := c.get(ctx, "/v1/reference-data/locations/hotels/by-geocode?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("hotels by geocode: %w", err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, h := range resp.Data {
		if h.HotelID != "" {
			ids = append(ids, h.HotelID)
		}
		if len(ids) == maxHotelIDs {
			break
		}
	}
	return ids, nil
}

func (c *Client) offers(ctx context.Context, ids []string, checkIn time.Time) ([]model.PriceSample, error) {
	checkOut := checkIn.AddDate(0, 0, 1)
	params := url.Values{}
	params.Set("hotelIds", strings.Join(ids, ","))
	params.Set("checkInDate", checkIn.Format("2006-01-02"))
	params.Set("checkOutDate", checkOut.Format("2006-01-02"))
	params.Set("adults", "2")
	params.Set("roomQuantity", "1")
	params.Set("bestRateOnly", "true")

	var resp offersResponse
	if err := c.get(ctx, "/v3/shopping/hotel-offers?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("hotel offers: %w", err)
	}

	var out []model.PriceSample
	for _, d := range resp.Data {
		for _, o := range d.Offers {
			total, err := strconv.ParseFloat(o.Price.Total, 64)
			if err != nil || total <= 0 {
				continue
			}
			nights := nightsBetween(o.CheckInDate, o.CheckOutDate)
			out = append(out, model.PriceSample{
				HotelID:  d.Hotel.HotelID,
				Name:     d.Hotel.Name,
				Nightly:  total / float64(nights),
				Currency: o.Price.Currency,
				CheckIn:  o.CheckInDate,
			})
			break
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	err = c.client.GetJSON(ctx, c.baseURL+path, header, out)
	var se *upstream.StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	return err
}

func nightsBetween(in, out string) int {
	a, err1 := time.Parse("2006-01-02", in)
	b, err2 := time.Parse("2006-01-02", out)
	if err1 != nil || err2 != nil {
		return 1
	}
	n := int(b.Sub(a).Hours() / 24)
	if n < 1 {
		return 1
	}
	return n
}
