package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"demand_service/internal/core"
	"demand_service/internal/domain/model"
	"demand_service/internal/export"
)

// Cache hints per endpoint, in seconds.
const (
	ttlADR         = 3600
	ttlCompetitors = 900
	ttlRecon       = 3600
	ttlDemand      = 21600
	ttlPricing     = 900
	ttlWeather     = 1800
	ttlHolidays    = 86400
	ttlOverview    = 900
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service *core.DemandService
	logger  *slog.Logger
}

func NewHandler(service *core.DemandService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger.With("component", "api")}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ADR(w http.ResponseWriter, r *http.Request) {
	q, err := adrQuery(r.URL.Query())
	if err != nil {
		h.fail(w, err)
		return
	}
	report, err := h.service.EstimateADR(r.Context(), q)
	if err != nil {
		h.fail(w, err)
		return
	}
	cacheFor(w, ttlADR)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) ADRExport(w http.ResponseWriter, r *http.Request) {
	q, err := adrQuery(r.URL.Query())
	if err != nil {
		h.fail(w, err)
		return
	}
	report, err := h.service.EstimateADR(r.Context(), q)
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="adr.xlsx"`)
	cacheFor(w, ttlADR)
	if err := export.WriteADRWorkbook(w, report); err != nil {
		h.logger.Error("write adr workbook", "location", q.Location, "error", err)
	}
}

func (h *Handler) Competitors(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	center, err := coordinates(v)
	if err != nil {
		h.fail(w, err)
		return
	}
	radius, err := optionalFloat(v, "radius_km")
	if err != nil {
		h.fail(w, err)
		return
	}
	limit, err := optionalInt(v, "limit")
	if err != nil {
		h.fail(w, err)
		return
	}

	q := core.CompetitorQuery{
		Location:   strings.TrimSpace(v.Get("location")),
		Center:     center,
		Category:   strings.TrimSpace(v.Get("category")),
		WithPrices: flag(v.Get("prices")),
	}
	if radius != nil {
		q.RadiusKm = *radius
	}
	q.Limit = limit

	report, err := h.service.Competitors(r.Context(), q)
	if err != nil {
		h.fail(w, err)
		return
	}
	cacheFor(w, ttlCompetitors)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Recon(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Recon(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		h.fail(w, err)
		return
	}
	cacheFor(w, ttlRecon)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Demand(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	center, err := coordinates(v)
	if err != nil {
		h.fail(w, err)
		return
	}
	report, err := h.service.Demand(r.Context(), core.DemandQuery{
		Location: strings.TrimSpace(v.Get("location")),
		Center:   center,
		Country:  v.Get("country"),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	cacheFor(w, ttlDemand)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	center, err := coordinates(v)
	if err != nil {
		h.fail(w, err)
		return
	}
	q := core.PricingQuery{Location: strings.TrimSpace(v.Get("location")), Center: center}
	if raw := strings.TrimSpace(v.Get("checkin")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.fail(w, badRequest("checkin must be YYYY-MM-DD"))
			return
		}
		q.CheckIn = day
	}

	report, err := h.service.Pricing(r.Context(), q)
	if err != nil {
		h.fail(w, err)
		return
	}
	cacheFor(w, ttlPricing)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	center, err := coordinates(r.URL.Query())
	if err != nil {
		h.fail(w, err)
		return
	}
	if center == nil {
		h.fail(w, badRequest("lat and lng are required"))
		return
	}
	cacheFor(w, ttlWeather)
	writeJSON(w, http.StatusOK, h.service.Weather(r.Context(), *center))
}

func (h *Handler) Holidays(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	year, err := optionalInt(v, "year")
	if err != nil {
		h.fail(w, err)
		return
	}
	cacheFor(w, ttlHolidays)
	writeJSON(w, http.StatusOK, h.service.Holidays(r.Context(), v.Get("country"), year))
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	center, err := coordinates(v)
	if err != nil {
		h.fail(w, err)
		return
	}
	rating, err := optionalFloat(v, "rating")
	if err != nil {
		h.fail(w, err)
		return
	}

	report, err := h.service.Overview(r.Context(), core.OverviewQuery{
		Location: strings.TrimSpace(v.Get("location")),
		Rating:   rating,
		Center:   center,
		Category: strings.TrimSpace(v.Get("category")),
		Country:  v.Get("country"),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	cacheFor(w, ttlOverview)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) RecentEstimates(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalInt(r.URL.Query(), "limit")
	if err != nil {
		h.fail(w, err)
		return
	}
	records, err := h.service.RecentEstimates(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, records)
}

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return badRequestError{msg: fmt.Sprintf(format, args...)}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var bad badRequestError
	switch {
	case errors.As(err, &bad),
		errors.Is(err, core.ErrMissingLocation),
		errors.Is(err, core.ErrInvalidURL),
		errors.Is(err, core.ErrForbiddenHost):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func adrQuery(v url.Values) (core.ADRQuery, error) {
	center, err := coordinates(v)
	if err != nil {
		return core.ADRQuery{}, err
	}
	rating, err := optionalFloat(v, "rating")
	if err != nil {
		return core.ADRQuery{}, err
	}
	return core.ADRQuery{
		Location: strings.TrimSpace(v.Get("location")),
		Rating:   rating,
		Center:   center,
	}, nil
}

// coordinates returns nil when neither lat nor lng is given.
func coordinates(v url.Values) (*model.Coordinates, error) {
	lat, err := optionalFloat(v, "lat")
	if err != nil {
		return nil, err
	}
	lng, err := optionalFloat(v, "lng")
	if err != nil {
		return nil, err
	}
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, badRequest("lat and lng must be given together")
	}
	c := model.Coordinates{Lat: *lat, Lng: *lng}
	if !c.Valid() {
		return nil, badRequest("coordinates out of range")
	}
	return &c, nil
}

func optionalFloat(v url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest("%s must be a number", key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, badRequest("%s must be a finite number", key)
	}
	return &f, nil
}

func optionalInt(v url.Values, key string) (int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return n, nil
}

func flag(raw string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return b
}

func cacheFor(w http.ResponseWriter, seconds int) {
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", seconds))
}

// writeJSON encodes before writing the status so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
