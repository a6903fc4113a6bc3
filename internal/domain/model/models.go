package model

import "time"

// SeasonalityCurve holds one relative demand value per calendar month, January first.
type SeasonalityCurve [12]float64

// NormalizedCurve is a SeasonalityCurve rescaled so that its maximum is 100.
type NormalizedCurve [12]float64

// ADRMonthlySeries is the estimated average nightly rate for each calendar month.
type ADRMonthlySeries [12]int

type LocationContext string

const (
	ContextUrban    LocationContext = "urban"
	ContextSea      LocationContext = "sea"
	ContextMountain LocationContext = "mountain"
	ContextGeneric  LocationContext = "generic"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies inside the WGS84 range.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

type PriceBand struct {
	Low  int    `json:"low"`
	Mid  int    `json:"mid"`
	High int    `json:"high"`
	Note string `json:"note"`
}

// Candidate is a comparable property as returned by a place source, before distance filtering.
type Candidate struct {
	Name    string
	Lat     float64
	Lng     float64
	Address string
	Rating  *float64
	Reviews *int
	Website string
	Source  string
}

type Competitor struct {
	Name       string     `json:"name"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Address    string     `json:"address,omitempty"`
	Rating     *float64   `json:"rating,omitempty"`
	Reviews    *int       `json:"reviews,omitempty"`
	Website    string     `json:"website,omitempty"`
	Source     string     `json:"source"`
	DistanceKm float64    `json:"distance_km"`
	PricesDemo *PriceBand `json:"prices_demo,omitempty"`
}

type PriceSample struct {
	HotelID  string  `json:"hotel_id"`
	Name     string  `json:"name"`
	Nightly  float64 `json:"nightly"`
	Currency string  `json:"currency"`
	CheckIn  string  `json:"check_in"`
}

type TrendPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type Holiday struct {
	Date      string `json:"date"`
	LocalName string `json:"local_name"`
	Name      string `json:"name"`
	Country   string `json:"country"`
}

type WeatherDay struct {
	Date            string  `json:"date"`
	TempMax         float64 `json:"temp_max"`
	TempMin         float64 `json:"temp_min"`
	PrecipitationMM float64 `json:"precipitation_mm"`
}

type BookingEngineHit struct {
	Engine   string `json:"engine"`
	Evidence string `json:"evidence"`
}

// EstimateRecord is one journal row; Payload holds the JSON-encoded report.
type EstimateRecord struct {
	ID         string    `db:"id" json:"id"`
	Kind       string    `db:"kind" json:"kind"`
	Location   string    `db:"location" json:"location"`
	Lat        float64   `db:"lat" json:"lat"`
	Lng        float64   `db:"lng" json:"lng"`
	Mode       Mode      `db:"mode" json:"mode"`
	Payload    string    `db:"payload" json:"payload"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}
