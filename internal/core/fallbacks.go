package core

import (
	"fmt"
	"time"

	"demand_service/internal/domain/model"
)

var fixedHolidays = []struct {
	month     time.Month
	day       int
	localName string
	name      string
}{
	{time.January, 1, "Capodanno", "New Year's Day"},
	{time.January, 6, "Epifania", "Epiphany"},
	{time.April, 25, "Festa della Liberazione", "Liberation Day"},
	{time.May, 1, "Festa del Lavoro", "International Workers' Day"},
	{time.June, 2, "Festa della Repubblica", "Republic Day"},
	{time.August, 15, "Ferragosto", "Assumption Day"},
	{time.November, 1, "Ognissanti", "All Saints' Day"},
	{time.December, 8, "Immacolata Concezione", "Immaculate Conception"},
	{time.December, 25, "Natale", "Christmas Day"},
	{time.December, 26, "Santo Stefano", "St. Stephen's Day"},
}

func demoHolidays(country string, year int) []model.Holiday {
	out := make([]model.Holiday, 0, len(fixedHolidays))
	for _, h := range fixedHolidays {
		out = append(out, model.Holiday{
			Date:      fmt.Sprintf("%04d-%02d-%02d", year, int(h.month), h.day),
			LocalName: h.localName,
			Name:      h.name,
			Country:   country,
		})
	}
	return out
}

func demoWeather(from time.Time) []model.WeatherDay {
	days := make([]model.WeatherDay, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, model.WeatherDay{
			Date:            from.AddDate(0, 0, i).Format("2006-01-02"),
			TempMax:         22 + float64(i%3),
			TempMin:         14 + float64(i%2),
			PrecipitationMM: 0,
		})
	}
	return days
}

// demoTrends projects the reference seasonality onto the twelve months ending at now.
func demoTrends(now time.Time) []model.TrendPoint {
	base := NormalizeTo100(Seasonality())
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)

	points := make([]model.TrendPoint, 0, 12)
	for i := 0; i < 12; i++ {
		t := start.AddDate(0, i, 0)
		points = append(points, model.TrendPoint{Time: t, Value: base[t.Month()-1]})
	}
	return points
}
