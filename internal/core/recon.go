package core

import (
	"net/netip"
	"strings"

	"demand_service/internal/domain/model"
)

type enginePattern struct {
	engine   string
	patterns []string
}

// bookingEngines is evaluated in order; the first matching pattern per engine is kept as evidence.
var bookingEngines = []enginePattern{
	{"SiteMinder", []string{"siteminder", "thebookingbutton", "direct-book.com"}},
	{"Simple Booking", []string{"simplebooking", "simple-booking"}},
	{"Synxis", []string{"synxis", "travelclick"}},
	{"Cloudbeds", []string{"cloudbeds"}},
	{"Vertical Booking", []string{"verticalbooking", "vertical-booking"}},
	{"Bookassist", []string{"bookassist"}},
	{"Mews", []string{"mews.com", "mews.li"}},
	{"HotelRunner", []string{"hotelrunner"}},
	{"Octorate", []string{"octorate"}},
	{"Passepartout", []string{"passepartout"}},
	{"Booking.com", []string{"booking.com"}},
	{"Expedia", []string{"expedia"}},
}

var directBookingHints = []string{
	"book now", "book direct", "prenota ora", "prenota", "verifica disponibilità", "check availability",
}

// DetectBookingEngines scans page markup for known booking-engine fingerprints.
func DetectBookingEngines(html string) []model.BookingEngineHit {
	lower := strings.ToLower(html)

	hits := make([]model.BookingEngineHit, 0)
	for _, e := range bookingEngines {
		for _, p := range e.patterns {
			if strings.Contains(lower, p) {
				hits = append(hits, model.BookingEngineHit{Engine: e.engine, Evidence: p})
				break
			}
		}
	}
	return hits
}

// HasDirectBooking reports whether the page carries a booking call to action.
func HasDirectBooking(html string) bool {
	lower := strings.ToLower(html)
	for _, h := range directBookingHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

var nonPublicPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// PublicAddr reports whether addr is a globally routable unicast address.
// Loopback, private, link-local, shared and unspecified ranges are refused.
func PublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() || !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	for _, p := range nonPublicPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// publicHost rejects host names and IP literals that obviously point inside
// the network. Names are resolved and re-checked when the page is fetched.
func publicHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".internal") {
		return false
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return PublicAddr(addr)
	}
	return true
}
