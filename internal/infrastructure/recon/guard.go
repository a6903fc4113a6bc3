package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"

	"demand_service/internal/core"
)

var ErrForbiddenHost = errors.New("destination is not a public address")

// NewPublicClient returns an HTTP client that only connects to public addresses.
// The check runs on the dialed IP, so redirects and re-resolved names are covered.
func NewPublicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			return checkDialAddress(address)
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func checkDialAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !core.PublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	return nil
}

// checkURL resolves the page host and refuses it unless every address is public.
func checkURL(ctx context.Context, resolver *net.Resolver, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrForbiddenHost, rawURL)
	}
	host := u.Hostname()
	if addr, err := netip.ParseAddr(host); err == nil {
		if !core.PublicAddr(addr) {
			return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
		}
		return nil
	}

	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, addr := range addrs {
		if !core.PublicAddr(addr) {
			return fmt.Errorf("%w: %s resolves to %s", ErrForbiddenHost, host, addr)
		}
	}
	return nil
}
