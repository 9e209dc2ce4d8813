// Package security keeps outbound push delivery away from internal networks.
//
// Push subscription endpoints are supplied by browsers, so the server must
// treat them as untrusted URLs. The guard works at two points: endpoints
// are checked when a subscription is saved, and every connection the push
// client opens is re-checked against the resolved addresses, which also
// covers DNS that changes after the subscription was accepted.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// dnsTimeout is the maximum time allowed for DNS resolution.
const dnsTimeout = 500 * time.Millisecond

var (
	// ErrBlocked is returned when a destination resolves into a blocked range.
	ErrBlocked = errors.New("ssrf: destination address is blocked")

	// ErrDNS is returned when a destination cannot be resolved in time.
	ErrDNS = errors.New("ssrf: DNS resolution failed")

	// ErrInsecureEndpoint is returned for endpoints not served over https.
	ErrInsecureEndpoint = errors.New("ssrf: endpoint must use https")
)

var blockedCIDRs = []string{
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Private Class A
	"172.16.0.0/12",  // Private Class B
	"192.168.0.0/16", // Private Class C
	"169.254.0.0/16", // Link-local (cloud metadata)
	"0.0.0.0/8",      // Current network
	"224.0.0.0/4",    // Multicast
	"240.0.0.0/4",    // Reserved
	"100.64.0.0/10",  // Shared Address Space (CGN)
	"198.18.0.0/15",  // Benchmark testing
	"fc00::/7",       // IPv6 private
	"fe80::/10",      // IPv6 link-local
	"::1/128",        // IPv6 localhost
}

var blockedNets = func() []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(blockedCIDRs))
	for _, cidr := range blockedCIDRs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("security: bad CIDR %q: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}()

// IsBlockedIP reports whether ip falls inside any blocked range.
func IsBlockedIP(ip net.IP) bool {
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard dials only addresses outside the blocked ranges.
type Guard struct {
	// Resolver is used for DNS lookups. If nil, net.DefaultResolver is used.
	Resolver Resolver
	dialer   net.Dialer
}

// DialContext resolves addr, rejects it if any resolved address is blocked,
// and dials the first address. Checking every address stops a hostname that
// mixes a public and a private record from slipping through.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ssrf: invalid address %q: %w", addr, err)
	}

	ips, err := g.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	return g.dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

func (g *Guard) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, ip)
		}
		return []net.IP{ip}, nil
	}

	var r Resolver = net.DefaultResolver
	if g.Resolver != nil {
		r = g.Resolver
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := r.LookupIPAddr(dnsCtx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNS, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrDNS, host)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if IsBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, a.IP, host)
		}
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// NewGuardedHTTPClient returns an http.Client whose connections go through a
// Guard. Redirects are not followed; push services answer directly.
func NewGuardedHTTPClient(timeout time.Duration, resolver Resolver) *http.Client {
	g := &Guard{Resolver: resolver}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = g.DialContext

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ValidateEndpoint checks a push endpoint before it is stored: it must be an
// absolute https URL whose host is not a blocked IP literal. Hostnames are
// resolved at delivery time instead, since subscribe requests should not
// wait on DNS.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("ssrf: invalid endpoint: %w", err)
	}
	if u.Scheme != "https" {
		return ErrInsecureEndpoint
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: endpoint has no host", ErrBlocked)
	}
	if ip := net.ParseIP(host); ip != nil && IsBlockedIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlocked, ip)
	}
	if host == "localhost" {
		return fmt.Errorf("%w: %s", ErrBlocked, host)
	}
	return nil
}
