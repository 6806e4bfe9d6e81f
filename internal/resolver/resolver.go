// Package resolver turns rule patterns into IPv4 addresses for host routes.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"

	"github.com/rennerdo30/gateway-switcher/internal/logging"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 5 * time.Second

// Resolver resolves a host name to IPv4 addresses. Failures yield an empty
// result, never an error.
type Resolver interface {
	ResolveIPv4(ctx context.Context, host string) []netip.Addr
}

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context, host string) []netip.Addr

// ResolveIPv4 calls f.
func (f Func) ResolveIPv4(ctx context.Context, host string) []netip.Addr {
	return f(ctx, host)
}

// CleanHost strips a leading wildcard or dot prefix ("*.example.com" becomes
// "example.com") and converts the name to its ASCII form. IP literals are
// returned unchanged.
func CleanHost(host string) (string, error) {
	host = strings.TrimLeft(strings.TrimSpace(host), "*.")
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return host, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", host, err)
	}
	return ascii, nil
}

// DNS resolves through explicit upstream servers when configured and through
// the system resolver otherwise. Nothing is cached between calls.
type DNS struct {
	upstream []string
	timeout  time.Duration
	system   func(ctx context.Context, network, host string) ([]netip.Addr, error)
	logger   *slog.Logger
}

// New creates a resolver. An empty upstream list selects the system resolver.
func New(upstream []string, timeout time.Duration) *DNS {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	servers := make([]string, 0, len(upstream))
	for _, u := range upstream {
		if u = strings.TrimSpace(u); u == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(u); err != nil {
			u = net.JoinHostPort(strings.Trim(u, "[]"), "53")
		}
		servers = append(servers, u)
	}
	return &DNS{
		upstream: servers,
		timeout:  timeout,
		system:   net.DefaultResolver.LookupNetIP,
		logger:   logging.WithComponent("resolver"),
	}
}

// Upstream returns the normalized upstream servers.
func (r *DNS) Upstream() []string {
	return slices.Clone(r.upstream)
}

// ResolveIPv4 returns the sorted, de-duplicated IPv4 addresses of host. An
// IPv4 literal resolves to itself.
func (r *DNS) ResolveIPv4(ctx context.Context, host string) []netip.Addr {
	name, err := CleanHost(host)
	if err != nil {
		r.logger.Debug("skipping unresolvable pattern", "host", host, "error", err)
		return nil
	}
	if addr, err := netip.ParseAddr(name); err == nil {
		if addr.Is4() || addr.Is4In6() {
			return []netip.Addr{addr.Unmap()}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var addrs []netip.Addr
	if len(r.upstream) > 0 {
		addrs, err = r.queryUpstream(ctx, name)
	} else {
		addrs, err = r.system(ctx, "ip4", name)
	}
	if err != nil {
		r.logger.Debug("lookup failed", "host", name, "error", err)
		return nil
	}
	return normalize(addrs)
}

func (r *DNS) queryUpstream(ctx context.Context, name string) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	client := &dns.Client{Timeout: r.timeout}

	var lastErr error
	for _, upstream := range r.upstream {
		resp, _, err := client.ExchangeContext(ctx, m, upstream)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("DNS error: %s", dns.RcodeToString[resp.Rcode])
			continue
		}

		var addrs []netip.Addr
		for _, ans := range resp.Answer {
			if a, ok := ans.(*dns.A); ok {
				if addr, ok := netip.AddrFromSlice(a.A); ok {
					addrs = append(addrs, addr)
				}
			}
		}
		return addrs, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no response from upstream DNS servers")
	}
	return nil, lastErr
}

func normalize(addrs []netip.Addr) []netip.Addr {
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		a = a.Unmap()
		if a.Is4() {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b netip.Addr) int { return a.Compare(b) })
	return slices.Compact(out)
}
