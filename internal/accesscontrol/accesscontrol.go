// Package accesscontrol restricts which client addresses may reach the
// control API.
package accesscontrol

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// List is an allow list of addresses and CIDR ranges. An empty list allows
// every client.
type List struct {
	prefixes []netip.Prefix
}

// Parse builds a List from IP and CIDR entries. Blank entries are skipped.
func Parse(entries []string) (*List, error) {
	l := &List{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR: %s", entry)
			}
			l.prefixes = append(l.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid IP: %s", entry)
		}
		addr = addr.Unmap()
		l.prefixes = append(l.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return l, nil
}

// Len returns the number of entries.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.prefixes)
}

// Allows reports whether addr is on the list.
func (l *List) Allows(addr netip.Addr) bool {
	if l.Len() == 0 {
		return true
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// AllowsRemote checks an http.Request.RemoteAddr style "host:port" or bare
// address. Unparseable input is denied unless the list is empty.
func (l *List) AllowsRemote(remote string) bool {
	if l.Len() == 0 {
		return true
	}
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return l.Allows(addr)
}

// Middleware rejects requests from clients not on the list with 403.
func (l *List) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.AllowsRemote(r.RemoteAddr) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
