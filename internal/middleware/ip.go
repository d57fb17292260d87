package middleware

import (
	"net/http"
	"net/netip"
	"strings"
)

var proxyHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

type clientAddrFunc func(r *http.Request) (netip.Addr, bool)

func clientAddrResolver(trustedProxy bool) clientAddrFunc {
	if trustedProxy {
		return proxyClientAddr
	}
	return directClientAddr
}

// proxyClientAddr prefers the forwarding headers a fronting proxy sets,
// taking the first public address it finds. Private or unparseable header
// values are ignored so a direct client cannot spoof its way past the
// limiter, and the connection address is the fallback.
func proxyClientAddr(r *http.Request) (netip.Addr, bool) {
	for _, header := range proxyHeaders {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" {
			continue
		}

		// X-Forwarded-For carries a comma separated chain; the client is first.
		first, _, _ := strings.Cut(value, ",")

		addr, err := netip.ParseAddr(strings.TrimSpace(first))
		if err != nil || isPrivateAddr(addr) {
			continue
		}
		return addr.Unmap(), true
	}

	return directClientAddr(r)
}

func directClientAddr(r *http.Request) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}

	// RemoteAddr without a port, as some test servers produce
	addr, err := netip.ParseAddr(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isPrivateAddr(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}
