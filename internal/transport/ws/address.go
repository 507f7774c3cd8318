package ws

import (
	"net"
	"net/http"

	"github.com/dmitrymomot/foundation/pkg/clientip"
)

// ClientAddress returns the caller's host, without port.
// With trustProxy set, proxy headers (CF-Connecting-IP, DO-Connecting-IP,
// X-Forwarded-For, X-Real-IP) are consulted before RemoteAddr.
func ClientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		return clientip.GetIP(r)
	}
	return HostOnly(r.RemoteAddr)
}

// HostOnly strips the port from addr. Addresses that do not parse as
// host:port are returned unchanged.
func HostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
