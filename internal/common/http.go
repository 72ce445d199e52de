package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the host part of the request's remote address. Forwarding headers
// are only honoured when a proxy-aware middleware has already rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
