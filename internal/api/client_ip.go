package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/ahrav/go-dossier/infrastructure/ratelimit"
)

// ClientKey identifies the caller for rate limiting. With trustProxy it
// prefers the first X-Forwarded-For entry, then X-Real-IP; otherwise, or
// when neither is present, it uses the connection's remote host.
func ClientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return ratelimit.UnknownClientKey
}
