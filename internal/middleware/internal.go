package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// InternalOnly restricts callback routes to the given networks. The peer
// address is taken from the connection, never from forwarding headers. An
// empty list admits everyone and leaves isolation to the network.
func InternalOnly(cidrs []string) (func(http.Handler) http.Handler, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "/") {
			if ip := net.ParseIP(c); ip != nil && ip.To4() != nil {
				c += "/32"
			} else {
				c += "/128"
			}
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("internal allowlist: %w", err)
		}
		nets = append(nets, n)
	}

	return func(next http.Handler) http.Handler {
		if len(nets) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !peerAllowed(r.RemoteAddr, nets) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"ok":      false,
					"error":   "forbidden",
					"message": "internal endpoint",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func peerAllowed(remoteAddr string, nets []*net.IPNet) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
