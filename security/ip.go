package security

import (
	"net"
	"net/http"
	"strings"
)

// UnknownAddress is the network address used when none can be determined.
// All such clients share one rate-limit window.
const UnknownAddress = "unknown"

// GetClientIP extracts the client network address from the request.
// Forwarding headers are only consulted when trustProxy is set.
//
// SECURITY CONSIDERATIONS:
//   - Only enable trustProxy behind a reverse proxy that overwrites X-Forwarded-For
//   - X-Forwarded-For format: "client, proxy1, proxy2, ..."
//   - trustedProxyCount is how many rightmost entries were appended by proxies we run;
//     zero means the first hop is taken as-is
//   - Returns UnknownAddress if nothing usable is found
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip := extractIPFromXFF(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ip != "" {
			return ip
		}
		if ip := extractIPFromXRealIP(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	if ip := extractIPFromRemoteAddr(r.RemoteAddr); ip != "" {
		return ip
	}
	return UnknownAddress
}

// extractIPFromXFF picks the client hop out of an X-Forwarded-For header.
//
// Example with trustedProxyCount=2:
//
//	Client (1.2.3.4) -> UntrustedProxy -> TrustedProxy2 -> TrustedProxy1 (us)
//	X-Forwarded-For: "1.2.3.4, untrusted-ip, proxy2-ip"
//	Result: ips[3-2-1] = ips[0] = "1.2.3.4"
func extractIPFromXFF(xff string, trustedProxyCount int) string {
	if xff == "" {
		return ""
	}

	ips := strings.Split(xff, ",")
	clientIP := strings.TrimSpace(ips[clientHopIndex(len(ips), trustedProxyCount)])

	if net.ParseIP(clientIP) != nil {
		return clientIP
	}
	return ""
}

// clientHopIndex returns the index of the client entry: the leftmost one when
// trustedProxyCount is zero or the header is too short, otherwise the entry
// just left of the trusted proxies.
func clientHopIndex(numIPs, trustedProxyCount int) int {
	if trustedProxyCount <= 0 {
		return 0
	}
	idx := numIPs - trustedProxyCount - 1
	if idx < 0 {
		return 0
	}
	return idx
}

func extractIPFromXRealIP(xri string) string {
	xri = strings.TrimSpace(xri)
	if net.ParseIP(xri) != nil {
		return xri
	}
	return ""
}

// extractIPFromRemoteAddr returns the host of the direct connection.
func extractIPFromRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
