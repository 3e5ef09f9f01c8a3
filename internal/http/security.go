package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// proxyList holds the networks trusted to set forwarding headers.
type proxyList struct {
	networks []*net.IPNet
}

// newProxyList builds the trusted set from the private-network defaults
// plus any extra CIDRs from configuration. Invalid extras are skipped.
func newProxyList(extra []string) *proxyList {
	networks := []*net.IPNet{
		parsecidr("127.0.0.0/8"),    // localhost
		parsecidr("10.0.0.0/8"),     // private networks
		parsecidr("172.16.0.0/12"),  // private networks
		parsecidr("192.168.0.0/16"), // private networks
	}
	for _, cidr := range extra {
		if _, network, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			networks = append(networks, network)
		}
	}
	return &proxyList{networks: networks}
}

// parsecidr is a helper to parse CIDR during initialization.
func parsecidr(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

func (p *proxyList) isTrusted(ip net.IP) bool {
	for _, network := range p.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP extracts the real client IP, honoring forwarded headers
// only when the direct peer is a trusted proxy.
func (p *proxyList) extractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil {
		return directIP
	}

	if p.isTrusted(parsedDirectIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			if len(ips) > 0 {
				clientIP := strings.TrimSpace(ips[0])
				if parsedIP := net.ParseIP(clientIP); parsedIP != nil {
					return clientIP
				}
			}
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if parsedIP := net.ParseIP(xri); parsedIP != nil {
				return xri
			}
		}
	}

	return directIP
}
