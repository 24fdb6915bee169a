package v1

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// getClientIP extracts the originating client IP, preferring public
// addresses from proxy headers over the socket peer address.
func getClientIP(c *fiber.Ctx) string {
	if ip := firstPublicIP(strings.Split(c.Get("X-Forwarded-For"), ",")); ip != "" {
		return ip
	}

	for _, header := range []string{"X-Real-IP", "CF-Connecting-IP", "True-Client-IP"} {
		if value := c.Get(header); value != "" {
			if ip := firstPublicIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if host, _, err := net.SplitHostPort(c.Context().RemoteAddr().String()); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil && !isPrivateAddr(addr) {
			return host
		}
	}

	if ip := c.IP(); ip != "" && ip != "0.0.0.0" && ip != "::" {
		return ip
	}
	return "127.0.0.1"
}

func firstPublicIP(values []string) string {
	var ipv6Fallback string
	for _, raw := range values {
		clean, addr, ok := normalizeIP(raw)
		if !ok || isPrivateAddr(addr) {
			continue
		}
		if addr.Is4() {
			return clean
		}
		if ipv6Fallback == "" {
			ipv6Fallback = clean
		}
	}
	return ipv6Fallback
}

func isPrivateAddr(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

func normalizeIP(raw string) (string, netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return "", netip.Addr{}, false
	}
	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		addr := addrPort.Addr().Unmap()
		return addr.String(), addr, true
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		addr = addr.Unmap()
		return addr.String(), addr, true
	}
	return "", netip.Addr{}, false
}
