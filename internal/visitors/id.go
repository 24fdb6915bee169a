// Package visitors resolves visitor identity for incoming beacons.
package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"
)

// Fingerprint carries the raw signals used for the fallback visitor id when
// the client does not supply one.
type Fingerprint struct {
	UserAgent string
	Language  string
	Timezone  string
	Screen    string
	IPAddress string
}

// Resolve returns the visitor id for a beacon. A client-supplied id is used
// verbatim; otherwise a deterministic fallback is derived from the
// fingerprint. The fallback rotates with the tenant-local calendar day, so
// visitors cannot be correlated across days without cookies.
func Resolve(clientID string, fp Fingerprint, loc *time.Location, at time.Time, salt string) string {
	if clientID != "" {
		return clientID
	}
	return FallbackID(fp, loc, at, salt)
}

// FallbackID computes the cookie-less visitor id. Identical inputs on the
// same tenant-local day always yield the same id. The raw IP is never stored,
// only its masked bucket enters the hash.
func FallbackID(fp Fingerprint, loc *time.Location, at time.Time, salt string) string {
	if loc == nil {
		loc = time.UTC
	}
	localDay := at.In(loc).Format("2006-01-02")
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		fp.UserAgent, fp.Language, fp.Timezone, fp.Screen, IPBucket(fp.IPAddress), localDay, salt)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// IPBucket masks an IP to its /24 (IPv4) or /64 (IPv6) prefix. Unparseable
// input is returned as-is so the hash still incorporates it.
func IPBucket(ipAddress string) string {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return ipAddress
	}
	if v4 := ip.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String() + "/24"
	}
	masked := ip.Mask(net.CIDRMask(64, 128))
	return masked.String() + "/64"
}
