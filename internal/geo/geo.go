// Package geo resolves an event's country code. A client hint is normalized
// through the gountries registry; otherwise the source IP is looked up in the
// optional GeoLite2 database. The lookup never fails ingestion.
package geo

import (
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
)

// Resolver maps country hints and IPs to ISO alpha-2 codes.
type Resolver struct {
	db        *geoip2.Reader
	countries *gountries.Query
	logger    *slog.Logger
}

// NewResolver opens the GeoLite2 database when present. A missing or broken
// database only disables IP lookups.
func NewResolver(geoDBPath string, logger *slog.Logger) *Resolver {
	r := &Resolver{
		countries: gountries.New(),
		logger:    logger,
	}

	if geoDBPath == "" {
		logger.Debug("GeoIP database path not configured - IP lookups disabled")
		return r
	}
	if _, err := os.Stat(geoDBPath); err != nil {
		logger.Info("GeoLite2 database not found - IP lookups disabled",
			slog.String("path", geoDBPath))
		return r
	}
	db, err := geoip2.Open(geoDBPath)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", geoDBPath),
			slog.Any("error", err))
		return r
	}
	r.db = db
	logger.Info("GeoLite2 database initialized", slog.String("path", geoDBPath))
	return r
}

// Close releases the GeoLite2 reader.
func (r *Resolver) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// Country resolves the best-known alpha-2 code for an event. The client hint
// wins when it names a real country; the IP lookup is the fallback. Unknown
// stays empty.
func (r *Resolver) Country(hint, ipAddress string) string {
	if code := r.normalizeHint(hint); code != "" {
		return code
	}
	return r.lookupIP(ipAddress)
}

// normalizeHint accepts alpha-2, alpha-3 or a country name and returns the
// canonical alpha-2 code.
func (r *Resolver) normalizeHint(hint string) string {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return ""
	}
	if country, err := r.countries.FindCountryByAlpha(hint); err == nil {
		return country.Alpha2
	}
	if country, err := r.countries.FindCountryByName(hint); err == nil {
		return country.Alpha2
	}
	return ""
}

func (r *Resolver) lookupIP(ipAddress string) string {
	if r.db == nil {
		return ""
	}
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return ""
	}
	record, err := r.db.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}
