package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pagesense/internal/logging"
)

func TestCountryHintNormalization(t *testing.T) {
	r := NewResolver("", logging.NewTestLogger())
	defer r.Close()

	tests := []struct {
		hint string
		want string
	}{
		{"DE", "DE"},
		{"de", "DE"},
		{"DEU", "DE"},
		{"Germany", "DE"},
		{"United States", "US"},
		{"US", "US"},
		{"", ""},
		{"Atlantis", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Country(tt.hint, ""), "hint %q", tt.hint)
	}
}

func TestCountryWithoutGeoDatabase(t *testing.T) {
	// No mmdb on disk: hint resolution still works, IP lookup degrades to
	// empty instead of failing.
	r := NewResolver("/nonexistent/geoip.mmdb", logging.NewTestLogger())
	defer r.Close()

	assert.Equal(t, "", r.Country("", "203.0.113.42"))
	assert.Equal(t, "FR", r.Country("France", "203.0.113.42"))
}
