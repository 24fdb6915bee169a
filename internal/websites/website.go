package websites

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"gorm.io/gorm"
)

// WebsiteNotFoundError represents an error when a website is not found
type WebsiteNotFoundError struct {
	ID uint
}

func (e *WebsiteNotFoundError) Error() string {
	return fmt.Sprintf("website not found: %d", e.ID)
}

// NewWebsiteNotFoundError creates a new WebsiteNotFoundError
func NewWebsiteNotFoundError(id uint) *WebsiteNotFoundError {
	return &WebsiteNotFoundError{ID: id}
}

// Website represents a tracked website (tenant). Rows are created by an
// external admin flow; this service only reads them.
type Website struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string `json:"name"`
	AllowedDomains string `gorm:"type:text;not null" json:"allowed_domains"` // JSON array of hostnames
	Timezone       string `gorm:"default:'UTC'" json:"timezone"`             // IANA name for tenant-local days
	CreatedAt      time.Time
}

// GetWebsiteByID retrieves a website or a WebsiteNotFoundError.
func GetWebsiteByID(db *gorm.DB, id uint) (*Website, error) {
	var website Website
	if err := db.First(&website, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewWebsiteNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return &website, nil
}

// Domains returns the parsed allow-list, lowercased.
func (w *Website) Domains() []string {
	var domains []string
	if err := json.Unmarshal([]byte(w.AllowedDomains), &domains); err != nil {
		return nil
	}
	for i, d := range domains {
		domains[i] = strings.ToLower(d)
	}
	return domains
}

// DomainAllowed reports whether hostname matches one of the website's allowed
// origin domains. The comparison is case-insensitive with the port stripped.
func (w *Website) DomainAllowed(hostname string) bool {
	host := strings.ToLower(hostname)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, d := range w.Domains() {
		if host == d {
			return true
		}
	}
	return false
}

// Location resolves the tenant timezone, falling back to UTC.
func (w *Website) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocalDay formats t as the tenant-local calendar day.
func (w *Website) LocalDay(t time.Time) string {
	return t.In(w.Location()).Format("2006-01-02")
}

// SetDomains serializes the allow-list; used by the seeder and tests.
func (w *Website) SetDomains(domains []string) error {
	data, err := json.Marshal(domains)
	if err != nil {
		return err
	}
	w.AllowedDomains = string(data)
	return nil
}
