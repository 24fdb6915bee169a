package websites

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// SeedDevelopmentWebsite makes sure a localhost website exists so the SDK
// can be pointed at a fresh instance without any admin flow. Never called
// in production.
func SeedDevelopmentWebsite(db *gorm.DB, logger *slog.Logger) error {
	var existing Website
	err := db.First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check for existing websites: %w", err)
	}

	website := Website{
		Name:     "Development",
		Timezone: "UTC",
	}
	if err := website.SetDomains([]string{"localhost", "127.0.0.1"}); err != nil {
		return err
	}
	if err := db.Create(&website).Error; err != nil {
		return fmt.Errorf("failed to seed development website: %w", err)
	}

	cfg := DefaultConfig(website.ID)
	if err := db.Create(&cfg).Error; err != nil {
		return fmt.Errorf("failed to seed development website config: %w", err)
	}

	logger.Info("Seeded development website",
		slog.Uint64("websiteID", uint64(website.ID)))
	return nil
}
