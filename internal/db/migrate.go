package db

import (
	"fmt"
	"log/slog"

	"github.com/bikestra/paper-tracker/internal/domain"
	"gorm.io/gorm"
)

// Models lists every table in creation order.
var Models = []any{
	&domain.User{},
	&domain.Category{},
	&domain.Paper{},
	&domain.Author{},
	&domain.PaperAuthor{},
	&domain.EffortLog{},
	&domain.DiscoverySource{},
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("database schema migrated")
	return nil
}
