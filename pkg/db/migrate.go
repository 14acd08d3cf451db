package db

import (
	"context"
	"fmt"

	"github.com/ovenlight/pizzeria-backend/pkg/db/models"
	"github.com/ovenlight/pizzeria-backend/pkg/logger"
)

// Migrate creates or updates the records table. The schema is a single table
// so GORM's auto-migration covers both sqlite and postgres.
func Migrate(ctx context.Context, client *Client, logg *logger.Logger) error {
	if err := client.DB().WithContext(ctx).AutoMigrate(&models.Record{}); err != nil {
		return fmt.Errorf("migrating records table: %w", err)
	}
	if logg != nil {
		logg.Info(ctx, "database schema up to date")
	}
	return nil
}
