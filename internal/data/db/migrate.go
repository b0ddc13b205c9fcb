package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Canvas{},
		&domain.Module{},
		&domain.ModuleVersion{},
		&domain.MediaJob{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
