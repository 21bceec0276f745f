/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/buck0five/music-playlist-generator/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Stations and scoping
		&models.Station{},
		&models.ContentLibrary{},
		&models.StationLibraryLink{},

		// Content pools
		&models.Content{},
		&models.Cart{},
		&models.CartItem{},

		// Clock configuration
		&models.ClockTemplate{},
		&models.ClockSlot{},
		&models.StationSchedule{},

		// Generation inputs and history
		&models.PlaybackLog{},
		&models.StationTagPreference{},
		&models.StationFormatPreference{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
