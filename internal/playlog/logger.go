/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlog

import (
	"context"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Logger appends committed selections to the playback history.
type Logger struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New constructs a playback logger.
func New(database *gorm.DB, logger zerolog.Logger) *Logger {
	return &Logger{
		db:     database,
		logger: logger.With().Str("component", "playback_logger").Logger(),
	}
}

// Record appends one playback row. The history is append-only; nothing
// in this core ever updates or deletes a row.
func (l *Logger) Record(ctx context.Context, stationID string, content models.Content, playedAt time.Time) error {
	return l.RecordTx(l.db.WithContext(ctx), stationID, content, playedAt)
}

// RecordTx appends one playback row within an existing transaction so a
// generation run can commit its whole hour atomically.
func (l *Logger) RecordTx(tx *gorm.DB, stationID string, content models.Content, playedAt time.Time) error {
	row := models.PlaybackLog{
		ID:        uuid.NewString(),
		StationID: stationID,
		ContentID: content.ID,
		Kind:      content.Kind,
		Artist:    content.Artist,
		PlayedAt:  playedAt,
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}
	l.logger.Debug().Str("station_id", stationID).Str("content_id", content.ID).Time("played_at", playedAt).Msg("playback recorded")
	return nil
}

// RecentPlays loads a station's playback rows since cutoff, most recent
// first, for building eligibility snapshots.
func (l *Logger) RecentPlays(ctx context.Context, stationID string, cutoff time.Time) ([]models.PlaybackLog, error) {
	var plays []models.PlaybackLog
	err := l.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Where("played_at >= ?", cutoff).
		Order("played_at DESC").
		Find(&plays).Error
	return plays, err
}
