/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrNoTemplate indicates no schedule row matched and the station has
// no default clock template to fall back to.
var ErrNoTemplate = errors.New("no clock template for station")

// Resolver maps (station, instant) to the clock template governing that
// hour.
type Resolver struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewResolver constructs a schedule resolver.
func NewResolver(database *gorm.DB, logger zerolog.Logger) *Resolver {
	return &Resolver{
		db:     database,
		logger: logger.With().Str("component", "schedule_resolver").Logger(),
	}
}

// StationLocation loads the station's IANA timezone, falling back to
// UTC when absent or unparseable.
func (r *Resolver) StationLocation(ctx context.Context, stationID string) *time.Location {
	var station models.Station
	if err := r.db.WithContext(ctx).Select("timezone").Where("id = ?", stationID).First(&station).Error; err != nil || station.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(station.Timezone)
	if err != nil {
		r.logger.Warn().Err(err).Str("station_id", stationID).Str("timezone", station.Timezone).Msg("invalid station timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}

// Resolve picks the clock template for a station at an instant. The
// instant is converted to station-local time before matching. Among
// matching schedule rows the narrowest hour window wins, ties broken by
// start hour then creation time, so resolution never depends on
// storage order. Stations without a matching row fall back to their
// default template.
func (r *Resolver) Resolve(ctx context.Context, stationID string, at time.Time) (*models.ClockTemplate, error) {
	loc := r.StationLocation(ctx, stationID)
	local := at.In(loc)
	day := int(local.Weekday())
	hour := local.Hour()

	var rows []models.StationSchedule
	if err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	sortSchedules(rows)

	for _, row := range rows {
		if scheduleApplies(row, day, hour) {
			return r.loadTemplate(ctx, row.ClockTemplateID)
		}
	}

	var station models.Station
	if err := r.db.WithContext(ctx).Select("default_clock_template_id").Where("id = ?", stationID).First(&station).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoTemplate
		}
		return nil, err
	}
	if station.DefaultClockTemplateID != nil && *station.DefaultClockTemplateID != "" {
		r.logger.Debug().Str("station_id", stationID).Int("day", day).Int("hour", hour).Msg("no schedule row matched, using default template")
		return r.loadTemplate(ctx, *station.DefaultClockTemplateID)
	}

	return nil, ErrNoTemplate
}

func (r *Resolver) loadTemplate(ctx context.Context, templateID string) (*models.ClockTemplate, error) {
	var tpl models.ClockTemplate
	if err := r.db.WithContext(ctx).Preload("Slots").Where("id = ?", templateID).First(&tpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoTemplate
		}
		return nil, err
	}
	sort.Slice(tpl.Slots, func(i, j int) bool {
		return tpl.Slots[i].Position < tpl.Slots[j].Position
	})
	return &tpl, nil
}

// sortSchedules orders rows so narrower (more specific) windows are
// matched before broader ones (e.g. a 6-10 row beats a 0-23 fallback).
// Ties broken by start hour then created_at for deterministic selection.
func sortSchedules(rows []models.StationSchedule) {
	sort.SliceStable(rows, func(i, j int) bool {
		wi, wj := windowWidth(rows[i]), windowWidth(rows[j])
		if wi != wj {
			return wi < wj
		}
		if rows[i].StartHour != rows[j].StartHour {
			return rows[i].StartHour < rows[j].StartHour
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}

func windowWidth(row models.StationSchedule) int {
	if row.StartHour <= row.EndHour {
		return row.EndHour - row.StartHour
	}
	// Overnight window: 22-02 spans 5 hours.
	return 24 - row.StartHour + row.EndHour
}

// scheduleApplies reports whether a schedule row governs the given
// station-local day and hour. Hours are inclusive on both ends; rows
// with StartHour > EndHour wrap past midnight.
func scheduleApplies(row models.StationSchedule, day, hour int) bool {
	if row.DayOfWeek != nil && *row.DayOfWeek != day {
		return false
	}
	if row.StartHour <= row.EndHour {
		return hour >= row.StartHour && hour <= row.EndHour
	}
	return hour >= row.StartHour || hour <= row.EndHour
}
