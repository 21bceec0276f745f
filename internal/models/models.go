/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// Station is the scheduling root: every generation run targets one station.
type Station struct {
	ID                     string  `gorm:"type:uuid;primaryKey"`
	Name                   string  `gorm:"uniqueIndex"`
	Description            string  `gorm:"type:text"`
	Timezone               string  `gorm:"type:varchar(64)"`
	VerticalID             string  `gorm:"type:varchar(64);index"`
	DefaultClockTemplateID *string `gorm:"type:uuid"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// LibraryType constrains which content kinds a library may hold.
type LibraryType string

const (
	LibraryGlobalMusic   LibraryType = "global_music"
	LibraryVerticalMusic LibraryType = "vertical_music"
	LibraryVerticalAds   LibraryType = "vertical_ads"
	LibraryStationCustom LibraryType = "station_custom"
)

// AllowsKind reports whether a content kind may live in a library of
// this type. Compatibility is a function of the type, never of runtime
// inspection of the content row.
func (t LibraryType) AllowsKind(k ContentKind) bool {
	switch t {
	case LibraryGlobalMusic, LibraryVerticalMusic:
		return k == ContentMusic
	case LibraryVerticalAds:
		return k == ContentAdvertising
	case LibraryStationCustom:
		return k == ContentMusic || k == ContentStation
	default:
		return false
	}
}

// ContentLibrary scopes content pools to a vertical or a station.
type ContentLibrary struct {
	ID         string      `gorm:"type:uuid;primaryKey"`
	Name       string      `gorm:"index"`
	Type       LibraryType `gorm:"type:varchar(32);index"`
	VerticalID string      `gorm:"type:varchar(64);index"`
	StationID  *string     `gorm:"type:uuid;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StationLibraryLink assigns a library to a station's candidate scope.
type StationLibraryLink struct {
	StationID string `gorm:"type:uuid;primaryKey"`
	LibraryID string `gorm:"type:uuid;primaryKey"`
}

// ClockTemplate is an ordered hour plan of typed slots.
type ClockTemplate struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	Name      string      `gorm:"uniqueIndex"`
	Slots     []ClockSlot `gorm:"foreignKey:ClockTemplateID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClockSlot is one position within a clock template.
type ClockSlot struct {
	ID              string      `gorm:"type:uuid;primaryKey"`
	ClockTemplateID string      `gorm:"type:uuid;index"`
	Position        int         `gorm:"index"`
	OffsetSeconds   int
	Kind            ContentKind `gorm:"type:varchar(16)"`
	FixedCartID     *string     `gorm:"type:uuid"`
}

// StationSchedule maps (station, day-of-week, hour range) to a clock
// template. A nil DayOfWeek matches every day. Rows where StartHour is
// greater than EndHour wrap past midnight.
type StationSchedule struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	StationID       string `gorm:"type:uuid;index"`
	DayOfWeek       *int
	StartHour       int
	EndHour         int
	ClockTemplateID string `gorm:"type:uuid"`
	CreatedAt       time.Time
}

// Cart is a named rotation group of interchangeable content items.
type Cart struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	Name      string  `gorm:"index"`
	CartType  string  `gorm:"type:varchar(32)"`
	StationID *string `gorm:"type:uuid;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is cart membership with rotation order.
type CartItem struct {
	CartID    string `gorm:"type:uuid;primaryKey"`
	ContentID string `gorm:"type:uuid;primaryKey"`
	Position  int
}

// PlaybackLog is the append-only play history. It is the sole source of
// truth for recency and frequency constraints; the generation core only
// ever appends to it. Artist and Kind are denormalized so separation
// checks do not need a join.
type PlaybackLog struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	StationID string      `gorm:"type:uuid;index:idx_playback_station_time"`
	ContentID string      `gorm:"type:uuid;index"`
	Kind      ContentKind `gorm:"type:varchar(16)"`
	Artist    string      `gorm:"index"`
	PlayedAt  time.Time   `gorm:"index:idx_playback_station_time"`
}

// StationTagPreference is the per-station tag affinity score, mutated
// by listener feedback outside this core and read-only here.
type StationTagPreference struct {
	StationID string `gorm:"type:uuid;primaryKey"`
	TagID     string `gorm:"type:varchar(64);primaryKey"`
	Score     float64
	UpdatedAt time.Time
}

// StationFormatPreference declares a station's long-run percentage
// target for one format. Position preserves declared preference order
// for deterministic tie-breaking.
type StationFormatPreference struct {
	StationID     string `gorm:"type:uuid;primaryKey"`
	Format        string `gorm:"type:varchar(64);primaryKey"`
	TargetPercent float64
	Position      int
}
