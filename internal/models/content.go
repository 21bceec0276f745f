/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ContentKind discriminates the closed content union. Every row carries
// exactly one kind; variant attribute groups below are meaningful only
// for their kind.
type ContentKind string

const (
	ContentMusic       ContentKind = "music"
	ContentAdvertising ContentKind = "advertising"
	ContentStation     ContentKind = "station"
)

// Valid reports whether k is one of the three known kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case ContentMusic, ContentAdvertising, ContentStation:
		return true
	}
	return false
}

// StationContentType enumerates station-content subtypes.
type StationContentType string

const (
	StationID           StationContentType = "station_id"
	StationJingle       StationContentType = "jingle"
	StationAnnouncement StationContentType = "announcement"
	StationWeather      StationContentType = "weather"
	StationTimeCheck    StationContentType = "time_check"
)

// Content is a playable item. Shared attributes apply to all kinds;
// the Music/Advertising/Station groups apply to their kind only.
type Content struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	LibraryID string      `gorm:"type:uuid;index"`
	Kind      ContentKind `gorm:"type:varchar(16);index"`
	Title     string      `gorm:"index"`
	FileName  string
	Duration  time.Duration

	// Music
	Artist      string             `gorm:"index"`
	Album       string
	EnergyLevel int
	Formats     []string           `gorm:"serializer:json"`
	Genres      []string           `gorm:"serializer:json"`
	TagScores   map[string]float64 `gorm:"serializer:json"`

	// Advertising
	CampaignID             string     `gorm:"type:uuid;index"`
	Priority               int
	StartDate              *time.Time
	EndDate                *time.Time
	PlayHourRestrictions   []int      `gorm:"serializer:json"`
	VerticalRestrictions   []string   `gorm:"serializer:json"`
	MaxPlaysPerDay         int
	MinMinutesBetweenPlays int
	TargetPlaysPerDay      int

	// Station
	StationContentType StationContentType `gorm:"type:varchar(32)"`
	CartType           string             `gorm:"type:varchar(32)"`
	IsRecurring        bool
	RecurringInterval  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlayableDuration returns the item duration, defaulting zero-length
// rows to three minutes so a broken upload never stalls an hour plan.
func (c Content) PlayableDuration() time.Duration {
	if c.Duration <= 0 {
		return 3 * time.Minute
	}
	return c.Duration
}

// AllowedInVertical reports whether the content may play for the given
// vertical. Content with no restrictions plays everywhere.
func (c Content) AllowedInVertical(verticalID string) bool {
	if len(c.VerticalRestrictions) == 0 {
		return true
	}
	for _, v := range c.VerticalRestrictions {
		if v == verticalID {
			return true
		}
	}
	return false
}

// PrimaryFormat returns the first declared format, or the genre as a
// fallback so quota tracking always has a bucket to charge.
func (c Content) PrimaryFormat() string {
	if len(c.Formats) > 0 {
		return c.Formats[0]
	}
	if len(c.Genres) > 0 {
		return c.Genres[0]
	}
	return ""
}
