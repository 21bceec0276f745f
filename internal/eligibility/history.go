/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eligibility

import (
	"time"

	"github.com/buck0five/music-playlist-generator/internal/models"
)

// Snapshot is a pre-indexed view over a station's playback history.
// Evaluate works exclusively against a snapshot, never against the
// database, so every decision is a total function of its arguments.
type Snapshot struct {
	location *time.Location
	midnight time.Time

	lastPlayByContent   map[string]time.Time
	playsTodayByContent map[string]int
	lastPlayByArtist    map[string]time.Time
}

// NewSnapshot indexes playback rows for eligibility checks. The rows
// must all belong to one station. Daily counters are bounded by the
// station-local midnight derived from now and loc.
func NewSnapshot(plays []models.PlaybackLog, now time.Time, loc *time.Location) *Snapshot {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	s := &Snapshot{
		location:            loc,
		midnight:            midnight,
		lastPlayByContent:   make(map[string]time.Time),
		playsTodayByContent: make(map[string]int),
		lastPlayByArtist:    make(map[string]time.Time),
	}

	for _, play := range plays {
		if existing, ok := s.lastPlayByContent[play.ContentID]; !ok || play.PlayedAt.After(existing) {
			s.lastPlayByContent[play.ContentID] = play.PlayedAt
		}
		if !play.PlayedAt.Before(midnight) {
			s.playsTodayByContent[play.ContentID]++
		}
		if play.Artist != "" {
			if existing, ok := s.lastPlayByArtist[play.Artist]; !ok || play.PlayedAt.After(existing) {
				s.lastPlayByArtist[play.Artist] = play.PlayedAt
			}
		}
	}

	return s
}

// Location returns the station-local timezone the snapshot was built with.
func (s *Snapshot) Location() *time.Location {
	return s.location
}

// LastPlayed returns the most recent play instant for a content id.
func (s *Snapshot) LastPlayed(contentID string) (time.Time, bool) {
	ts, ok := s.lastPlayByContent[contentID]
	return ts, ok
}

// PlaysToday counts plays for a content id since station-local midnight.
func (s *Snapshot) PlaysToday(contentID string) int {
	return s.playsTodayByContent[contentID]
}

// LastArtistPlay returns the most recent play instant for an artist.
func (s *Snapshot) LastArtistPlay(artist string) (time.Time, bool) {
	ts, ok := s.lastPlayByArtist[artist]
	return ts, ok
}

// Observe folds a staged selection into the snapshot so later slots in
// the same run see it as history.
func (s *Snapshot) Observe(contentID, artist string, playedAt time.Time) {
	if existing, ok := s.lastPlayByContent[contentID]; !ok || playedAt.After(existing) {
		s.lastPlayByContent[contentID] = playedAt
	}
	if !playedAt.Before(s.midnight) {
		s.playsTodayByContent[contentID]++
	}
	if artist != "" {
		if existing, ok := s.lastPlayByArtist[artist]; !ok || playedAt.After(existing) {
			s.lastPlayByArtist[artist] = playedAt
		}
	}
}
