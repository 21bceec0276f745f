/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eligibility

import (
	"fmt"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/models"
)

// DefaultArtistSeparation is the minimum gap between two plays of the
// same artist on one station unless overridden by Rules.
const DefaultArtistSeparation = 45 * time.Minute

// Rules carries the tunable thresholds of the rule chain.
type Rules struct {
	ArtistSeparation time.Duration
}

func (r Rules) artistSeparation() time.Duration {
	if r.ArtistSeparation > 0 {
		return r.ArtistSeparation
	}
	return DefaultArtistSeparation
}

// Decision is the outcome of an eligibility check. Reason is empty for
// eligible content and names the first failed rule otherwise.
type Decision struct {
	Eligible bool
	Reason   string
}

func eligible() Decision {
	return Decision{Eligible: true}
}

func rejected(reason string) Decision {
	return Decision{Eligible: false, Reason: reason}
}

// Evaluate runs the rule chain for one content item. It short-circuits
// on the first failed rule so the reported reason is reproducible. The
// rules run in a fixed order:
//
//  1. campaign window (advertising)
//  2. allowed play hours (advertising)
//  3. daily play cap
//  4. minimum spacing between plays
//  5. artist separation (music)
//  6. vertical / library compatibility
//
// All checks are total functions over the arguments; history is the
// only playback state consulted.
func Evaluate(c models.Content, at time.Time, history *Snapshot, library *models.ContentLibrary, rules Rules) Decision {
	if c.Kind == models.ContentAdvertising {
		if c.StartDate != nil && at.Before(*c.StartDate) {
			return rejected("Campaign has not started yet")
		}
		if c.EndDate != nil && at.After(*c.EndDate) {
			return rejected("Campaign has ended")
		}

		if len(c.PlayHourRestrictions) > 0 {
			hour := at.In(history.Location()).Hour()
			if !containsHour(c.PlayHourRestrictions, hour) {
				return rejected("Outside allowed play hours")
			}
		}
	}

	if c.MaxPlaysPerDay > 0 {
		if count := history.PlaysToday(c.ID); count >= c.MaxPlaysPerDay {
			return rejected(fmt.Sprintf("Daily play cap reached (%d of %d)", count, c.MaxPlaysPerDay))
		}
	}

	if c.MinMinutesBetweenPlays > 0 {
		if last, ok := history.LastPlayed(c.ID); ok {
			elapsed := int(at.Sub(last).Minutes())
			if elapsed < c.MinMinutesBetweenPlays {
				return rejected(fmt.Sprintf("Played %d minutes ago, requires %d minutes between plays", elapsed, c.MinMinutesBetweenPlays))
			}
		}
	}

	if c.Kind == models.ContentMusic && c.Artist != "" {
		separation := rules.artistSeparation()
		if last, ok := history.LastArtistPlay(c.Artist); ok {
			if gap := at.Sub(last); gap < separation {
				return rejected(fmt.Sprintf("Artist played %d minutes ago, requires %d minutes separation", int(gap.Minutes()), int(separation.Minutes())))
			}
		}
	}

	if library != nil {
		if !c.AllowedInVertical(library.VerticalID) {
			return rejected("Content vertical not allowed in library")
		}
		if !library.Type.AllowsKind(c.Kind) {
			return rejected("Content kind not allowed in library")
		}
	}

	return eligible()
}

func containsHour(hours []int, hour int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}
