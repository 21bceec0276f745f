/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package quota

import (
	"fmt"
	"math"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/models"
)

// sumTolerance is how far the declared percentages may drift from 100.
const sumTolerance = 0.1

// ValidationError reports malformed quota preferences at construction
// time, before any scheduling work happens.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// FormatPreference declares one format's long-run percentage target.
// Order of the preference slice is the declared preference order used
// for deterministic tie-breaking.
type FormatPreference struct {
	Format        string
	TargetPercent float64
}

// Tracker accumulates per-format playback duration against declared
// percentage targets for exactly one generation run. Counters only ever
// grow; a new run constructs a new tracker rather than resetting one.
type Tracker struct {
	order     []string
	targets   map[string]float64
	tagPrefs  map[string]float64
	durations map[string]time.Duration
	counts    map[string]int
	total     time.Duration
}

// NewTracker validates the preference map and constructs a fresh
// tracker. The target percentages must sum to 100 within tolerance.
func NewTracker(prefs []FormatPreference) (*Tracker, error) {
	if len(prefs) == 0 {
		return nil, validationErrorf("quota preferences must not be empty")
	}

	t := &Tracker{
		targets:   make(map[string]float64, len(prefs)),
		durations: make(map[string]time.Duration, len(prefs)),
		counts:    make(map[string]int, len(prefs)),
	}

	sum := 0.0
	for _, pref := range prefs {
		if pref.Format == "" {
			return nil, validationErrorf("quota preference with empty format")
		}
		if pref.TargetPercent < 0 {
			return nil, validationErrorf("quota target for %q is negative", pref.Format)
		}
		if _, dup := t.targets[pref.Format]; dup {
			return nil, validationErrorf("duplicate quota preference for %q", pref.Format)
		}
		t.order = append(t.order, pref.Format)
		t.targets[pref.Format] = pref.TargetPercent
		sum += pref.TargetPercent
	}

	if math.Abs(sum-100) > sumTolerance {
		return nil, validationErrorf("quota targets sum to %.2f, expected 100", sum)
	}

	return t, nil
}

// SetTagPreferences attaches the station's tag affinity map so that
// candidate scores include a tag component. Optional.
func (t *Tracker) SetTagPreferences(prefs map[string]float64) {
	t.tagPrefs = prefs
}

// CurrentPercentage returns a format's share of tracked duration, 0
// when nothing has been tracked yet.
func (t *Tracker) CurrentPercentage(format string) float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.durations[format]) / float64(t.total) * 100
}

// NextRequiredFormat returns the format with the largest deficit
// between target and current share. Ties fall to the earlier entry in
// declared preference order.
func (t *Tracker) NextRequiredFormat() string {
	best := ""
	bestDeficit := math.Inf(-1)
	for _, format := range t.order {
		deficit := t.targets[format] - t.CurrentPercentage(format)
		if deficit > bestDeficit {
			best = format
			bestDeficit = deficit
		}
	}
	return best
}

// ScoreCandidate ranks a content item by how much its best format is
// currently under target, plus a tag-preference component when tag
// preferences are set. The result is clamped to [0,100].
func (t *Tracker) ScoreCandidate(c models.Content) float64 {
	score := t.formatDeficit(c) * 0.5
	score += t.tagComponent(c) * 0.5
	return clamp(score, 0, 100)
}

func (t *Tracker) formatDeficit(c models.Content) float64 {
	formats := c.Formats
	if len(formats) == 0 {
		if primary := c.PrimaryFormat(); primary != "" {
			formats = []string{primary}
		}
	}

	best := 0.0
	for _, format := range formats {
		target, ok := t.targets[format]
		if !ok {
			continue
		}
		if deficit := target - t.CurrentPercentage(format); deficit > best {
			best = deficit
		}
	}
	return best
}

func (t *Tracker) tagComponent(c models.Content) float64 {
	if len(t.tagPrefs) == 0 || len(c.TagScores) == 0 {
		return 0
	}
	sum := 0.0
	for tag, score := range c.TagScores {
		sum += score * t.tagPrefs[tag]
	}
	return clamp(sum, 0, 100)
}

// TrackUsage charges a selection against a format bucket. Counters are
// monotonic: zero or negative durations and unknown formats still never
// decrease any counter.
func (t *Tracker) TrackUsage(format string, d time.Duration) {
	if d <= 0 {
		return
	}
	t.durations[format] += d
	t.counts[format]++
	t.total += d
}

// TrackedCount returns how many selections were charged to a format.
func (t *Tracker) TrackedCount(format string) int {
	return t.counts[format]
}

// TotalDuration returns the cumulative tracked duration for the run.
func (t *Tracker) TotalDuration() time.Duration {
	return t.total
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
