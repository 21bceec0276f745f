/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tagrank

import (
	"context"
	"sort"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/eligibility"
	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// historyLookback bounds how much playback history feeds freeform
// eligibility checks.
const historyLookback = 7 * 24 * time.Hour

// Ranker orders candidates by station tag preference. It is the
// quota-free strategy for freeform generation that is not governed by a
// clock template.
type Ranker struct {
	db     *gorm.DB
	logger zerolog.Logger
	rules  eligibility.Rules
}

// New constructs a tag ranker.
func New(database *gorm.DB, rules eligibility.Rules, logger zerolog.Logger) *Ranker {
	return &Ranker{
		db:     database,
		logger: logger.With().Str("component", "tag_ranker").Logger(),
		rules:  rules,
	}
}

// Rank orders candidates by summed tag score weighted by the station's
// tag preferences, descending. Ties fall to the lexically smaller
// content id so the order never depends on fetch order. With no
// preference rows every score is zero and the result is id-ordered.
func (r *Ranker) Rank(ctx context.Context, stationID string, candidates []models.Content) ([]models.Content, error) {
	prefs, err := r.stationPreferences(ctx, stationID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		content models.Content
		score   float64
	}
	list := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, scored{content: c, score: preferenceScore(c, prefs)})
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].content.ID < list[j].content.ID
	})

	out := make([]models.Content, len(list))
	for i, s := range list {
		out[i] = s.content
	}
	return out, nil
}

// Generate produces a flat ranked list of eligible content for a
// station at an instant. The caller decides how many items to take;
// limit <= 0 returns everything.
func (r *Ranker) Generate(ctx context.Context, stationID string, at time.Time, limit int) ([]models.Content, error) {
	var links []models.StationLibraryLink
	if err := r.db.WithContext(ctx).Where("station_id = ?", stationID).Find(&links).Error; err != nil {
		return nil, err
	}
	libraryIDs := make([]string, 0, len(links))
	for _, link := range links {
		libraryIDs = append(libraryIDs, link.LibraryID)
	}
	if len(libraryIDs) == 0 {
		return nil, nil
	}

	libraries, err := r.loadLibraries(ctx, libraryIDs)
	if err != nil {
		return nil, err
	}

	var pool []models.Content
	if err := r.db.WithContext(ctx).
		Where("library_id IN ?", libraryIDs).
		Order("id ASC").
		Find(&pool).Error; err != nil {
		return nil, err
	}

	loc := r.stationLocation(ctx, stationID)
	var plays []models.PlaybackLog
	if err := r.db.WithContext(ctx).
		Where("station_id = ?", stationID).
		Where("played_at >= ?", at.Add(-historyLookback)).
		Find(&plays).Error; err != nil {
		return nil, err
	}
	history := eligibility.NewSnapshot(plays, at, loc)

	eligiblePool := make([]models.Content, 0, len(pool))
	for _, c := range pool {
		decision := eligibility.Evaluate(c, at, history, libraries[c.LibraryID], r.rules)
		if decision.Eligible {
			eligiblePool = append(eligiblePool, c)
		}
	}

	ranked, err := r.Rank(ctx, stationID, eligiblePool)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (r *Ranker) stationPreferences(ctx context.Context, stationID string) (map[string]float64, error) {
	var rows []models.StationTagPreference
	if err := r.db.WithContext(ctx).Where("station_id = ?", stationID).Find(&rows).Error; err != nil {
		return nil, err
	}
	prefs := make(map[string]float64, len(rows))
	for _, row := range rows {
		prefs[row.TagID] = row.Score
	}
	return prefs, nil
}

func (r *Ranker) loadLibraries(ctx context.Context, ids []string) (map[string]*models.ContentLibrary, error) {
	var libraries []models.ContentLibrary
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&libraries).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.ContentLibrary, len(libraries))
	for i := range libraries {
		byID[libraries[i].ID] = &libraries[i]
	}
	return byID, nil
}

func (r *Ranker) stationLocation(ctx context.Context, stationID string) *time.Location {
	var station models.Station
	if err := r.db.WithContext(ctx).Select("timezone").Where("id = ?", stationID).First(&station).Error; err != nil || station.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(station.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func preferenceScore(c models.Content, prefs map[string]float64) float64 {
	if len(c.TagScores) == 0 || len(prefs) == 0 {
		return 0
	}
	sum := 0.0
	for tag, score := range c.TagScores {
		sum += score * prefs[tag]
	}
	return sum
}
