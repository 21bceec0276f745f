/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/config"
	"github.com/buck0five/music-playlist-generator/internal/eligibility"
	"github.com/buck0five/music-playlist-generator/internal/events"
	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/buck0five/music-playlist-generator/internal/playlog"
	"github.com/buck0five/music-playlist-generator/internal/quota"
	"github.com/buck0five/music-playlist-generator/internal/runlock"
	"github.com/buck0five/music-playlist-generator/internal/schedule"
	"github.com/buck0five/music-playlist-generator/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// historyLookback bounds how much playback history feeds eligibility
// snapshots. Two days covers daily caps across the midnight boundary
// plus any sane spacing requirement.
const historyLookback = 48 * time.Hour

var (
	// ErrEmptyPool is returned under the strict empty-slot policy when a
	// slot has no eligible candidates. The partial result up to that
	// slot is still returned alongside the error.
	ErrEmptyPool = errors.New("no eligible candidates for slot")

	// ErrConstraintViolation is returned when commit-time re-checking
	// finds that concurrent history growth would push a selection over
	// its daily cap or spacing floor. Nothing is persisted.
	ErrConstraintViolation = errors.New("selection violates playback constraints at commit")
)

// publisher is the event sink the assembler notifies. Both the
// in-process bus and the NATS bridge satisfy it.
type publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// Policy carries the per-run generation knobs.
type Policy struct {
	EmptySlot config.EmptySlotPolicy

	// FallbackLibraryID widens the candidate pool for slots that came
	// up empty under the fallback policy.
	FallbackLibraryID string

	ArtistSeparation time.Duration

	// Formats overrides the station's stored format preferences when
	// non-empty.
	Formats []quota.FormatPreference
}

// Item is one scheduled selection within a generated hour.
type Item struct {
	Position      int
	OffsetSeconds int
	ContentID     string
	Kind          models.ContentKind
	Title         string
	Artist        string
	Duration      time.Duration
	AirsAt        time.Time
}

// Result is the outcome of one generation run. Warnings describe
// skipped slots and rejected candidates without failing the run.
type Result struct {
	StationID   string
	TemplateID  string
	GeneratedAt time.Time
	Items       []Item
	Warnings    []string
}

// Assembler fills clock template slots with eligible, quota-ranked
// content and commits the resulting hour atomically.
type Assembler struct {
	db       *gorm.DB
	resolver *schedule.Resolver
	plays    *playlog.Logger
	locks    *runlock.Lock
	bus      publisher
	policy   Policy
	logger   zerolog.Logger
}

// New constructs an assembler. locks and bus may be nil; the run then
// proceeds unlocked and unannounced.
func New(database *gorm.DB, resolver *schedule.Resolver, plays *playlog.Logger, locks *runlock.Lock, bus publisher, policy Policy, logger zerolog.Logger) *Assembler {
	return &Assembler{
		db:       database,
		resolver: resolver,
		plays:    plays,
		locks:    locks,
		bus:      bus,
		policy:   policy,
		logger:   logger.With().Str("component", "assembler").Logger(),
	}
}

// Generate produces the playlist hour for a station at an instant. The
// run resolves the governing clock template, filters and ranks
// candidates per slot, and commits the selections to the playback log
// in a single transaction. Identical inputs produce identical output.
func (a *Assembler) Generate(ctx context.Context, stationID string, at time.Time) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "playlist", "generate")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"station_id": stationID})

	started := time.Now()
	result, err := a.generate(ctx, stationID, at)
	telemetry.GenerationDuration.WithLabelValues(stationID).Observe(time.Since(started).Seconds())

	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.GenerationRunsTotal.WithLabelValues(stationID, "failed").Inc()
		if a.bus != nil {
			a.bus.Publish(events.EventPlaylistFailed, events.Payload{
				"station_id": stationID,
				"at":         at,
				"error":      err.Error(),
			})
		}
		return result, err
	}

	telemetry.GenerationRunsTotal.WithLabelValues(stationID, "ok").Inc()
	if a.bus != nil {
		a.bus.Publish(events.EventPlaylistGenerated, events.Payload{
			"station_id":  stationID,
			"template_id": result.TemplateID,
			"at":          at,
			"items":       len(result.Items),
			"warnings":    len(result.Warnings),
		})
	}
	return result, nil
}

func (a *Assembler) generate(ctx context.Context, stationID string, at time.Time) (*Result, error) {
	if a.locks != nil {
		release, err := a.locks.Acquire(ctx, stationID)
		if err != nil {
			if errors.Is(err, runlock.ErrLockHeld) {
				telemetry.RunLockContentionTotal.WithLabelValues(stationID).Inc()
			}
			return nil, err
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				a.logger.Warn().Err(err).Str("station_id", stationID).Msg("failed to release run lock")
			}
		}()
	}

	template, err := a.resolver.Resolve(ctx, stationID, at)
	if err != nil {
		return nil, fmt.Errorf("resolve clock template: %w", err)
	}

	scope, err := a.loadScope(ctx, stationID)
	if err != nil {
		return nil, err
	}

	loc := a.resolver.StationLocation(ctx, stationID)
	plays, err := a.plays.RecentPlays(ctx, stationID, at.Add(-historyLookback))
	if err != nil {
		return nil, fmt.Errorf("load playback history: %w", err)
	}
	history := eligibility.NewSnapshot(plays, at, loc)

	tracker, err := a.buildTracker(ctx, stationID)
	if err != nil {
		return nil, err
	}

	rules := eligibility.Rules{ArtistSeparation: a.policy.ArtistSeparation}
	result := &Result{
		StationID:   stationID,
		TemplateID:  template.ID,
		GeneratedAt: at,
	}

	var staged []models.Content
	for _, slot := range template.Slots {
		pick, warnings, err := a.fillSlot(ctx, stationID, slot, scope, history, tracker, rules, at)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			return result, err
		}
		if pick == nil {
			continue
		}

		airsAt := at.Add(time.Duration(slot.OffsetSeconds) * time.Second)
		if tracker != nil {
			if format := pick.PrimaryFormat(); format != "" {
				tracker.TrackUsage(format, pick.PlayableDuration())
			}
		}
		history.Observe(pick.ID, pick.Artist, airsAt)

		staged = append(staged, *pick)
		result.Items = append(result.Items, Item{
			Position:      slot.Position,
			OffsetSeconds: slot.OffsetSeconds,
			ContentID:     pick.ID,
			Kind:          pick.Kind,
			Title:         pick.Title,
			Artist:        pick.Artist,
			Duration:      pick.PlayableDuration(),
			AirsAt:        airsAt,
		})
		telemetry.SlotsFilledTotal.WithLabelValues(stationID).Inc()
	}

	if err := a.commit(ctx, stationID, result.Items, staged, loc); err != nil {
		return result, err
	}

	a.logger.Info().
		Str("station_id", stationID).
		Str("template_id", template.ID).
		Int("items", len(result.Items)).
		Int("warnings", len(result.Warnings)).
		Msg("playlist generated")
	return result, nil
}

// stationScope is the candidate universe for one run.
type stationScope struct {
	libraryIDs []string
	libraries  map[string]*models.ContentLibrary
}

func (a *Assembler) loadScope(ctx context.Context, stationID string) (*stationScope, error) {
	var links []models.StationLibraryLink
	if err := a.db.WithContext(ctx).Where("station_id = ?", stationID).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load station libraries: %w", err)
	}

	scope := &stationScope{libraries: make(map[string]*models.ContentLibrary)}
	for _, link := range links {
		scope.libraryIDs = append(scope.libraryIDs, link.LibraryID)
	}
	sort.Strings(scope.libraryIDs)

	if len(scope.libraryIDs) == 0 {
		return scope, nil
	}

	var libraries []models.ContentLibrary
	if err := a.db.WithContext(ctx).Where("id IN ?", scope.libraryIDs).Find(&libraries).Error; err != nil {
		return nil, fmt.Errorf("load libraries: %w", err)
	}
	for i := range libraries {
		scope.libraries[libraries[i].ID] = &libraries[i]
	}
	return scope, nil
}

// buildTracker constructs the per-run quota tracker from the policy
// override or the station's stored format preferences. Stations with no
// preferences run without quota weighting.
func (a *Assembler) buildTracker(ctx context.Context, stationID string) (*quota.Tracker, error) {
	prefs := a.policy.Formats
	if len(prefs) == 0 {
		var rows []models.StationFormatPreference
		if err := a.db.WithContext(ctx).
			Where("station_id = ?", stationID).
			Order("position ASC").
			Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load format preferences: %w", err)
		}
		for _, row := range rows {
			prefs = append(prefs, quota.FormatPreference{Format: row.Format, TargetPercent: row.TargetPercent})
		}
	}
	if len(prefs) == 0 {
		return nil, nil
	}

	tracker, err := quota.NewTracker(prefs)
	if err != nil {
		return nil, fmt.Errorf("build quota tracker: %w", err)
	}

	var tagRows []models.StationTagPreference
	if err := a.db.WithContext(ctx).Where("station_id = ?", stationID).Find(&tagRows).Error; err != nil {
		return nil, fmt.Errorf("load tag preferences: %w", err)
	}
	if len(tagRows) > 0 {
		tagPrefs := make(map[string]float64, len(tagRows))
		for _, row := range tagRows {
			tagPrefs[row.TagID] = row.Score
		}
		tracker.SetTagPreferences(tagPrefs)
	}
	return tracker, nil
}

// fillSlot selects content for one slot, or nil when the slot stays
// empty under the skip policy. Under the strict policy an empty slot
// aborts the run with ErrEmptyPool.
func (a *Assembler) fillSlot(ctx context.Context, stationID string, slot models.ClockSlot, scope *stationScope, history *eligibility.Snapshot, tracker *quota.Tracker, rules eligibility.Rules, at time.Time) (*models.Content, []string, error) {
	pick, err := a.selectFromPool(ctx, stationID, slot, scope.libraryIDs, scope, history, tracker, rules, at)
	if err != nil {
		return nil, nil, err
	}
	if pick != nil {
		return pick, nil, nil
	}

	if a.policy.EmptySlot == config.EmptySlotFallback && a.policy.FallbackLibraryID != "" {
		pick, err = a.selectFromPool(ctx, stationID, slot, []string{a.policy.FallbackLibraryID}, scope, history, tracker, rules, at)
		if err != nil {
			return nil, nil, err
		}
		if pick != nil {
			warning := fmt.Sprintf("slot %d (%s): filled from fallback library", slot.Position, slot.Kind)
			return pick, []string{warning}, nil
		}
	}

	warning := fmt.Sprintf("slot %d (%s): no eligible candidates", slot.Position, slot.Kind)
	a.logger.Warn().Int("position", slot.Position).Str("kind", string(slot.Kind)).Msg("no eligible candidates for slot")
	telemetry.SlotsSkippedTotal.WithLabelValues(stationID).Inc()
	if a.bus != nil {
		a.bus.Publish(events.EventSlotSkipped, events.Payload{
			"station_id": stationID,
			"position":   slot.Position,
			"kind":       string(slot.Kind),
		})
	}

	if a.policy.EmptySlot == config.EmptySlotStrict {
		return nil, []string{warning}, fmt.Errorf("slot %d: %w", slot.Position, ErrEmptyPool)
	}
	return nil, []string{warning}, nil
}

// selectFromPool fetches, filters, and ranks one slot's candidate pool.
// Candidates are fetched id-ordered and ranked by score descending with
// id as the tie break, so selection is deterministic.
func (a *Assembler) selectFromPool(ctx context.Context, stationID string, slot models.ClockSlot, libraryIDs []string, scope *stationScope, history *eligibility.Snapshot, tracker *quota.Tracker, rules eligibility.Rules, at time.Time) (*models.Content, error) {
	candidates, err := a.fetchCandidates(ctx, slot, libraryIDs)
	if err != nil {
		return nil, err
	}

	type scored struct {
		content models.Content
		score   float64
	}
	var pool []scored
	for _, c := range candidates {
		decision := eligibility.Evaluate(c, at.Add(time.Duration(slot.OffsetSeconds)*time.Second), history, scope.libraries[c.LibraryID], rules)
		if !decision.Eligible {
			telemetry.EligibilityRejectionsTotal.WithLabelValues(stationID, ruleLabel(decision.Reason)).Inc()
			a.logger.Debug().Str("content_id", c.ID).Str("reason", decision.Reason).Msg("candidate rejected")
			continue
		}
		score := 0.0
		if tracker != nil {
			score = tracker.ScoreCandidate(c)
		}
		pool = append(pool, scored{content: c, score: score})
	}

	if len(pool) == 0 {
		return nil, nil
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return pool[i].content.ID < pool[j].content.ID
	})

	best := pool[0].content
	return &best, nil
}

func (a *Assembler) fetchCandidates(ctx context.Context, slot models.ClockSlot, libraryIDs []string) ([]models.Content, error) {
	if slot.FixedCartID != nil && *slot.FixedCartID != "" {
		var candidates []models.Content
		err := a.db.WithContext(ctx).
			Joins("JOIN cart_items ON cart_items.content_id = contents.id").
			Where("cart_items.cart_id = ?", *slot.FixedCartID).
			Order("contents.id ASC").
			Find(&candidates).Error
		if err != nil {
			return nil, fmt.Errorf("load cart candidates: %w", err)
		}
		return candidates, nil
	}

	if len(libraryIDs) == 0 {
		return nil, nil
	}
	var candidates []models.Content
	err := a.db.WithContext(ctx).
		Where("kind = ?", slot.Kind).
		Where("library_id IN ?", libraryIDs).
		Order("id ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load slot candidates: %w", err)
	}
	return candidates, nil
}

// commit persists the run's selections in one transaction. Daily caps
// and spacing floors are re-checked against the history as it exists
// inside the transaction, so two runs racing on one station cannot
// jointly exceed a cap even without the advisory lock.
func (a *Assembler) commit(ctx context.Context, stationID string, items []Item, staged []models.Content, loc *time.Location) error {
	if len(staged) == 0 {
		return nil
	}

	tx := a.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin commit: %w", tx.Error)
	}
	defer tx.Rollback()

	earliest := items[0].AirsAt
	var fresh []models.PlaybackLog
	if err := tx.
		Where("station_id = ?", stationID).
		Where("played_at >= ?", earliest.Add(-historyLookback)).
		Find(&fresh).Error; err != nil {
		return fmt.Errorf("reload history: %w", err)
	}
	verify := eligibility.NewSnapshot(fresh, earliest, loc)

	for i, content := range staged {
		airsAt := items[i].AirsAt
		if content.MaxPlaysPerDay > 0 && verify.PlaysToday(content.ID) >= content.MaxPlaysPerDay {
			return fmt.Errorf("content %s over daily cap: %w", content.ID, ErrConstraintViolation)
		}
		if content.MinMinutesBetweenPlays > 0 {
			if last, ok := verify.LastPlayed(content.ID); ok {
				if int(airsAt.Sub(last).Minutes()) < content.MinMinutesBetweenPlays {
					return fmt.Errorf("content %s under spacing floor: %w", content.ID, ErrConstraintViolation)
				}
			}
		}
		verify.Observe(content.ID, content.Artist, airsAt)

		if err := a.plays.RecordTx(tx, stationID, content, airsAt); err != nil {
			return fmt.Errorf("record playback: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit playlist: %w", err)
	}
	return nil
}

// ruleLabel maps a rejection reason onto a bounded metric label.
func ruleLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "Campaign"):
		return "campaign_window"
	case strings.HasPrefix(reason, "Outside allowed"):
		return "play_hours"
	case strings.HasPrefix(reason, "Daily play cap"):
		return "daily_cap"
	case strings.HasPrefix(reason, "Played"):
		return "min_spacing"
	case strings.HasPrefix(reason, "Artist"):
		return "artist_separation"
	case strings.HasPrefix(reason, "Content"):
		return "library_compat"
	default:
		return "other"
	}
}
