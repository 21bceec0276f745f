/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tagrank

import (
	"context"
	"testing"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/eligibility"
	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRankerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Station{},
		&models.ContentLibrary{},
		&models.StationLibraryLink{},
		&models.Content{},
		&models.PlaybackLog{},
		&models.StationTagPreference{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedRankerStation(t *testing.T, db *gorm.DB) (stationID, libraryID string) {
	t.Helper()
	stationID = uuid.NewString()
	libraryID = uuid.NewString()
	for _, row := range []any{
		&models.Station{ID: stationID, Name: "KTST", Timezone: "UTC"},
		&models.ContentLibrary{ID: libraryID, Name: "music", Type: models.LibraryGlobalMusic},
		&models.StationLibraryLink{StationID: stationID, LibraryID: libraryID},
	} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("create %T: %v", row, err)
		}
	}
	return stationID, libraryID
}

func TestRankByTagPreference(t *testing.T) {
	db := setupRankerDB(t)
	stationID, _ := seedRankerStation(t, db)

	if err := db.Create(&models.StationTagPreference{StationID: stationID, TagID: "upbeat", Score: 10}).Error; err != nil {
		t.Fatalf("create preference: %v", err)
	}

	ranker := New(db, eligibility.Rules{}, zerolog.Nop())
	candidates := []models.Content{
		{ID: "song-a", TagScores: map[string]float64{"mellow": 9}},
		{ID: "song-b", TagScores: map[string]float64{"upbeat": 5}},
		{ID: "song-c", TagScores: map[string]float64{"upbeat": 8}},
	}

	ranked, err := ranker.Rank(context.Background(), stationID, candidates)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	want := []string{"song-c", "song-b", "song-a"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankWithoutPreferencesFallsToIDOrder(t *testing.T) {
	db := setupRankerDB(t)
	stationID, _ := seedRankerStation(t, db)

	ranker := New(db, eligibility.Rules{}, zerolog.Nop())
	candidates := []models.Content{
		{ID: "song-c", TagScores: map[string]float64{"upbeat": 8}},
		{ID: "song-a"},
		{ID: "song-b", TagScores: map[string]float64{"upbeat": 5}},
	}

	ranked, err := ranker.Rank(context.Background(), stationID, candidates)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	want := []string{"song-a", "song-b", "song-c"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestGenerateFiltersIneligible(t *testing.T) {
	db := setupRankerDB(t)
	stationID, libraryID := seedRankerStation(t, db)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rows := []any{
		&models.Content{ID: "song-a", LibraryID: libraryID, Kind: models.ContentMusic, Artist: "Artist A", Duration: 3 * time.Minute},
		&models.Content{ID: "song-b", LibraryID: libraryID, Kind: models.ContentMusic, Artist: "Artist B", Duration: 3 * time.Minute},
		// Artist B played minutes ago: song-b must not appear.
		&models.PlaybackLog{ID: uuid.NewString(), StationID: stationID, ContentID: "song-b", Kind: models.ContentMusic, Artist: "Artist B", PlayedAt: at.Add(-10 * time.Minute)},
	}
	for _, row := range rows {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("create %T: %v", row, err)
		}
	}

	ranker := New(db, eligibility.Rules{}, zerolog.Nop())
	ranked, err := ranker.Generate(context.Background(), stationID, at, 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(ranked) != 1 || ranked[0].ID != "song-a" {
		t.Errorf("Generate() = %v, want only song-a", contentIDs(ranked))
	}
}

func TestGenerateLimit(t *testing.T) {
	db := setupRankerDB(t)
	stationID, libraryID := seedRankerStation(t, db)

	for _, id := range []string{"song-a", "song-b", "song-c"} {
		row := models.Content{ID: id, LibraryID: libraryID, Kind: models.ContentMusic, Artist: "Artist " + id, Duration: 3 * time.Minute}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("create content: %v", err)
		}
	}

	ranker := New(db, eligibility.Rules{}, zerolog.Nop())
	ranked, err := ranker.Generate(context.Background(), stationID, time.Now(), 2)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(ranked) != 2 {
		t.Errorf("Generate() len = %d, want 2", len(ranked))
	}
}

func contentIDs(list []models.Content) []string {
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return ids
}
