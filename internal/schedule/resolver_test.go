/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

func TestScheduleApplies(t *testing.T) {
	tests := []struct {
		name      string
		row       models.StationSchedule
		day, hour int
		want      bool
	}{
		{
			name: "inside window",
			row:  models.StationSchedule{StartHour: 6, EndHour: 10},
			day:  2, hour: 8,
			want: true,
		},
		{
			name: "start hour inclusive",
			row:  models.StationSchedule{StartHour: 6, EndHour: 10},
			day:  2, hour: 6,
			want: true,
		},
		{
			name: "end hour inclusive",
			row:  models.StationSchedule{StartHour: 6, EndHour: 10},
			day:  2, hour: 10,
			want: true,
		},
		{
			name: "outside window",
			row:  models.StationSchedule{StartHour: 6, EndHour: 10},
			day:  2, hour: 11,
			want: false,
		},
		{
			name: "wrong day",
			row:  models.StationSchedule{DayOfWeek: intPtr(1), StartHour: 0, EndHour: 23},
			day:  2, hour: 8,
			want: false,
		},
		{
			name: "matching day",
			row:  models.StationSchedule{DayOfWeek: intPtr(2), StartHour: 0, EndHour: 23},
			day:  2, hour: 8,
			want: true,
		},
		{
			name: "nil day matches any",
			row:  models.StationSchedule{StartHour: 0, EndHour: 23},
			day:  6, hour: 8,
			want: true,
		},
		{
			name: "overnight before midnight",
			row:  models.StationSchedule{StartHour: 22, EndHour: 2},
			day:  5, hour: 23,
			want: true,
		},
		{
			name: "overnight after midnight",
			row:  models.StationSchedule{StartHour: 22, EndHour: 2},
			day:  6, hour: 1,
			want: true,
		},
		{
			name: "overnight outside",
			row:  models.StationSchedule{StartHour: 22, EndHour: 2},
			day:  6, hour: 12,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scheduleApplies(tt.row, tt.day, tt.hour); got != tt.want {
				t.Errorf("scheduleApplies(%+v, %d, %d) = %v, want %v", tt.row, tt.day, tt.hour, got, tt.want)
			}
		})
	}
}

func TestWindowWidth(t *testing.T) {
	tests := []struct {
		name string
		row  models.StationSchedule
		want int
	}{
		{"normal window", models.StationSchedule{StartHour: 6, EndHour: 10}, 4},
		{"full day", models.StationSchedule{StartHour: 0, EndHour: 23}, 23},
		{"single hour", models.StationSchedule{StartHour: 9, EndHour: 9}, 0},
		{"overnight", models.StationSchedule{StartHour: 22, EndHour: 2}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := windowWidth(tt.row); got != tt.want {
				t.Errorf("windowWidth(%+v) = %d, want %d", tt.row, got, tt.want)
			}
		})
	}
}

func setupResolverDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Station{},
		&models.ClockTemplate{},
		&models.ClockSlot{},
		&models.StationSchedule{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createTemplate(t *testing.T, db *gorm.DB, name string, slots int) string {
	t.Helper()
	tpl := models.ClockTemplate{ID: uuid.NewString(), Name: name}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}
	for i := 0; i < slots; i++ {
		slot := models.ClockSlot{
			ID:              uuid.NewString(),
			ClockTemplateID: tpl.ID,
			Position:        i,
			OffsetSeconds:   i * 180,
			Kind:            models.ContentMusic,
		}
		if err := db.Create(&slot).Error; err != nil {
			t.Fatalf("create slot: %v", err)
		}
	}
	return tpl.ID
}

func TestResolvePrecedence(t *testing.T) {
	db := setupResolverDB(t)
	resolver := NewResolver(db, zerolog.Nop())

	stationID := uuid.NewString()
	if err := db.Create(&models.Station{ID: stationID, Name: "KTST", Timezone: "UTC"}).Error; err != nil {
		t.Fatalf("create station: %v", err)
	}

	allDay := createTemplate(t, db, "all-day", 1)
	morning := createTemplate(t, db, "morning-drive", 2)

	// Broad fallback row inserted first so storage order cannot win.
	rows := []models.StationSchedule{
		{ID: uuid.NewString(), StationID: stationID, StartHour: 0, EndHour: 23, ClockTemplateID: allDay},
		{ID: uuid.NewString(), StationID: stationID, StartHour: 6, EndHour: 10, ClockTemplateID: morning},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create schedule: %v", err)
		}
	}

	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	tpl, err := resolver.Resolve(context.Background(), stationID, at)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tpl.ID != morning {
		t.Errorf("Resolve() at 8h picked %q, want narrower morning window", tpl.Name)
	}
	if len(tpl.Slots) != 2 {
		t.Fatalf("Resolve() slots = %d, want 2", len(tpl.Slots))
	}
	if tpl.Slots[0].Position != 0 || tpl.Slots[1].Position != 1 {
		t.Error("Resolve() slots not ordered by position")
	}

	tpl, err = resolver.Resolve(context.Background(), stationID, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tpl.ID != allDay {
		t.Errorf("Resolve() at 14h picked %q, want all-day fallback", tpl.Name)
	}
}

func TestResolveDaySpecificBeatsWildcard(t *testing.T) {
	db := setupResolverDB(t)
	resolver := NewResolver(db, zerolog.Nop())

	stationID := uuid.NewString()
	if err := db.Create(&models.Station{ID: stationID, Name: "KTST", Timezone: "UTC"}).Error; err != nil {
		t.Fatalf("create station: %v", err)
	}

	weekday := createTemplate(t, db, "weekday", 1)
	tuesday := createTemplate(t, db, "tuesday-special", 1)

	rows := []models.StationSchedule{
		{ID: uuid.NewString(), StationID: stationID, StartHour: 6, EndHour: 10, ClockTemplateID: weekday},
		{ID: uuid.NewString(), StationID: stationID, DayOfWeek: intPtr(2), StartHour: 6, EndHour: 8, ClockTemplateID: tuesday},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create schedule: %v", err)
		}
	}

	// 2026-03-10 is a Tuesday.
	at := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	tpl, err := resolver.Resolve(context.Background(), stationID, at)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tpl.ID != tuesday {
		t.Errorf("Resolve() picked %q, want narrower tuesday row", tpl.Name)
	}
}

func TestResolveOvernightWrap(t *testing.T) {
	db := setupResolverDB(t)
	resolver := NewResolver(db, zerolog.Nop())

	stationID := uuid.NewString()
	if err := db.Create(&models.Station{ID: stationID, Name: "KTST", Timezone: "UTC"}).Error; err != nil {
		t.Fatalf("create station: %v", err)
	}

	overnight := createTemplate(t, db, "overnight", 1)
	row := models.StationSchedule{ID: uuid.NewString(), StationID: stationID, StartHour: 22, EndHour: 2, ClockTemplateID: overnight}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	for _, hour := range []int{23, 1} {
		tpl, err := resolver.Resolve(context.Background(), stationID, time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("Resolve() at %dh error = %v", hour, err)
		}
		if tpl.ID != overnight {
			t.Errorf("Resolve() at %dh picked %q, want overnight", hour, tpl.Name)
		}
	}

	if _, err := resolver.Resolve(context.Background(), stationID, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("Resolve() at 12h error = %v, want ErrNoTemplate", err)
	}
}

func TestResolveDefaultTemplateFallback(t *testing.T) {
	db := setupResolverDB(t)
	resolver := NewResolver(db, zerolog.Nop())

	defaultTpl := createTemplate(t, db, "station-default", 1)
	stationID := uuid.NewString()
	station := models.Station{ID: stationID, Name: "KTST", Timezone: "UTC", DefaultClockTemplateID: &defaultTpl}
	if err := db.Create(&station).Error; err != nil {
		t.Fatalf("create station: %v", err)
	}

	tpl, err := resolver.Resolve(context.Background(), stationID, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tpl.ID != defaultTpl {
		t.Errorf("Resolve() picked %q, want station default", tpl.Name)
	}
}

func TestResolveNoTemplate(t *testing.T) {
	db := setupResolverDB(t)
	resolver := NewResolver(db, zerolog.Nop())

	stationID := uuid.NewString()
	if err := db.Create(&models.Station{ID: stationID, Name: "KTST", Timezone: "UTC"}).Error; err != nil {
		t.Fatalf("create station: %v", err)
	}

	_, err := resolver.Resolve(context.Background(), stationID, time.Now())
	if !errors.Is(err, ErrNoTemplate) {
		t.Errorf("Resolve() error = %v, want ErrNoTemplate", err)
	}
}

func TestStationLocationFallback(t *testing.T) {
	db := setupResolverDB(t)
	resolver := NewResolver(db, zerolog.Nop())

	badTz := uuid.NewString()
	if err := db.Create(&models.Station{ID: badTz, Name: "KBAD", Timezone: "Not/AZone"}).Error; err != nil {
		t.Fatalf("create station: %v", err)
	}

	if loc := resolver.StationLocation(context.Background(), badTz); loc != time.UTC {
		t.Errorf("StationLocation() with invalid tz = %v, want UTC", loc)
	}
	if loc := resolver.StationLocation(context.Background(), "missing-station"); loc != time.UTC {
		t.Errorf("StationLocation() for missing station = %v, want UTC", loc)
	}
}
