/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clockimport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// File is the YAML document root for clock template and schedule
// definitions.
type File struct {
	Templates []TemplateDef `yaml:"templates"`
	Schedules []ScheduleDef `yaml:"schedules"`
}

// TemplateDef declares one clock template and its ordered slots.
type TemplateDef struct {
	Name  string    `yaml:"name"`
	Slots []SlotDef `yaml:"slots"`
}

// SlotDef declares one slot inside a template.
type SlotDef struct {
	Position      int     `yaml:"position"`
	OffsetSeconds int     `yaml:"offset_seconds"`
	Kind          string  `yaml:"kind"`
	FixedCartID   *string `yaml:"fixed_cart_id,omitempty"`
}

// ScheduleDef binds a station's hour window to a template by name.
type ScheduleDef struct {
	StationID string `yaml:"station_id"`
	DayOfWeek *int   `yaml:"day_of_week,omitempty"`
	StartHour int    `yaml:"start_hour"`
	EndHour   int    `yaml:"end_hour"`
	Template  string `yaml:"template"`
}

// Summary reports what an import run changed.
type Summary struct {
	TemplatesCreated int
	TemplatesUpdated int
	SchedulesCreated int
}

// Importer loads clock template and schedule definitions from YAML into
// the database. Templates are upserted by name; re-importing a template
// replaces its slots.
type Importer struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New constructs a clock importer.
func New(database *gorm.DB, logger zerolog.Logger) *Importer {
	return &Importer{
		db:     database,
		logger: logger.With().Str("component", "clock_importer").Logger(),
	}
}

// Import parses and applies one YAML document. The whole document is
// validated before anything is written, and applied in one transaction.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Summary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}

	if err := validate(&file); err != nil {
		return nil, err
	}

	summary := &Summary{}
	tx := im.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin import: %w", tx.Error)
	}
	defer tx.Rollback()

	templateIDs := make(map[string]string, len(file.Templates))
	for _, def := range file.Templates {
		id, created, err := im.applyTemplate(tx, def)
		if err != nil {
			return nil, err
		}
		templateIDs[def.Name] = id
		if created {
			summary.TemplatesCreated++
		} else {
			summary.TemplatesUpdated++
		}
	}

	for _, def := range file.Schedules {
		templateID, ok := templateIDs[def.Template]
		if !ok {
			var existing models.ClockTemplate
			err := tx.Select("id").Where("name = ?", def.Template).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("schedule for station %s references unknown template %q", def.StationID, def.Template)
			}
			if err != nil {
				return nil, fmt.Errorf("look up template %q: %w", def.Template, err)
			}
			templateID = existing.ID
		}

		row := models.StationSchedule{
			ID:              uuid.NewString(),
			StationID:       def.StationID,
			DayOfWeek:       def.DayOfWeek,
			StartHour:       def.StartHour,
			EndHour:         def.EndHour,
			ClockTemplateID: templateID,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("create schedule: %w", err)
		}
		summary.SchedulesCreated++
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	im.logger.Info().
		Int("templates_created", summary.TemplatesCreated).
		Int("templates_updated", summary.TemplatesUpdated).
		Int("schedules_created", summary.SchedulesCreated).
		Msg("clocks imported")
	return summary, nil
}

func (im *Importer) applyTemplate(tx *gorm.DB, def TemplateDef) (string, bool, error) {
	var existing models.ClockTemplate
	err := tx.Where("name = ?", def.Name).First(&existing).Error

	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		existing = models.ClockTemplate{ID: uuid.NewString(), Name: def.Name}
		if err := tx.Create(&existing).Error; err != nil {
			return "", false, fmt.Errorf("create template %q: %w", def.Name, err)
		}
		created = true
	case err != nil:
		return "", false, fmt.Errorf("look up template %q: %w", def.Name, err)
	default:
		if err := tx.Where("clock_template_id = ?", existing.ID).Delete(&models.ClockSlot{}).Error; err != nil {
			return "", false, fmt.Errorf("clear slots for %q: %w", def.Name, err)
		}
	}

	for _, slotDef := range def.Slots {
		slot := models.ClockSlot{
			ID:              uuid.NewString(),
			ClockTemplateID: existing.ID,
			Position:        slotDef.Position,
			OffsetSeconds:   slotDef.OffsetSeconds,
			Kind:            models.ContentKind(slotDef.Kind),
			FixedCartID:     slotDef.FixedCartID,
		}
		if err := tx.Create(&slot).Error; err != nil {
			return "", false, fmt.Errorf("create slot %d of %q: %w", slotDef.Position, def.Name, err)
		}
	}

	return existing.ID, created, nil
}

func validate(file *File) error {
	names := make(map[string]bool, len(file.Templates))
	for _, def := range file.Templates {
		if def.Name == "" {
			return fmt.Errorf("template with empty name")
		}
		if names[def.Name] {
			return fmt.Errorf("duplicate template %q", def.Name)
		}
		names[def.Name] = true

		if len(def.Slots) == 0 {
			return fmt.Errorf("template %q has no slots", def.Name)
		}
		positions := make(map[int]bool, len(def.Slots))
		for _, slot := range def.Slots {
			if !models.ContentKind(slot.Kind).Valid() {
				return fmt.Errorf("template %q slot %d has unknown kind %q", def.Name, slot.Position, slot.Kind)
			}
			if slot.OffsetSeconds < 0 || slot.OffsetSeconds >= 3600 {
				return fmt.Errorf("template %q slot %d offset %d outside the hour", def.Name, slot.Position, slot.OffsetSeconds)
			}
			if positions[slot.Position] {
				return fmt.Errorf("template %q has duplicate slot position %d", def.Name, slot.Position)
			}
			positions[slot.Position] = true
		}
	}

	for _, def := range file.Schedules {
		if def.StationID == "" {
			return fmt.Errorf("schedule with empty station_id")
		}
		if def.Template == "" {
			return fmt.Errorf("schedule for station %s with empty template", def.StationID)
		}
		if def.StartHour < 0 || def.StartHour > 23 || def.EndHour < 0 || def.EndHour > 23 {
			return fmt.Errorf("schedule for station %s has hours outside 0-23", def.StationID)
		}
		if def.DayOfWeek != nil && (*def.DayOfWeek < 0 || *def.DayOfWeek > 6) {
			return fmt.Errorf("schedule for station %s has day_of_week outside 0-6", def.StationID)
		}
	}

	return nil
}
