/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"testing"
	"time"
)

func TestLibraryTypeAllowsKind(t *testing.T) {
	tests := []struct {
		libType LibraryType
		kind    ContentKind
		want    bool
	}{
		{LibraryGlobalMusic, ContentMusic, true},
		{LibraryGlobalMusic, ContentAdvertising, false},
		{LibraryGlobalMusic, ContentStation, false},
		{LibraryVerticalMusic, ContentMusic, true},
		{LibraryVerticalMusic, ContentAdvertising, false},
		{LibraryVerticalAds, ContentAdvertising, true},
		{LibraryVerticalAds, ContentMusic, false},
		{LibraryStationCustom, ContentMusic, true},
		{LibraryStationCustom, ContentStation, true},
		{LibraryStationCustom, ContentAdvertising, false},
		{LibraryType("unknown"), ContentMusic, false},
	}

	for _, tt := range tests {
		if got := tt.libType.AllowsKind(tt.kind); got != tt.want {
			t.Errorf("%s.AllowsKind(%s) = %v, want %v", tt.libType, tt.kind, got, tt.want)
		}
	}
}

func TestContentKindValid(t *testing.T) {
	for _, kind := range []ContentKind{ContentMusic, ContentAdvertising, ContentStation} {
		if !kind.Valid() {
			t.Errorf("%s.Valid() = false", kind)
		}
	}
	if ContentKind("podcast").Valid() {
		t.Error(`ContentKind("podcast").Valid() = true`)
	}
	if ContentKind("").Valid() {
		t.Error(`empty kind reported valid`)
	}
}

func TestPlayableDuration(t *testing.T) {
	if got := (Content{Duration: 4 * time.Minute}).PlayableDuration(); got != 4*time.Minute {
		t.Errorf("PlayableDuration() = %v, want 4m", got)
	}
	if got := (Content{}).PlayableDuration(); got != 3*time.Minute {
		t.Errorf("PlayableDuration() zero = %v, want 3m default", got)
	}
	if got := (Content{Duration: -time.Second}).PlayableDuration(); got != 3*time.Minute {
		t.Errorf("PlayableDuration() negative = %v, want 3m default", got)
	}
}

func TestAllowedInVertical(t *testing.T) {
	unrestricted := Content{}
	if !unrestricted.AllowedInVertical("retail") {
		t.Error("unrestricted content should play in any vertical")
	}

	restricted := Content{VerticalRestrictions: []string{"retail", "hospitality"}}
	if !restricted.AllowedInVertical("retail") {
		t.Error("restricted content rejected in a listed vertical")
	}
	if restricted.AllowedInVertical("automotive") {
		t.Error("restricted content allowed in an unlisted vertical")
	}
}

func TestPrimaryFormat(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    string
	}{
		{"first format wins", Content{Formats: []string{"rock", "pop"}}, "rock"},
		{"genre fallback", Content{Genres: []string{"blues"}}, "blues"},
		{"nothing declared", Content{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.content.PrimaryFormat(); got != tt.want {
				t.Errorf("PrimaryFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}
