package domain

import (
	"testing"
	"time"
)

func TestNormalizePlate(t *testing.T) {
	cases := map[string]string{
		"  a 12345 ": "A 12345",
		"b777bb":     "B777BB",
		"C 1":        "C 1",
		"   ":        "",
	}
	for input, want := range cases {
		if got := NormalizePlate(input); got != want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestVehicle_MaintenanceDue(t *testing.T) {
	added := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	v := NewVehicle("a 111", "pool sedan", added)

	if v.MaintenanceDue(added.Add(29*24*time.Hour), 30) {
		t.Error("Expected maintenance not due before the interval")
	}
	if !v.MaintenanceDue(added.Add(30*24*time.Hour), 30) {
		t.Error("Expected maintenance due at the interval")
	}
	if v.MaintenanceDue(added.Add(365*24*time.Hour), 0) {
		t.Error("Expected zero interval to disable maintenance checks")
	}
}

func TestParseSettings(t *testing.T) {
	s := ParseSettings(map[string]string{
		SettingSnoozeDurations:     "30m, 2h",
		SettingMaintenanceInterval: "14",
		SettingSummaryEnabled:      "false",
	})

	if !s.SnoozeAllowed(30 * time.Minute) {
		t.Error("Expected 30m snooze to be allowed")
	}
	if s.SnoozeAllowed(time.Hour) {
		t.Error("Expected 1h snooze to be disallowed after override")
	}
	if s.MaintenanceInterval != 14 {
		t.Errorf("Expected interval 14, got %d", s.MaintenanceInterval)
	}
	if s.SummaryEnabled {
		t.Error("Expected summary disabled")
	}
}

func TestParseSettingsKeepsDefaultsOnBadValues(t *testing.T) {
	s := ParseSettings(map[string]string{
		SettingSnoozeDurations:     "not-a-duration",
		SettingMaintenanceInterval: "soon",
		SettingSummaryEnabled:      "maybe",
	})

	def := DefaultSettings()
	if len(s.SnoozeDurations) != len(def.SnoozeDurations) {
		t.Errorf("Expected default snooze durations, got %v", s.SnoozeDurations)
	}
	if s.MaintenanceInterval != def.MaintenanceInterval {
		t.Errorf("Expected default interval, got %d", s.MaintenanceInterval)
	}
	if s.SummaryEnabled != def.SummaryEnabled {
		t.Errorf("Expected default summary flag, got %v", s.SummaryEnabled)
	}
}
