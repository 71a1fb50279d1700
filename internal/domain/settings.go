package domain

import (
	"strconv"
	"strings"
	"time"
)

// Setting keys recognized in the settings record set. Values are stored
// as text and parsed on every read; there is no history.
const (
	SettingSnoozeDurations     = "snooze_durations"
	SettingMaintenanceInterval = "maintenance_interval_days"
	SettingSummaryEnabled      = "summary_enabled"
)

// Settings are the admin-mutable toggles read by the command processor
// and the scheduler.
type Settings struct {
	SnoozeDurations     []time.Duration
	MaintenanceInterval int
	SummaryEnabled      bool
}

// DefaultSettings mirror the deployed defaults: snoozes of 1h/4h/24h,
// monthly maintenance, weekly summary on.
func DefaultSettings() Settings {
	return Settings{
		SnoozeDurations:     []time.Duration{time.Hour, 4 * time.Hour, 24 * time.Hour},
		MaintenanceInterval: 30,
		SummaryEnabled:      true,
	}
}

// ParseSettings overlays text key/value rows on the defaults. Rows that
// fail to parse keep the default for that key.
func ParseSettings(values map[string]string) Settings {
	s := DefaultSettings()
	if raw, ok := values[SettingSnoozeDurations]; ok {
		if ds := parseDurations(raw); len(ds) > 0 {
			s.SnoozeDurations = ds
		}
	}
	if raw, ok := values[SettingMaintenanceInterval]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n >= 0 {
			s.MaintenanceInterval = n
		}
	}
	if raw, ok := values[SettingSummaryEnabled]; ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			s.SummaryEnabled = b
		}
	}
	return s
}

// SnoozeAllowed reports whether d is one of the configured snooze
// durations.
func (s Settings) SnoozeAllowed(d time.Duration) bool {
	for _, allowed := range s.SnoozeDurations {
		if d == allowed {
			return true
		}
	}
	return false
}

func parseDurations(raw string) []time.Duration {
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil || d <= 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}
