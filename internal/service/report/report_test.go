package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorpool/motorpool/internal/domain"
)

func entry(ts time.Time, actorID int64, actorName, plate string, action domain.Action) domain.LedgerEntry {
	return domain.LedgerEntry{
		Timestamp: ts,
		ActorID:   actorID,
		ActorName: actorName,
		Plate:     plate,
		Action:    action,
	}
}

func TestSummaryCountsTakesAndStillOut(t *testing.T) {
	svc := NewService(time.UTC)
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	entries := []domain.LedgerEntry{
		entry(base, 1, "Dana", "A 11111", domain.ActionOut),
		entry(base.Add(time.Hour), 1, "Dana", "A 11111", domain.ActionIn),
		entry(base.Add(2*time.Hour), 1, "Dana", "A 11111", domain.ActionOut),
		entry(base.Add(3*time.Hour), 2, "Maha", "B 22222", domain.ActionOut),
		// outside the window, must not be counted
		entry(base.AddDate(0, 0, -10), 3, "Omar", "C 33333", domain.ActionOut),
	}

	text := svc.Summary(entries, base.AddDate(0, 0, -7), base.AddDate(0, 0, 1))

	assert.Contains(t, text, "A 11111: 2")
	assert.Contains(t, text, "B 22222: 1")
	assert.Contains(t, text, "Dana: 2")
	assert.NotContains(t, text, "Omar")
	assert.Contains(t, text, "Still out:")
	assert.Contains(t, text, "B 22222 (Maha since")
}

func TestSummaryEmptyWindow(t *testing.T) {
	svc := NewService(time.UTC)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	text := svc.Summary(nil, now.AddDate(0, 0, -7), now)

	assert.Contains(t, text, "No movements recorded.")
}

func TestWriteCSVOrdersOldestFirst(t *testing.T) {
	svc := NewService(time.UTC)
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	entries := []domain.LedgerEntry{
		entry(base.Add(time.Hour), 1, "Dana", "A 11111", domain.ActionIn),
		entry(base, 1, "Dana", "A 11111", domain.ActionOut),
		{}, // invalid, must be dropped
	}

	var buf bytes.Buffer
	require.NoError(t, svc.WriteCSV(&buf, entries))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Timestamp", "Driver Name", "Driver ID", "Car Plate", "Action"}, records[0])
	assert.Equal(t, "2024-03-04 09:00", records[1][0])
	assert.Equal(t, "out", records[1][4])
	assert.Equal(t, "in", records[2][4])
}

func TestMaintenanceNotice(t *testing.T) {
	svc := NewService(time.UTC)
	v := &domain.Vehicle{
		Plate:      "A 11111",
		ServicedAt: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	text := svc.MaintenanceNotice(v, 30)

	assert.Contains(t, text, "A 11111")
	assert.Contains(t, text, "15-01-2024")
	assert.Contains(t, text, "30 days")
}
