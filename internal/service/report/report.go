// Package report renders ledger sequences into human-readable
// summaries and CSV exports. Rendering is pure; callers fetch the
// entries.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
)

// Service renders reports in a fixed location.
type Service struct {
	loc *time.Location
}

// NewService creates a report service.
func NewService(loc *time.Location) *Service {
	return &Service{loc: loc}
}

// Summary renders a usage summary for entries with timestamps in
// [since, until): takes per vehicle, most active drivers, and vehicles
// still out at the end of the window.
func (s *Service) Summary(entries []domain.LedgerEntry, since, until time.Time) string {
	takesPerVehicle := make(map[string]int)
	takesPerDriver := make(map[string]int)
	inWindow := 0

	for _, e := range entries {
		if !e.Valid() {
			continue
		}
		if e.Timestamp.Before(since) || !e.Timestamp.Before(until) {
			continue
		}
		inWindow++
		if e.Action == domain.ActionOut {
			takesPerVehicle[e.Plate]++
			takesPerDriver[e.ActorName]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Usage summary %s - %s\n",
		since.In(s.loc).Format("02-01-2006"),
		until.In(s.loc).Format("02-01-2006"))

	if inWindow == 0 {
		b.WriteString("No movements recorded.\n")
		return b.String()
	}

	b.WriteString("\nTakes per vehicle:\n")
	for _, line := range sortedCounts(takesPerVehicle) {
		b.WriteString(line + "\n")
	}

	b.WriteString("\nMost active drivers:\n")
	for _, line := range sortedCounts(takesPerDriver) {
		b.WriteString(line + "\n")
	}

	state := domain.Project(entries)
	var out []string
	for plate := range takesPerVehicle {
		if holder, held := state.Holder(plate); held {
			out = append(out, fmt.Sprintf("%s (%s since %s)", plate, holder.HolderName, holder.Since.DisplayTime(s.loc)))
		}
	}
	if len(out) > 0 {
		sort.Strings(out)
		b.WriteString("\nStill out:\n")
		for _, line := range out {
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// MaintenanceNotice renders the maintenance-due line for a vehicle.
func (s *Service) MaintenanceNotice(v *domain.Vehicle, intervalDays int) string {
	return fmt.Sprintf("%s is due for service: last serviced %s, interval %d days",
		v.Plate, v.ServicedAt.In(s.loc).Format("02-01-2006"), intervalDays)
}

// WriteCSV exports valid entries as CSV, oldest first, in the service
// location. Cells are written as text to match the record store.
func (s *Service) WriteCSV(w io.Writer, entries []domain.LedgerEntry) error {
	sorted := make([]domain.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if e.Valid() {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Driver Name", "Driver ID", "Car Plate", "Action"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range sorted {
		record := []string{
			e.Timestamp.In(s.loc).Format(domain.StorageLayout),
			e.ActorName,
			strconv.FormatInt(e.ActorID, 10),
			e.Plate,
			string(e.Action),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func sortedCounts(counts map[string]int) []string {
	type kv struct {
		key   string
		count int
	}
	pairs := make([]kv, 0, len(counts))
	for k, c := range counts {
		pairs = append(pairs, kv{k, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].key < pairs[j].key
	})
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, fmt.Sprintf("%s: %d", p.key, p.count))
	}
	return out
}
