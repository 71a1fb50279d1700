package domain

import "time"

// Action is the kind of a ledger entry. The wire values match the
// historical log sheet, so existing records keep projecting.
type Action string

const (
	// ActionOut records a vehicle being taken.
	ActionOut Action = "out"
	// ActionIn records a vehicle being returned.
	ActionIn Action = "in"
)

// Timestamp layouts. Entries are stored minute-granular as text;
// DisplayLayout is what users see in replies and reports.
const (
	StorageLayout = "2006-01-02 15:04"
	DisplayLayout = "02-01-2006, 03:04 PM"
)

// LedgerEntry is one immutable acquire/release record. Entries are only
// ever appended; ordering is by Timestamp, not by position in storage.
type LedgerEntry struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   int64     `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	Plate     string    `json:"plate"`
	Action    Action    `json:"action"`
}

// NewLedgerEntry builds an entry with a normalized plate, truncated to
// the storage granularity so round-trips through text are lossless.
func NewLedgerEntry(ts time.Time, actorID int64, actorName, plate string, action Action) LedgerEntry {
	return LedgerEntry{
		Timestamp: ts.Truncate(time.Minute),
		ActorID:   actorID,
		ActorName: actorName,
		Plate:     NormalizePlate(plate),
		Action:    action,
	}
}

// Valid reports whether the entry can participate in a projection.
// Rows read back from the external store may carry an unknown action,
// an empty plate, or an unparseable timestamp; those are skipped, never
// fatal.
func (e LedgerEntry) Valid() bool {
	if e.Plate == "" || e.Timestamp.IsZero() {
		return false
	}
	return e.Action == ActionOut || e.Action == ActionIn
}

// DisplayTime formats the entry timestamp for user-facing text in the
// given location.
func (e LedgerEntry) DisplayTime(loc *time.Location) string {
	return e.Timestamp.In(loc).Format(DisplayLayout)
}
