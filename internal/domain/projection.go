package domain

import "sort"

// Possession describes a vehicle currently held by a driver.
type Possession struct {
	Plate      string
	HolderID   int64
	HolderName string
	Since      LedgerEntry
}

// PossessionState is the current-possession view derived from the
// ledger. It is a pure value: rebuild it from a fresh read before every
// decision, never cache it across commands.
type PossessionState struct {
	byPlate map[string]Possession
	byActor map[int64]string
	// Skipped counts malformed ledger rows excluded from the fold.
	Skipped int
}

// Project folds ledger entries into the current possession state.
// Entries are sorted by timestamp ascending with a stable sort, so two
// entries with the same timestamp keep their storage order. Malformed
// entries are counted and skipped, never an error.
func Project(entries []LedgerEntry) PossessionState {
	state := PossessionState{
		byPlate: make(map[string]Possession),
		byActor: make(map[int64]string),
	}

	sorted := make([]LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	for _, e := range sorted {
		if !e.Valid() {
			state.Skipped++
			continue
		}
		plate := NormalizePlate(e.Plate)
		if prev, held := state.byPlate[plate]; held {
			delete(state.byActor, prev.HolderID)
		}
		switch e.Action {
		case ActionOut:
			state.byPlate[plate] = Possession{
				Plate:      plate,
				HolderID:   e.ActorID,
				HolderName: e.ActorName,
				Since:      e,
			}
			state.byActor[e.ActorID] = plate
		case ActionIn:
			delete(state.byPlate, plate)
		}
	}
	return state
}

// Holder returns the possession record for a plate, if it is held.
func (s PossessionState) Holder(plate string) (Possession, bool) {
	p, ok := s.byPlate[NormalizePlate(plate)]
	return p, ok
}

// IsHeld reports whether the vehicle has an outstanding take without a
// later return.
func (s PossessionState) IsHeld(plate string) bool {
	_, ok := s.byPlate[NormalizePlate(plate)]
	return ok
}

// HeldBy returns the plate currently held by the actor, if any. An
// actor holds at most one vehicle at a time.
func (s PossessionState) HeldBy(actorID int64) (string, bool) {
	plate, ok := s.byActor[actorID]
	return plate, ok
}

// Available filters the given plates down to those not currently held.
func (s PossessionState) Available(plates []string) []string {
	out := make([]string, 0, len(plates))
	for _, p := range plates {
		if !s.IsHeld(p) {
			out = append(out, p)
		}
	}
	return out
}
