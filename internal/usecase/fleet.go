package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/gate"
	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/retry"
	"github.com/motorpool/motorpool/internal/service/logger"
)

// Gate key namespaces. Prefixes keep plates, actor ids, request ids
// and requester ids from colliding in the shared gate. Locks nest
// vehicle before actor, never the other way around.
func vehicleKey(plate string) string { return "vehicle:" + plate }
func actorKey(id int64) string       { return "actor:" + strconv.FormatInt(id, 10) }
func requestKey(id string) string    { return "request:" + id }
func requesterKey(id int64) string   { return "requester:" + strconv.FormatInt(id, 10) }

// VehicleStatus is one line of the fleet status view.
type VehicleStatus struct {
	Plate       string    `json:"plate"`
	Description string    `json:"description,omitempty"`
	Held        bool      `json:"held"`
	HolderID    int64     `json:"holder_id,omitempty"`
	HolderName  string    `json:"holder_name,omitempty"`
	Since       time.Time `json:"since,omitempty"`
}

// FleetUseCase validates and executes vehicle commands against a fresh
// projection of the ledger. Every mutation follows read fresh, validate,
// append, serialized per plate through the gate (acquire also per
// actor); store calls go through the retry shell.
type FleetUseCase struct {
	ledger    ports.LedgerStore
	vehicles  ports.VehicleStore
	notifier  ports.Notifier
	gate      *gate.Gate
	retry     retry.Config
	log       logger.Logger
	loc       *time.Location
	adminChat string
	now       func() time.Time
}

// NewFleetUseCase creates a fleet use case.
func NewFleetUseCase(
	ledger ports.LedgerStore,
	vehicles ports.VehicleStore,
	notifier ports.Notifier,
	g *gate.Gate,
	retryCfg retry.Config,
	log logger.Logger,
	loc *time.Location,
	adminChat string,
) *FleetUseCase {
	return &FleetUseCase{
		ledger:    ledger,
		vehicles:  vehicles,
		notifier:  notifier,
		gate:      g,
		retry:     retryCfg,
		log:       log,
		loc:       loc,
		adminChat: adminChat,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used in tests.
func (uc *FleetUseCase) WithClock(now func() time.Time) *FleetUseCase {
	uc.now = now
	return uc
}

// Acquire records the actor taking the vehicle. Fails with
// domain.ErrAlreadyHolding when the actor still holds another vehicle,
// domain.ErrVehicleUnavailable when the vehicle is out, and
// domain.ErrVehicleNotFound for an unregistered plate.
func (uc *FleetUseCase) Acquire(ctx context.Context, actorID int64, actorName, plate string) (*domain.LedgerEntry, error) {
	plate = domain.NormalizePlate(plate)
	if plate == "" {
		return nil, domain.ErrVehicleNotFound
	}

	var entry domain.LedgerEntry
	// The actor lock closes the window where the same actor acquiring
	// two different plates passes both HeldBy checks.
	err := uc.gate.Do(vehicleKey(plate), func() error {
		return uc.gate.Do(actorKey(actorID), func() error {
			if _, err := uc.vehicles.Find(ctx, plate); err != nil {
				return err
			}

			state, err := uc.projection(ctx)
			if err != nil {
				return err
			}
			if held, ok := state.HeldBy(actorID); ok {
				return fmt.Errorf("%w: %s", domain.ErrAlreadyHolding, held)
			}
			if state.IsHeld(plate) {
				return domain.ErrVehicleUnavailable
			}

			entry = domain.NewLedgerEntry(uc.now(), actorID, actorName, plate, domain.ActionOut)
			return uc.appendEntry(ctx, entry)
		})
	})
	if err != nil {
		return nil, err
	}

	uc.notifyAdmins(ctx, fmt.Sprintf("%s taken by %s at %s", plate, actorName, entry.DisplayTime(uc.loc)))
	return &entry, nil
}

// Release records the actor returning the vehicle. Fails with
// domain.ErrNotHolder unless the projected holder is the actor; nothing
// is appended on failure.
func (uc *FleetUseCase) Release(ctx context.Context, actorID int64, actorName, plate string) (*domain.LedgerEntry, error) {
	plate = domain.NormalizePlate(plate)

	var entry domain.LedgerEntry
	err := uc.gate.Do(vehicleKey(plate), func() error {
		state, err := uc.projection(ctx)
		if err != nil {
			return err
		}
		holder, held := state.Holder(plate)
		if !held || holder.HolderID != actorID {
			return domain.ErrNotHolder
		}

		entry = domain.NewLedgerEntry(uc.now(), actorID, actorName, plate, domain.ActionIn)
		return uc.appendEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	uc.notifyAdmins(ctx, fmt.Sprintf("%s returned by %s at %s", plate, actorName, entry.DisplayTime(uc.loc)))
	return &entry, nil
}

// ListAvailable returns registered vehicles with no outstanding take.
// Always a fresh projection, never cached.
func (uc *FleetUseCase) ListAvailable(ctx context.Context) ([]*domain.Vehicle, error) {
	vehicles, err := uc.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	state, err := uc.projection(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if !state.IsHeld(v.Plate) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ListHeldBy returns the possession currently held by the actor, or nil
// when the actor holds nothing.
func (uc *FleetUseCase) ListHeldBy(ctx context.Context, actorID int64) (*domain.Possession, error) {
	state, err := uc.projection(ctx)
	if err != nil {
		return nil, err
	}
	plate, ok := state.HeldBy(actorID)
	if !ok {
		return nil, nil
	}
	holder, _ := state.Holder(plate)
	return &holder, nil
}

// Status returns one line per registered vehicle with its projected
// possession.
func (uc *FleetUseCase) Status(ctx context.Context) ([]VehicleStatus, error) {
	vehicles, err := uc.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	state, err := uc.projection(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]VehicleStatus, 0, len(vehicles))
	for _, v := range vehicles {
		status := VehicleStatus{Plate: v.Plate, Description: v.Description}
		if holder, held := state.Holder(v.Plate); held {
			status.Held = true
			status.HolderID = holder.HolderID
			status.HolderName = holder.HolderName
			status.Since = holder.Since.Timestamp
		}
		out = append(out, status)
	}
	return out, nil
}

// History returns the most recent valid entries, oldest first, capped
// at limit when limit is positive.
func (uc *FleetUseCase) History(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	entries, err := uc.readEntries(ctx)
	if err != nil {
		return nil, err
	}

	valid := entries[:0]
	for _, e := range entries {
		if e.Valid() {
			valid = append(valid, e)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})
	if limit > 0 && len(valid) > limit {
		valid = valid[len(valid)-limit:]
	}
	return valid, nil
}

// SearchHistory returns valid entries for the plate on the given
// calendar day, evaluated in the configured location.
func (uc *FleetUseCase) SearchHistory(ctx context.Context, plate string, day time.Time) ([]domain.LedgerEntry, error) {
	plate = domain.NormalizePlate(plate)
	entries, err := uc.History(ctx, 0)
	if err != nil {
		return nil, err
	}

	y, m, d := day.In(uc.loc).Date()
	var out []domain.LedgerEntry
	for _, e := range entries {
		if e.Plate != plate {
			continue
		}
		ey, em, ed := e.Timestamp.In(uc.loc).Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out, nil
}

// AddVehicle registers a new vehicle. Fails with
// domain.ErrVehicleExists on a duplicate plate.
func (uc *FleetUseCase) AddVehicle(ctx context.Context, plate, description string) (*domain.Vehicle, error) {
	plate = domain.NormalizePlate(plate)
	if plate == "" {
		return nil, domain.ErrVehicleNotFound
	}

	v := domain.NewVehicle(plate, description, uc.now())
	err := uc.gate.Do(vehicleKey(plate), func() error {
		return uc.vehicles.Add(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// RemoveVehicle unregisters a vehicle. Fails with
// domain.ErrVehicleInUse while the projected state shows it held.
func (uc *FleetUseCase) RemoveVehicle(ctx context.Context, plate string) error {
	plate = domain.NormalizePlate(plate)

	return uc.gate.Do(vehicleKey(plate), func() error {
		if _, err := uc.vehicles.Find(ctx, plate); err != nil {
			return err
		}
		state, err := uc.projection(ctx)
		if err != nil {
			return err
		}
		if state.IsHeld(plate) {
			return domain.ErrVehicleInUse
		}
		return uc.vehicles.Remove(ctx, plate)
	})
}

// MarkServiced resets the maintenance clock for a vehicle.
func (uc *FleetUseCase) MarkServiced(ctx context.Context, plate string) error {
	plate = domain.NormalizePlate(plate)
	return uc.gate.Do(vehicleKey(plate), func() error {
		return uc.vehicles.MarkServiced(ctx, plate, uc.now())
	})
}

// MaintenanceDue returns vehicles past the service interval.
func (uc *FleetUseCase) MaintenanceDue(ctx context.Context, intervalDays int) ([]*domain.Vehicle, error) {
	vehicles, err := uc.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	now := uc.now()
	var out []*domain.Vehicle
	for _, v := range vehicles {
		if v.MaintenanceDue(now, intervalDays) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (uc *FleetUseCase) readEntries(ctx context.Context) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := uc.retry.Do(ctx, "ledger read", func(ctx context.Context) error {
		var readErr error
		entries, readErr = uc.ledger.ReadAll(ctx)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (uc *FleetUseCase) projection(ctx context.Context) (domain.PossessionState, error) {
	entries, err := uc.readEntries(ctx)
	if err != nil {
		return domain.PossessionState{}, err
	}
	state := domain.Project(entries)
	if state.Skipped > 0 {
		uc.log.Warn(ctx, "Skipped malformed ledger rows", map[string]interface{}{
			"skipped": state.Skipped,
			"total":   len(entries),
		})
	}
	return state, nil
}

func (uc *FleetUseCase) appendEntry(ctx context.Context, entry domain.LedgerEntry) error {
	return uc.retry.Do(ctx, "ledger append", func(ctx context.Context) error {
		return uc.ledger.Append(ctx, entry)
	})
}

func (uc *FleetUseCase) notifyAdmins(ctx context.Context, text string) {
	if uc.notifier == nil || uc.adminChat == "" {
		return
	}
	if err := uc.notifier.SendMessage(ctx, uc.adminChat, text, nil); err != nil {
		uc.log.Error(ctx, "Failed to notify admin chat", err, map[string]interface{}{
			"recipient": uc.adminChat,
		})
	}
}
