// Package memory provides in-memory store implementations. They back
// the test suites and local development without an external record
// store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// Store holds every record set in process memory. The per-port views
// returned by Ledger, Vehicles, Actors, Requests and Settings all share
// the same data under one mutex. Ledger failures can be scripted to
// exercise the retry shell.
type Store struct {
	mu       sync.Mutex
	entries  []domain.LedgerEntry
	vehicles map[string]*domain.Vehicle
	actors   map[int64]*domain.Actor
	requests map[string]*domain.AccessRequest
	settings map[string]string
	failures map[string][]error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		vehicles: make(map[string]*domain.Vehicle),
		actors:   make(map[int64]*domain.Actor),
		requests: make(map[string]*domain.AccessRequest),
		settings: make(map[string]string),
		failures: make(map[string][]error),
	}
}

// Ledger returns the ledger view.
func (s *Store) Ledger() ports.LedgerStore { return ledgerView{s} }

// Vehicles returns the vehicle view.
func (s *Store) Vehicles() ports.VehicleStore { return vehicleView{s} }

// Actors returns the actor view.
func (s *Store) Actors() ports.ActorStore { return actorView{s} }

// Requests returns the access-request view.
func (s *Store) Requests() ports.RequestStore { return requestView{s} }

// Settings returns the settings view.
func (s *Store) Settings() ports.SettingStore { return settingView{s} }

// FailNext scripts the next n calls of op ("append", "read_all",
// "actor_add") to return err instead of taking effect.
func (s *Store) FailNext(op string, err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[op] = append(s.failures[op], err)
	}
}

func (s *Store) scriptedFailure(op string) error {
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.failures[op] = queue[1:]
	return err
}

type ledgerView struct{ s *Store }

func (v ledgerView) Append(ctx context.Context, entry domain.LedgerEntry) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.s.scriptedFailure("append"); err != nil {
		return err
	}
	v.s.entries = append(v.s.entries, entry)
	return nil
}

func (v ledgerView) ReadAll(ctx context.Context) ([]domain.LedgerEntry, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.s.scriptedFailure("read_all"); err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, len(v.s.entries))
	copy(out, v.s.entries)
	return out, nil
}

type vehicleView struct{ s *Store }

func (v vehicleView) Add(ctx context.Context, veh *domain.Vehicle) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.vehicles[veh.Plate]; ok {
		return domain.ErrVehicleExists
	}
	copied := *veh
	v.s.vehicles[veh.Plate] = &copied
	return nil
}

func (v vehicleView) Find(ctx context.Context, plate string) (*domain.Vehicle, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	veh, ok := v.s.vehicles[domain.NormalizePlate(plate)]
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	copied := *veh
	return &copied, nil
}

func (v vehicleView) List(ctx context.Context) ([]*domain.Vehicle, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]*domain.Vehicle, 0, len(v.s.vehicles))
	for _, veh := range v.s.vehicles {
		copied := *veh
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out, nil
}

func (v vehicleView) Remove(ctx context.Context, plate string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	plate = domain.NormalizePlate(plate)
	if _, ok := v.s.vehicles[plate]; !ok {
		return domain.ErrVehicleNotFound
	}
	delete(v.s.vehicles, plate)
	return nil
}

func (v vehicleView) MarkServiced(ctx context.Context, plate string, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	veh, ok := v.s.vehicles[domain.NormalizePlate(plate)]
	if !ok {
		return domain.ErrVehicleNotFound
	}
	veh.ServicedAt = at
	return nil
}

type actorView struct{ s *Store }

func (v actorView) Add(ctx context.Context, a *domain.Actor) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if err := v.s.scriptedFailure("actor_add"); err != nil {
		return err
	}
	copied := *a
	v.s.actors[a.ID] = &copied
	return nil
}

func (v actorView) Find(ctx context.Context, id int64) (*domain.Actor, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	a, ok := v.s.actors[id]
	if !ok {
		return nil, domain.ErrActorNotFound
	}
	copied := *a
	return &copied, nil
}

func (v actorView) List(ctx context.Context) ([]*domain.Actor, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]*domain.Actor, 0, len(v.s.actors))
	for _, a := range v.s.actors {
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v actorView) Remove(ctx context.Context, id int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.actors[id]; !ok {
		return domain.ErrActorNotFound
	}
	delete(v.s.actors, id)
	return nil
}

type requestView struct{ s *Store }

func (v requestView) Create(ctx context.Context, r *domain.AccessRequest) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	copied := *r
	v.s.requests[r.ID] = &copied
	return nil
}

func (v requestView) Find(ctx context.Context, id string) (*domain.AccessRequest, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.requests[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	copied := *r
	return &copied, nil
}

func (v requestView) FindByRequester(ctx context.Context, requesterID int64) (*domain.AccessRequest, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, r := range v.s.requests {
		if r.RequesterID == requesterID && !r.Resolved() {
			copied := *r
			return &copied, nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

// Update persists r only while the stored status still equals from,
// which makes concurrent decisions first-committed-wins.
func (v requestView) Update(ctx context.Context, r *domain.AccessRequest, from domain.RequestStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	stored, ok := v.s.requests[r.ID]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if stored.Status != from {
		return domain.ErrRequestAlreadyResolved
	}
	copied := *r
	v.s.requests[r.ID] = &copied
	return nil
}

func (v requestView) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.AccessRequest, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*domain.AccessRequest
	for _, r := range v.s.requests {
		if r.Status == status {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (v requestView) ListSnoozedDue(ctx context.Context, now time.Time) ([]*domain.AccessRequest, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*domain.AccessRequest
	for _, r := range v.s.requests {
		if r.Status == domain.RequestSnoozed && r.WakeAt != nil && !now.Before(*r.WakeAt) {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type settingView struct{ s *Store }

func (v settingView) All(ctx context.Context) (map[string]string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make(map[string]string, len(v.s.settings))
	for k, val := range v.s.settings {
		out[k] = val
	}
	return out, nil
}

func (v settingView) Set(ctx context.Context, key, value string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.settings[key] = value
	return nil
}
