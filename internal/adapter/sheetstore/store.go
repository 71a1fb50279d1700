package sheetstore

import (
	"context"
	"strconv"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// Worksheets names the tabs used inside the document.
type Worksheets struct {
	Log      string
	Cars     string
	Drivers  string
	Requests string
	Settings string
}

// DefaultWorksheets returns the standard tab names.
func DefaultWorksheets() Worksheets {
	return Worksheets{
		Log:      "Log",
		Cars:     "Cars",
		Drivers:  "Drivers",
		Requests: "Requests",
		Settings: "Settings",
	}
}

// Store exposes the five store ports over one spreadsheet document.
type Store struct {
	client *Client
	sheets Worksheets
	loc    *time.Location
}

// New creates a Store. Timestamps are written to and parsed from cells
// in loc.
func New(client *Client, sheets Worksheets, loc *time.Location) *Store {
	return &Store{client: client, sheets: sheets, loc: loc}
}

// EnsureSheets creates any missing worksheet with its header row.
func (s *Store) EnsureSheets(ctx context.Context) error {
	headers := map[string][]string{
		s.sheets.Log:      {"Timestamp", "Driver Name", "Driver ID", "Car Plate", "Action"},
		s.sheets.Cars:     {"Plate", "Description", "Added At", "Serviced At"},
		s.sheets.Drivers:  {"ID", "Display Name", "Role", "Created At"},
		s.sheets.Requests: {"ID", "Requester ID", "Display Name", "Status", "Wake At", "Created At", "Updated At"},
		s.sheets.Settings: {"Key", "Value"},
	}
	for _, name := range []string{s.sheets.Log, s.sheets.Cars, s.sheets.Drivers, s.sheets.Requests, s.sheets.Settings} {
		if err := s.client.EnsureWorksheet(ctx, name, headers[name]); err != nil {
			return err
		}
	}
	return nil
}

// Ledger returns the append-only ledger view.
func (s *Store) Ledger() ports.LedgerStore { return ledgerSheet{s} }

// Vehicles returns the vehicle view.
func (s *Store) Vehicles() ports.VehicleStore { return vehicleSheet{s} }

// Actors returns the actor view.
func (s *Store) Actors() ports.ActorStore { return actorSheet{s} }

// Requests returns the access-request view.
func (s *Store) Requests() ports.RequestStore { return requestSheet{s} }

// Settings returns the settings view.
func (s *Store) Settings() ports.SettingStore { return settingSheet{s} }

func (s *Store) formatTime(t time.Time) string {
	return t.In(s.loc).Format(domain.StorageLayout)
}

func (s *Store) parseTime(cell string) (time.Time, error) {
	return time.ParseInLocation(domain.StorageLayout, cell, s.loc)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

type ledgerSheet struct{ s *Store }

func (v ledgerSheet) Append(ctx context.Context, entry domain.LedgerEntry) error {
	return v.s.client.Append(ctx, v.s.sheets.Log, []string{
		v.s.formatTime(entry.Timestamp),
		entry.ActorName,
		strconv.FormatInt(entry.ActorID, 10),
		entry.Plate,
		string(entry.Action),
	})
}

// ReadAll maps every row to an entry. Cells that fail to parse leave
// the zero value in place, which makes the entry invalid so the
// projection skips and counts it instead of failing the read.
func (v ledgerSheet) ReadAll(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Log)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		var entry domain.LedgerEntry
		if ts, err := v.s.parseTime(cell(row, 0)); err == nil {
			entry.Timestamp = ts
		}
		entry.ActorName = cell(row, 1)
		if id, err := strconv.ParseInt(cell(row, 2), 10, 64); err == nil {
			entry.ActorID = id
		}
		entry.Plate = domain.NormalizePlate(cell(row, 3))
		entry.Action = domain.Action(cell(row, 4))
		entries = append(entries, entry)
	}

	return entries, nil
}

type vehicleSheet struct{ s *Store }

func (v vehicleSheet) Add(ctx context.Context, veh *domain.Vehicle) error {
	_, _, err := v.find(ctx, veh.Plate)
	if err == nil {
		return domain.ErrVehicleExists
	}
	if err != domain.ErrVehicleNotFound {
		return err
	}
	return v.s.client.Append(ctx, v.s.sheets.Cars, v.encode(veh))
}

func (v vehicleSheet) Find(ctx context.Context, plate string) (*domain.Vehicle, error) {
	veh, _, err := v.find(ctx, plate)
	return veh, err
}

func (v vehicleSheet) List(ctx context.Context) ([]*domain.Vehicle, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Cars)
	if err != nil {
		return nil, err
	}
	vehicles := make([]*domain.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicles = append(vehicles, v.decode(row))
	}
	return vehicles, nil
}

func (v vehicleSheet) Remove(ctx context.Context, plate string) error {
	_, index, err := v.find(ctx, plate)
	if err != nil {
		return err
	}
	return v.s.client.DeleteRow(ctx, v.s.sheets.Cars, index)
}

func (v vehicleSheet) MarkServiced(ctx context.Context, plate string, at time.Time) error {
	veh, index, err := v.find(ctx, plate)
	if err != nil {
		return err
	}
	veh.ServicedAt = at
	return v.s.client.UpdateRow(ctx, v.s.sheets.Cars, index, v.encode(veh))
}

func (v vehicleSheet) find(ctx context.Context, plate string) (*domain.Vehicle, int, error) {
	plate = domain.NormalizePlate(plate)
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Cars)
	if err != nil {
		return nil, 0, err
	}
	for i, row := range rows {
		if domain.NormalizePlate(cell(row, 0)) == plate {
			return v.decode(row), i, nil
		}
	}
	return nil, 0, domain.ErrVehicleNotFound
}

func (v vehicleSheet) encode(veh *domain.Vehicle) []string {
	return []string{
		veh.Plate,
		veh.Description,
		v.s.formatTime(veh.AddedAt),
		v.s.formatTime(veh.ServicedAt),
	}
}

func (v vehicleSheet) decode(row []string) *domain.Vehicle {
	veh := &domain.Vehicle{
		Plate:       domain.NormalizePlate(cell(row, 0)),
		Description: cell(row, 1),
	}
	if t, err := v.s.parseTime(cell(row, 2)); err == nil {
		veh.AddedAt = t
	}
	if t, err := v.s.parseTime(cell(row, 3)); err == nil {
		veh.ServicedAt = t
	}
	return veh
}

type actorSheet struct{ s *Store }

func (v actorSheet) Add(ctx context.Context, a *domain.Actor) error {
	if _, index, err := v.find(ctx, a.ID); err == nil {
		return v.s.client.UpdateRow(ctx, v.s.sheets.Drivers, index, v.encode(a))
	} else if err != domain.ErrActorNotFound {
		return err
	}
	return v.s.client.Append(ctx, v.s.sheets.Drivers, v.encode(a))
}

func (v actorSheet) Find(ctx context.Context, id int64) (*domain.Actor, error) {
	a, _, err := v.find(ctx, id)
	return a, err
}

func (v actorSheet) List(ctx context.Context) ([]*domain.Actor, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Drivers)
	if err != nil {
		return nil, err
	}
	actors := make([]*domain.Actor, 0, len(rows))
	for _, row := range rows {
		actors = append(actors, v.decode(row))
	}
	return actors, nil
}

func (v actorSheet) Remove(ctx context.Context, id int64) error {
	_, index, err := v.find(ctx, id)
	if err != nil {
		return err
	}
	return v.s.client.DeleteRow(ctx, v.s.sheets.Drivers, index)
}

func (v actorSheet) find(ctx context.Context, id int64) (*domain.Actor, int, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Drivers)
	if err != nil {
		return nil, 0, err
	}
	for i, row := range rows {
		if rowID, err := strconv.ParseInt(cell(row, 0), 10, 64); err == nil && rowID == id {
			return v.decode(row), i, nil
		}
	}
	return nil, 0, domain.ErrActorNotFound
}

func (v actorSheet) encode(a *domain.Actor) []string {
	return []string{
		strconv.FormatInt(a.ID, 10),
		a.DisplayName,
		string(a.Role),
		v.s.formatTime(a.CreatedAt),
	}
}

func (v actorSheet) decode(row []string) *domain.Actor {
	a := &domain.Actor{
		DisplayName: cell(row, 1),
		Role:        domain.Role(cell(row, 2)),
	}
	if id, err := strconv.ParseInt(cell(row, 0), 10, 64); err == nil {
		a.ID = id
	}
	if t, err := v.s.parseTime(cell(row, 3)); err == nil {
		a.CreatedAt = t
	}
	return a
}

type requestSheet struct{ s *Store }

func (v requestSheet) Create(ctx context.Context, r *domain.AccessRequest) error {
	return v.s.client.Append(ctx, v.s.sheets.Requests, v.encode(r))
}

func (v requestSheet) Find(ctx context.Context, id string) (*domain.AccessRequest, error) {
	r, _, err := v.find(ctx, id)
	return r, err
}

func (v requestSheet) FindByRequester(ctx context.Context, requesterID int64) (*domain.AccessRequest, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Requests)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		r := v.decode(row)
		if r.RequesterID == requesterID && !r.Resolved() {
			return r, nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

// Update re-reads the row and gives up when the stored status no longer
// matches. Without conditional writes in the API this check is only as
// strong as the in-process gate around it.
func (v requestSheet) Update(ctx context.Context, r *domain.AccessRequest, from domain.RequestStatus) error {
	stored, index, err := v.find(ctx, r.ID)
	if err != nil {
		return err
	}
	if stored.Status != from {
		return domain.ErrRequestAlreadyResolved
	}
	return v.s.client.UpdateRow(ctx, v.s.sheets.Requests, index, v.encode(r))
}

func (v requestSheet) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]*domain.AccessRequest, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Requests)
	if err != nil {
		return nil, err
	}
	var requests []*domain.AccessRequest
	for _, row := range rows {
		if r := v.decode(row); r.Status == status {
			requests = append(requests, r)
		}
	}
	return requests, nil
}

func (v requestSheet) ListSnoozedDue(ctx context.Context, now time.Time) ([]*domain.AccessRequest, error) {
	snoozed, err := v.ListByStatus(ctx, domain.RequestSnoozed)
	if err != nil {
		return nil, err
	}
	var due []*domain.AccessRequest
	for _, r := range snoozed {
		if r.WakeAt != nil && !r.WakeAt.After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}

func (v requestSheet) find(ctx context.Context, id string) (*domain.AccessRequest, int, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Requests)
	if err != nil {
		return nil, 0, err
	}
	for i, row := range rows {
		if cell(row, 0) == id {
			return v.decode(row), i, nil
		}
	}
	return nil, 0, domain.ErrRequestNotFound
}

func (v requestSheet) encode(r *domain.AccessRequest) []string {
	wakeAt := ""
	if r.WakeAt != nil {
		wakeAt = v.s.formatTime(*r.WakeAt)
	}
	return []string{
		r.ID,
		strconv.FormatInt(r.RequesterID, 10),
		r.DisplayName,
		string(r.Status),
		wakeAt,
		v.s.formatTime(r.CreatedAt),
		v.s.formatTime(r.UpdatedAt),
	}
}

func (v requestSheet) decode(row []string) *domain.AccessRequest {
	r := &domain.AccessRequest{
		ID:          cell(row, 0),
		DisplayName: cell(row, 2),
		Status:      domain.RequestStatus(cell(row, 3)),
	}
	if id, err := strconv.ParseInt(cell(row, 1), 10, 64); err == nil {
		r.RequesterID = id
	}
	if t, err := v.s.parseTime(cell(row, 4)); err == nil {
		r.WakeAt = &t
	}
	if t, err := v.s.parseTime(cell(row, 5)); err == nil {
		r.CreatedAt = t
	}
	if t, err := v.s.parseTime(cell(row, 6)); err == nil {
		r.UpdatedAt = t
	}
	return r
}

type settingSheet struct{ s *Store }

func (v settingSheet) All(ctx context.Context) (map[string]string, error) {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Settings)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		if key := cell(row, 0); key != "" {
			values[key] = cell(row, 1)
		}
	}
	return values, nil
}

func (v settingSheet) Set(ctx context.Context, key, value string) error {
	rows, err := v.s.client.Rows(ctx, v.s.sheets.Settings)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if cell(row, 0) == key {
			return v.s.client.UpdateRow(ctx, v.s.sheets.Settings, i, []string{key, value})
		}
	}
	return v.s.client.Append(ctx, v.s.sheets.Settings, []string{key, value})
}
