package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorpool/motorpool/internal/adapter/memory"
	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/gate"
	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/retry"
	"github.com/motorpool/motorpool/internal/service/logger"
)

const adminChat = "admin-chat"

type fleetFixture struct {
	uc       *FleetUseCase
	store    *memory.Store
	notifier *memory.Notifier
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFleetFixture(t *testing.T) *fleetFixture {
	t.Helper()
	store := memory.New()
	notifier := memory.NewNotifier()
	clock := newFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	uc := NewFleetUseCase(
		store.Ledger(),
		store.Vehicles(),
		notifier,
		gate.New(),
		retry.Config{MaxAttempts: 3, Base: time.Millisecond, Multiplier: 2},
		logger.Noop(),
		time.UTC,
		adminChat,
	).WithClock(clock.Now)

	return &fleetFixture{uc: uc, store: store, notifier: notifier, clock: clock}
}

func (f *fleetFixture) addVehicle(t *testing.T, plate string) {
	t.Helper()
	_, err := f.uc.AddVehicle(context.Background(), plate, "")
	require.NoError(t, err)
}

func TestFleetAcquireAndRelease(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")
	f.addVehicle(t, "V2")

	entry, err := f.uc.Acquire(ctx, 1, "Alice", "v1 ")
	require.NoError(t, err)
	assert.Equal(t, "V1", entry.Plate)
	assert.Equal(t, domain.ActionOut, entry.Action)

	available, err := f.uc.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "V2", available[0].Plate)

	held, err := f.uc.ListHeldBy(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, "V1", held.Plate)

	f.clock.Advance(30 * time.Minute)
	_, err = f.uc.Release(ctx, 1, "Alice", "V1")
	require.NoError(t, err)

	available, err = f.uc.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	// Admin chat saw the take and the return.
	assert.Len(t, f.notifier.SentTo(adminChat), 2)
}

func TestFleetAcquireValidation(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")
	f.addVehicle(t, "V2")

	_, err := f.uc.Acquire(ctx, 1, "Alice", "V1")
	require.NoError(t, err)

	// Another driver cannot take a held vehicle.
	_, err = f.uc.Acquire(ctx, 2, "Bob", "V1")
	assert.ErrorIs(t, err, domain.ErrVehicleUnavailable)

	// A holder cannot take a second vehicle.
	_, err = f.uc.Acquire(ctx, 1, "Alice", "V2")
	assert.ErrorIs(t, err, domain.ErrAlreadyHolding)

	// Unknown plates are rejected before any append.
	_, err = f.uc.Acquire(ctx, 2, "Bob", "V9")
	assert.ErrorIs(t, err, domain.ErrVehicleNotFound)

	entries, err := f.store.Ledger().ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed commands must append nothing")
}

func TestFleetReleaseByNonHolder(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	_, err := f.uc.Acquire(ctx, 1, "Alice", "V1")
	require.NoError(t, err)

	_, err = f.uc.Release(ctx, 2, "Bob", "V1")
	assert.ErrorIs(t, err, domain.ErrNotHolder)

	entries, err := f.store.Ledger().ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a refused release must append nothing")
}

func TestFleetHandoverScenario(t *testing.T) {
	// A takes V1, attempts by others fail while held, A returns, B
	// takes; final holder is B.
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	_, err := f.uc.Acquire(ctx, 1, "A", "V1")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	_, err = f.uc.Acquire(ctx, 2, "B", "V1")
	assert.ErrorIs(t, err, domain.ErrVehicleUnavailable)

	f.clock.Advance(10 * time.Minute)
	_, err = f.uc.Release(ctx, 1, "A", "V1")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	_, err = f.uc.Acquire(ctx, 2, "B", "V1")
	require.NoError(t, err)

	held, err := f.uc.ListHeldBy(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, int64(2), held.HolderID)
}

func TestFleetConcurrentAcquireSameVehicle(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.uc.Acquire(ctx, int64(i+1), "Driver", "V1")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrVehicleUnavailable)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of two racing acquires may win")

	entries, err := f.store.Ledger().ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFleetConcurrentAcquireTwoVehiclesSameActor(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")
	f.addVehicle(t, "V2")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, plate := range []string{"V1", "V2"} {
		wg.Add(1)
		go func(i int, plate string) {
			defer wg.Done()
			_, results[i] = f.uc.Acquire(ctx, 7, "Driver", plate)
		}(i, plate)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrAlreadyHolding)
		}
	}
	assert.Equal(t, 1, succeeded, "an actor holds at most one vehicle")

	entries, err := f.store.Ledger().ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFleetAcquireRetriesTransientFailures(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	f.store.FailNext("append", ports.ErrStoreUnavailable, 2)

	_, err := f.uc.Acquire(ctx, 1, "Alice", "V1")
	require.NoError(t, err, "two transient failures within three attempts must succeed")

	entries, err := f.store.Ledger().ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFleetAcquireSurfacesExhaustedRetries(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	f.store.FailNext("append", ports.ErrRateLimited, 3)

	_, err := f.uc.Acquire(ctx, 1, "Alice", "V1")
	assert.ErrorIs(t, err, ports.ErrOperationFailed)

	entries, readErr := f.store.Ledger().ReadAll(ctx)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "a failed append leaves no partial entry")
}

func TestFleetRemoveVehicle(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	_, err := f.uc.Acquire(ctx, 1, "Alice", "V1")
	require.NoError(t, err)

	err = f.uc.RemoveVehicle(ctx, "V1")
	assert.ErrorIs(t, err, domain.ErrVehicleInUse)

	_, err = f.uc.Release(ctx, 1, "Alice", "V1")
	require.NoError(t, err)

	require.NoError(t, f.uc.RemoveVehicle(ctx, "V1"))
	err = f.uc.RemoveVehicle(ctx, "V1")
	assert.ErrorIs(t, err, domain.ErrVehicleNotFound)
}

func TestFleetAddVehicleDuplicate(t *testing.T) {
	f := newFleetFixture(t)
	f.addVehicle(t, "V1")

	_, err := f.uc.AddVehicle(context.Background(), " v1", "spare key missing")
	assert.ErrorIs(t, err, domain.ErrVehicleExists)
}

func TestFleetHistoryAndSearch(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")
	f.addVehicle(t, "V2")

	_, err := f.uc.Acquire(ctx, 1, "Alice", "V1")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.uc.Release(ctx, 1, "Alice", "V1")
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)
	_, err = f.uc.Acquire(ctx, 2, "Bob", "V2")
	require.NoError(t, err)

	history, err := f.uc.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ActionIn, history[0].Action)
	assert.Equal(t, "V2", history[1].Plate)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	found, err := f.uc.SearchHistory(ctx, "v1", day)
	require.NoError(t, err)
	assert.Len(t, found, 2, "both V1 movements happened on the first")

	found, err = f.uc.SearchHistory(ctx, "V2", day)
	require.NoError(t, err)
	assert.Empty(t, found, "V2 was taken the day after")
}

func TestFleetMaintenanceDue(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	f.clock.Advance(10 * 24 * time.Hour)
	f.addVehicle(t, "V2")

	f.clock.Advance(25 * 24 * time.Hour)
	due, err := f.uc.MaintenanceDue(ctx, 30)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "V1", due[0].Plate)

	require.NoError(t, f.uc.MarkServiced(ctx, "V1"))
	due, err = f.uc.MaintenanceDue(ctx, 30)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestFleetProjectionToleratesForeignRows(t *testing.T) {
	f := newFleetFixture(t)
	ctx := context.Background()
	f.addVehicle(t, "V1")

	// A malformed row in the shared sheet must not break commands.
	require.NoError(t, f.store.Ledger().Append(ctx, domain.LedgerEntry{
		Timestamp: f.clock.Now(),
		Action:    domain.Action("maintenance"),
		Plate:     "V1",
	}))

	_, err := f.uc.Acquire(ctx, 1, "Alice", "V1")
	require.NoError(t, err)
}
