package telegram

import (
	"context"
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
	"github.com/motorpool/motorpool/internal/usecase"
)

const adminChat = "admin-chat"

type handlerFixture struct {
	handler  *Handler
	store    *memory.Store
	notifier *memory.Notifier
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	store := memory.New()
	notifier := memory.NewNotifier()
	cfg := retry.Config{MaxAttempts: 3, Base: time.Millisecond, Multiplier: 2}

	fleet := usecase.NewFleetUseCase(
		store.Ledger(), store.Vehicles(), notifier,
		gate.New(), cfg, logger.Noop(), time.UTC, adminChat,
	)
	access := usecase.NewAccessUseCase(
		store.Requests(), store.Actors(), store.Settings(), notifier,
		gate.New(), cfg, logger.Noop(), adminChat,
	)

	handler := NewHandler(fleet, access, notifier, logger.Noop(), time.UTC)
	return &handlerFixture{handler: handler, store: store, notifier: notifier}
}

func (f *handlerFixture) addDriver(t *testing.T, id int64, name string) {
	t.Helper()
	require.NoError(t, f.store.Actors().Add(context.Background(),
		domain.NewActor(id, name, domain.RoleDriver, time.Now())))
}

func (f *handlerFixture) addAdmin(t *testing.T, id int64, name string) {
	t.Helper()
	require.NoError(t, f.store.Actors().Add(context.Background(),
		domain.NewActor(id, name, domain.RoleAdmin, time.Now())))
}

func (f *handlerFixture) addVehicle(t *testing.T, plate string) {
	t.Helper()
	require.NoError(t, f.store.Vehicles().Add(context.Background(),
		domain.NewVehicle(plate, "", time.Now())))
}

func (f *handlerFixture) lastReplyTo(recipient string) string {
	sent := f.notifier.SentTo(recipient)
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1].Text
}

func TestDispatch_StartFromUnknownSubmitsRequest(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	cmd := ports.Command{Kind: ports.CommandStart, ActorID: 42, ActorName: "Dana", ReplyTo: "42"}
	require.NoError(t, f.handler.Dispatch(ctx, cmd))

	assert.Contains(t, f.lastReplyTo("42"), "access request")

	pending, err := f.store.Requests().ListByStatus(ctx, domain.RequestPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(42), pending[0].RequesterID)
}

func TestDispatch_AcquireAndRelease(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.addDriver(t, 7, "Maha")
	f.addVehicle(t, "A 11111")

	acquire := ports.Command{Kind: ports.CommandAcquire, ActorID: 7, ActorName: "Maha", ReplyTo: "7", Plate: "a 11111"}
	require.NoError(t, f.handler.Dispatch(ctx, acquire))
	assert.Contains(t, f.lastReplyTo("7"), "You took A 11111")

	// /return with no plate releases the held car
	release := ports.Command{Kind: ports.CommandRelease, ActorID: 7, ActorName: "Maha", ReplyTo: "7"}
	require.NoError(t, f.handler.Dispatch(ctx, release))
	assert.Contains(t, f.lastReplyTo("7"), "You returned A 11111")
}

func TestDispatch_AcquireTakenVehicle(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.addDriver(t, 7, "Maha")
	f.addDriver(t, 8, "Omar")
	f.addVehicle(t, "A 11111")

	first := ports.Command{Kind: ports.CommandAcquire, ActorID: 7, ActorName: "Maha", ReplyTo: "7", Plate: "A 11111"}
	require.NoError(t, f.handler.Dispatch(ctx, first))

	second := ports.Command{Kind: ports.CommandAcquire, ActorID: 8, ActorName: "Omar", ReplyTo: "8", Plate: "A 11111"}
	require.NoError(t, f.handler.Dispatch(ctx, second))
	assert.Contains(t, f.lastReplyTo("8"), "already taken")
}

func TestDispatch_DriverDeniedAdminCommand(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.addDriver(t, 7, "Maha")

	cmd := ports.Command{Kind: ports.CommandAddVehicle, ActorID: 7, ActorName: "Maha", ReplyTo: "7", Plate: "B 22222"}
	require.NoError(t, f.handler.Dispatch(ctx, cmd))
	assert.Contains(t, f.lastReplyTo("7"), "not authorized")

	_, err := f.store.Vehicles().Find(ctx, "B 22222")
	assert.ErrorIs(t, err, domain.ErrVehicleNotFound)
}

func TestDispatch_AdminAddAndRemoveVehicle(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.addAdmin(t, 1, "Root")

	add := ports.Command{Kind: ports.CommandAddVehicle, ActorID: 1, ActorName: "Root", ReplyTo: "1", Plate: "b 22222"}
	require.NoError(t, f.handler.Dispatch(ctx, add))
	assert.Contains(t, f.lastReplyTo("1"), "Added B 22222")

	remove := ports.Command{Kind: ports.CommandRemoveVehicle, ActorID: 1, ActorName: "Root", ReplyTo: "1", Plate: "B 22222"}
	require.NoError(t, f.handler.Dispatch(ctx, remove))
	assert.Contains(t, f.lastReplyTo("1"), "Removed B 22222")
}

func TestDispatch_DecisionAlreadyHandled(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.addAdmin(t, 1, "Root")

	req := domain.NewAccessRequest("req-1", 42, "Dana", time.Now())
	require.NoError(t, f.store.Requests().Create(ctx, req))

	approve := ports.Command{
		Kind: ports.CommandAdminDecision, ActorID: 1, ActorName: "Root", ReplyTo: "1",
		RequestID: "req-1", Decision: domain.DecisionApprove,
	}
	require.NoError(t, f.handler.Dispatch(ctx, approve))
	assert.Contains(t, f.lastReplyTo("1"), "Done")

	reject := approve
	reject.Decision = domain.DecisionReject
	require.NoError(t, f.handler.Dispatch(ctx, reject))
	assert.Contains(t, f.lastReplyTo("1"), "already handled")
}

func TestDispatch_DecisionReplyWording(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.addAdmin(t, 1, "Root")

	first := domain.NewAccessRequest("req-1", 42, "Dana", time.Now())
	second := domain.NewAccessRequest("req-2", 43, "Omar", time.Now())
	require.NoError(t, f.store.Requests().Create(ctx, first))
	require.NoError(t, f.store.Requests().Create(ctx, second))

	cmd := ports.Command{
		Kind: ports.CommandAdminDecision, ActorID: 1, ActorName: "Root", ReplyTo: "1",
		RequestID: "req-1", Decision: domain.DecisionApprove,
	}
	require.NoError(t, f.handler.Dispatch(ctx, cmd))
	assert.Contains(t, f.lastReplyTo("1"), "request req-1 approved.")

	cmd.RequestID = "req-2"
	cmd.Decision = domain.DecisionReject
	require.NoError(t, f.handler.Dispatch(ctx, cmd))
	assert.Contains(t, f.lastReplyTo("1"), "request req-2 rejected.")
}

func TestDispatch_ListAvailableOffersTakeButtons(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	f.addDriver(t, 7, "Maha")
	f.addVehicle(t, "A 11111")

	cmd := ports.Command{Kind: ports.CommandListAvailable, ActorID: 7, ActorName: "Maha", ReplyTo: "7"}
	require.NoError(t, f.handler.Dispatch(ctx, cmd))

	sent := f.notifier.SentTo("7")
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	require.Len(t, last.Actions, 1)
	assert.Equal(t, "take|A 11111", last.Actions[0][0].Data)
}
