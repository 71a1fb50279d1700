package ports

import (
	"time"

	"github.com/motorpool/motorpool/internal/domain"
)

// CommandKind identifies a normalized inbound event from the chat
// transport. The transport adapter translates its own update format
// into one of these; the core never sees transport payloads.
type CommandKind string

const (
	CommandStart         CommandKind = "start"
	CommandAcquire       CommandKind = "acquire"
	CommandRelease       CommandKind = "release"
	CommandListAvailable CommandKind = "list_available"
	CommandListHeld      CommandKind = "list_held"
	CommandStatus        CommandKind = "status"
	CommandHistory       CommandKind = "history"
	CommandAdminDecision CommandKind = "admin_decision"
	CommandAddVehicle    CommandKind = "add_vehicle"
	CommandRemoveVehicle CommandKind = "remove_vehicle"
)

// Command is one normalized inbound event.
type Command struct {
	Kind      CommandKind
	ActorID   int64
	ActorName string
	ReplyTo   string

	// CallbackID is set when the command came from a pressed inline
	// button and needs acknowledging.
	CallbackID string

	// Plate is set for vehicle commands.
	Plate string

	// RequestID, Decision and SnoozeFor are set for admin decisions.
	RequestID string
	Decision  domain.Decision
	SnoozeFor time.Duration
}
