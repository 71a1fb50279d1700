package ports

import "context"

// Action is one tappable choice attached to an outbound message. Data
// is the opaque payload echoed back when the recipient taps it.
type Action struct {
	Label string
	Data  string
}

// Notifier is the outbound side of the chat transport. Recipient is a
// transport-level address (a chat id); the core never formats
// transport-specific markup itself.
type Notifier interface {
	// SendMessage delivers text to the recipient with optional action
	// buttons. Delivery is best effort: a failed notification is
	// logged by the caller, never turned into a command failure.
	SendMessage(ctx context.Context, recipient string, text string, actions [][]Action) error
}
