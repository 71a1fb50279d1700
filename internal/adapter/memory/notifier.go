package memory

import (
	"context"
	"sync"

	"github.com/motorpool/motorpool/internal/ports"
)

// SentMessage is one message captured by the recording notifier.
type SentMessage struct {
	Recipient string
	Text      string
	Actions   [][]ports.Action
}

// Notifier records outbound messages instead of delivering them.
type Notifier struct {
	mu   sync.Mutex
	sent []SentMessage
}

// NewNotifier creates an empty recording notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// SendMessage implements ports.Notifier.
func (n *Notifier) SendMessage(ctx context.Context, recipient, text string, actions [][]ports.Action) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentMessage{Recipient: recipient, Text: text, Actions: actions})
	return nil
}

// Sent returns a copy of everything sent so far.
func (n *Notifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}

// SentTo returns messages addressed to the recipient.
func (n *Notifier) SentTo(recipient string) []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []SentMessage
	for _, m := range n.sent {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	return out
}
