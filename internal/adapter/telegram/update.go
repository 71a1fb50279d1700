package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
)

// ErrUnrecognized marks an update that does not map to any command.
// The webhook handler acknowledges these without acting on them.
var ErrUnrecognized = errors.New("unrecognized update")

// Update is the subset of the Bot API webhook payload the adapter
// reads.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// CallbackQuery is a pressed inline keyboard button.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// User identifies the sender.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies where to reply.
type Chat struct {
	ID int64 `json:"id"`
}

// DisplayName renders the name shown in the ledger and in admin
// prompts.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// ParseCommand translates an update into a normalized command. Slash
// commands carry their argument after the verb; inline buttons carry
// pipe-separated callback data.
func ParseCommand(u Update) (ports.Command, error) {
	switch {
	case u.CallbackQuery != nil:
		return parseCallback(u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		return parseMessage(u.Message)
	}
	return ports.Command{}, ErrUnrecognized
}

func parseMessage(m *Message) (ports.Command, error) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return ports.Command{}, ErrUnrecognized
	}

	fields := strings.Fields(text)
	verb := strings.ToLower(fields[0])
	// strip the bot mention in group chats: /take@pool_bot
	if at := strings.Index(verb, "@"); at > 0 {
		verb = verb[:at]
	}

	cmd := ports.Command{
		ActorID:   m.From.ID,
		ActorName: m.From.DisplayName(),
		ReplyTo:   ChatID(m.Chat.ID),
	}

	arg := func() string {
		if len(fields) > 1 {
			return strings.Join(fields[1:], " ")
		}
		return ""
	}

	switch verb {
	case "/start":
		cmd.Kind = ports.CommandStart
	case "/take":
		cmd.Kind = ports.CommandAcquire
		cmd.Plate = arg()
	case "/return":
		cmd.Kind = ports.CommandRelease
		cmd.Plate = arg()
	case "/cars":
		cmd.Kind = ports.CommandListAvailable
	case "/mycar":
		cmd.Kind = ports.CommandListHeld
	case "/status":
		cmd.Kind = ports.CommandStatus
	case "/history":
		cmd.Kind = ports.CommandHistory
	case "/add":
		cmd.Kind = ports.CommandAddVehicle
		cmd.Plate = arg()
	case "/remove":
		cmd.Kind = ports.CommandRemoveVehicle
		cmd.Plate = arg()
	default:
		return ports.Command{}, fmt.Errorf("%w: %s", ErrUnrecognized, verb)
	}

	return cmd, nil
}

func parseCallback(q *CallbackQuery) (ports.Command, error) {
	cmd := ports.Command{
		ActorID:    q.From.ID,
		ActorName:  q.From.DisplayName(),
		CallbackID: q.ID,
	}
	if q.Message != nil {
		cmd.ReplyTo = ChatID(q.Message.Chat.ID)
	}

	parts := strings.Split(q.Data, "|")
	switch parts[0] {
	case "take":
		if len(parts) != 2 {
			return ports.Command{}, fmt.Errorf("%w: %s", ErrUnrecognized, q.Data)
		}
		cmd.Kind = ports.CommandAcquire
		cmd.Plate = parts[1]
	case "return":
		if len(parts) != 2 {
			return ports.Command{}, fmt.Errorf("%w: %s", ErrUnrecognized, q.Data)
		}
		cmd.Kind = ports.CommandRelease
		cmd.Plate = parts[1]
	case "approve", "reject":
		if len(parts) != 2 {
			return ports.Command{}, fmt.Errorf("%w: %s", ErrUnrecognized, q.Data)
		}
		cmd.Kind = ports.CommandAdminDecision
		cmd.RequestID = parts[1]
		cmd.Decision = domain.Decision(parts[0])
	case "snooze":
		if len(parts) != 3 {
			return ports.Command{}, fmt.Errorf("%w: %s", ErrUnrecognized, q.Data)
		}
		d, err := time.ParseDuration(parts[2])
		if err != nil {
			return ports.Command{}, fmt.Errorf("%w: bad snooze duration %q", ErrUnrecognized, parts[2])
		}
		cmd.Kind = ports.CommandAdminDecision
		cmd.RequestID = parts[1]
		cmd.Decision = domain.DecisionSnooze
		cmd.SnoozeFor = d
	default:
		return ports.Command{}, fmt.Errorf("%w: %s", ErrUnrecognized, q.Data)
	}

	return cmd, nil
}

// SnoozeData builds the callback data for a snooze button.
func SnoozeData(requestID string, d time.Duration) string {
	return "snooze|" + requestID + "|" + d.String()
}
