package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/internal/usecase"
)

// Handler executes normalized commands and replies over the chat
// transport. Domain failures become user-facing text; only transport
// and store plumbing errors propagate.
type Handler struct {
	fleet    *usecase.FleetUseCase
	access   *usecase.AccessUseCase
	notifier ports.Notifier
	log      logger.Logger
	loc      *time.Location
}

// NewHandler creates a command handler.
func NewHandler(
	fleet *usecase.FleetUseCase,
	access *usecase.AccessUseCase,
	notifier ports.Notifier,
	log logger.Logger,
	loc *time.Location,
) *Handler {
	return &Handler{
		fleet:    fleet,
		access:   access,
		notifier: notifier,
		log:      log,
		loc:      loc,
	}
}

// callbackAnswerer is satisfied by the Bot API client. Notifiers that
// lack it, such as test doubles, skip the acknowledgement.
type callbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Dispatch authorizes and executes one command, then replies.
func (h *Handler) Dispatch(ctx context.Context, cmd ports.Command) error {
	if cmd.CallbackID != "" {
		if answerer, ok := h.notifier.(callbackAnswerer); ok {
			if err := answerer.AnswerCallback(ctx, cmd.CallbackID); err != nil {
				h.log.Debug(ctx, "Failed to answer callback", map[string]interface{}{
					"callback_id": cmd.CallbackID,
					"error":       err.Error(),
				})
			}
		}
	}

	role, err := h.access.RoleOf(ctx, cmd.ActorID)
	if err != nil {
		return fmt.Errorf("failed to resolve role: %w", err)
	}

	if err := usecase.Authorize(role, cmd.Kind); err != nil {
		h.log.Warn(ctx, "Command denied", map[string]interface{}{
			"actor_id": cmd.ActorID,
			"command":  string(cmd.Kind),
			"role":     string(role),
		})
		h.reply(ctx, cmd, "You are not authorized to do that.")
		return nil
	}

	switch cmd.Kind {
	case ports.CommandStart:
		return h.handleStart(ctx, cmd, role)
	case ports.CommandAcquire:
		return h.handleAcquire(ctx, cmd)
	case ports.CommandRelease:
		return h.handleRelease(ctx, cmd)
	case ports.CommandListAvailable:
		return h.handleListAvailable(ctx, cmd)
	case ports.CommandListHeld:
		return h.handleListHeld(ctx, cmd)
	case ports.CommandStatus:
		return h.handleStatus(ctx, cmd)
	case ports.CommandHistory:
		return h.handleHistory(ctx, cmd)
	case ports.CommandAdminDecision:
		return h.handleDecision(ctx, cmd)
	case ports.CommandAddVehicle:
		return h.handleAddVehicle(ctx, cmd)
	case ports.CommandRemoveVehicle:
		return h.handleRemoveVehicle(ctx, cmd)
	}

	h.reply(ctx, cmd, "I did not understand that command.")
	return nil
}

func (h *Handler) handleStart(ctx context.Context, cmd ports.Command, role domain.Role) error {
	if role == domain.RoleUnknown {
		if _, err := h.access.Submit(ctx, cmd.ActorID, cmd.ActorName); err != nil {
			h.reply(ctx, cmd, "Something went wrong, please try again later.")
			return err
		}
		h.reply(ctx, cmd, "Your access request has been sent to the admins. You will be notified once it is reviewed.")
		return nil
	}

	h.replyWithActions(ctx, cmd, fmt.Sprintf("Welcome back, %s. Use /cars to see available cars.", cmd.ActorName), nil)
	return nil
}

func (h *Handler) handleAcquire(ctx context.Context, cmd ports.Command) error {
	if strings.TrimSpace(cmd.Plate) == "" {
		h.reply(ctx, cmd, "Which car? Use /cars to pick one.")
		return nil
	}

	entry, err := h.fleet.Acquire(ctx, cmd.ActorID, cmd.ActorName, cmd.Plate)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyHolding):
			h.reply(ctx, cmd, "You already have a car. Return it before taking another one.")
		case errors.Is(err, domain.ErrVehicleUnavailable):
			h.reply(ctx, cmd, fmt.Sprintf("%s is already taken.", domain.NormalizePlate(cmd.Plate)))
		case errors.Is(err, domain.ErrVehicleNotFound):
			h.reply(ctx, cmd, fmt.Sprintf("I do not know the car %s.", domain.NormalizePlate(cmd.Plate)))
		case errors.Is(err, ports.ErrOperationFailed):
			h.reply(ctx, cmd, "The record store is not responding. Please try again in a minute.")
		default:
			return err
		}
		return nil
	}

	h.reply(ctx, cmd, fmt.Sprintf("You took %s at %s.", entry.Plate, entry.DisplayTime(h.loc)))
	return nil
}

func (h *Handler) handleRelease(ctx context.Context, cmd ports.Command) error {
	plate := cmd.Plate
	if strings.TrimSpace(plate) == "" {
		// /return without an argument releases the held car
		held, err := h.fleet.ListHeldBy(ctx, cmd.ActorID)
		if err != nil {
			return err
		}
		if held == nil {
			h.reply(ctx, cmd, "You have no car to return.")
			return nil
		}
		plate = held.Plate
	}

	entry, err := h.fleet.Release(ctx, cmd.ActorID, cmd.ActorName, plate)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotHolder):
			h.reply(ctx, cmd, "You can only return the car you took.")
		case errors.Is(err, domain.ErrVehicleNotFound):
			h.reply(ctx, cmd, fmt.Sprintf("I do not know the car %s.", domain.NormalizePlate(plate)))
		case errors.Is(err, ports.ErrOperationFailed):
			h.reply(ctx, cmd, "The record store is not responding. Please try again in a minute.")
		default:
			return err
		}
		return nil
	}

	h.reply(ctx, cmd, fmt.Sprintf("You returned %s at %s.", entry.Plate, entry.DisplayTime(h.loc)))
	return nil
}

func (h *Handler) handleListAvailable(ctx context.Context, cmd ports.Command) error {
	available, err := h.fleet.ListAvailable(ctx)
	if err != nil {
		return err
	}
	if len(available) == 0 {
		h.reply(ctx, cmd, "No cars are available right now.")
		return nil
	}

	var actions [][]ports.Action
	for _, v := range available {
		label := v.Plate
		if v.Description != "" {
			label = fmt.Sprintf("%s (%s)", v.Plate, v.Description)
		}
		actions = append(actions, []ports.Action{{Label: label, Data: "take|" + v.Plate}})
	}
	h.replyWithActions(ctx, cmd, "Available cars:", actions)
	return nil
}

func (h *Handler) handleListHeld(ctx context.Context, cmd ports.Command) error {
	held, err := h.fleet.ListHeldBy(ctx, cmd.ActorID)
	if err != nil {
		return err
	}
	if held == nil {
		h.reply(ctx, cmd, "You have no car right now.")
		return nil
	}

	actions := [][]ports.Action{{
		{Label: "Return " + held.Plate, Data: "return|" + held.Plate},
	}}
	h.replyWithActions(ctx, cmd,
		fmt.Sprintf("You have %s since %s.", held.Plate, held.Since.DisplayTime(h.loc)), actions)
	return nil
}

func (h *Handler) handleStatus(ctx context.Context, cmd ports.Command) error {
	statuses, err := h.fleet.Status(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		h.reply(ctx, cmd, "No cars are registered.")
		return nil
	}

	var b strings.Builder
	b.WriteString("Fleet status:\n")
	for _, s := range statuses {
		if s.Held {
			fmt.Fprintf(&b, "%s - with %s since %s\n", s.Plate, s.HolderName, s.Since.In(h.loc).Format(domain.DisplayLayout))
		} else {
			fmt.Fprintf(&b, "%s - available\n", s.Plate)
		}
	}
	h.reply(ctx, cmd, strings.TrimRight(b.String(), "\n"))
	return nil
}

func (h *Handler) handleHistory(ctx context.Context, cmd ports.Command) error {
	entries, err := h.fleet.History(ctx, 10)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		h.reply(ctx, cmd, "The log is empty.")
		return nil
	}

	var b strings.Builder
	b.WriteString("Latest log entries:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s - %s %s %s\n", e.DisplayTime(h.loc), e.ActorName, verb(e.Action), e.Plate)
	}
	h.reply(ctx, cmd, strings.TrimRight(b.String(), "\n"))
	return nil
}

func (h *Handler) handleDecision(ctx context.Context, cmd ports.Command) error {
	err := h.access.Decide(ctx, cmd.RequestID, cmd.Decision, cmd.SnoozeFor)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRequestAlreadyResolved):
			h.reply(ctx, cmd, "This request was already handled.")
		case errors.Is(err, domain.ErrRequestNotFound):
			h.reply(ctx, cmd, "I cannot find that request anymore.")
		case errors.Is(err, domain.ErrSnoozeNotAllowed):
			h.reply(ctx, cmd, "That snooze duration is not allowed.")
		case errors.Is(err, ports.ErrOperationFailed):
			h.reply(ctx, cmd, "The record store is not responding. Please try again in a minute.")
		default:
			return err
		}
		return nil
	}

	h.reply(ctx, cmd, fmt.Sprintf("Done: request %s %s.", cmd.RequestID, decisionVerb(cmd.Decision)))
	return nil
}

func decisionVerb(d domain.Decision) string {
	switch d {
	case domain.DecisionApprove:
		return "approved"
	case domain.DecisionReject:
		return "rejected"
	case domain.DecisionSnooze:
		return "snoozed"
	}
	return string(d)
}

func (h *Handler) handleAddVehicle(ctx context.Context, cmd ports.Command) error {
	if strings.TrimSpace(cmd.Plate) == "" {
		h.reply(ctx, cmd, "Usage: /add <plate>")
		return nil
	}

	v, err := h.fleet.AddVehicle(ctx, cmd.Plate, "")
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrVehicleExists):
			h.reply(ctx, cmd, fmt.Sprintf("%s is already registered.", domain.NormalizePlate(cmd.Plate)))
		case errors.Is(err, ports.ErrOperationFailed):
			h.reply(ctx, cmd, "The record store is not responding. Please try again in a minute.")
		default:
			return err
		}
		return nil
	}

	h.reply(ctx, cmd, fmt.Sprintf("Added %s to the fleet.", v.Plate))
	return nil
}

func (h *Handler) handleRemoveVehicle(ctx context.Context, cmd ports.Command) error {
	if strings.TrimSpace(cmd.Plate) == "" {
		h.reply(ctx, cmd, "Usage: /remove <plate>")
		return nil
	}

	if err := h.fleet.RemoveVehicle(ctx, cmd.Plate); err != nil {
		switch {
		case errors.Is(err, domain.ErrVehicleInUse):
			h.reply(ctx, cmd, fmt.Sprintf("%s is currently taken and cannot be removed.", domain.NormalizePlate(cmd.Plate)))
		case errors.Is(err, domain.ErrVehicleNotFound):
			h.reply(ctx, cmd, fmt.Sprintf("I do not know the car %s.", domain.NormalizePlate(cmd.Plate)))
		case errors.Is(err, ports.ErrOperationFailed):
			h.reply(ctx, cmd, "The record store is not responding. Please try again in a minute.")
		default:
			return err
		}
		return nil
	}

	h.reply(ctx, cmd, fmt.Sprintf("Removed %s from the fleet.", domain.NormalizePlate(cmd.Plate)))
	return nil
}

func (h *Handler) reply(ctx context.Context, cmd ports.Command, text string) {
	h.replyWithActions(ctx, cmd, text, nil)
}

func (h *Handler) replyWithActions(ctx context.Context, cmd ports.Command, text string, actions [][]ports.Action) {
	if cmd.ReplyTo == "" {
		return
	}
	if err := h.notifier.SendMessage(ctx, cmd.ReplyTo, text, actions); err != nil {
		h.log.Error(ctx, "Failed to send reply", err, map[string]interface{}{
			"recipient": cmd.ReplyTo,
			"command":   string(cmd.Kind),
		})
	}
}

func verb(a domain.Action) string {
	if a == domain.ActionOut {
		return "took"
	}
	return "returned"
}
