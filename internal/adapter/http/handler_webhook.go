package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/motorpool/motorpool/internal/adapter/telegram"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/internal/service/ratelimit"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler receives Bot API updates. It always acknowledges with
// 200 once the secret checks out: Telegram redelivers non-2xx
// responses, and a command that failed validation should not be
// replayed.
type WebhookHandler struct {
	commands *telegram.Handler
	secret   string
	limiter  ratelimit.Limiter
	log      logger.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(commands *telegram.Handler, secret string, limiter ratelimit.Limiter, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		commands: commands,
		secret:   secret,
		limiter:  limiter,
		log:      log,
	}
}

// RegisterRoutes registers the webhook route.
func (h *WebhookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhook/telegram", h.Receive).Methods("POST")
}

// Receive handles one webhook delivery.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get(webhookSecretHeader) != h.secret {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.log.Warn(r.Context(), "Undecodable webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		w.WriteHeader(http.StatusOK)
		return
	}

	cmd, err := telegram.ParseCommand(update)
	if err != nil {
		if !errors.Is(err, telegram.ErrUnrecognized) {
			h.log.Warn(r.Context(), "Failed to parse update", map[string]interface{}{
				"update_id": update.UpdateID,
				"error":     err.Error(),
			})
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), strconv.FormatInt(cmd.ActorID, 10))
	if err == nil && !allowed {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.commands.Dispatch(r.Context(), cmd); err != nil {
		h.log.Error(r.Context(), "Command failed", err, map[string]interface{}{
			"command":  string(cmd.Kind),
			"actor_id": cmd.ActorID,
		})
	}

	w.WriteHeader(http.StatusOK)
}
