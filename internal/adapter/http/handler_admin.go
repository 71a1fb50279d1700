package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/motorpool/motorpool/internal/domain"
	"github.com/motorpool/motorpool/internal/service/auth"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/internal/service/report"
	"github.com/motorpool/motorpool/internal/usecase"
	"github.com/motorpool/motorpool/pkg/apperror"
)

// AdminHandler serves the operator API over the same usecases the chat
// transport drives.
type AdminHandler struct {
	fleet       *usecase.FleetUseCase
	access      *usecase.AccessUseCase
	reports     *report.Service
	authService *auth.Service
	log         logger.Logger
	loc         *time.Location
}

// NewAdminHandler creates an admin API handler.
func NewAdminHandler(
	fleet *usecase.FleetUseCase,
	access *usecase.AccessUseCase,
	reports *report.Service,
	authService *auth.Service,
	log logger.Logger,
	loc *time.Location,
) *AdminHandler {
	return &AdminHandler{
		fleet:       fleet,
		access:      access,
		reports:     reports,
		authService: authService,
		log:         log,
		loc:         loc,
	}
}

// RegisterRoutes registers admin API routes.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/auth/login", h.Login).Methods("POST")

	guard := func(fn http.HandlerFunc) http.HandlerFunc {
		return requireAuth(h.authService, fn)
	}

	router.HandleFunc("/api/v1/fleet/status", guard(h.FleetStatus)).Methods("GET")
	router.HandleFunc("/api/v1/fleet/history", guard(h.History)).Methods("GET")
	router.HandleFunc("/api/v1/fleet/export", guard(h.ExportCSV)).Methods("GET")
	router.HandleFunc("/api/v1/vehicles", guard(h.AddVehicle)).Methods("POST")
	router.HandleFunc("/api/v1/vehicles/{plate}", guard(h.RemoveVehicle)).Methods("DELETE")
	router.HandleFunc("/api/v1/vehicles/{plate}/serviced", guard(h.MarkServiced)).Methods("POST")
	router.HandleFunc("/api/v1/actors", guard(h.ListActors)).Methods("GET")
	router.HandleFunc("/api/v1/actors", guard(h.AddActor)).Methods("POST")
	router.HandleFunc("/api/v1/actors/{id}", guard(h.RemoveActor)).Methods("DELETE")
	router.HandleFunc("/api/v1/requests/pending", guard(h.PendingRequests)).Methods("GET")
	router.HandleFunc("/api/v1/requests/{id}/decision", guard(h.Decide)).Methods("POST")
	router.HandleFunc("/api/v1/settings", guard(h.Settings)).Methods("GET")
	router.HandleFunc("/api/v1/settings", guard(h.UpdateSetting)).Methods("PUT")
}

// Login exchanges admin credentials for a bearer token.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequest("Invalid request body"))
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, apperror.NewUnauthorized("Invalid username or password"))
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// FleetStatus returns every vehicle with its projected possession.
func (h *AdminHandler) FleetStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.fleet.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"vehicles": statuses})
}

// History returns recent ledger entries, optionally filtered by plate
// and calendar day.
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	plate := r.URL.Query().Get("plate")
	date := r.URL.Query().Get("date")

	var entries []domain.LedgerEntry
	var err error

	if plate != "" && date != "" {
		var day time.Time
		day, err = time.ParseInLocation("2006-01-02", date, h.loc)
		if err != nil {
			writeError(w, apperror.NewBadRequest("date must be YYYY-MM-DD"))
			return
		}
		entries, err = h.fleet.SearchHistory(r.Context(), plate, day)
	} else {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, convErr := strconv.Atoi(raw); convErr == nil {
				limit = n
			}
		}
		entries, err = h.fleet.History(r.Context(), limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	type entryView struct {
		Timestamp string `json:"timestamp"`
		ActorID   int64  `json:"actor_id"`
		ActorName string `json:"actor_name"`
		Plate     string `json:"plate"`
		Action    string `json:"action"`
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{
			Timestamp: e.DisplayTime(h.loc),
			ActorID:   e.ActorID,
			ActorName: e.ActorName,
			Plate:     e.Plate,
			Action:    string(e.Action),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": views})
}

// ExportCSV streams the full ledger as a CSV document.
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	entries, err := h.fleet.History(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	if err := h.reports.WriteCSV(w, entries); err != nil {
		h.log.Error(r.Context(), "CSV export failed", err, nil)
	}
}

// AddVehicle registers a vehicle.
func (h *AdminHandler) AddVehicle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plate       string `json:"plate"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequest("Invalid request body"))
		return
	}
	if req.Plate == "" {
		writeError(w, apperror.NewBadRequest("plate is required"))
		return
	}

	v, err := h.fleet.AddVehicle(r.Context(), req.Plate, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// RemoveVehicle deletes a vehicle unless it is currently held.
func (h *AdminHandler) RemoveVehicle(w http.ResponseWriter, r *http.Request) {
	plate := mux.Vars(r)["plate"]
	if err := h.fleet.RemoveVehicle(r.Context(), plate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": domain.NormalizePlate(plate)})
}

// MarkServiced records a completed service now.
func (h *AdminHandler) MarkServiced(w http.ResponseWriter, r *http.Request) {
	plate := mux.Vars(r)["plate"]
	if err := h.fleet.MarkServiced(r.Context(), plate); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"serviced": domain.NormalizePlate(plate)})
}

// ListActors returns every registered actor.
func (h *AdminHandler) ListActors(w http.ResponseWriter, r *http.Request) {
	actors, err := h.access.ListActors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"actors": actors})
}

// AddActor registers a driver or admin directly, bypassing the request
// lifecycle.
func (h *AdminHandler) AddActor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          int64  `json:"id"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequest("Invalid request body"))
		return
	}
	role := domain.Role(req.Role)
	if role != domain.RoleAdmin && role != domain.RoleDriver {
		writeError(w, apperror.NewBadRequest("role must be admin or driver"))
		return
	}

	actor, err := h.access.AddDriver(r.Context(), req.ID, req.DisplayName, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, actor)
}

// RemoveActor deletes an actor; removing the last admin is refused.
func (h *AdminHandler) RemoveActor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, apperror.NewBadRequest("id must be numeric"))
		return
	}
	if err := h.access.RemoveActor(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": id})
}

// PendingRequests lists requests waiting on a decision.
func (h *AdminHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.access.ListPending(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": pending})
}

// Decide applies an admin decision to a request.
func (h *AdminHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision  string `json:"decision"`
		SnoozeFor string `json:"snooze_for,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequest("Invalid request body"))
		return
	}

	decision := domain.Decision(req.Decision)
	var snoozeFor time.Duration
	if decision == domain.DecisionSnooze {
		d, err := time.ParseDuration(req.SnoozeFor)
		if err != nil {
			writeError(w, apperror.NewBadRequest("snooze_for must be a duration"))
			return
		}
		snoozeFor = d
	}

	requestID := mux.Vars(r)["id"]
	if err := h.access.Decide(r.Context(), requestID, decision, snoozeFor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"request_id": requestID, "decision": string(decision)})
}

// Settings returns the parsed toggles.
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.access.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSetting writes one toggle.
func (h *AdminHandler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.NewBadRequest("Invalid request body"))
		return
	}
	if req.Key == "" {
		writeError(w, apperror.NewBadRequest("key is required"))
		return
	}

	if err := h.access.UpdateSetting(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": req.Key, "value": req.Value})
}
