// Package http exposes the webhook endpoint and the admin API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/motorpool/motorpool/internal/adapter/telegram"
	"github.com/motorpool/motorpool/internal/service/auth"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/internal/service/ratelimit"
	"github.com/motorpool/motorpool/internal/service/report"
	"github.com/motorpool/motorpool/internal/usecase"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	server *http.Server
	log    logger.Logger
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	WebhookSecret string
}

// NewServer creates a new HTTP server
func NewServer(
	config ServerConfig,
	fleet *usecase.FleetUseCase,
	access *usecase.AccessUseCase,
	commands *telegram.Handler,
	reports *report.Service,
	authService *auth.Service,
	limiter ratelimit.Limiter,
	log logger.Logger,
	loc *time.Location,
) *Server {
	adminHandler := NewAdminHandler(fleet, access, reports, authService, log, loc)
	webhookHandler := NewWebhookHandler(commands, config.WebhookSecret, limiter, log)

	router := mux.NewRouter()
	router.Use(correlationMiddleware)
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	webhookHandler.RegisterRoutes(router)
	adminHandler.RegisterRoutes(router)

	return &Server{
		addr: ":" + config.Port,
		log:  log,
		server: &http.Server{
			Addr:         ":" + config.Port,
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
