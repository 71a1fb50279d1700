package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/motorpool/motorpool/internal/service/auth"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/pkg/apperror"
)

const correlationIDHeader = "X-Correlation-ID"

// correlationMiddleware ensures every request carries a correlation id
// in its context and response headers.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(correlationIDHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(correlationIDHeader, cid)
		ctx := logger.WithCorrelationID(r.Context(), cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug(r.Context(), "Request handled", map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			})
		})
	}
}

func recoveryMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "Panic recovered", fmt.Errorf("%v", rec), map[string]interface{}{
						"path": r.URL.Path,
					})
					writeError(w, apperror.ErrInternalServer)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth guards the admin routes with a bearer token.
func requireAuth(authService *auth.Service, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, apperror.NewUnauthorized("Authorization header required"))
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			writeError(w, apperror.NewUnauthorized("Invalid authorization header format"))
			return
		}

		if _, err := authService.ValidateToken(parts[1]); err != nil {
			writeError(w, apperror.NewUnauthorized("Invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r)
	}
}
