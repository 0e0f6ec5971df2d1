// nexchan/handlers/middleware.go
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nexchan/models"
	"nexchan/utils"

	"github.com/go-chi/chi/v5/middleware"
	"log/slog"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const IdentityKey ContextKey = "identity"

// IdentityMiddleware attributes the request to exactly one identity. A
// valid bearer session resolves to the user, and always wins over the IP;
// everything else is attributed to the client address.
func IdentityMiddleware(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := models.Identity{IP: utils.GetIPAddress(r)}

			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token := strings.TrimPrefix(auth, "Bearer ")
				if userID, role, ok := app.DB().LookupSession(utils.HashToken(token)); ok {
					ident.UserID = userID
					ident.Role = role
				}
			}

			ctx := context.WithValue(r.Context(), IdentityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity resolved by IdentityMiddleware.
func IdentityFromContext(r *http.Request) models.Identity {
	if ident, ok := r.Context().Value(IdentityKey).(models.Identity); ok {
		return ident
	}
	return models.Identity{}
}

// ThrottleWrites is a cheap transport-level burst filter in front of the
// policy-driven admission controller.
func ThrottleWrites(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.GetIPAddress(r)
			if !app.Bursts().Allow(ip) {
				app.Logger().Warn("Burst limit exceeded", "ip", ip)
				respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests. Please wait a moment."}, app)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request with status and duration.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
