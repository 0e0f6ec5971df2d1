// nexchan/handlers/handlers.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"nexchan/database"
	"nexchan/models"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	DB() *database.DatabaseService
	Storage() models.ObjectStore
	Bursts() *models.BurstLimiter
	Logger() *slog.Logger
	ModKeyHash() string
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// respondError maps a domain error onto its HTTP status. Untyped errors
// become opaque 500s so internals never leak to clients.
func respondError(w http.ResponseWriter, r *http.Request, err error, app App) {
	logger := app.Logger().With("path", r.URL.Path)

	var status int
	message := err.Error()
	switch models.KindOf(err) {
	case models.KindValidation:
		status = http.StatusBadRequest
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindConflict:
		status = http.StatusConflict
	case models.KindRateLimited:
		status = http.StatusTooManyRequests
	case models.KindForbidden:
		status = http.StatusForbidden
	case models.KindConfiguration:
		// Operator mistake, not a client error.
		status = http.StatusInternalServerError
		logger.Error("Configuration error", "error", err)
		message = "Server configuration error."
	case models.KindStorage:
		status = http.StatusInternalServerError
		logger.Error("Storage error", "error", err)
		message = "Storage backend error."
	default:
		status = http.StatusInternalServerError
		logger.Error("Unhandled error", "error", err)
		message = "An internal server error occurred."
	}

	if status == http.StatusTooManyRequests {
		logger.Warn("Request rate limited")
	}
	respondJSON(w, status, map[string]string{"error": message}, app)
}

// MakeHandler adapts a handler taking the App interface to http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// queryInt parses a positive integer query parameter with bounds.
func queryInt(r *http.Request, key string, def, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
