// Package server provides the local control API of gwswitch.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rennerdo30/gateway-switcher/internal/accesscontrol"
	"github.com/rennerdo30/gateway-switcher/internal/logging"
	"github.com/rennerdo30/gateway-switcher/internal/manager"
	"github.com/rennerdo30/gateway-switcher/internal/metrics"
	"github.com/rennerdo30/gateway-switcher/internal/util"
	"github.com/rennerdo30/gateway-switcher/internal/version"
)

// PACSource reads the installed PAC script.
type PACSource interface {
	Exists() bool
	Read() (string, error)
}

// API provides the REST API.
type API struct {
	manager *manager.Manager
	pac     PACSource
	metrics *metrics.Metrics
	history *History
	token   string
	allowed *accesscontrol.List
	started time.Time
	logger  *slog.Logger
}

// Config holds API configuration.
type Config struct {
	Manager *manager.Manager
	PAC     PACSource
	Metrics *metrics.Metrics
	Token   string
	// AllowedClients limits which client addresses are served. Nil or empty
	// allows all.
	AllowedClients *accesscontrol.List
	// HistorySize bounds the apply history (default 100).
	HistorySize int
}

// New creates a new API.
func New(cfg Config) *API {
	return &API{
		manager: cfg.Manager,
		pac:     cfg.PAC,
		metrics: cfg.Metrics,
		history: NewHistory(cfg.HistorySize),
		token:   cfg.Token,
		allowed: cfg.AllowedClients,
		started: time.Now(),
		logger:  logging.WithComponent("api"),
	}
}

// History returns the apply history.
func (a *API) History() *History {
	return a.history
}

// Router returns the HTTP router for the API.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(a.allowed.Middleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(securityHeadersMiddleware)

	// The PAC script and health are fetched by the OS and probes without
	// credentials.
	r.Get("/api/v1/health", a.handleHealth)
	r.Get("/proxy.pac", a.handlePAC)

	r.Group(func(r chi.Router) {
		if a.token != "" {
			r.Use(a.authMiddleware)
		}

		r.Get("/api/v1/version", a.handleVersion)
		r.Get("/api/v1/status", a.handleStatus)
		r.Get("/api/v1/history", a.handleHistory)

		r.Route("/api/v1/profiles", func(r chi.Router) {
			r.Get("/", a.handleListProfiles)
			r.Get("/{id}", a.handleGetProfile)
			r.Post("/{id}/apply", a.handleApplyProfile)
			r.Get("/{id}/match", a.handleMatch)
			r.Get("/{id}/pac", a.handleProfilePAC)
			r.Get("/{id}/bypass", a.handleBypass)
		})

		if a.metrics != nil {
			r.Handle("/metrics", a.metrics.Handler())
		}
	})

	return r
}

func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request at debug level and records it in the
// request metrics.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		a.metrics.RecordRequest(r.Method, status, elapsed)
		a.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, version.GetInfo())
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "running",
		"time":        time.Now().Format(time.RFC3339),
		"version":     version.Short(),
		"uptime":      time.Since(a.started).Round(time.Second).String(),
		"profiles":    len(a.manager.Profiles()),
		"pac_present": a.pac != nil && a.pac.Exists(),
		"adapter":     a.manager.Settings().SelectedAdapterName,
	}
	if p, ok := a.manager.Active(); ok {
		response["active_profile"] = map[string]interface{}{
			"id":   p.ID,
			"name": p.Name,
		}
	}
	a.writeJSON(w, http.StatusOK, response)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if since := r.URL.Query().Get("since"); since != "" {
		id, err := strconv.ParseInt(since, 10, 64)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		a.writeJSON(w, http.StatusOK, a.history.Since(id))
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	a.writeJSON(w, http.StatusOK, a.history.Recent(n))
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Debug("failed to encode response", "error", err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps manager errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case util.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
