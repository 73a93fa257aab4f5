// Package server provides the HTTP surface: webhook ingress, attention
// policy management, and journal queries.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jayminwest/kota-gateway/internal/config"
	"github.com/jayminwest/kota-gateway/internal/journal"
	kotaotel "github.com/jayminwest/kota-gateway/internal/otel"
	"github.com/jayminwest/kota-gateway/internal/trigger"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	router    *chi.Mux
	webhook   *trigger.WebhookHandler
	store     *config.Store
	journal   *journal.Store // optional
	apiKeys   map[string]string
	startTime time.Time
}

// NewServer builds a server. apiKeys maps key -> operator label; when empty,
// /api routes reject everything and a warning is logged at wiring time.
func NewServer(webhook *trigger.WebhookHandler, store *config.Store, j *journal.Store, apiKeys map[string]string) *Server {
	return &Server{
		router:    chi.NewRouter(),
		webhook:   webhook,
		store:     store,
		journal:   j,
		apiKeys:   apiKeys,
		startTime: time.Now(),
	}
}

// Routes assembles the router. Webhooks authenticate per-source (shared
// secrets) so they bypass the API key middleware.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(kotaotel.Middleware())
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/webhooks/{source}", s.webhook.HandleWebhook)

	r.Route("/api", func(api chi.Router) {
		api.Use(AuthMiddleware(s.apiKeys))
		api.Get("/attention/config", s.handleConfigGet)
		api.Put("/attention/config", s.handleConfigPut)
		api.Post("/attention/config/reload", s.handleConfigReload)
		api.Get("/journal/{day}", s.handleJournalDay)
		api.Get("/journal/{day}/summary", s.handleJournalSummary)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Current())
}

func (s *Server) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}
	cfg, err := config.ParseAttention(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}
	if err := s.store.Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	log.Info().Str("path", s.store.Path()).Msg("attention_config_updated")
	writeJSON(w, http.StatusOK, s.store.Current())
}

func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "reload_failed", err.Error())
		return
	}
	log.Info().Str("path", s.store.Path()).Msg("attention_config_reloaded")
	writeJSON(w, http.StatusOK, s.store.Current())
}

func (s *Server) handleJournalDay(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal_unavailable", "journal store not configured")
		return
	}
	day := chi.URLParam(r, "day")
	if _, err := time.Parse(journal.DayFormat, day); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD")
		return
	}
	entries, err := s.journal.ListDay(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "journal_query_failed", err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"day": day, "entries": entries})
}

func (s *Server) handleJournalSummary(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal_unavailable", "journal store not configured")
		return
	}
	day := chi.URLParam(r, "day")
	if _, err := time.Parse(journal.DayFormat, day); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD")
		return
	}
	summary, err := s.journal.Summarize(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "journal_query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// requestLogger logs one line per request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
