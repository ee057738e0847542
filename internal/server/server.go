package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canonurl/internal/config"
	"canonurl/internal/logger"
	"canonurl/internal/metrics"
	"canonurl/internal/ratelimit"
	"canonurl/internal/urlnorm"
)

const maxBodyBytes = 64 << 10

type Server struct {
	cfg      config.Config
	defaults urlnorm.Options
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

func New(cfg config.Config, limiter *ratelimit.Limiter, log *slog.Logger) (*Server, error) {
	defaults, err := cfg.NormalizeOptions()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		defaults: defaults,
		limiter:  limiter,
		logger:   log,
	}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(AccessLog(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/normalize", s.handleNormalize)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type normalizeRequest struct {
	URL     string                 `json:"url"`
	Options map[string]interface{} `json:"options"`
}

type normalizeResponse struct {
	URL     string `json:"url"`
	Hash    string `json:"hash"`
	FullURL bool   `json:"full_url"`
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	log := logger.WithRequestID(r.Context(), s.logger)

	var req normalizeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil || req.URL == "" {
		metrics.NormalizeTotal.WithLabelValues("invalid_request").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	opts, err := s.defaults.Merge(req.Options)
	if err != nil {
		metrics.NormalizeTotal.WithLabelValues("invalid_options").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_options", "detail": err.Error()})
		return
	}

	normalized, err := urlnorm.Normalize(req.URL, opts)
	if err != nil {
		var cfgErr *urlnorm.ConfigurationError
		var parseErr *urlnorm.ParseError
		switch {
		case errors.As(err, &cfgErr):
			metrics.NormalizeTotal.WithLabelValues("invalid_options").Inc()
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_options", "detail": err.Error()})
		case errors.As(err, &parseErr):
			metrics.NormalizeTotal.WithLabelValues("invalid_url").Inc()
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid_url", "detail": err.Error()})
		default:
			metrics.NormalizeTotal.WithLabelValues("error").Inc()
			log.Error("normalize_failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		}
		return
	}

	metrics.NormalizeTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, normalizeResponse{
		URL:     normalized,
		Hash:    urlnorm.Hash(normalized),
		FullURL: urlnorm.IsFullURL(normalized),
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			metrics.RateLimitedTotal.Inc()
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
