// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	service "github.com/okian/stratowatch/internal/app"
	"github.com/okian/stratowatch/internal/adapters/repository"
	"github.com/okian/stratowatch/internal/domain/model"
	"github.com/okian/stratowatch/internal/domain/types"
	"github.com/okian/stratowatch/pkg/logger"
)

// Default request limits.
const (
	DefaultMaxBatchSize    = 10_000
	DefaultMaxAnomalyLimit = 100
	maxBodyBytes           = 32 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreDependencies
	ProfileDependencies
	AnomaliesDependencies
	RankDependencies
	FleetDependencies
}

// Entry mirrors the read shape returned by board queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	scoreHandler     *ScoreHandler
	profileHandler   *ProfileHandler
	anomaliesHandler *AnomaliesHandler
	rankHandler      *RankHandler
	fleetHandler     *FleetHandler

	rateLimitRPS   float64
	rateLimitBurst int
	trustedProxies []netip.Prefix
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{
		maxBatchSize:    DefaultMaxBatchSize,
		maxAnomalyLimit: DefaultMaxAnomalyLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		scoreHandler:     NewScoreHandler(deps, cfg.maxBatchSize),
		profileHandler:   NewProfileHandler(deps, cfg.maxBatchSize),
		anomaliesHandler: NewAnomaliesHandler(deps, cfg.maxAnomalyLimit),
		rankHandler:      NewRankHandler(deps),
		fleetHandler:     NewFleetHandler(deps),
		rateLimitRPS:     cfg.rateLimitRPS,
		rateLimitBurst:   cfg.rateLimitBurst,
		trustedProxies:   cfg.trustedProxies,
	}
}

// Register attaches all HTTP routes and the per-route middleware to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.Use(RequestIDMiddleware)
	if s.rateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, []string{"/healthz"}, s.trustedProxies))
	}

	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.HandleFunc("/score", MetricsMiddleware(s.scoreHandler.HandleScore, "score")).Methods(http.MethodPost)
	r.HandleFunc("/profile", MetricsMiddleware(s.profileHandler.HandleProfile, "profile")).Methods(http.MethodPost)
	r.HandleFunc("/anomalies", MetricsMiddleware(s.anomaliesHandler.HandleGetAnomalies, "anomalies")).Methods(http.MethodGet)
	r.HandleFunc("/rank/{id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank")).Methods(http.MethodGet)
	r.HandleFunc("/fleet/health", MetricsMiddleware(s.fleetHandler.HandleFleetHealth, "fleet_health")).Methods(http.MethodGet)
}

// Handler wraps r with panic recovery and CORS. Recovery is outermost so a
// panicking middleware still yields a 500.
func Handler(r http.Handler) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(cors(r))
}

// recoveryLogger routes recovered panics to the process logger.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	logger.Get().Named("http").Error(context.Background(), "handler panicked", logger.Any("panic", v))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before committing the status, so a value that cannot
// be encoded becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Get().Named("http").Error(context.Background(), "response encoding failed", logger.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: WrapKind("encode response", ErrInternal, err).Error()})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError maps errors returned by the service to HTTP statuses.
func writeUpstreamError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "canceled", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}

// decodeBody reads a JSON body into v, capped at maxBodyBytes. The returned
// status is 413 when the cap was hit and 400 otherwise.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, ErrBatchTooLarge
		}
		return http.StatusBadRequest, err
	}
	return http.StatusOK, nil
}
