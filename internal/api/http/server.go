package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appCampaign "github.com/fleetdispatch/fleetdispatch/internal/application/campaign"
	appCommand "github.com/fleetdispatch/fleetdispatch/internal/application/command"
	appPosition "github.com/fleetdispatch/fleetdispatch/internal/application/position"
	appStatus "github.com/fleetdispatch/fleetdispatch/internal/application/status"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/auth"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/metrics"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

// Deps are the collaborators the HTTP layer calls into.
type Deps struct {
	Campaigns *appCampaign.Service
	Commands  *appCommand.Service
	Statuses  *appStatus.Service
	Positions *appPosition.Service

	CommandStream *stream.CommandStream
	UpdateStream  *stream.UpdateStream
	Outbox        outbox.Repository

	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	campaignSvc   *appCampaign.Service
	commandSvc    *appCommand.Service
	statusSvc     *appStatus.Service
	positionSvc   *appPosition.Service
	commandStream *stream.CommandStream
	updateStream  *stream.UpdateStream
	outboxRepo    outbox.Repository
	verifier      *auth.Verifier
	metrics       *metrics.Metrics
	logger        zerolog.Logger
}

func NewServer(deps Deps) *Server {
	verifier := deps.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier(nil)
	}
	return &Server{
		campaignSvc:   deps.Campaigns,
		commandSvc:    deps.Commands,
		statusSvc:     deps.Statuses,
		positionSvc:   deps.Positions,
		commandStream: deps.CommandStream,
		updateStream:  deps.UpdateStream,
		outboxRepo:    deps.Outbox,
		verifier:      verifier,
		metrics:       deps.Metrics,
		logger:        deps.Logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)

		// Streams are long-lived and stay outside the request timeout.
		r.Route("/vehicles/{vehicleId}", func(r chi.Router) {
			r.Use(s.requireVehicleAccess)
			r.Get("/commands/stream", s.commandStreamEndpoint)
			r.Get("/stream", s.updateStreamEndpoint)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(30 * time.Second))
				r.Get("/commands", s.listCommands)
				r.Post("/commands", s.postCommand)
				r.Patch("/commands/{commandId}", s.patchCommand)
				r.Get("/status-events", s.listStatusEvents)
				r.Post("/status-events", s.postStatusEvent)
				r.Post("/positions", s.postPosition)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireOperator)
			r.Use(middleware.Timeout(30 * time.Second))
			r.Route("/campaigns", func(r chi.Router) {
				r.Post("/", s.createCampaign)
				r.Get("/", s.listCampaigns)
				r.Get("/{campaignId}", s.getCampaign)
				r.Patch("/{campaignId}", s.patchCampaign)
			})
			r.Get("/outbox", s.outboxCounts)
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code apperror.Code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"errors": []apperror.Entry{{Code: code, Message: message}},
	})
}

// respondAppError renders err with every accumulated entry and the status
// of its first code.
func respondAppError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(apperror.CodeOf(err)), map[string]interface{}{
		"errors": apperror.Entries(err),
	})
}

func statusFor(code apperror.Code) int {
	switch code {
	case apperror.CodeValidation, apperror.CodeInvalidConfiguration:
		return http.StatusBadRequest
	case apperror.CodeInvalidOperation:
		return http.StatusConflict
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeForbidden:
		return http.StatusForbidden
	case apperror.CodeNotAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.New(apperror.CodeValidation, "invalid request body: "+err.Error())
	}
	return nil
}

func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func optionalUUIDQuery(r *http.Request, key string) (*uuid.UUID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperror.New(apperror.CodeValidation, "invalid "+key)
	}
	return &id, nil
}

// instrument counts requests by method and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.metrics.APIRequest(r.Method, ww.Status())
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

var errStreamingUnsupported = errors.New("streaming not supported")
