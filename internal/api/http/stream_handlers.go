package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/infrastructure/stream"
)

// commandStreamEndpoint pushes commands to the vehicle as newline-delimited
// JSON. The first document is a heartbeat, followed by the current command
// if one was already delivered.
func (s *Server) commandStreamEndpoint(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicleId")
	sub, err := s.commandStream.Subscribe(r.Context(), vehicleID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	defer s.commandStream.Unsubscribe(sub)

	s.pump(w, r, sub)
}

// updateStreamEndpoint pushes status, position and measurement updates for
// the vehicle to observers.
func (s *Server) updateStreamEndpoint(w http.ResponseWriter, r *http.Request) {
	sub := s.updateStream.Subscribe(chi.URLParam(r, "vehicleId"))
	defer s.updateStream.Unsubscribe(sub)

	s.pump(w, r, sub)
}

var newline = []byte("\n")

func (s *Server) pump(w http.ResponseWriter, r *http.Request, sub *stream.Subscription) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, apperror.CodeUnexpected, errStreamingUnsupported.Error())
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case msg := <-sub.Messages:
			// msg is shared with sibling subscriptions and must not be appended to.
			if _, err := w.Write(msg); err != nil {
				return
			}
			if _, err := w.Write(newline); err != nil {
				return
			}
			flusher.Flush()
		case <-sub.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}
