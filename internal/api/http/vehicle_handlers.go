package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appCommand "github.com/fleetdispatch/fleetdispatch/internal/application/command"
	appStatus "github.com/fleetdispatch/fleetdispatch/internal/application/status"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/command"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/position"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/status"
)

type commandCreateRequest struct {
	CampaignID uuid.UUID       `json:"campaignId"`
	Type       command.Type    `json:"type,omitempty"`
	Payload    command.Payload `json:"payload"`
}

type commandPatchRequest struct {
	State command.State `json:"state"`
}

type statusEventRequest struct {
	EventType  status.Type `json:"eventType"`
	CommandID  *uuid.UUID  `json:"commandId,omitempty"`
	MeasuredAt *time.Time  `json:"measuredAt,omitempty"`
	Payload    string      `json:"payload,omitempty"`
}

type positionRequest struct {
	CampaignID  uuid.UUID        `json:"campaignId"`
	Coordinates []position.Point `json:"coordinates"`
}

// Command handlers
func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "vehicleId")
	campaignID, err := optionalUUIDQuery(r, "campaignId")
	if err != nil {
		respondAppError(w, err)
		return
	}
	in := appCommand.ListInput{
		CampaignID: campaignID,
		Limit:      parseLimit(r, 100, 1000),
	}
	if v := r.URL.Query().Get("state"); v != "" {
		in.State = command.State(v)
		if !in.State.Valid() {
			respondError(w, http.StatusBadRequest, apperror.CodeValidation, "invalid state")
			return
		}
	}
	if v := r.URL.Query().Get("pending"); v != "" {
		pending, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, apperror.CodeValidation, "invalid pending flag")
			return
		}
		in.Pending = pending
	}
	cmds, err := s.commandSvc.List(r.Context(), vehicleID, in)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if cmds == nil {
		cmds = []*command.Command{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"commands": cmds})
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	var req commandCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	cmd, err := s.commandSvc.Post(r.Context(), chi.URLParam(r, "vehicleId"), appCommand.PostInput{
		CampaignID: req.CampaignID,
		Type:       req.Type,
		Payload:    req.Payload,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cmd)
}

func (s *Server) patchCommand(w http.ResponseWriter, r *http.Request) {
	commandID, err := parseUUIDParam(r, "commandId")
	if err != nil {
		respondError(w, http.StatusBadRequest, apperror.CodeValidation, "invalid commandId")
		return
	}
	var req commandPatchRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	cmd, err := s.commandSvc.Patch(r.Context(), chi.URLParam(r, "vehicleId"), commandID, req.State)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cmd)
}

// Status handlers
func (s *Server) listStatusEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.statusSvc.List(r.Context(), chi.URLParam(r, "vehicleId"), parseLimit(r, 100, 1000))
	if err != nil {
		respondAppError(w, err)
		return
	}
	if events == nil {
		events = []*status.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"statusEvents": events})
}

func (s *Server) postStatusEvent(w http.ResponseWriter, r *http.Request) {
	var req statusEventRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	event, err := s.statusSvc.Ingest(r.Context(), chi.URLParam(r, "vehicleId"), appStatus.Report{
		Type:       req.EventType,
		CommandID:  req.CommandID,
		MeasuredAt: req.MeasuredAt,
		Payload:    req.Payload,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// Position handlers
func (s *Server) postPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	p, err := s.positionSvc.Post(r.Context(), chi.URLParam(r, "vehicleId"), req.CampaignID, req.Coordinates)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}
