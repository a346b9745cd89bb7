package httpapi

import (
	"net/http"

	appCampaign "github.com/fleetdispatch/fleetdispatch/internal/application/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/apperror"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/campaign"
	"github.com/fleetdispatch/fleetdispatch/internal/domain/outbox"
)

type campaignCreateRequest struct {
	Name           string                   `json:"name"`
	SiteID         string                   `json:"siteId"`
	State          campaign.State           `json:"state,omitempty"`
	Configurations []campaign.Configuration `json:"configurations,omitempty"`
}

type campaignPatchRequest struct {
	Name           *string                  `json:"name,omitempty"`
	Configurations []campaign.Configuration `json:"configurations,omitempty"`
	State          *campaign.State          `json:"state,omitempty"`
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	c, err := s.campaignSvc.Create(r.Context(), appCampaign.CreateInput{
		Name:           req.Name,
		SiteID:         req.SiteID,
		State:          req.State,
		Configurations: req.Configurations,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := campaign.Filter{
		VehicleID:  q.Get("vehicleId"),
		ClientID:   q.Get("clientId"),
		EndpointID: q.Get("endpointId"),
	}
	if v := q.Get("state"); v != "" {
		state := campaign.State(v)
		if !state.Valid() {
			respondError(w, http.StatusBadRequest, apperror.CodeValidation, "invalid state")
			return
		}
		filter.States = []campaign.State{state}
	}
	cs, err := s.campaignSvc.List(r.Context(), filter, parseLimit(r, 50, 500))
	if err != nil {
		respondAppError(w, err)
		return
	}
	if cs == nil {
		cs = []*campaign.Campaign{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"campaigns": cs})
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "campaignId")
	if err != nil {
		respondError(w, http.StatusBadRequest, apperror.CodeValidation, "invalid campaignId")
		return
	}
	c, err := s.campaignSvc.Get(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) patchCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "campaignId")
	if err != nil {
		respondError(w, http.StatusBadRequest, apperror.CodeValidation, "invalid campaignId")
		return
	}
	var req campaignPatchRequest
	if err := decodeBody(r, &req); err != nil {
		respondAppError(w, err)
		return
	}
	c, err := s.campaignSvc.Patch(r.Context(), id, appCampaign.PatchInput{
		Name:           req.Name,
		Configurations: req.Configurations,
		State:          req.State,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) outboxCounts(w http.ResponseWriter, r *http.Request) {
	counts := make(map[outbox.Kind]int)
	for _, kind := range []outbox.Kind{outbox.KindCampaign, outbox.KindPosition} {
		n, err := s.outboxRepo.Count(r.Context(), kind)
		if err != nil {
			respondAppError(w, err)
			return
		}
		counts[kind] = n
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"pending": counts})
}
