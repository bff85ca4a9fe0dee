package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/session"
)

// handleStatus returns the session snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feeder.Status())
}

// handleGetAttributes returns every cached device attribute, keyed by wire name.
func (s *Server) handleGetAttributes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feeder.Attributes())
}

// handleRefreshAttributes asks the device for a fresh attribute snapshot.
func (s *Server) handleRefreshAttributes(w http.ResponseWriter, r *http.Request) {
	if err := s.feeder.RefreshAttributes(r.Context()); err != nil {
		writeFeederError(w, err)
		return
	}
	writeAccepted(w)
}

// handleListSettings returns the cached values of every settings group.
func (s *Server) handleListSettings(w http.ResponseWriter, _ *http.Request) {
	attrs := s.feeder.Attributes()
	groups := make(map[protocol.Group]protocol.AttributeSet)
	for _, g := range protocol.SettingsGroups() {
		groups[g] = attrs.Only(g)
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// handleGetSettings returns the cached values of one settings group.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	group := protocol.Group(chi.URLParam(r, "group"))
	if !group.IsSettings() {
		writeNotFound(w, "unknown settings group "+string(group))
		return
	}
	writeJSON(w, http.StatusOK, s.feeder.Attributes().Only(group))
}

// handleUpdateSettings writes one settings group. Omitted fields are left
// unchanged. The body uses the group's settings fields, e.g. for camera:
//
//	{"switch": true, "night_vision": "AUTOMATIC", "start": {"hour": 8, "minute": 0}}
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	group := protocol.Group(chi.URLParam(r, "group"))
	settings, ok := session.NewSettings(group)
	if !ok {
		writeNotFound(w, "unknown settings group "+string(group))
		return
	}
	if err := json.NewDecoder(r.Body).Decode(settings); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.feeder.ApplySettings(r.Context(), settings); err != nil {
		writeFeederError(w, err)
		return
	}
	s.logger.Info("settings update requested", "group", group, "subject", subjectFromContext(r.Context()))
	writeAccepted(w)
}

type feedRequest struct {
	Grains int `json:"grains"`
}

// handleManualFeed dispenses food now. An empty body or grains below 1
// uses the stored manual feed quantity.
func (s *Server) handleManualFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	if err := s.feeder.ManualFeed(r.Context(), req.Grains); err != nil {
		writeFeederError(w, err)
		return
	}
	s.logger.Info("manual feed requested via API", "grains", req.Grains, "subject", subjectFromContext(r.Context()))
	writeAccepted(w)
}

type quantityBody struct {
	Quantity int `json:"quantity"`
}

// handleGetFeedQuantity returns the default manual feed quantity.
func (s *Server) handleGetFeedQuantity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, quantityBody{Quantity: s.feeder.ManualFeedQuantity()})
}

// handleSetFeedQuantity stores the default manual feed quantity.
func (s *Server) handleSetFeedQuantity(w http.ResponseWriter, r *http.Request) {
	var body quantityBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.feeder.SetManualFeedQuantity(r.Context(), body.Quantity); err != nil {
		writeFeederError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
