package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/plaf203-core/internal/feeding"
)

// handleListPlans returns every feeding plan in order.
func (s *Server) handleListPlans(w http.ResponseWriter, _ *http.Request) {
	plans := s.feeder.FoodPlans()
	if plans == nil {
		plans = []feeding.Plan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans, "count": len(plans)})
}

// handleGetPlan returns a single plan by ID.
func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}
	for _, p := range s.feeder.FoodPlans() {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeNotFound(w, "plan not found")
}

// handleReplacePlans replaces the whole schedule.
//
// Body: {"plans": [{"id": 1, "time": {"hour": 8, "minute": 0}, "days": ["MONDAY"], "grain_num": 2}]}
func (s *Server) handleReplacePlans(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Plans []feeding.Plan `json:"plans"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	if err := s.feeder.SetFoodPlans(r.Context(), body.Plans); err != nil {
		writeFeederError(w, err)
		return
	}
	s.logger.Info("food plans replaced", "count", len(body.Plans), "subject", subjectFromContext(r.Context()))
	s.handleListPlans(w, r)
}

// handlePutPlan adds or replaces the plan with the path ID.
func (s *Server) handlePutPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}
	var plan feeding.Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	plan.ID = id

	if err := s.feeder.SetFoodPlan(r.Context(), plan); err != nil {
		writeFeederError(w, err)
		return
	}
	s.logger.Info("food plan set", "plan_id", id, "subject", subjectFromContext(r.Context()))
	writeJSON(w, http.StatusOK, plan)
}

// handleDeletePlan removes the plan with the path ID.
func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}
	if err := s.feeder.RemoveFoodPlan(r.Context(), id); err != nil {
		writeFeederError(w, err)
		return
	}
	s.logger.Info("food plan removed", "plan_id", id, "subject", subjectFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// planID parses the {id} path parameter, writing a 400 when it is not a
// positive integer.
func planID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeBadRequest(w, "plan id must be a positive integer")
		return 0, false
	}
	return id, true
}
