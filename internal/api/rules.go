package api

import (
	"net/http"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// ruleRequest lets clients omit is_enabled; new rules default to enabled.
type ruleRequest struct {
	IsEnabled *bool `json:"is_enabled"`
	model.Rule
}

// listRules handles GET /api/rules, ordered by priority.
func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.storage.ListRules(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(rules))
}

// createRule handles POST /api/rules.
func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rule := req.Rule
	rule.ID = 0
	rule.IsEnabled = req.IsEnabled == nil || *req.IsEnabled

	if err := s.storage.CreateRule(r.Context(), &rule); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rule)
}

// getRule handles GET /api/rules/{id}.
func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := s.storage.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rule)
}

// updateRule handles PUT /api/rules/{id}. The body is applied on top of the
// stored rule, so clients may send only the fields they change.
func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := s.storage.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := ruleRequest{Rule: *rule}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated := req.Rule
	updated.ID = id
	if req.IsEnabled != nil {
		updated.IsEnabled = *req.IsEnabled
	}

	if err := s.storage.UpdateRule(r.Context(), &updated); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

// deleteRule handles DELETE /api/rules/{id}.
func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.storage.DeleteRule(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

// applyAll handles POST /api/rules/apply-all.
func (s *Server) applyAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ApplyToAll(r.Context(), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// applyMergeRule handles POST /api/rules/{id}/apply for merge rules.
func (s *Server) applyMergeRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.engine.ApplyMergeRule(r.Context(), id, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}
