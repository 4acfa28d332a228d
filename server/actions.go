package server

import (
	"net/http"

	"github.com/klchiu/waops/action"
)

// handleRules serves the reply-rule collection: GET lists, POST creates.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.rules.List())

	case http.MethodPost:
		var rule action.Rule
		if readJSON(w, r, &rule) != nil {
			return
		}
		if reasons := rule.Validate(); len(reasons) > 0 {
			writeValidationErrors(w, reasons)
			return
		}

		created := s.rules.Add(rule)
		if err := s.persistRules(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.log.Infow("Reply rule created", "rule", created.ID, "trigger", created.TriggerPattern)
		writeJSON(w, http.StatusCreated, created)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRule serves one reply rule: GET, PUT replace, DELETE.
func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		rule, ok := s.rules.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "Rule not found")
			return
		}
		writeJSON(w, http.StatusOK, rule)

	case http.MethodPut:
		var rule action.Rule
		if readJSON(w, r, &rule) != nil {
			return
		}
		if reasons := rule.Validate(); len(reasons) > 0 {
			writeValidationErrors(w, reasons)
			return
		}

		updated, err := s.rules.Update(id, rule)
		if err != nil {
			writeError(w, http.StatusNotFound, "Rule not found")
			return
		}
		if err := s.persistRules(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.log.Infow("Reply rule updated", "rule", id)
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if !s.rules.Delete(id) {
			writeError(w, http.StatusNotFound, "Rule not found")
			return
		}
		if err := s.persistRules(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.log.Infow("Reply rule deleted", "rule", id)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRuleToggle sets a rule's enabled state explicitly.
func (s *Server) handleRuleToggle(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if readJSON(w, r, &body) != nil {
		return
	}

	updated, err := s.rules.SetEnabled(r.PathValue("id"), body.Enabled)
	if err != nil {
		writeError(w, http.StatusNotFound, "Rule not found")
		return
	}
	if err := s.persistRules(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Infow("Reply rule toggled", "rule", updated.ID, "enabled", updated.Enabled)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) persistRules() error {
	return s.store.SaveRules(s.rules.Snapshot())
}
