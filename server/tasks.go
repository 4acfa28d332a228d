package server

import (
	"net/http"

	"github.com/klchiu/waops/task"
)

// handleTasks serves the task collection: GET lists, POST creates.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.tasks.List())

	case http.MethodPost:
		var t task.Task
		if readJSON(w, r, &t) != nil {
			return
		}
		if reasons := t.Validate(); len(reasons) > 0 {
			writeValidationErrors(w, reasons)
			return
		}

		created := s.tasks.Add(t)
		if err := s.persistTasks(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.sched.Schedule(created)
		s.log.Infow("Task created", "task", created.ID, "title", created.Title)
		writeJSON(w, http.StatusCreated, created)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTask serves one task: GET, PUT replace, DELETE.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	switch r.Method {
	case http.MethodGet:
		t, ok := s.tasks.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeJSON(w, http.StatusOK, t)

	case http.MethodPut:
		var t task.Task
		if readJSON(w, r, &t) != nil {
			return
		}
		if reasons := t.Validate(); len(reasons) > 0 {
			writeValidationErrors(w, reasons)
			return
		}

		updated, err := s.tasks.Update(id, t)
		if err != nil {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		if err := s.persistTasks(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.sched.Schedule(updated)
		s.log.Infow("Task updated", "task", id)
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if !s.tasks.Delete(id) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		if err := s.persistTasks(); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.sched.Unschedule(id)
		s.log.Infow("Task deleted", "task", id)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleTaskToggle sets a task's enabled state explicitly.
func (s *Server) handleTaskToggle(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPut) {
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if readJSON(w, r, &body) != nil {
		return
	}

	updated, err := s.tasks.SetEnabled(r.PathValue("id"), body.Enabled)
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err := s.persistTasks(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sched.Schedule(updated)
	s.log.Infow("Task toggled", "task", updated.ID, "enabled", updated.Enabled)
	writeJSON(w, http.StatusOK, updated)
}

// handleTaskTest fires a task immediately without touching its schedule
// or enabled state.
func (s *Server) handleTaskTest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	t, ok := s.tasks.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	if err := s.disp.Fire(r.Context(), t); err != nil {
		s.log.Errorw("Test fire failed", "task", t.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) persistTasks() error {
	return s.store.SaveTasks(s.tasks.Snapshot())
}
