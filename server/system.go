package server

import (
	"net/http"
	"strings"

	"github.com/klchiu/waops/config"
	"github.com/klchiu/waops/wa"
)

// statusPayload is the session state shape shared by the status
// endpoint and the websocket broadcast.
type statusPayload struct {
	Type      string       `json:"type"`
	Connected bool         `json:"connected"`
	User      *wa.UserInfo `json:"user,omitempty"`
	QR        string       `json:"qr,omitempty"`
}

func (s *Server) statusPayload() interface{} {
	return statusPayload{
		Type:      "status",
		Connected: s.gateway.IsConnected(),
		User:      s.gateway.UserInfo(),
		QR:        s.gateway.QR(),
	}
}

// handleStatus reports session state, including the pairing QR code
// while the session is waiting to be linked.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.statusPayload())
}

// handleLogout tears down the session: all triggers are stopped first
// so nothing fires into a dead session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	s.sched.StopAll()
	if err := s.gateway.Logout(r.Context()); err != nil {
		s.log.Errorw("Logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Infow("Session logged out")
	s.hub.Broadcast(s.statusPayload())
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleEmailConfig reads or replaces the alert-email settings. Changes
// persist to the config file and apply to the mailer immediately.
func (s *Server) handleEmailConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.cfgMu.RLock()
		email := s.cfg.Email
		s.cfgMu.RUnlock()
		writeJSON(w, http.StatusOK, email)

	case http.MethodPost:
		var email config.EmailConfig
		if readJSON(w, r, &email) != nil {
			return
		}
		if email.Enabled && strings.TrimSpace(email.Address) == "" {
			writeValidationErrors(w, []string{"an alert address is required when email is enabled"})
			return
		}

		if err := config.SetEmail(s.v, email); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.cfgMu.Lock()
		s.cfg.Email = email
		s.cfgMu.Unlock()
		s.mail.SetConfig(email)

		s.log.Infow("Email settings updated", "enabled", email.Enabled, "address", email.Address)
		writeJSON(w, http.StatusOK, email)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleEmailTest sends a test email with the current settings.
func (s *Server) handleEmailTest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.mail.SendTest(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleServerConfig reads or replaces the dashboard host setting.
func (s *Server) handleServerConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.cfgMu.RLock()
		host := s.cfg.Server.Host
		s.cfgMu.RUnlock()
		writeJSON(w, http.StatusOK, map[string]string{"host": host})

	case http.MethodPost:
		var body struct {
			Host string `json:"host"`
		}
		if readJSON(w, r, &body) != nil {
			return
		}
		body.Host = strings.TrimSpace(body.Host)
		if body.Host == "" {
			writeValidationErrors(w, []string{"host must not be empty"})
			return
		}

		if err := config.SetServerHost(s.v, body.Host); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.cfgMu.Lock()
		s.cfg.Server.Host = body.Host
		s.cfgMu.Unlock()

		s.log.Infow("Server host updated", "host", body.Host)
		writeJSON(w, http.StatusOK, map[string]string{"host": body.Host})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
