package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/filotex/ordermind/pkg/auth"
	"github.com/filotex/ordermind/pkg/erp"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

// handleLogin exchanges ERP credentials for a session cookie. The ERP token
// itself never leaves the server.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		WriteBadRequest(w, "username and password are required")
		return
	}

	result, err := s.erp.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, erp.ErrUnauthorized):
			WriteUnauthorized(w, "Invalid credentials")
		case errors.Is(err, erp.ErrUnreachable):
			WriteBadGateway(w, "The ERP is unreachable")
		default:
			var apiErr *erp.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				WriteUnauthorized(w, "Invalid credentials")
				return
			}
			WriteInternal(w, err)
		}
		return
	}

	identity, err := auth.ParseIdentity(result.AccessToken)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	if identity.Expired(time.Now()) {
		WriteUnauthorized(w, "The ERP issued an expired token")
		return
	}

	sessionID := s.sessions.Create(result.AccessToken)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("session.login", "username", identity.Username, "tenant_id", identity.TenantID)

	writeJSON(w, http.StatusOK, loginResponse{
		Username: identity.Username,
		FullName: identity.FullName,
		TenantID: identity.TenantID,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.SessionCookie); err == nil {
		s.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:   auth.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleERPStatus probes the ERP with the caller's credential and reports
// reachability and authorization separately.
func (s *Server) handleERPStatus(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Reachable  bool   `json:"reachable"`
		Authorized bool   `json:"authorized"`
		Detail     string `json:"detail,omitempty"`
	}

	_, err := s.erp.ListWarehouses(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, status{Reachable: true, Authorized: true})
	case errors.Is(err, erp.ErrUnauthorized), errors.Is(err, auth.ErrNoCredential):
		writeJSON(w, http.StatusOK, status{Reachable: true, Authorized: false, Detail: "credentials rejected"})
	case errors.Is(err, erp.ErrUnreachable):
		writeJSON(w, http.StatusOK, status{Reachable: false, Authorized: false, Detail: "connection failed"})
	default:
		writeJSON(w, http.StatusOK, status{Reachable: true, Authorized: true, Detail: err.Error()})
	}
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Agents())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
