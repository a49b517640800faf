package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/library-core/internal/audit"
	"github.com/nerrad567/library-core/internal/auth"
)

// tokenRequest is the body of POST /api/auth/token.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleIssueToken exchanges librarian credentials for a bearer token.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !s.secCfg.Auth.Enabled || s.auth == nil {
		writeNotFound(w, "authentication is disabled")
		return
	}

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("login failed", "username", req.Username, "request_id", requestIDFrom(r.Context()))
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("issuing token failed", "username", req.Username, "error", err)
		writeInternalError(w, "failed to issue token")
		return
	}

	if s.audit != nil {
		s.audit.Record(&audit.AuditLog{
			Action:     "login",
			EntityKind: "auth",
			Actor:      req.Username,
			RequestID:  requestIDFrom(r.Context()),
		})
	}
	writeJSON(w, http.StatusOK, token)
}
