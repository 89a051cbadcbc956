package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/hydrogate/internal/hydro"
)

// loginRequest is the body of POST /api/user-login. Fields stay raw so an
// absent, null or non-string value can be told apart from a string.
type loginRequest struct {
	Username json.RawMessage `json:"username"`
	Password json.RawMessage `json:"password"`
}

// handleLogin checks a username and password against active users and
// returns the matched row. Every mismatch gets the same 401 body.
//
// Strings, including empty ones, are compared exactly as sent. A field that
// is absent, null or not a string can match no row and is rejected without
// a query.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBadRequest(w, msgInvalidBody)
		return
	}

	username, okUser := credentialField(req.Username)
	password, okPass := credentialField(req.Password)
	if !okUser || !okPass {
		s.logger.Info("login rejected", "reason", "missing field", "request_id", requestID(r.Context()))
		writeUnauthorized(w, msgInvalidCredentials)
		return
	}

	creds, err := s.repo.Authenticate(r.Context(), username, password)
	if errors.Is(err, hydro.ErrInvalidCredentials) {
		s.logger.Info("login rejected", "request_id", requestID(r.Context()))
		writeUnauthorized(w, msgInvalidCredentials)
		return
	}
	if err != nil {
		s.writeDatabaseError(w, r, "login", err)
		return
	}

	s.respond(w, r, "login", creds)
}

// credentialField returns the string value of raw. It reports false for an
// absent field, JSON null, or any non-string value.
func credentialField(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}
